package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rewear/rewear/internal/model"
)

// recordTransfer appends a settlement movement. itemID is nil for points.
func recordTransfer(ctx context.Context, tx *sql.Tx, swapID int64, itemID *int64, fromUserID, toUserID, points int64, at time.Time) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO transfers (swap_id, item_id, from_user_id, to_user_id, points, transferred_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		swapID, itemID, fromUserID, toUserID, points, at,
	)
	if err != nil {
		return fmt.Errorf("recording transfer: %w", err)
	}
	return nil
}

// ListTransfers returns settlement transfers, optionally filtered by item or
// by a user on either side, newest first.
func ListTransfers(ctx context.Context, db *sql.DB, itemID, userID int64) ([]model.Transfer, error) {
	query := `SELECT t.id, t.swap_id, t.item_id, t.from_user_id, t.to_user_id, t.points, t.transferred_at,
	                 COALESCE(i.title, ''), fu.username, tu.username
	          FROM transfers t
	          LEFT JOIN items i ON i.id = t.item_id
	          JOIN users fu ON fu.id = t.from_user_id
	          JOIN users tu ON tu.id = t.to_user_id
	          WHERE 1=1`
	var args []any

	if itemID > 0 {
		query += ` AND t.item_id = ?`
		args = append(args, itemID)
	}
	if userID > 0 {
		query += ` AND (t.from_user_id = ? OR t.to_user_id = ?)`
		args = append(args, userID, userID)
	}

	query += ` ORDER BY t.transferred_at DESC, t.id DESC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing transfers: %w", err)
	}
	defer rows.Close()

	transfers := []model.Transfer{}
	for rows.Next() {
		var t model.Transfer
		if err := rows.Scan(&t.ID, &t.SwapID, &t.ItemID, &t.FromUserID, &t.ToUserID, &t.Points,
			&t.TransferredAt, &t.ItemTitle, &t.FromUsername, &t.ToUsername); err != nil {
			return nil, fmt.Errorf("scanning transfer: %w", err)
		}
		transfers = append(transfers, t)
	}
	return transfers, rows.Err()
}
