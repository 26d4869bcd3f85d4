package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rewear/rewear/internal/model"
)

// requireAdmin re-checks the actor's stored role. A token minted before a
// demotion must not keep admin rights.
func requireAdmin(ctx context.Context, q querier, actorID int64) error {
	u, err := getActiveUser(ctx, q, actorID)
	if model.KindOf(err) == model.KindNotFound {
		return model.ErrNotAuthorized
	}
	if err != nil {
		return err
	}
	if u.Role != model.RoleAdmin {
		return model.ErrNotAuthorized
	}
	return nil
}

// ApproveItem makes a pending listing visible in the catalog.
func ApproveItem(ctx context.Context, db *sql.DB, adminID, id int64) (*model.Item, error) {
	return moderate(ctx, db, adminID, id, model.ModerationApproved, "")
}

// RejectItem hides a pending or approved listing with a reason.
func RejectItem(ctx context.Context, db *sql.DB, adminID, id int64, reason string) (*model.Item, error) {
	reason = strings.TrimSpace(reason)
	if err := model.ValidateReason(reason); err != nil {
		return nil, err
	}
	return moderate(ctx, db, adminID, id, model.ModerationRejected, reason)
}

func moderate(ctx context.Context, db *sql.DB, adminID, id int64, to model.ModerationStatus, reason string) (*model.Item, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := requireAdmin(ctx, tx, adminID); err != nil {
		return nil, err
	}
	item, err := getLiveItem(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	from := item.Moderation.Status
	if !model.CanModerate(from, to) {
		return nil, model.Errorf(model.KindInvalidTransition, "cannot move a %s listing to %s", from, to)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE items SET moderation_status = ?, rejection_reason = ?, updated_at = ?
		 WHERE id = ? AND moderation_status = ?`,
		to, nullString(reason), now(), id, from,
	)
	if err != nil {
		return nil, fmt.Errorf("moderating item: %w", err)
	}
	if ok, err := affectedOne(res); err != nil {
		return nil, fmt.Errorf("moderating item: %w", err)
	} else if !ok {
		return nil, model.Errorf(model.KindInvalidTransition, "item %d changed concurrently", id)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing moderation: %w", err)
	}
	return GetItem(ctx, db, id)
}

// DeleteItem soft-deletes any listing on behalf of an admin.
func DeleteItem(ctx context.Context, db *sql.DB, adminID, id int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := requireAdmin(ctx, tx, adminID); err != nil {
		return err
	}
	if _, err := getLiveItem(ctx, tx, id); err != nil {
		return err
	}
	if err := softDeleteItem(ctx, tx, id); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing item deletion: %w", err)
	}
	return nil
}

// GetDashboard returns platform-wide counts and the newest accounts and
// listings for admins.
func GetDashboard(ctx context.Context, db *sql.DB, adminID int64) (*model.Dashboard, error) {
	if err := requireAdmin(ctx, db, adminID); err != nil {
		return nil, err
	}

	d := &model.Dashboard{
		ItemsByStatus: map[model.ModerationStatus]int{
			model.ModerationPending:  0,
			model.ModerationApproved: 0,
			model.ModerationRejected: 0,
		},
		SwapsByStatus: map[model.SwapStatus]int{
			model.SwapPending:   0,
			model.SwapAccepted:  0,
			model.SwapRejected:  0,
			model.SwapCancelled: 0,
			model.SwapCompleted: 0,
		},
	}

	if err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE deleted_at IS NULL`,
	).Scan(&d.Users); err != nil {
		return nil, fmt.Errorf("counting users: %w", err)
	}

	if err := countBy(ctx, db,
		`SELECT moderation_status, COUNT(*) FROM items WHERE deleted_at IS NULL GROUP BY moderation_status`,
		func(k string, n int) {
			d.ItemsByStatus[model.ModerationStatus(k)] = n
			d.Items += n
		}); err != nil {
		return nil, fmt.Errorf("counting items: %w", err)
	}

	if err := countBy(ctx, db,
		`SELECT status, COUNT(*) FROM swaps GROUP BY status`,
		func(k string, n int) {
			d.SwapsByStatus[model.SwapStatus(k)] = n
			d.Swaps += n
		}); err != nil {
		return nil, fmt.Errorf("counting swaps: %w", err)
	}

	users, err := recentUsers(ctx, db, model.DashboardRecent)
	if err != nil {
		return nil, err
	}
	d.RecentUsers = users
	recent, err := listItems(ctx, db, []string{"i.deleted_at IS NULL"}, nil,
		model.ItemFilter{Limit: model.DashboardRecent, SortBy: "created_at", SortOrder: "desc"})
	if err != nil {
		return nil, err
	}
	d.RecentItems = recent.Items

	return d, nil
}

func recentUsers(ctx context.Context, db *sql.DB, n int) ([]model.User, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE deleted_at IS NULL ORDER BY created_at DESC, id DESC LIMIT ?`, n,
	)
	if err != nil {
		return nil, fmt.Errorf("listing recent users: %w", err)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func countBy(ctx context.Context, db *sql.DB, query string, fn func(string, int)) error {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var k string
		var n int
		if err := rows.Scan(&k, &n); err != nil {
			return err
		}
		fn(k, n)
	}
	return rows.Err()
}
