package store

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rewear/rewear/internal/model"
)

// Swap lifecycle:
//
//	pending  -> accepted | rejected | cancelled
//	accepted -> completed | cancelled
//
// Items are committed to a swap (swap_items.active) from creation until the
// swap is terminal; they are reserved (items.available = 0) only while the
// swap is accepted. Points move only at completion.

const swapColumns = `s.id, s.requester_id, s.owner_id, s.requested_item_id, s.mode, s.points_offered,
	s.message, s.status, s.reason, s.cancelled_by, s.created_at, s.accepted_at, s.rejected_at,
	s.cancelled_at, s.completed_at, i.title, ru.username, ou.username`

const swapFrom = ` FROM swaps s
	JOIN items i ON i.id = s.requested_item_id
	JOIN users ru ON ru.id = s.requester_id
	JOIN users ou ON ou.id = s.owner_id`

func scanSwap(row interface{ Scan(...any) error }) (*model.Swap, error) {
	s := &model.Swap{}
	var message, reason sql.NullString
	if err := row.Scan(&s.ID, &s.RequesterID, &s.OwnerID, &s.RequestedItemID, &s.Mode, &s.PointsOffered,
		&message, &s.Status, &reason, &s.CancelledBy, &s.CreatedAt, &s.AcceptedAt, &s.RejectedAt,
		&s.CancelledAt, &s.CompletedAt, &s.RequestedItemTitle, &s.RequesterName, &s.OwnerName); err != nil {
		return nil, err
	}
	s.Message = message.String
	s.Reason = reason.String
	return s, nil
}

// CreateSwap opens a swap request from requesterID for itemID. In direct
// mode offeredItemIDs are the requester's items offered in exchange; in
// points mode the requester offers the item's points value. Nothing is
// reserved and no points move until the owner accepts.
func CreateSwap(ctx context.Context, db *sql.DB, requesterID, itemID int64, mode model.SwapMode, offeredItemIDs []int64, message string) (*model.Swap, error) {
	if !mode.Valid() {
		return nil, model.Errorf(model.KindInvalid, "invalid swap mode %q", mode)
	}
	if mode == model.SwapModePoints && len(offeredItemIDs) > 0 {
		return nil, model.Errorf(model.KindInvalid, "offered items are only allowed in direct mode")
	}
	message = strings.TrimSpace(message)
	if err := model.ValidateMessage(message); err != nil {
		return nil, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	requester, err := getActiveUser(ctx, tx, requesterID)
	if err != nil {
		return nil, err
	}
	item, err := getLiveItem(ctx, tx, itemID)
	if err != nil {
		return nil, err
	}

	if err := checkRequestable(ctx, tx, item); err != nil {
		return nil, err
	}
	if item.OwnerID == requesterID {
		return nil, model.ErrSelfSwap
	}

	var points int64
	switch mode {
	case model.SwapModePoints:
		if requester.PointsBalance < item.PointsValue {
			return nil, model.Errorf(model.KindInsufficientPoints,
				"need %d points, have %d", item.PointsValue, requester.PointsBalance)
		}
		points = item.PointsValue
	case model.SwapModeDirect:
		if err := checkOffer(ctx, tx, requesterID, itemID, offeredItemIDs); err != nil {
			return nil, err
		}
	}

	result, err := tx.ExecContext(ctx,
		`INSERT INTO swaps (requester_id, owner_id, requested_item_id, mode, points_offered, message, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		requesterID, item.OwnerID, itemID, mode, points, nullString(message), now(),
	)
	if err != nil {
		return nil, fmt.Errorf("creating swap: %w", err)
	}
	swapID, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting swap id: %w", err)
	}

	if err := commitItem(ctx, tx, swapID, itemID, "requested"); err != nil {
		if isUniqueViolation(err) {
			return nil, model.Errorf(model.KindItemUnavailable, "item %d is already part of an active swap", itemID)
		}
		return nil, err
	}
	for _, id := range offeredItemIDs {
		if err := commitItem(ctx, tx, swapID, id, "offered"); err != nil {
			if isUniqueViolation(err) {
				return nil, model.Errorf(model.KindInvalidOfferedItems, "item %d is already part of an active swap", id)
			}
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing swap: %w", err)
	}
	return GetSwap(ctx, db, swapID)
}

// checkRequestable fails with ItemUnavailable unless the item is approved,
// available, owned by an active account, and free of active swaps.
func checkRequestable(ctx context.Context, q querier, item *model.Item) error {
	if !item.Listable() {
		return model.Errorf(model.KindItemUnavailable, "item %d is not available", item.ID)
	}
	if _, err := getActiveUser(ctx, q, item.OwnerID); err != nil {
		if model.KindOf(err) == model.KindNotFound {
			return model.Errorf(model.KindItemUnavailable, "item %d is not available", item.ID)
		}
		return err
	}
	swapID, err := activeSwapFor(ctx, q, item.ID)
	if err != nil {
		return err
	}
	if swapID != 0 {
		return model.Errorf(model.KindItemUnavailable, "item %d is already part of an active swap", item.ID)
	}
	return nil
}

// checkOffer validates a direct-mode offer set at creation time.
func checkOffer(ctx context.Context, q querier, requesterID, requestedItemID int64, offered []int64) error {
	if len(offered) == 0 {
		return model.Errorf(model.KindInvalidOfferedItems, "direct swaps need at least one offered item")
	}
	if len(offered) > model.MaxOfferedItems {
		return model.Errorf(model.KindInvalidOfferedItems, "at most %d items can be offered", model.MaxOfferedItems)
	}
	seen := make(map[int64]bool, len(offered))
	for _, id := range offered {
		if seen[id] {
			return model.Errorf(model.KindInvalidOfferedItems, "item %d offered twice", id)
		}
		seen[id] = true
		if id == requestedItemID {
			return model.Errorf(model.KindInvalidOfferedItems, "cannot offer the requested item")
		}

		item, err := getItem(ctx, q, id)
		if model.KindOf(err) == model.KindNotFound {
			return model.Errorf(model.KindInvalidOfferedItems, "offered item %d not found", id)
		}
		if err != nil {
			return err
		}
		if item.OwnerID != requesterID {
			return model.Errorf(model.KindInvalidOfferedItems, "offered item %d is not yours", id)
		}
		if !item.Listable() {
			return model.Errorf(model.KindInvalidOfferedItems, "offered item %d is not available", id)
		}
		swapID, err := activeSwapFor(ctx, q, id)
		if err != nil {
			return err
		}
		if swapID != 0 {
			return model.Errorf(model.KindInvalidOfferedItems, "offered item %d is already part of an active swap", id)
		}
	}
	return nil
}

func commitItem(ctx context.Context, tx *sql.Tx, swapID, itemID int64, role string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO swap_items (swap_id, item_id, role) VALUES (?, ?, ?)`,
		swapID, itemID, role,
	)
	if err != nil {
		return fmt.Errorf("committing item to swap: %w", err)
	}
	return nil
}

// AcceptSwap accepts a pending swap on behalf of the item owner and reserves
// every involved item. If the offer no longer holds (the requested item was
// withdrawn, the requester's balance dropped, or an offered item changed),
// the swap is rejected with reason model.ReasonStaleOffer instead and
// returned without error.
func AcceptSwap(ctx context.Context, db *sql.DB, actorID, swapID int64) (*model.Swap, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	s, err := getSwap(ctx, tx, swapID)
	if err != nil {
		return nil, err
	}
	if actorID != s.OwnerID {
		return nil, model.ErrNotOwner
	}
	if !model.CanTransition(s.Status, model.SwapAccepted) {
		return nil, model.Errorf(model.KindInvalidTransition, "cannot accept a %s swap", s.Status)
	}

	stale, err := offerStale(ctx, tx, s)
	if err != nil {
		return nil, err
	}

	at := now()
	if stale {
		if err := transition(ctx, tx, s, model.SwapRejected, at,
			`reason = ?, rejected_at = ?`, model.ReasonStaleOffer, at); err != nil {
			return nil, err
		}
	} else {
		for _, id := range s.ItemIDs() {
			if err := reserveItem(ctx, tx, id, at); err != nil {
				return nil, err
			}
		}
		if err := transition(ctx, tx, s, model.SwapAccepted, at, `accepted_at = ?`, at); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing swap acceptance: %w", err)
	}
	return GetSwap(ctx, db, swapID)
}

// offerStale re-validates a pending swap against the current catalog and
// balances.
func offerStale(ctx context.Context, q querier, s *model.Swap) (bool, error) {
	item, err := getItem(ctx, q, s.RequestedItemID)
	if err != nil {
		return false, err
	}
	if !item.Listable() || item.OwnerID != s.OwnerID {
		return true, nil
	}

	requester, err := getUser(ctx, q, s.RequesterID)
	if err != nil {
		return false, err
	}
	if requester.DeletedAt != nil {
		return true, nil
	}

	switch s.Mode {
	case model.SwapModePoints:
		if requester.PointsBalance < item.PointsValue {
			return true, nil
		}
	case model.SwapModeDirect:
		for _, id := range s.OfferedItemIDs {
			offered, err := getItem(ctx, q, id)
			if err != nil {
				return false, err
			}
			if !offered.Listable() || offered.OwnerID != s.RequesterID {
				return true, nil
			}
		}
	}
	return false, nil
}

// reserveItem marks an available item unavailable. Failure to reserve means
// the item changed underneath the transaction and the whole accept fails.
func reserveItem(ctx context.Context, tx *sql.Tx, itemID int64, at time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE items SET available = 0, updated_at = ?
		 WHERE id = ? AND available = 1 AND deleted_at IS NULL`,
		at, itemID,
	)
	if err != nil {
		return fmt.Errorf("reserving item: %w", err)
	}
	if ok, err := affectedOne(res); err != nil {
		return fmt.Errorf("reserving item: %w", err)
	} else if !ok {
		return model.Errorf(model.KindItemUnavailable, "item %d could not be reserved", itemID)
	}
	return nil
}

// releaseItems makes reserved items of an accepted swap available again.
// It is a no-op for swaps that never reached accepted.
func releaseItems(ctx context.Context, tx *sql.Tx, s *model.Swap, at time.Time) error {
	if s.Status != model.SwapAccepted {
		return nil
	}
	ids := s.ItemIDs()
	args := []any{at}
	for _, id := range ids {
		args = append(args, id)
	}
	_, err := tx.ExecContext(ctx,
		`UPDATE items SET available = 1, updated_at = ?
		 WHERE id IN (`+placeholders(len(ids))+`) AND deleted_at IS NULL`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("releasing items: %w", err)
	}
	return nil
}

// transition moves a swap from its loaded status to the target status with a
// compare-and-swap on the status column. set and args add columns to update.
// Terminal targets release the swap's item commitments.
func transition(ctx context.Context, tx *sql.Tx, s *model.Swap, to model.SwapStatus, at time.Time, set string, args ...any) error {
	if !model.CanTransition(s.Status, to) {
		return model.Errorf(model.KindInvalidTransition, "cannot move a %s swap to %s", s.Status, to)
	}

	query := `UPDATE swaps SET status = ?`
	if set != "" {
		query += `, ` + set
	}
	query += ` WHERE id = ? AND status = ?`

	all := append([]any{to}, args...)
	all = append(all, s.ID, s.Status)
	res, err := tx.ExecContext(ctx, query, all...)
	if err != nil {
		return fmt.Errorf("updating swap status: %w", err)
	}
	if ok, err := affectedOne(res); err != nil {
		return fmt.Errorf("updating swap status: %w", err)
	} else if !ok {
		return model.Errorf(model.KindInvalidTransition, "swap %d changed concurrently", s.ID)
	}

	if to.Terminal() {
		if _, err := tx.ExecContext(ctx,
			`UPDATE swap_items SET active = 0 WHERE swap_id = ?`, s.ID,
		); err != nil {
			return fmt.Errorf("releasing swap items: %w", err)
		}
	}
	return nil
}

// RejectSwap rejects a pending swap on behalf of the item owner.
func RejectSwap(ctx context.Context, db *sql.DB, actorID, swapID int64, reason string) (*model.Swap, error) {
	reason = strings.TrimSpace(reason)
	if len([]rune(reason)) > model.MaxReasonLen {
		return nil, model.Errorf(model.KindInvalid, "reason must be at most %d characters", model.MaxReasonLen)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	s, err := getSwap(ctx, tx, swapID)
	if err != nil {
		return nil, err
	}
	if actorID != s.OwnerID {
		return nil, model.ErrNotOwner
	}
	if !model.CanTransition(s.Status, model.SwapRejected) {
		return nil, model.Errorf(model.KindInvalidTransition, "cannot reject a %s swap", s.Status)
	}

	at := now()
	if err := releaseItems(ctx, tx, s, at); err != nil {
		return nil, err
	}
	if err := transition(ctx, tx, s, model.SwapRejected, at,
		`reason = ?, rejected_at = ?`, nullString(reason), at); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing swap rejection: %w", err)
	}
	return GetSwap(ctx, db, swapID)
}

// CancelSwap cancels a pending or accepted swap on behalf of either party,
// releasing any reservation.
func CancelSwap(ctx context.Context, db *sql.DB, actorID, swapID int64) (*model.Swap, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	s, err := getSwap(ctx, tx, swapID)
	if err != nil {
		return nil, err
	}
	if !s.Party(actorID) {
		return nil, model.Errorf(model.KindNotAuthorized, "only swap parties can cancel")
	}
	if !model.CanTransition(s.Status, model.SwapCancelled) {
		return nil, model.Errorf(model.KindInvalidTransition, "cannot cancel a %s swap", s.Status)
	}

	at := now()
	if err := releaseItems(ctx, tx, s, at); err != nil {
		return nil, err
	}
	if err := transition(ctx, tx, s, model.SwapCancelled, at,
		`cancelled_by = ?, cancelled_at = ?`, actorID, at); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing swap cancellation: %w", err)
	}
	return GetSwap(ctx, db, swapID)
}

// CompleteSwap settles an accepted swap. In points mode the requester pays
// the item's points value to the owner; in direct mode the requested and
// offered items change hands. In both modes the requested item goes to the
// requester, and every involved item becomes available under its new owner.
// If any step fails the transaction is rolled back, the swap stays accepted,
// and the error is a retryable SettlementFailed (or BalanceOverflow).
func CompleteSwap(ctx context.Context, db *sql.DB, swapID int64) (*model.Swap, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	s, err := getSwap(ctx, tx, swapID)
	if err != nil {
		return nil, err
	}
	if !model.CanTransition(s.Status, model.SwapCompleted) {
		return nil, model.Errorf(model.KindInvalidTransition, "cannot complete a %s swap", s.Status)
	}

	at := now()
	if s.Mode == model.SwapModePoints {
		item, err := getItem(ctx, tx, s.RequestedItemID)
		if err != nil {
			return nil, err
		}
		if err := movePoints(ctx, tx, s.RequesterID, s.OwnerID, item.PointsValue); err != nil {
			return nil, err
		}
		if err := recordTransfer(ctx, tx, s.ID, nil, s.RequesterID, s.OwnerID, item.PointsValue, at); err != nil {
			return nil, err
		}
	}

	if err := moveItem(ctx, tx, s.ID, s.RequestedItemID, s.OwnerID, s.RequesterID, at); err != nil {
		return nil, err
	}
	for _, id := range s.OfferedItemIDs {
		if err := moveItem(ctx, tx, s.ID, id, s.RequesterID, s.OwnerID, at); err != nil {
			return nil, err
		}
	}

	if err := transition(ctx, tx, s, model.SwapCompleted, at, `completed_at = ?`, at); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, model.Errorf(model.KindSettlementFailed, "committing settlement: %v", err)
	}
	return GetSwap(ctx, db, swapID)
}

// movePoints debits from and credits to by amount. The debit is guarded so
// the balance cannot go negative; the credit uses checked addition.
func movePoints(ctx context.Context, tx *sql.Tx, from, to, amount int64) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE users SET points_balance = points_balance - ?
		 WHERE id = ? AND deleted_at IS NULL AND points_balance >= ?`,
		amount, from, amount,
	)
	if err != nil {
		return model.Errorf(model.KindSettlementFailed, "debiting requester: %v", err)
	}
	if ok, err := affectedOne(res); err != nil || !ok {
		return model.Errorf(model.KindSettlementFailed, "requester balance no longer covers %d points", amount)
	}

	var balance int64
	err = tx.QueryRowContext(ctx,
		`SELECT points_balance FROM users WHERE id = ? AND deleted_at IS NULL`, to,
	).Scan(&balance)
	if err == sql.ErrNoRows {
		return model.Errorf(model.KindSettlementFailed, "owner account is gone")
	}
	if err != nil {
		return model.Errorf(model.KindSettlementFailed, "reading owner balance: %v", err)
	}
	credited, ok := addPoints(balance, amount)
	if !ok {
		return model.Errorf(model.KindBalanceOverflow, "crediting %d points would overflow", amount)
	}

	res, err = tx.ExecContext(ctx,
		`UPDATE users SET points_balance = ? WHERE id = ? AND points_balance = ?`,
		credited, to, balance,
	)
	if err != nil {
		return model.Errorf(model.KindSettlementFailed, "crediting owner: %v", err)
	}
	if ok, err := affectedOne(res); err != nil || !ok {
		return model.Errorf(model.KindSettlementFailed, "owner balance changed during settlement")
	}
	return nil
}

// addPoints returns a+b and false if the sum overflows int64. Both are
// non-negative.
func addPoints(a, b int64) (int64, bool) {
	if b > math.MaxInt64-a {
		return 0, false
	}
	return a + b, true
}

// moveItem transfers a reserved item between owners and makes it available.
func moveItem(ctx context.Context, tx *sql.Tx, swapID, itemID, from, to int64, at time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE items SET owner_id = ?, available = 1, updated_at = ?
		 WHERE id = ? AND owner_id = ? AND available = 0 AND deleted_at IS NULL`,
		to, at, itemID, from,
	)
	if err != nil {
		return model.Errorf(model.KindSettlementFailed, "moving item %d: %v", itemID, err)
	}
	if ok, err := affectedOne(res); err != nil || !ok {
		return model.Errorf(model.KindSettlementFailed, "item %d is no longer reserved for this swap", itemID)
	}
	return recordTransfer(ctx, tx, swapID, &itemID, from, to, 0, at)
}

// GetSwap returns a swap by ID.
func GetSwap(ctx context.Context, db *sql.DB, id int64) (*model.Swap, error) {
	return getSwap(ctx, db, id)
}

func getSwap(ctx context.Context, q querier, id int64) (*model.Swap, error) {
	s, err := scanSwap(q.QueryRowContext(ctx, `SELECT `+swapColumns+swapFrom+` WHERE s.id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, model.Errorf(model.KindNotFound, "swap %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting swap: %w", err)
	}

	offered, err := offeredItems(ctx, q, []int64{id})
	if err != nil {
		return nil, err
	}
	s.OfferedItemIDs = offered[id]
	return s, nil
}

// ListSwaps returns the swaps of one user, newest first.
func ListSwaps(ctx context.Context, db *sql.DB, f model.SwapFilter) ([]model.Swap, error) {
	query := `SELECT ` + swapColumns + swapFrom
	var args []any

	switch f.Direction {
	case "sent":
		query += ` WHERE s.requester_id = ?`
		args = append(args, f.UserID)
	case "received":
		query += ` WHERE s.owner_id = ?`
		args = append(args, f.UserID)
	case "":
		query += ` WHERE (s.requester_id = ? OR s.owner_id = ?)`
		args = append(args, f.UserID, f.UserID)
	default:
		return nil, model.Errorf(model.KindInvalid, "invalid direction %q", f.Direction)
	}

	if f.Status != "" {
		if !f.Status.Valid() {
			return nil, model.Errorf(model.KindInvalid, "invalid status %q", f.Status)
		}
		query += ` AND s.status = ?`
		args = append(args, f.Status)
	}
	query += ` ORDER BY s.created_at DESC, s.id DESC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing swaps: %w", err)
	}
	defer rows.Close()

	swaps := []model.Swap{}
	var ids []int64
	for rows.Next() {
		s, err := scanSwap(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning swap: %w", err)
		}
		swaps = append(swaps, *s)
		ids = append(ids, s.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing swaps: %w", err)
	}
	rows.Close()

	offered, err := offeredItems(ctx, db, ids)
	if err != nil {
		return nil, err
	}
	for i := range swaps {
		swaps[i].OfferedItemIDs = offered[swaps[i].ID]
	}
	return swaps, nil
}

func offeredItems(ctx context.Context, q querier, swapIDs []int64) (map[int64][]int64, error) {
	out := make(map[int64][]int64, len(swapIDs))
	if len(swapIDs) == 0 {
		return out, nil
	}
	args := make([]any, len(swapIDs))
	for i, id := range swapIDs {
		args[i] = id
	}
	rows, err := q.QueryContext(ctx,
		`SELECT swap_id, item_id FROM swap_items
		 WHERE role = 'offered' AND swap_id IN (`+placeholders(len(swapIDs))+`)
		 ORDER BY swap_id, item_id`, args...,
	)
	if err != nil {
		return nil, fmt.Errorf("loading offered items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var swapID, itemID int64
		if err := rows.Scan(&swapID, &itemID); err != nil {
			return nil, fmt.Errorf("scanning offered item: %w", err)
		}
		out[swapID] = append(out[swapID], itemID)
	}
	return out, rows.Err()
}

// RateSwap records one party's score of the other after completion and
// updates the ratee's rating aggregate.
func RateSwap(ctx context.Context, db *sql.DB, actorID, swapID int64, score int) (*model.Rating, error) {
	if score < model.MinRatingScore || score > model.MaxRatingScore {
		return nil, model.Errorf(model.KindInvalid, "score must be between %d and %d", model.MinRatingScore, model.MaxRatingScore)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	s, err := getSwap(ctx, tx, swapID)
	if err != nil {
		return nil, err
	}
	if !s.Party(actorID) {
		return nil, model.Errorf(model.KindNotAuthorized, "only swap parties can rate")
	}
	if s.Status != model.SwapCompleted {
		return nil, model.Errorf(model.KindInvalidTransition, "only completed swaps can be rated")
	}

	r := &model.Rating{SwapID: s.ID, RaterID: actorID, RateeID: s.Counterpart(actorID), Score: score, CreatedAt: now()}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO ratings (swap_id, rater_id, ratee_id, score, created_at) VALUES (?, ?, ?, ?, ?)`,
		r.SwapID, r.RaterID, r.RateeID, r.Score, r.CreatedAt,
	)
	if isUniqueViolation(err) {
		return nil, model.Errorf(model.KindConflict, "swap already rated")
	}
	if err != nil {
		return nil, fmt.Errorf("recording rating: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET rating_sum = rating_sum + ?, rating_count = rating_count + 1 WHERE id = ?`,
		score, r.RateeID,
	); err != nil {
		return nil, fmt.Errorf("updating rating: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing rating: %w", err)
	}
	return r, nil
}
