package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rewear/rewear/internal/model"
)

const itemColumns = `i.id, i.owner_id, i.title, i.description, i.brand, i.location, i.category, i.size,
	i.condition, i.points_value, i.available, i.moderation_status, i.rejection_reason,
	i.views, (SELECT COUNT(*) FROM item_likes l WHERE l.item_id = i.id),
	i.created_at, i.updated_at, i.deleted_at, u.username`

const itemFrom = ` FROM items i JOIN users u ON u.id = i.owner_id`

func scanItem(row interface{ Scan(...any) error }) (*model.Item, error) {
	item := &model.Item{}
	var brand, location, reason sql.NullString
	if err := row.Scan(&item.ID, &item.OwnerID, &item.Title, &item.Description, &brand, &location,
		&item.Category, &item.Size, &item.Condition, &item.PointsValue, &item.Available,
		&item.Moderation.Status, &reason, &item.Views, &item.Likes, &item.CreatedAt, &item.UpdatedAt, &item.DeletedAt,
		&item.OwnerName); err != nil {
		return nil, err
	}
	item.Brand = brand.String
	item.Location = location.String
	item.Moderation.Reason = reason.String
	item.Images = []string{}
	return item, nil
}

// CreateItem lists a new item for the owner. New listings await moderation.
func CreateItem(ctx context.Context, db *sql.DB, ownerID int64, in model.ItemInput) (*model.Item, error) {
	in.Normalize()
	if err := model.ValidationError(in.Validate()); err != nil {
		return nil, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := getActiveUser(ctx, tx, ownerID); err != nil {
		return nil, err
	}

	result, err := tx.ExecContext(ctx,
		`INSERT INTO items (owner_id, title, description, brand, location, category, size, condition, points_value)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ownerID, in.Title, in.Description, nullString(in.Brand), nullString(in.Location),
		in.Category, in.Size, in.Condition, in.PointsValue,
	)
	if err != nil {
		return nil, fmt.Errorf("creating item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting item id: %w", err)
	}

	if err := setItemImages(ctx, tx, id, in.Images); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing item: %w", err)
	}

	return GetItem(ctx, db, id)
}

// GetItem returns an item by ID with its images. Soft-deleted items are
// returned with DeletedAt set.
func GetItem(ctx context.Context, db *sql.DB, id int64) (*model.Item, error) {
	return getItem(ctx, db, id)
}

func getItem(ctx context.Context, q querier, id int64) (*model.Item, error) {
	item, err := scanItem(q.QueryRowContext(ctx,
		`SELECT `+itemColumns+itemFrom+` WHERE i.id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, model.Errorf(model.KindNotFound, "item %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}

	images, err := itemImages(ctx, q, []int64{id})
	if err != nil {
		return nil, err
	}
	if imgs, ok := images[id]; ok {
		item.Images = imgs
	}
	return item, nil
}

// GetItemForViewer returns an item with the viewer's like state and the owner
// card filled in.
func GetItemForViewer(ctx context.Context, db *sql.DB, id, viewerID int64) (*model.Item, error) {
	item, err := getItem(ctx, db, id)
	if err != nil {
		return nil, err
	}
	if item.IsLiked, err = isLiked(ctx, db, id, viewerID); err != nil {
		return nil, err
	}
	if item.Owner, err = ownerSummary(ctx, db, item.OwnerID); err != nil {
		return nil, err
	}
	return item, nil
}

// RecordView counts a view of a live listing by someone other than its owner.
// It reports whether the view was counted.
func RecordView(ctx context.Context, db *sql.DB, id, viewerID int64) (bool, error) {
	res, err := db.ExecContext(ctx,
		`UPDATE items SET views = views + 1 WHERE id = ? AND owner_id <> ? AND deleted_at IS NULL`,
		id, viewerID,
	)
	if err != nil {
		return false, fmt.Errorf("recording view: %w", err)
	}
	return affectedOne(res)
}

// ToggleLike flips the user's like on an approved, live listing and returns
// the new state and like count.
func ToggleLike(ctx context.Context, db *sql.DB, userID, itemID int64) (bool, int, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return false, 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := getActiveUser(ctx, tx, userID); err != nil {
		return false, 0, err
	}
	item, err := getLiveItem(ctx, tx, itemID)
	if err != nil {
		return false, 0, err
	}
	if item.Moderation.Status != model.ModerationApproved {
		return false, 0, model.Errorf(model.KindNotFound, "item %d not found", itemID)
	}

	res, err := tx.ExecContext(ctx,
		`DELETE FROM item_likes WHERE item_id = ? AND user_id = ?`, itemID, userID,
	)
	if err != nil {
		return false, 0, fmt.Errorf("removing like: %w", err)
	}
	removed, err := affectedOne(res)
	if err != nil {
		return false, 0, fmt.Errorf("removing like: %w", err)
	}
	if !removed {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO item_likes (item_id, user_id, created_at) VALUES (?, ?, ?)`,
			itemID, userID, now(),
		); err != nil {
			return false, 0, fmt.Errorf("adding like: %w", err)
		}
	}

	var likes int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM item_likes WHERE item_id = ?`, itemID,
	).Scan(&likes); err != nil {
		return false, 0, fmt.Errorf("counting likes: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, 0, fmt.Errorf("committing like: %w", err)
	}
	return !removed, likes, nil
}

func isLiked(ctx context.Context, q querier, itemID, userID int64) (bool, error) {
	var liked bool
	err := q.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM item_likes WHERE item_id = ? AND user_id = ?)`, itemID, userID,
	).Scan(&liked)
	if err != nil {
		return false, fmt.Errorf("checking like: %w", err)
	}
	return liked, nil
}

// getLiveItem is getItem that treats soft-deleted items as missing.
func getLiveItem(ctx context.Context, q querier, id int64) (*model.Item, error) {
	item, err := getItem(ctx, q, id)
	if err != nil {
		return nil, err
	}
	if item.DeletedAt != nil {
		return nil, model.Errorf(model.KindNotFound, "item %d not found", id)
	}
	return item, nil
}

// UpdateItem replaces the owner-editable fields of a listing. Edited listings
// go back to moderation. Items committed to an active swap cannot be edited.
func UpdateItem(ctx context.Context, db *sql.DB, actorID, id int64, in model.ItemInput) (*model.Item, error) {
	in.Normalize()
	if err := model.ValidationError(in.Validate()); err != nil {
		return nil, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	item, err := getLiveItem(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if item.OwnerID != actorID {
		return nil, model.ErrNotOwner
	}
	if err := ensureNoActiveSwap(ctx, tx, id); err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE items SET title = ?, description = ?, brand = ?, location = ?, category = ?, size = ?,
		        condition = ?, points_value = ?, moderation_status = 'pending', rejection_reason = NULL,
		        updated_at = ?
		 WHERE id = ?`,
		in.Title, in.Description, nullString(in.Brand), nullString(in.Location), in.Category, in.Size,
		in.Condition, in.PointsValue, now(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("updating item: %w", err)
	}

	if err := setItemImages(ctx, tx, id, in.Images); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing item update: %w", err)
	}
	return GetItem(ctx, db, id)
}

// DeleteOwnItem soft-deletes a listing on behalf of its owner.
func DeleteOwnItem(ctx context.Context, db *sql.DB, actorID, id int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	item, err := getLiveItem(ctx, tx, id)
	if err != nil {
		return err
	}
	if item.OwnerID != actorID {
		return model.ErrNotOwner
	}
	if err := softDeleteItem(ctx, tx, id); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing item deletion: %w", err)
	}
	return nil
}

// softDeleteItem marks an item deleted unless an active swap references it.
func softDeleteItem(ctx context.Context, tx *sql.Tx, id int64) error {
	if err := ensureNoActiveSwap(ctx, tx, id); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx,
		`UPDATE items SET deleted_at = ?, available = 0 WHERE id = ? AND deleted_at IS NULL`,
		now(), id,
	)
	if err != nil {
		return fmt.Errorf("deleting item: %w", err)
	}
	return nil
}

// ensureNoActiveSwap fails with ItemHasActiveSwap if a pending or accepted
// swap references the item.
func ensureNoActiveSwap(ctx context.Context, q querier, itemID int64) error {
	swapID, err := activeSwapFor(ctx, q, itemID)
	if err != nil {
		return err
	}
	if swapID != 0 {
		return model.Errorf(model.KindItemHasActiveSwap, "item %d is part of active swap %d", itemID, swapID)
	}
	return nil
}

// activeSwapFor returns the ID of the active swap committing the item, or 0.
func activeSwapFor(ctx context.Context, q querier, itemID int64) (int64, error) {
	var swapID int64
	err := q.QueryRowContext(ctx,
		`SELECT swap_id FROM swap_items WHERE item_id = ? AND active = 1`, itemID,
	).Scan(&swapID)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("checking active swaps: %w", err)
	}
	return swapID, nil
}

// ListCatalog returns approved, available listings matching the filter.
func ListCatalog(ctx context.Context, db *sql.DB, f model.ItemFilter) (*model.ItemPage, error) {
	where := []string{"i.deleted_at IS NULL", "i.moderation_status = 'approved'", "i.available = 1"}
	return listItems(ctx, db, where, nil, f)
}

// ListAdminItems returns non-deleted listings in any moderation status,
// optionally restricted to one status.
func ListAdminItems(ctx context.Context, db *sql.DB, status model.ModerationStatus, f model.ItemFilter) (*model.ItemPage, error) {
	where := []string{"i.deleted_at IS NULL"}
	var args []any
	if status != "" {
		if !status.Valid() {
			return nil, model.Errorf(model.KindInvalid, "invalid moderation status %q", status)
		}
		where = append(where, "i.moderation_status = ?")
		args = append(args, status)
	}
	return listItems(ctx, db, where, args, f)
}

// ListOwnerItems returns every non-deleted listing of an owner.
func ListOwnerItems(ctx context.Context, db *sql.DB, ownerID int64) ([]model.Item, error) {
	page, err := listItems(ctx, db, []string{"i.deleted_at IS NULL"}, nil,
		model.ItemFilter{OwnerID: ownerID, Limit: model.MaxPageLimit, Page: 1})
	if err != nil {
		return nil, err
	}
	return page.Items, nil
}

func listItems(ctx context.Context, db *sql.DB, where []string, args []any, f model.ItemFilter) (*model.ItemPage, error) {
	f.Normalize()

	if s := strings.TrimSpace(f.Search); s != "" {
		where = append(where, `(i.title LIKE ? ESCAPE '\' OR i.description LIKE ? ESCAPE '\' OR i.brand LIKE ? ESCAPE '\')`)
		p := likePattern(s)
		args = append(args, p, p, p)
	}
	if f.Category != "" {
		where = append(where, "i.category = ?")
		args = append(args, f.Category)
	}
	if f.Size != "" {
		where = append(where, "i.size = ?")
		args = append(args, f.Size)
	}
	if f.Condition != "" {
		where = append(where, "i.condition = ?")
		args = append(args, f.Condition)
	}
	if f.MinPoints > 0 {
		where = append(where, "i.points_value >= ?")
		args = append(args, f.MinPoints)
	}
	if f.MaxPoints > 0 {
		where = append(where, "i.points_value <= ?")
		args = append(args, f.MaxPoints)
	}
	if f.OwnerID > 0 {
		where = append(where, "i.owner_id = ?")
		args = append(args, f.OwnerID)
	}

	cond := " WHERE " + strings.Join(where, " AND ")

	page := &model.ItemPage{Items: []model.Item{}, Page: f.Page, Limit: f.Limit}
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*)`+itemFrom+cond, args...).Scan(&page.Total); err != nil {
		return nil, fmt.Errorf("counting items: %w", err)
	}

	// SortBy and SortOrder are whitelisted by Normalize.
	query := `SELECT ` + itemColumns + itemFrom + cond +
		` ORDER BY i.` + f.SortBy + ` ` + f.SortOrder + `, i.id ` + f.SortOrder +
		` LIMIT ? OFFSET ?`
	rows, err := db.QueryContext(ctx, query, append(args, f.Limit, (f.Page-1)*f.Limit)...)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		page.Items = append(page.Items, *item)
		ids = append(ids, item.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	rows.Close()

	images, err := itemImages(ctx, db, ids)
	if err != nil {
		return nil, err
	}
	for i := range page.Items {
		if imgs, ok := images[page.Items[i].ID]; ok {
			page.Items[i].Images = imgs
		}
	}
	return page, nil
}

// itemImages loads image URLs for the given items in display order.
func itemImages(ctx context.Context, q querier, ids []int64) (map[int64][]string, error) {
	out := make(map[int64][]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := q.QueryContext(ctx,
		`SELECT item_id, url FROM item_images WHERE item_id IN (`+placeholders(len(ids))+`)
		 ORDER BY item_id, position`, args...,
	)
	if err != nil {
		return nil, fmt.Errorf("loading item images: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var url string
		if err := rows.Scan(&id, &url); err != nil {
			return nil, fmt.Errorf("scanning item image: %w", err)
		}
		out[id] = append(out[id], url)
	}
	return out, rows.Err()
}

func setItemImages(ctx context.Context, tx *sql.Tx, itemID int64, urls []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM item_images WHERE item_id = ?`, itemID); err != nil {
		return fmt.Errorf("clearing item images: %w", err)
	}
	for pos, url := range urls {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO item_images (item_id, position, url) VALUES (?, ?, ?)`,
			itemID, pos, url,
		); err != nil {
			return fmt.Errorf("adding item image: %w", err)
		}
	}
	return nil
}

// GetItemHistory returns the settlement transfers of an item, newest first.
func GetItemHistory(ctx context.Context, db *sql.DB, itemID int64) ([]model.Transfer, error) {
	if _, err := getItem(ctx, db, itemID); err != nil {
		return nil, err
	}
	return ListTransfers(ctx, db, itemID, 0)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
