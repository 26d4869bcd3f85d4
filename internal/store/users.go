package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rewear/rewear/internal/model"
)

const userColumns = `id, username, password_hash, role, first_name, last_name, location, bio, avatar_url,
	points_balance, rating_sum, rating_count, created_at, deleted_at`

func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	u := &model.User{}
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role,
		&u.FirstName, &u.LastName, &u.Location, &u.Bio, &u.AvatarURL, &u.PointsBalance,
		&u.RatingSum, &u.RatingCount, &u.CreatedAt, &u.DeletedAt); err != nil {
		return nil, err
	}
	u.SetRating()
	return u, nil
}

// CreateUser creates a new account with an initial points balance.
func CreateUser(ctx context.Context, db *sql.DB, username, passwordHash, role string, points int64) (*model.User, error) {
	if !model.ValidRole(role) {
		return nil, model.Errorf(model.KindInvalid, "invalid role %q", role)
	}
	if points < 0 {
		return nil, model.Errorf(model.KindInvalid, "initial points must not be negative")
	}

	result, err := db.ExecContext(ctx,
		`INSERT INTO users (username, password_hash, role, points_balance) VALUES (?, ?, ?, ?)`,
		username, passwordHash, role, points,
	)
	if isUniqueViolation(err) {
		return nil, model.Errorf(model.KindConflict, "username already exists")
	}
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting user id: %w", err)
	}

	return GetUser(ctx, db, id)
}

// GetUser returns a user by ID, including soft-deleted users.
func GetUser(ctx context.Context, db *sql.DB, id int64) (*model.User, error) {
	return getUser(ctx, db, id)
}

func getUser(ctx context.Context, q querier, id int64) (*model.User, error) {
	u, err := scanUser(q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, model.Errorf(model.KindNotFound, "user %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return u, nil
}

// getActiveUser is getUser that treats soft-deleted users as missing.
func getActiveUser(ctx context.Context, q querier, id int64) (*model.User, error) {
	u, err := getUser(ctx, q, id)
	if err != nil {
		return nil, err
	}
	if u.DeletedAt != nil {
		return nil, model.Errorf(model.KindNotFound, "user %d not found", id)
	}
	return u, nil
}

// GetUserByUsername returns the active user with the given username, or the
// most recently deleted one if no active user has it.
func GetUserByUsername(ctx context.Context, db *sql.DB, username string) (*model.User, error) {
	u, err := scanUser(db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = ?
		 ORDER BY deleted_at IS NULL DESC, id DESC LIMIT 1`, username,
	))
	if err == sql.ErrNoRows {
		return nil, model.Errorf(model.KindNotFound, "user %q not found", username)
	}
	if err != nil {
		return nil, fmt.Errorf("getting user by username: %w", err)
	}
	return u, nil
}

// ListUsers returns all non-deleted users.
func ListUsers(ctx context.Context, db *sql.DB) ([]model.User, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE deleted_at IS NULL ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
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

// UpdateUserRole changes a user's role.
func UpdateUserRole(ctx context.Context, db *sql.DB, id int64, role string) (*model.User, error) {
	if !model.ValidRole(role) {
		return nil, model.Errorf(model.KindInvalid, "invalid role %q", role)
	}
	res, err := db.ExecContext(ctx,
		`UPDATE users SET role = ? WHERE id = ? AND deleted_at IS NULL`,
		role, id,
	)
	if err != nil {
		return nil, fmt.Errorf("updating user: %w", err)
	}
	if ok, err := affectedOne(res); err != nil {
		return nil, fmt.Errorf("updating user: %w", err)
	} else if !ok {
		return nil, model.Errorf(model.KindNotFound, "user %d not found", id)
	}
	return GetUser(ctx, db, id)
}

// UpdateUserPassword updates a user's password hash.
func UpdateUserPassword(ctx context.Context, db *sql.DB, id int64, passwordHash string) error {
	res, err := db.ExecContext(ctx,
		`UPDATE users SET password_hash = ? WHERE id = ? AND deleted_at IS NULL`,
		passwordHash, id,
	)
	if err != nil {
		return fmt.Errorf("updating user password: %w", err)
	}
	if ok, err := affectedOne(res); err != nil {
		return fmt.Errorf("updating user password: %w", err)
	} else if !ok {
		return model.Errorf(model.KindNotFound, "user %d not found", id)
	}
	return nil
}

// UpdateProfile replaces the self-editable profile fields of an account.
// Renaming to a username held by another active account is a conflict.
func UpdateProfile(ctx context.Context, db *sql.DB, id int64, in model.ProfileInput) (*model.User, error) {
	in.Normalize()
	if err := model.ValidationError(in.Validate()); err != nil {
		return nil, err
	}

	res, err := db.ExecContext(ctx,
		`UPDATE users SET first_name = ?, last_name = ?, username = ?, location = ?, bio = ?
		 WHERE id = ? AND deleted_at IS NULL`,
		in.FirstName, in.LastName, in.Username, in.Location, in.Bio, id,
	)
	if isUniqueViolation(err) {
		return nil, model.Errorf(model.KindConflict, "username already exists")
	}
	if err != nil {
		return nil, fmt.Errorf("updating profile: %w", err)
	}
	if ok, err := affectedOne(res); err != nil {
		return nil, fmt.Errorf("updating profile: %w", err)
	} else if !ok {
		return nil, model.Errorf(model.KindNotFound, "user %d not found", id)
	}
	return GetUser(ctx, db, id)
}

// SetAvatar points an account's avatar at a stored image URL.
func SetAvatar(ctx context.Context, db *sql.DB, id int64, url string) (*model.User, error) {
	res, err := db.ExecContext(ctx,
		`UPDATE users SET avatar_url = ? WHERE id = ? AND deleted_at IS NULL`, url, id,
	)
	if err != nil {
		return nil, fmt.Errorf("setting avatar: %w", err)
	}
	if ok, err := affectedOne(res); err != nil {
		return nil, fmt.Errorf("setting avatar: %w", err)
	} else if !ok {
		return nil, model.Errorf(model.KindNotFound, "user %d not found", id)
	}
	return GetUser(ctx, db, id)
}

// GetProfile returns the public profile of an active account with its
// approved, live listings.
func GetProfile(ctx context.Context, db *sql.DB, username string) (*model.Profile, error) {
	u, err := GetUserByUsername(ctx, db, username)
	if err != nil {
		return nil, err
	}
	if u.DeletedAt != nil {
		return nil, model.Errorf(model.KindNotFound, "user %q not found", username)
	}

	page, err := listItems(ctx, db,
		[]string{"i.deleted_at IS NULL", "i.moderation_status = 'approved'"}, nil,
		model.ItemFilter{OwnerID: u.ID, Limit: model.MaxPageLimit})
	if err != nil {
		return nil, err
	}

	p := &model.Profile{User: u, ItemsListed: page.Total, Items: page.Items}
	if err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM swaps WHERE (requester_id = ? OR owner_id = ?) AND status = 'completed'`,
		u.ID, u.ID,
	).Scan(&p.SwapsCompleted); err != nil {
		return nil, fmt.Errorf("counting swaps: %w", err)
	}
	return p, nil
}

// ownerSummary returns the owner card for a listing. ItemsCount counts the
// owner's approved, live listings.
func ownerSummary(ctx context.Context, q querier, ownerID int64) (*model.OwnerSummary, error) {
	u, err := getUser(ctx, q, ownerID)
	if err != nil {
		return nil, err
	}
	o := &model.OwnerSummary{
		ID:          u.ID,
		Username:    u.Username,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		AvatarURL:   u.AvatarURL,
		Rating:      u.Rating,
		RatingCount: u.RatingCount,
		CreatedAt:   u.CreatedAt,
	}
	if err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM items WHERE owner_id = ? AND deleted_at IS NULL AND moderation_status = 'approved'`,
		ownerID,
	).Scan(&o.ItemsCount); err != nil {
		return nil, fmt.Errorf("counting owner items: %w", err)
	}
	return o, nil
}

// DeleteUser soft-deletes a user. Accounts that are party to an active swap
// cannot be deleted until the swap is cancelled, rejected or completed.
func DeleteUser(ctx context.Context, db *sql.DB, id int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := getActiveUser(ctx, tx, id); err != nil {
		return err
	}

	var active int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM swaps
		 WHERE (requester_id = ? OR owner_id = ?) AND status IN ('pending', 'accepted')`,
		id, id,
	).Scan(&active)
	if err != nil {
		return fmt.Errorf("checking active swaps: %w", err)
	}
	if active > 0 {
		return model.Errorf(model.KindItemHasActiveSwap, "user has %d active swaps", active)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET deleted_at = ? WHERE id = ?`, now(), id,
	); err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing user deletion: %w", err)
	}
	return nil
}

// GetUserStats returns activity counts for a user.
func GetUserStats(ctx context.Context, db *sql.DB, id int64) (*model.UserStats, error) {
	if _, err := getUser(ctx, db, id); err != nil {
		return nil, err
	}

	stats := &model.UserStats{}
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(moderation_status = 'approved'), 0),
		        COALESCE(SUM(moderation_status = 'pending'), 0)
		 FROM items WHERE owner_id = ? AND deleted_at IS NULL`, id,
	).Scan(&stats.ItemsListed, &stats.ItemsApproved, &stats.ItemsPending)
	if err != nil {
		return nil, fmt.Errorf("counting items: %w", err)
	}

	err = db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(status = 'completed'), 0),
		        COALESCE(SUM(status = 'pending'), 0)
		 FROM swaps WHERE requester_id = ? OR owner_id = ?`, id, id,
	).Scan(&stats.SwapsCompleted, &stats.SwapsPending)
	if err != nil {
		return nil, fmt.Errorf("counting swaps: %w", err)
	}

	err = db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(CASE WHEN to_user_id = ? THEN points END), 0),
		        COALESCE(SUM(CASE WHEN from_user_id = ? THEN points END), 0)
		 FROM transfers WHERE item_id IS NULL AND (to_user_id = ? OR from_user_id = ?)`,
		id, id, id, id,
	).Scan(&stats.PointsEarned, &stats.PointsSpent)
	if err != nil {
		return nil, fmt.Errorf("summing points: %w", err)
	}

	return stats, nil
}
