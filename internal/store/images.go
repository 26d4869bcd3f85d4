package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/rewear/rewear/internal/model"
)

// Image is a stored upload.
type Image struct {
	Key  string
	Data []byte
	MIME string
}

// SaveImage stores processed image bytes under a new random key.
func SaveImage(ctx context.Context, db *sql.DB, data []byte, mime string, uploadedBy int64) (string, error) {
	key := uuid.NewString()
	if _, err := db.ExecContext(ctx,
		`INSERT INTO images (key, data, mime, uploaded_by, created_at) VALUES (?, ?, ?, ?, ?)`,
		key, data, mime, uploadedBy, now(),
	); err != nil {
		return "", fmt.Errorf("saving image: %w", err)
	}
	return key, nil
}

// GetImage returns a stored image by key.
func GetImage(ctx context.Context, db *sql.DB, key string) (*Image, error) {
	if _, err := uuid.Parse(key); err != nil {
		return nil, model.Errorf(model.KindNotFound, "image not found")
	}
	img := &Image{Key: key}
	err := db.QueryRowContext(ctx,
		`SELECT data, mime FROM images WHERE key = ?`, key,
	).Scan(&img.Data, &img.MIME)
	if err == sql.ErrNoRows {
		return nil, model.Errorf(model.KindNotFound, "image not found")
	}
	if err != nil {
		return nil, fmt.Errorf("getting image: %w", err)
	}
	return img, nil
}
