package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type SQLOverlayRepository struct {
	db *DB
}

var _ OverlayRepository = (*SQLOverlayRepository)(nil)

func NewOverlayRepository(db *DB) *SQLOverlayRepository {
	return &SQLOverlayRepository{db: db}
}

// GetOverlay returns nil when the user never wrote an overlay for the item.
func (r *SQLOverlayRepository) GetOverlay(ctx context.Context, userID, collection string, itemID int) (*Overlay, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT user_id, collection, item_id, favorite, rating, updated_at
		FROM overlays
		WHERE user_id = ? AND collection = ? AND item_id = ?
	`, userID, collection, itemID)

	overlay, err := scanOverlay(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get overlay: %w", err)
	}

	return overlay, nil
}

// SetOverlay replaces the whole overlay record, creating it on first write.
func (r *SQLOverlayRepository) SetOverlay(ctx context.Context, overlay Overlay) error {
	if overlay.Rating < 0 || overlay.Rating > 4 {
		return ErrInvalidRating
	}
	if overlay.UpdatedAt.IsZero() {
		overlay.UpdatedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO overlays (user_id, collection, item_id, favorite, rating, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, collection, item_id) DO UPDATE SET
			favorite = excluded.favorite,
			rating = excluded.rating,
			updated_at = excluded.updated_at
	`, overlay.UserID, overlay.Collection, overlay.ItemID,
		boolToInt(overlay.Favorite), overlay.Rating, formatTime(overlay.UpdatedAt))

	if err != nil {
		return fmt.Errorf("failed to set overlay: %w", err)
	}

	return nil
}

// ListFavorites returns the user's favorited items of a collection, by item id.
func (r *SQLOverlayRepository) ListFavorites(ctx context.Context, userID, collection string) ([]Overlay, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id, collection, item_id, favorite, rating, updated_at
		FROM overlays
		WHERE user_id = ? AND collection = ? AND favorite = 1
		ORDER BY item_id
	`, userID, collection)
	if err != nil {
		return nil, fmt.Errorf("failed to list favorites: %w", err)
	}
	defer rows.Close()

	overlays := []Overlay{}
	for rows.Next() {
		overlay, err := scanOverlay(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan overlay row: %w", err)
		}
		overlays = append(overlays, *overlay)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating overlay rows: %w", err)
	}

	return overlays, nil
}

func (r *SQLOverlayRepository) GetOverlayCount(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM overlays WHERE user_id = ?", userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get overlay count: %w", err)
	}
	return count, nil
}

func scanOverlay(scanner interface{ Scan(dest ...any) error }) (*Overlay, error) {
	var overlay Overlay
	var favorite int
	var updatedAt string

	err := scanner.Scan(&overlay.UserID, &overlay.Collection, &overlay.ItemID, &favorite, &overlay.Rating, &updatedAt)
	if err != nil {
		return nil, err
	}

	overlay.Favorite = favorite != 0
	if overlay.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}

	return &overlay, nil
}
