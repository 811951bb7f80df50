package catalog

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/lysyi3m/catalog-comb/app/database"
	"golang.org/x/sync/errgroup"
)

const DefaultOverlayConcurrency = 8

type OverlayReader interface {
	GetOverlay(ctx context.Context, userID, collection string, itemID int) (*database.Overlay, error)
}

type Merger struct {
	overlays OverlayReader
}

func NewMerger(overlays OverlayReader) *Merger {
	return &Merger{overlays: overlays}
}

// Run pairs every item with the overlay stored for userID, keeping fetch order.
// An empty userID means nobody is signed in and the store is not consulted.
// A failed read leaves that one item with the default overlay.
func (m *Merger) Run(ctx context.Context, source *Source, items []Item, userID string) []EnrichedItem {
	enriched := make([]EnrichedItem, len(items))
	for i, item := range items {
		enriched[i] = EnrichedItem{Item: item}
	}

	if userID == "" || len(items) == 0 {
		return enriched
	}

	start := time.Now()

	concurrency := source.Settings.OverlayConcurrency
	if concurrency <= 0 {
		concurrency = DefaultOverlayConcurrency
	}

	var g errgroup.Group
	g.SetLimit(concurrency)

	var failed, found atomic.Int64
	for i := range enriched {
		g.Go(func() error {
			// Each branch writes only its own slot.
			overlay, err := m.overlays.GetOverlay(ctx, userID, source.Name, enriched[i].ID)
			if err != nil {
				failed.Add(1)
				slog.Debug("Overlay read failed, using default", "source", source.Name, "item_id", enriched[i].ID, "error", err)
				return nil
			}
			if overlay == nil {
				return nil
			}

			o := Overlay{Favorite: overlay.Favorite, Rating: overlay.Rating}
			if !o.Valid() {
				failed.Add(1)
				slog.Debug("Stored overlay out of range, using default", "source", source.Name, "item_id", enriched[i].ID, "rating", overlay.Rating)
				return nil
			}
			enriched[i].Overlay = o
			found.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	if failed.Load() > 0 {
		slog.Warn("Some overlays could not be read", "source", source.Name, "failed", failed.Load(), "total", len(items))
	}

	slog.Debug("Catalog merged",
		"source", source.Name,
		"items", len(items),
		"overlays", found.Load(),
		"failed", failed.Load(),
		"duration", time.Since(start))

	return enriched
}
