package session

import (
	"context"
	"errors"
	"time"

	"github.com/lysyi3m/catalog-comb/app/auth"
	"github.com/lysyi3m/catalog-comb/app/catalog"
	"github.com/lysyi3m/catalog-comb/app/database"
)

type Status string

const (
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusFailed  Status = "failed"
	StatusClosed  Status = "closed"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrClosed          = errors.New("session closed")
	ErrNotReady        = errors.New("catalog not loaded")
	ErrItemNotFound    = errors.New("item not found")
	ErrInvalidRating   = database.ErrInvalidRating
	ErrNotSignedIn     = auth.ErrNotSignedIn
)

const (
	NoticeOverlayWriteFailed = "overlay_write_failed"

	MessageOverlayWriteFailed = "Não foi possível salvar sua avaliação, tente novamente"
)

type Fetcher interface {
	Fetch(ctx context.Context, source *catalog.Source) ([]catalog.Item, error)
}

type Enricher interface {
	Run(ctx context.Context, source *catalog.Source, items []catalog.Item, userID string) []catalog.EnrichedItem
}

type OverlayWriter interface {
	SetOverlay(ctx context.Context, overlay database.Overlay) error
}

type SourceProvider interface {
	GetEnabledSource(name string) (*catalog.Source, error)
}

// Notice is a non-blocking message for the client, delivered once.
type Notice struct {
	Kind    string    `json:"kind"`
	ItemID  int       `json:"item_id,omitempty"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

type Snapshot struct {
	ID            string                 `json:"id"`
	Source        string                 `json:"source"`
	Status        Status                 `json:"status"`
	ErrorCategory catalog.Category       `json:"error_category,omitempty"`
	ErrorMessage  string                 `json:"error_message,omitempty"`
	SignedIn      bool                   `json:"signed_in"`
	AuthChanged   bool                   `json:"auth_changed"`
	State         catalog.ViewState      `json:"state"`
	Genres        []string               `json:"genres"`
	Items         []catalog.EnrichedItem `json:"items"`
	Total         int                    `json:"total"`
	Notices       []Notice               `json:"notices"`
	LoadedAt      *time.Time             `json:"loaded_at,omitempty"`
}
