package api

import (
	"github.com/lysyi3m/catalog-comb/app/auth"
	"github.com/lysyi3m/catalog-comb/app/catalog"
	"github.com/lysyi3m/catalog-comb/app/database"
	"github.com/lysyi3m/catalog-comb/app/session"
)

type Handler struct {
	sources  *catalog.SourceCache
	sessions *session.Manager
	auth     *auth.Service
	users    database.UserRepository
	overlays database.OverlayRepository
}

// Request bodies

type signUpRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=6,max=1024"`
	DisplayName string `json:"display_name" binding:"required,max=80"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type passwordResetRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type passwordResetConfirmRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required,min=6,max=1024"`
}

type updateProfileRequest struct {
	DisplayName string `json:"display_name" binding:"required,max=80"`
}

type createSessionRequest struct {
	Source string `json:"source" binding:"required"`
}

// updateStateRequest applies only the fields present, in one recomputation.
// ToggleGenre selects a genre or resets to "All" when it is already selected.
type updateStateRequest struct {
	SearchTerm    *string `json:"search_term" binding:"omitempty,max=200"`
	SelectedGenre *string `json:"selected_genre"`
	ToggleGenre   *string `json:"toggle_genre"`
	FavoriteOnly  *bool   `json:"favorite_only"`
	SortAscending *bool   `json:"sort_ascending"`
}

type overlayRequest struct {
	Favorite bool `json:"favorite"`
	Rating   *int `json:"rating" binding:"required,min=0,max=4"`
}

// Responses

type meResponse struct {
	auth.Identity
	Overlays int `json:"overlays"`
}

type favoriteResponse struct {
	ItemID    int    `json:"item_id"`
	Rating    int    `json:"rating"`
	UpdatedAt string `json:"updated_at"`
}
