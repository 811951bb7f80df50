package database

import (
	"time"
)

type User struct {
	ID           string // Prefixed NanoID
	Email        string
	DisplayName  string
	PasswordHash string // Argon2id encoded hash
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Overlay is a stored per-user preference for one catalog item.
type Overlay struct {
	UserID     string
	Collection string // Catalog source name the item id belongs to
	ItemID     int
	Favorite   bool
	Rating     int // 0 (unrated) to 4
	UpdatedAt  time.Time
}
