package database

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := NewConnection(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	version, dirty, err := RunMigrations(db)
	if err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	if dirty {
		t.Fatal("Migrations left the database dirty")
	}
	if version != 2 {
		t.Fatalf("Expected schema version 2, got %d", version)
	}

	return db
}

func createTestUser(t *testing.T, users *SQLUserRepository, id, email string) {
	t.Helper()
	err := users.CreateUser(context.Background(), User{
		ID:           id,
		Email:        email,
		DisplayName:  "Tester",
		PasswordHash: "hash",
	})
	if err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
}

func TestRunMigrationsIsIdempotent(t *testing.T) {
	db := newTestDB(t)

	version, _, err := RunMigrations(db)
	if err != nil {
		t.Fatalf("Second migration run failed: %v", err)
	}
	if version != 2 {
		t.Errorf("Expected version 2, got %d", version)
	}
}

func TestUserRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	users := NewUserRepository(newTestDB(t))

	createTestUser(t, users, "usr-1", "ana@example.com")

	byID, err := users.GetUserByID(ctx, "usr-1")
	if err != nil {
		t.Fatal(err)
	}
	if byID == nil || byID.Email != "ana@example.com" || byID.DisplayName != "Tester" {
		t.Fatalf("Unexpected user: %+v", byID)
	}
	if byID.CreatedAt.IsZero() || byID.UpdatedAt.IsZero() {
		t.Error("Expected timestamps to be set")
	}

	byEmail, err := users.GetUserByEmail(ctx, "ANA@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if byEmail == nil || byEmail.ID != "usr-1" {
		t.Errorf("Expected case-insensitive email lookup, got %+v", byEmail)
	}

	missing, err := users.GetUserByID(ctx, "usr-404")
	if err != nil {
		t.Fatal(err)
	}
	if missing != nil {
		t.Errorf("Expected nil for unknown user, got %+v", missing)
	}

	count, err := users.GetUserCount(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("Expected 1 user, got %d", count)
	}
}

func TestUserRepository_DuplicateEmail(t *testing.T) {
	users := NewUserRepository(newTestDB(t))

	createTestUser(t, users, "usr-1", "ana@example.com")

	err := users.CreateUser(context.Background(), User{ID: "usr-2", Email: "Ana@Example.com", PasswordHash: "hash"})
	if !errors.Is(err, ErrEmailTaken) {
		t.Errorf("Expected ErrEmailTaken, got %v", err)
	}
}

func TestUserRepository_Updates(t *testing.T) {
	ctx := context.Background()
	users := NewUserRepository(newTestDB(t))
	createTestUser(t, users, "usr-1", "ana@example.com")

	if err := users.UpdateDisplayName(ctx, "usr-1", "Ana"); err != nil {
		t.Fatal(err)
	}
	if err := users.UpdatePasswordHash(ctx, "usr-1", "new-hash"); err != nil {
		t.Fatal(err)
	}

	user, _ := users.GetUserByID(ctx, "usr-1")
	if user.DisplayName != "Ana" {
		t.Errorf("Expected display name 'Ana', got '%s'", user.DisplayName)
	}
	if user.PasswordHash != "new-hash" {
		t.Errorf("Expected updated password hash, got '%s'", user.PasswordHash)
	}

	if err := users.UpdateDisplayName(ctx, "usr-404", "Nobody"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("Expected ErrUserNotFound, got %v", err)
	}
}

func TestOverlayRepository_RoundTrip(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	users := NewUserRepository(db)
	overlays := NewOverlayRepository(db)
	createTestUser(t, users, "usr-1", "ana@example.com")

	missing, err := overlays.GetOverlay(ctx, "usr-1", "games", 42)
	if err != nil {
		t.Fatal(err)
	}
	if missing != nil {
		t.Fatalf("Expected no overlay before first write, got %+v", missing)
	}

	if err := overlays.SetOverlay(ctx, Overlay{UserID: "usr-1", Collection: "games", ItemID: 42, Favorite: true, Rating: 3}); err != nil {
		t.Fatal(err)
	}

	got, err := overlays.GetOverlay(ctx, "usr-1", "games", 42)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || !got.Favorite || got.Rating != 3 {
		t.Fatalf("Expected favorite with rating 3, got %+v", got)
	}

	// Full replace, not merge
	if err := overlays.SetOverlay(ctx, Overlay{UserID: "usr-1", Collection: "games", ItemID: 42, Rating: 1}); err != nil {
		t.Fatal(err)
	}
	got, _ = overlays.GetOverlay(ctx, "usr-1", "games", 42)
	if got.Favorite || got.Rating != 1 {
		t.Errorf("Expected overlay to be replaced, got %+v", got)
	}

	other, _ := overlays.GetOverlay(ctx, "usr-1", "apps", 42)
	if other != nil {
		t.Errorf("Collections must not leak into each other, got %+v", other)
	}
}

func TestOverlayRepository_RejectsInvalidRating(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	createTestUser(t, NewUserRepository(db), "usr-1", "ana@example.com")
	overlays := NewOverlayRepository(db)

	for _, rating := range []int{-1, 5} {
		err := overlays.SetOverlay(ctx, Overlay{UserID: "usr-1", Collection: "games", ItemID: 1, Rating: rating})
		if !errors.Is(err, ErrInvalidRating) {
			t.Errorf("Expected ErrInvalidRating for %d, got %v", rating, err)
		}
	}
}

func TestOverlayRepository_RequiresExistingUser(t *testing.T) {
	overlays := NewOverlayRepository(newTestDB(t))

	err := overlays.SetOverlay(context.Background(), Overlay{UserID: "usr-ghost", Collection: "games", ItemID: 1})
	if err == nil {
		t.Error("Expected foreign key violation for unknown user")
	}
}

func TestOverlayRepository_ListFavorites(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	users := NewUserRepository(db)
	overlays := NewOverlayRepository(db)
	createTestUser(t, users, "usr-1", "ana@example.com")
	createTestUser(t, users, "usr-2", "bia@example.com")

	writes := []Overlay{
		{UserID: "usr-1", Collection: "games", ItemID: 9, Favorite: true, Rating: 2},
		{UserID: "usr-1", Collection: "games", ItemID: 3, Favorite: true},
		{UserID: "usr-1", Collection: "games", ItemID: 5, Favorite: false, Rating: 4},
		{UserID: "usr-1", Collection: "apps", ItemID: 1, Favorite: true},
		{UserID: "usr-2", Collection: "games", ItemID: 7, Favorite: true},
	}
	for _, w := range writes {
		if err := overlays.SetOverlay(ctx, w); err != nil {
			t.Fatal(err)
		}
	}

	favorites, err := overlays.ListFavorites(ctx, "usr-1", "games")
	if err != nil {
		t.Fatal(err)
	}
	if len(favorites) != 2 || favorites[0].ItemID != 3 || favorites[1].ItemID != 9 {
		t.Errorf("Expected favorites [3 9], got %+v", favorites)
	}

	none, err := overlays.ListFavorites(ctx, "usr-3", "games")
	if err != nil {
		t.Fatal(err)
	}
	if none == nil || len(none) != 0 {
		t.Errorf("Expected empty non-nil list, got %+v", none)
	}

	count, err := overlays.GetOverlayCount(ctx, "usr-1")
	if err != nil {
		t.Fatal(err)
	}
	if count != 4 {
		t.Errorf("Expected 4 overlays for usr-1, got %d", count)
	}
}

func TestOverlayRepository_ConcurrentReads(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	createTestUser(t, NewUserRepository(db), "usr-1", "ana@example.com")
	overlays := NewOverlayRepository(db)

	for i := 1; i <= 20; i++ {
		if err := overlays.SetOverlay(ctx, Overlay{UserID: "usr-1", Collection: "games", ItemID: i, Rating: i % 5}); err != nil {
			t.Fatal(err)
		}
	}

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 1; i <= 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			overlay, err := overlays.GetOverlay(ctx, "usr-1", "games", i)
			if err != nil {
				errs <- err
				return
			}
			if overlay == nil || overlay.Rating != i%5 {
				errs <- errors.New("unexpected overlay")
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}
