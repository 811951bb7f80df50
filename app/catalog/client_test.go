package catalog

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testSource(url string) *Source {
	return &Source{
		Name:    "games",
		URL:     url,
		Headers: map[string]string{"dev-email-address": "dev@example.com"},
		Settings: SourceSettings{
			Enabled:            true,
			Locale:             DefaultLocale,
			OverlayConcurrency: 4,
		},
	}
}

func TestClient_FetchSuccess(t *testing.T) {
	var gotHeader, gotAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("dev-email-address")
		gotAgent = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[
			{"id": 1, "title": "Warframe", "thumbnail": "https://example.com/1.jpg", "short_description": "Ninjas in space", "genre": "Shooter"},
			{"id": 2, "title": "Dauntless", "thumbnail": "https://example.com/2.jpg", "short_description": "Hunt behemoths", "genre": "MMORPG"}
		]`)
	}))
	defer server.Close()

	client := NewClient(server.Client(), "Catalog Comb/test")
	items, err := client.Fetch(context.Background(), testSource(server.URL))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(items) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(items))
	}
	if items[0].ID != 1 || items[0].Title != "Warframe" || items[0].ShortDescription != "Ninjas in space" {
		t.Errorf("Unexpected first item: %+v", items[0])
	}
	if items[1].Genre != "MMORPG" || items[1].Thumbnail != "https://example.com/2.jpg" {
		t.Errorf("Unexpected second item: %+v", items[1])
	}
	if gotHeader != "dev@example.com" {
		t.Errorf("Expected identifying header to be sent, got '%s'", gotHeader)
	}
	if gotAgent != "Catalog Comb/test" {
		t.Errorf("Expected user agent 'Catalog Comb/test', got '%s'", gotAgent)
	}
}

func TestClient_FetchEmptyCatalog(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	}))
	defer server.Close()

	items, err := NewClient(server.Client(), "test").Fetch(context.Background(), testSource(server.URL))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("Expected empty catalog, got %d items", len(items))
	}
}

func TestClient_FetchStatusCategories(t *testing.T) {
	tests := []struct {
		status   int
		category Category
	}{
		{500, CategoryServerError},
		{502, CategoryServerError},
		{503, CategoryServerError},
		{504, CategoryServerError},
		{507, CategoryServerError},
		{508, CategoryServerError},
		{509, CategoryServerError},
		{501, CategoryUnknown},
		{505, CategoryUnknown},
		{404, CategoryUnknown},
		{401, CategoryUnknown},
		{204, CategoryUnknown},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			_, err := NewClient(server.Client(), "test").Fetch(context.Background(), testSource(server.URL))

			var fetchErr *FetchError
			if !errors.As(err, &fetchErr) {
				t.Fatalf("Expected *FetchError, got %T: %v", err, err)
			}
			if fetchErr.Category != tt.category {
				t.Errorf("Expected category %s, got %s", tt.category, fetchErr.Category)
			}
			if fetchErr.StatusCode != tt.status {
				t.Errorf("Expected status %d, got %d", tt.status, fetchErr.StatusCode)
			}
		})
	}
}

func TestClient_FetchServerErrorMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := NewClient(server.Client(), "test").Fetch(context.Background(), testSource(server.URL))

	fetchErr := Classify(err)
	if fetchErr.Message() != "O servidor falhou em responder, tente recarregar a página" {
		t.Errorf("Unexpected message: %s", fetchErr.Message())
	}
}

func TestClient_FetchTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer server.Close()
	defer close(release)

	client := NewClient(server.Client(), "test")
	client.Timeout = 50 * time.Millisecond

	start := time.Now()
	_, err := client.Fetch(context.Background(), testSource(server.URL))
	elapsed := time.Since(start)

	fetchErr := Classify(err)
	if fetchErr == nil || fetchErr.Category != CategoryTimeout {
		t.Fatalf("Expected timeout category, got %v", err)
	}
	if fetchErr.Message() != MessageTimeout {
		t.Errorf("Unexpected message: %s", fetchErr.Message())
	}
	if elapsed > 2*time.Second {
		t.Errorf("Fetch should give up at its bound, took %v", elapsed)
	}
}

func TestClient_DefaultTimeoutIsFiveSeconds(t *testing.T) {
	client := NewClient(http.DefaultClient, "test")
	if client.Timeout != 5*time.Second {
		t.Errorf("Expected 5s timeout, got %v", client.Timeout)
	}
}

func TestClient_FetchCancelledCallerIsNotTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	_, err := NewClient(server.Client(), "test").Fetch(ctx, testSource(server.URL))

	fetchErr := Classify(err)
	if fetchErr == nil || fetchErr.Category != CategoryUnknown {
		t.Fatalf("Expected unknown category for cancelled caller, got %v", err)
	}
}

func TestClient_FetchCallerDeadlineIsNotTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	client := NewClient(server.Client(), "test")
	_, err := client.Fetch(ctx, testSource(server.URL))

	fetchErr := Classify(err)
	if fetchErr == nil || fetchErr.Category != CategoryUnknown {
		t.Fatalf("Expected unknown category for expired caller deadline, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected the caller deadline to stay inspectable, got %v", err)
	}
}

func TestClient_FetchMalformedBody(t *testing.T) {
	bodies := []string{`{"id": 1}`, `not json`, `null`, `[{"id": "one"}]`}

	for _, body := range bodies {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, body)
		}))

		_, err := NewClient(server.Client(), "test").Fetch(context.Background(), testSource(server.URL))
		server.Close()

		fetchErr := Classify(err)
		if fetchErr == nil || fetchErr.Category != CategoryUnknown {
			t.Errorf("Expected unknown category for body %q, got %v", body, err)
		}
	}
}

func TestClient_FetchUnreachable(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := listener.Addr().String()
	listener.Close()

	_, err = NewClient(&http.Client{}, "test").Fetch(context.Background(), testSource("http://"+addr))

	fetchErr := Classify(err)
	if fetchErr == nil || fetchErr.Category != CategoryUnknown {
		t.Fatalf("Expected unknown category for unreachable server, got %v", err)
	}
	if fetchErr.Message() != MessageUnknown {
		t.Errorf("Unexpected message: %s", fetchErr.Message())
	}
}

type timeoutNetError struct{}

func (timeoutNetError) Error() string   { return "i/o timeout" }
func (timeoutNetError) Timeout() bool   { return true }
func (timeoutNetError) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		category Category
	}{
		{"deadline", fmt.Errorf("wrapped: %w", context.DeadlineExceeded), CategoryTimeout},
		{"net timeout", fmt.Errorf("dial: %w", timeoutNetError{}), CategoryTimeout},
		{"server status", &StatusError{StatusCode: 508}, CategoryServerError},
		{"client status", &StatusError{StatusCode: 400}, CategoryUnknown},
		{"cancelled", context.Canceled, CategoryUnknown},
		{"anything else", errors.New("boom"), CategoryUnknown},
		{"already classified", &FetchError{Category: CategoryTimeout, Err: errors.New("x")}, CategoryTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			if got == nil {
				t.Fatal("Classify must not return nil for a non-nil error")
			}
			if got.Category != tt.category {
				t.Errorf("Expected %s, got %s", tt.category, got.Category)
			}
			if !errors.Is(got, tt.err) && got != tt.err {
				t.Errorf("Classified error should wrap the original")
			}
		})
	}

	if Classify(nil) != nil {
		t.Error("Classify(nil) should be nil")
	}
}

func TestCategoryMessagesAreDistinct(t *testing.T) {
	messages := map[string]Category{}
	for _, c := range []Category{CategoryTimeout, CategoryServerError, CategoryUnknown} {
		if prev, ok := messages[c.Message()]; ok {
			t.Errorf("Categories %s and %s share a message", prev, c)
		}
		messages[c.Message()] = c
	}
}
