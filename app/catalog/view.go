package catalog

import (
	"cmp"
	"slices"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

const DefaultLocale = "pt-BR"

// Viewer derives the displayed sequence from the enriched collection and the
// view state. It keeps no state between calls.
type Viewer struct {
	tag language.Tag
}

func NewViewer(locale string) *Viewer {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.MustParse(DefaultLocale)
	}
	return &Viewer{tag: tag}
}

// Run applies, in order: genre filter, title search, favorite filter, then the
// rated/unrated split sort. The input slice is never modified.
func (v *Viewer) Run(items []EnrichedItem, state ViewState, signedIn bool) []EnrichedItem {
	result := make([]EnrichedItem, 0, len(items))

	var term string
	if state.SearchTerm != "" {
		term = strings.ToLower(state.SearchTerm)
	}

	if state.FavoriteOnly && !signedIn {
		return result
	}

	for _, item := range items {
		if !v.matchesGenre(item, state.SelectedGenre) {
			continue
		}
		if term != "" && !strings.Contains(strings.ToLower(item.Title), term) {
			continue
		}
		if state.FavoriteOnly && !item.Favorite {
			continue
		}
		result = append(result, item)
	}

	return v.sort(result, state.SortAscending)
}

func (v *Viewer) matchesGenre(item EnrichedItem, genre string) bool {
	return genre == "" || genre == AllGenres || item.Genre == genre
}

func (v *Viewer) sort(items []EnrichedItem, ascending bool) []EnrichedItem {
	rated := make([]EnrichedItem, 0, len(items))
	unrated := make([]EnrichedItem, 0, len(items))
	for _, item := range items {
		if item.Rating > 0 {
			rated = append(rated, item)
		} else {
			unrated = append(unrated, item)
		}
	}

	slices.SortStableFunc(rated, func(a, b EnrichedItem) int {
		return cmp.Compare(b.Rating, a.Rating)
	})
	if ascending {
		// Ascending is the mirror of the descending order, ties included.
		slices.Reverse(rated)
	}

	// Collators keep internal buffers and are not safe to share across goroutines.
	collator := collate.New(v.tag, collate.IgnoreCase)
	slices.SortStableFunc(unrated, func(a, b EnrichedItem) int {
		return collator.CompareString(a.Title, b.Title)
	})

	return append(rated, unrated...)
}

// Genres lists AllGenres followed by every distinct genre in first-seen order.
func Genres(items []EnrichedItem) []string {
	genres := []string{AllGenres}
	seen := map[string]bool{AllGenres: true}
	for _, item := range items {
		if seen[item.Genre] {
			continue
		}
		seen[item.Genre] = true
		genres = append(genres, item.Genre)
	}
	return genres
}
