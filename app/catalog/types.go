package catalog

// Catalog types

type Item struct {
	ID               int    `json:"id"`
	Title            string `json:"title"`
	Thumbnail        string `json:"thumbnail"`
	ShortDescription string `json:"short_description"`
	Genre            string `json:"genre"`
}

// Overlay is the per-user state layered onto an Item. The zero value is the
// default for items the user never touched.
type Overlay struct {
	Favorite bool `json:"favorite"`
	Rating   int  `json:"rating"` // 0 means unrated
}

const (
	MinRating = 0
	MaxRating = 4
)

func (o Overlay) Valid() bool {
	return o.Rating >= MinRating && o.Rating <= MaxRating
}

type EnrichedItem struct {
	Item
	Overlay
}

// View state types

// AllGenres is the sentinel genre that disables the genre filter.
const AllGenres = "All"

type ViewState struct {
	SearchTerm    string `json:"search_term"`
	SelectedGenre string `json:"selected_genre"`
	FavoriteOnly  bool   `json:"favorite_only"`
	SortAscending bool   `json:"sort_ascending"`
}

func DefaultViewState() ViewState {
	return ViewState{SelectedGenre: AllGenres}
}

// ToggleGenre selects genre, or resets to AllGenres when genre is already selected.
func (s ViewState) ToggleGenre(genre string) ViewState {
	if s.SelectedGenre == genre {
		s.SelectedGenre = AllGenres
	} else {
		s.SelectedGenre = genre
	}
	return s
}

// Source configuration types

type Source struct {
	Name     string            // Derived from filename (without .yml extension)
	URL      string            `yaml:"url"`
	Headers  map[string]string `yaml:"headers"`
	Settings SourceSettings    `yaml:"settings"`
}

type SourceSettings struct {
	Enabled            bool   `yaml:"enabled"`
	Locale             string `yaml:"locale"`
	OverlayConcurrency int    `yaml:"overlay_concurrency"`
}
