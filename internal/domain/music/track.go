package music

import (
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Track is catalog metadata as supplied by ingestion. Artist and album are
// referenced by id and merged as their own nodes.
type Track struct {
	ID          string   `json:"id" yaml:"id" validate:"required"`
	Name        string   `json:"name" yaml:"name" validate:"required"`
	ArtistID    string   `json:"artist_id" yaml:"artist_id"`
	ArtistName  string   `json:"artist_name" yaml:"artist_name"`
	AlbumID     string   `json:"album_id" yaml:"album_id"`
	AlbumName   string   `json:"album_name" yaml:"album_name"`
	DurationMs  int64    `json:"duration_ms" yaml:"duration_ms" validate:"gte=0"`
	Mood        string   `json:"mood" yaml:"mood"`
	Vibe        float64  `json:"vibe" yaml:"vibe" validate:"gte=0,lte=100"`
	Genres      []string `json:"genres,omitempty" yaml:"genres"`
	Feelings    []string `json:"feelings,omitempty" yaml:"feelings"`
	Format      string   `json:"format,omitempty" yaml:"format"`
	Quality     string   `json:"quality,omitempty" yaml:"quality"`
	ReleaseDate string   `json:"release_date,omitempty" yaml:"release_date" validate:"omitempty,datetime=2006-01-02"`
	ISRC        string   `json:"isrc,omitempty" yaml:"isrc" validate:"omitempty,len=12,alphanum"`
}

func (t Track) Validate() error {
	return validate.Struct(t)
}

// Normalized trims every string field and dedupes/sorts the tag lists so
// that re-ingesting the same catalog record produces identical writes.
func (t Track) Normalized() Track {
	t.ID = strings.TrimSpace(t.ID)
	t.Name = strings.TrimSpace(t.Name)
	t.ArtistID = strings.TrimSpace(t.ArtistID)
	t.ArtistName = strings.TrimSpace(t.ArtistName)
	t.AlbumID = strings.TrimSpace(t.AlbumID)
	t.AlbumName = strings.TrimSpace(t.AlbumName)
	t.Mood = strings.TrimSpace(t.Mood)
	t.Genres = NormalizeLabels(t.Genres)
	t.Feelings = NormalizeLabels(t.Feelings)
	t.Format = strings.TrimSpace(t.Format)
	t.Quality = strings.TrimSpace(t.Quality)
	t.ReleaseDate = strings.TrimSpace(t.ReleaseDate)
	t.ISRC = strings.ToUpper(strings.TrimSpace(t.ISRC))
	return t
}

// NormalizeLabels trims, drops empties and dedupes, returning a sorted slice
// (never nil).
func NormalizeLabels(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// NormalizeIDs trims and drops empty ids but keeps order and duplicates;
// repeated listens are meaningful.
func NormalizeIDs(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
