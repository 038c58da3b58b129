package graph

import (
	"fmt"

	"github.com/yungbote/tunegraph/internal/domain/music"
)

func trackProps(t music.Track) map[string]any {
	return map[string]any{
		"id":           t.ID,
		"name":         t.Name,
		"artist_id":    t.ArtistID,
		"artist_name":  t.ArtistName,
		"album_id":     t.AlbumID,
		"album_name":   t.AlbumName,
		"duration_ms":  t.DurationMs,
		"mood":         t.Mood,
		"vibe":         t.Vibe,
		"genres":       t.Genres,
		"feelings":     t.Feelings,
		"format":       t.Format,
		"quality":      t.Quality,
		"release_date": t.ReleaseDate,
		"isrc":         t.ISRC,
	}
}

func decodeTrack(v any) (music.Track, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return music.Track{}, fmt.Errorf("graph: track properties: unexpected type %T", v)
	}
	t := music.Track{
		ID:          asString(m["id"]),
		Name:        asString(m["name"]),
		ArtistID:    asString(m["artist_id"]),
		ArtistName:  asString(m["artist_name"]),
		AlbumID:     asString(m["album_id"]),
		AlbumName:   asString(m["album_name"]),
		DurationMs:  asInt(m["duration_ms"]),
		Mood:        asString(m["mood"]),
		Vibe:        asFloat(m["vibe"]),
		Genres:      asStrings(m["genres"]),
		Feelings:    asStrings(m["feelings"]),
		Format:      asString(m["format"]),
		Quality:     asString(m["quality"]),
		ReleaseDate: asString(m["release_date"]),
		ISRC:        asString(m["isrc"]),
	}
	if t.ID == "" {
		return music.Track{}, fmt.Errorf("graph: track properties: missing id")
	}
	return t, nil
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asInt(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case int:
		return float64(n)
	default:
		return 0
	}
}

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}

func asStrings(v any) []string {
	switch xs := v.(type) {
	case []string:
		return append([]string(nil), xs...)
	case []any:
		out := make([]string, 0, len(xs))
		for _, x := range xs {
			if s, ok := x.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func asFloats(v any) []float64 {
	xs, ok := v.([]any)
	if !ok {
		if fs, ok := v.([]float64); ok {
			return append([]float64(nil), fs...)
		}
		return nil
	}
	out := make([]float64, 0, len(xs))
	for _, x := range xs {
		out = append(out, asFloat(x))
	}
	return out
}
