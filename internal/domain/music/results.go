package music

// Candidate is a scored neighbour used to materialise SIMILAR_TO or
// MOOD_MATCHES edges.
type Candidate struct {
	TrackID string  `json:"track_id" yaml:"track_id" validate:"required"`
	Score   float64 `json:"score" yaml:"score" validate:"gte=0,lte=1"`
}

type UserPreferences struct {
	LikedTracks    []string `json:"liked_tracks,omitempty" yaml:"liked_tracks"`
	ListenedTracks []string `json:"listened_tracks,omitempty" yaml:"listened_tracks"`
	FavoriteGenres []string `json:"favorite_genres,omitempty" yaml:"favorite_genres"`
	FavoriteMoods  []string `json:"favorite_moods,omitempty" yaml:"favorite_moods"`
}

func (p UserPreferences) Empty() bool {
	return len(p.LikedTracks) == 0 && len(p.ListenedTracks) == 0 &&
		len(p.FavoriteGenres) == 0 && len(p.FavoriteMoods) == 0
}

// SimilarTrackResult is a track reached by SIMILAR_TO (and optionally
// MOOD_MATCHES) traversal. Path lists track ids from the source to Track.
type SimilarTrackResult struct {
	Track      Track    `json:"track"`
	Similarity float64  `json:"similarity"`
	Path       []string `json:"path"`
}

type Strategy string

const (
	StrategyContent       Strategy = "content"
	StrategyCollaborative Strategy = "collaborative"
)

// Recommendation ranks by Support: distinct known tracks leading to the
// candidate (content) or distinct peers endorsing it (collaborative).
type Recommendation struct {
	Track    Track    `json:"track"`
	Support  int      `json:"support"`
	Strategy Strategy `json:"strategy"`
}

// VibeRange is an inclusive bound on Track.Vibe.
type VibeRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

func (r VibeRange) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}
