package graph

import (
	"context"
	"fmt"
	"strings"

	"github.com/yungbote/tunegraph/internal/domain/music"
	"github.com/yungbote/tunegraph/internal/resilience"
)

// Ranked is a recommendation candidate with the number of distinct sources
// (known tracks or peer users) that lead to it.
type Ranked struct {
	Track   music.Track
	Support int
}

// PreferenceCounts reports how many edges each statement merged. Liked or
// listened ids that do not resolve to a Track are not counted.
type PreferenceCounts struct {
	Likes   int
	Listens int
	Genres  int
	Moods   int
}

// RecordPreferences merges the user node and its preference edges in one
// write transaction. LISTENED_TO increments once per listed occurrence.
func (s *Store) RecordPreferences(ctx context.Context, userID string, p music.UserPreferences) (PreferenceCounts, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return PreferenceCounts{}, resilience.Permanent(fmt.Errorf("graph record preferences: user id required"))
	}
	liked := music.NormalizeLabels(p.LikedTracks)
	listened := music.NormalizeIDs(p.ListenedTracks)
	genres := music.NormalizeLabels(p.FavoriteGenres)
	moods := music.NormalizeLabels(p.FavoriteMoods)

	var counts PreferenceCounts
	err := s.write(ctx, "record_preferences", func(ctx context.Context, tx Tx) error {
		counts = PreferenceCounts{}
		now := s.stamp()
		if _, err := tx.Run(ctx, StmtMergeUser, map[string]any{"user_id": userID, "now": now}); err != nil {
			return err
		}
		steps := []struct {
			st     Statement
			key    string
			values []string
			dst    *int
		}{
			{StmtMergeLikes, "track_ids", liked, &counts.Likes},
			{StmtMergeListens, "track_ids", listened, &counts.Listens},
			{StmtMergePreferredGenres, "names", genres, &counts.Genres},
			{StmtMergePreferredMoods, "names", moods, &counts.Moods},
		}
		for _, step := range steps {
			if len(step.values) == 0 {
				continue
			}
			rows, err := tx.Run(ctx, step.st, map[string]any{"user_id": userID, step.key: step.values, "now": now})
			if err != nil {
				return err
			}
			if len(rows) > 0 {
				*step.dst = int(asInt(rows[0]["merged"]))
			}
		}
		return nil
	})
	return counts, err
}

// ContentCandidates follows SIMILAR_TO and MOOD_MATCHES out of the tracks a
// user likes or has listened to, excluding those tracks.
func (s *Store) ContentCandidates(ctx context.Context, userID string, limit int) ([]Ranked, error) {
	return s.ranked(ctx, "content_candidates", StmtContentCandidates, userID, limit)
}

// CollaborativeCandidates recommends tracks liked by users who share at least
// one like with userID, excluding tracks the user already knows.
func (s *Store) CollaborativeCandidates(ctx context.Context, userID string, limit int) ([]Ranked, error) {
	return s.ranked(ctx, "collaborative_candidates", StmtCollaborativeCandidates, userID, limit)
}

func (s *Store) ranked(ctx context.Context, op string, st Statement, userID string, limit int) ([]Ranked, error) {
	var out []Ranked
	err := s.read(ctx, op, func(ctx context.Context, tx Tx) error {
		rows, err := tx.Run(ctx, st, map[string]any{"user_id": userID, "limit": int64(limit)})
		if err != nil {
			return err
		}
		out = make([]Ranked, 0, len(rows))
		for _, row := range rows {
			t, err := decodeTrack(row["track"])
			if err != nil {
				return resilience.Permanent(err)
			}
			out = append(out, Ranked{Track: t, Support: int(asInt(row["support"]))})
		}
		return nil
	})
	return out, err
}
