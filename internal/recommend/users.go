package recommend

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/yungbote/tunegraph/internal/data/graph"
	"github.com/yungbote/tunegraph/internal/domain/music"
	"github.com/yungbote/tunegraph/internal/resilience"
)

type RecommendOptions struct {
	Limit                     int
	UseCollaborativeFiltering bool
}

// CreateUserPreferences records likes, listens and declared genre/mood
// preferences. Repeating a call is safe: likes and preferences merge, listens
// add one play per occurrence.
func (e *Engine) CreateUserPreferences(ctx context.Context, userID string, prefs music.UserPreferences) (graph.PreferenceCounts, error) {
	start := time.Now()
	const op = "create_user_preferences"
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return graph.PreferenceCounts{}, e.observe(op, userID, start, resilience.Permanent(fmt.Errorf("user id required")))
	}
	counts, err := e.graph.RecordPreferences(ctx, userID, prefs)
	if err == nil {
		if want := len(music.NormalizeLabels(prefs.LikedTracks)); counts.Likes < want {
			e.log.Warn("liked tracks not in catalog", "user_id", userID, "requested", want, "linked", counts.Likes)
		}
	}
	return counts, e.observe(op, userID, start, err)
}

// GetPersonalizedRecommendations ranks unseen tracks for userID. The content
// strategy follows similarity edges out of the user's liked and listened
// tracks; the collaborative strategy uses likes of users sharing a like.
// Neither returns a track the user already likes or has listened to.
func (e *Engine) GetPersonalizedRecommendations(ctx context.Context, userID string, opts RecommendOptions) ([]music.Recommendation, error) {
	start := time.Now()
	const op = "get_personalized_recommendations"
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, e.observe(op, userID, start, resilience.Permanent(fmt.Errorf("user id required")))
	}
	limit := orDefault(opts.Limit, e.limits.TopKRecommendations)

	strategy := music.StrategyContent
	fetch := e.graph.ContentCandidates
	if opts.UseCollaborativeFiltering {
		strategy = music.StrategyCollaborative
		fetch = e.graph.CollaborativeCandidates
	}
	ranked, err := fetch(ctx, userID, limit)
	if err != nil {
		return nil, e.observe(op, userID, start, err)
	}

	out := make([]music.Recommendation, 0, len(ranked))
	for _, r := range ranked {
		out = append(out, music.Recommendation{Track: r.Track, Support: r.Support, Strategy: strategy})
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Support != b.Support {
			return a.Support > b.Support
		}
		if a.Track.Vibe != b.Track.Vibe {
			return a.Track.Vibe > b.Track.Vibe
		}
		return a.Track.ID < b.Track.ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	e.overBudget(op, userID, start, e.recommendationBudget)
	return out, e.observe(op, userID, start, nil)
}
