package graph

import "fmt"

// Statement selects one statically composed Cypher text. Optional filters are
// expressed as separate statements rather than concatenated clauses.
type Statement int

const (
	StmtMergeTrack Statement = iota
	StmtPruneTrackLinks
	StmtLinkTrackDescriptors
	StmtMergeSimilarTo
	StmtMergeMoodMatches
	StmtSimilarPaths
	StmtSimilarOrMoodPaths
	StmtTracksByMood
	StmtTracksByMoodFeelings
	StmtTracksByMoodVibe
	StmtTracksByMoodFeelingsVibe
	StmtMergeUser
	StmtMergeLikes
	StmtMergeListens
	StmtMergePreferredGenres
	StmtMergePreferredMoods
	StmtContentCandidates
	StmtCollaborativeCandidates
	StmtPairSignals
	StmtStats
	StmtTrackIDs

	StmtConstraintTrackID
	StmtConstraintArtistID
	StmtConstraintAlbumID
	StmtConstraintUserID
	StmtConstraintMoodName
	StmtConstraintGenreName
	StmtConstraintFeelingName
	StmtIndexTrackMood
	StmtIndexTrackVibe
	StmtIndexTrackGenres

	stmtCount
)

var statementNames = [...]string{
	StmtMergeTrack:               "merge_track",
	StmtPruneTrackLinks:          "prune_track_links",
	StmtLinkTrackDescriptors:     "link_track_descriptors",
	StmtMergeSimilarTo:           "merge_similar_to",
	StmtMergeMoodMatches:         "merge_mood_matches",
	StmtSimilarPaths:             "similar_paths",
	StmtSimilarOrMoodPaths:       "similar_or_mood_paths",
	StmtTracksByMood:             "tracks_by_mood",
	StmtTracksByMoodFeelings:     "tracks_by_mood_feelings",
	StmtTracksByMoodVibe:         "tracks_by_mood_vibe",
	StmtTracksByMoodFeelingsVibe: "tracks_by_mood_feelings_vibe",
	StmtMergeUser:                "merge_user",
	StmtMergeLikes:               "merge_likes",
	StmtMergeListens:             "merge_listens",
	StmtMergePreferredGenres:     "merge_preferred_genres",
	StmtMergePreferredMoods:      "merge_preferred_moods",
	StmtContentCandidates:        "content_candidates",
	StmtCollaborativeCandidates:  "collaborative_candidates",
	StmtPairSignals:              "pair_signals",
	StmtStats:                    "stats",
	StmtTrackIDs:                 "track_ids",
	StmtConstraintTrackID:        "constraint_track_id",
	StmtConstraintArtistID:       "constraint_artist_id",
	StmtConstraintAlbumID:        "constraint_album_id",
	StmtConstraintUserID:         "constraint_user_id",
	StmtConstraintMoodName:       "constraint_mood_name",
	StmtConstraintGenreName:      "constraint_genre_name",
	StmtConstraintFeelingName:    "constraint_feeling_name",
	StmtIndexTrackMood:           "index_track_mood",
	StmtIndexTrackVibe:           "index_track_vibe",
	StmtIndexTrackGenres:         "index_track_genres",
}

func (s Statement) String() string {
	if s >= 0 && s < stmtCount {
		return statementNames[s]
	}
	return fmt.Sprintf("statement(%d)", int(s))
}

func (s Statement) Cypher() string {
	if s >= 0 && s < stmtCount {
		return cypher[s]
	}
	return ""
}

const pathReturn = `
WITH cand, p, reduce(score = 1.0, r IN relationships(p) | score * r.weight) AS score
ORDER BY score DESC
WITH cand, collect({
  score: score,
  weights: [r IN relationships(p) | r.weight],
  ids: [n IN nodes(p) | n.id]
})[0] AS best
RETURN properties(cand) AS track, best.weights AS weights, best.ids AS path
ORDER BY best.score DESC, cand.id
LIMIT $limit
`

const moodReturn = `
RETURN properties(t) AS track
ORDER BY t.vibe DESC, t.id
LIMIT $limit
`

const candidateReturn = `
WITH rec, count(DISTINCT src) AS support
RETURN properties(rec) AS track, support
ORDER BY support DESC, rec.vibe DESC, rec.id
LIMIT $limit
`

var cypher = [...]string{
	StmtMergeTrack: `
MERGE (t:Track {id: $id})
ON CREATE SET t.created_at = $now
SET t += $props, t.updated_at = $now
`,

	// Drops descriptor edges that no longer match the stored fields.
	StmtPruneTrackLinks: `
MATCH (t:Track {id: $id})-[r:HAS_MOOD|HAS_GENRE|HAS_FEELING|CREATED_BY|BELONGS_TO]->(d)
WHERE NOT (
  (type(r) = 'HAS_MOOD' AND d.name = $mood) OR
  (type(r) = 'HAS_GENRE' AND d.name IN $genres) OR
  (type(r) = 'HAS_FEELING' AND d.name IN $feelings) OR
  (type(r) = 'CREATED_BY' AND d.id = $artist_id) OR
  (type(r) = 'BELONGS_TO' AND d.id = $album_id)
)
DELETE r
`,

	StmtLinkTrackDescriptors: `
MATCH (t:Track {id: $id})
FOREACH (m IN CASE WHEN $mood = '' THEN [] ELSE [$mood] END |
  MERGE (md:Mood {name: m})
  MERGE (t)-[r:HAS_MOOD]->(md)
  ON CREATE SET r.created_at = $now
)
FOREACH (g IN $genres |
  MERGE (gn:Genre {name: g})
  MERGE (t)-[r:HAS_GENRE]->(gn)
  ON CREATE SET r.created_at = $now
)
FOREACH (f IN $feelings |
  MERGE (fl:Feeling {name: f})
  MERGE (t)-[r:HAS_FEELING]->(fl)
  ON CREATE SET r.created_at = $now
)
FOREACH (a IN CASE WHEN $artist_id = '' THEN [] ELSE [$artist_id] END |
  MERGE (ar:Artist {id: a})
  SET ar.name = CASE WHEN $artist_name = '' THEN ar.name ELSE $artist_name END
  MERGE (t)-[r:CREATED_BY]->(ar)
  ON CREATE SET r.created_at = $now
)
FOREACH (b IN CASE WHEN $album_id = '' THEN [] ELSE [$album_id] END |
  MERGE (al:Album {id: b})
  SET al.name = CASE WHEN $album_name = '' THEN al.name ELSE $album_name END
  MERGE (t)-[r:BELONGS_TO]->(al)
  ON CREATE SET r.created_at = $now
)
`,

	StmtMergeSimilarTo: `
MATCH (a:Track {id: $id})
UNWIND $candidates AS c
MATCH (b:Track {id: c.id})
WITH a, b, c
WHERE b.id <> a.id AND c.score >= $threshold
MERGE (a)-[r:SIMILAR_TO]-(b)
ON CREATE SET r.created_at = $now
SET r.weight = c.score, r.updated_at = $now
RETURN count(r) AS merged
`,

	StmtMergeMoodMatches: `
MATCH (a:Track {id: $id})
UNWIND $candidates AS c
MATCH (b:Track {id: c.id})
WITH a, b, c
WHERE b.id <> a.id AND c.score >= $threshold
MERGE (a)-[r:MOOD_MATCHES]-(b)
ON CREATE SET r.created_at = $now
SET r.weight = c.score, r.updated_at = $now
RETURN count(r) AS merged
`,

	StmtSimilarPaths: `
MATCH (src:Track {id: $id})
MATCH p = (src)-[:SIMILAR_TO*1..2]-(cand:Track)
WHERE cand.id <> src.id
  AND all(r IN relationships(p) WHERE r.weight >= $min_similarity)
` + pathReturn,

	StmtSimilarOrMoodPaths: `
MATCH (src:Track {id: $id})
MATCH p = (src)-[:SIMILAR_TO|MOOD_MATCHES*1..2]-(cand:Track)
WHERE cand.id <> src.id
  AND all(r IN relationships(p) WHERE r.weight >= $min_similarity)
` + pathReturn,

	StmtTracksByMood: `
MATCH (t:Track)-[:HAS_MOOD]->(:Mood {name: $mood})
` + moodReturn,

	StmtTracksByMoodFeelings: `
MATCH (t:Track)-[:HAS_MOOD]->(:Mood {name: $mood})
MATCH (t)-[:HAS_FEELING]->(f:Feeling)
WHERE f.name IN $feelings
WITH t, count(DISTINCT f) AS hits
WHERE hits = size($feelings)
` + moodReturn,

	StmtTracksByMoodVibe: `
MATCH (t:Track)-[:HAS_MOOD]->(:Mood {name: $mood})
WHERE t.vibe >= $vibe_min AND t.vibe <= $vibe_max
` + moodReturn,

	StmtTracksByMoodFeelingsVibe: `
MATCH (t:Track)-[:HAS_MOOD]->(:Mood {name: $mood})
WHERE t.vibe >= $vibe_min AND t.vibe <= $vibe_max
MATCH (t)-[:HAS_FEELING]->(f:Feeling)
WHERE f.name IN $feelings
WITH t, count(DISTINCT f) AS hits
WHERE hits = size($feelings)
` + moodReturn,

	StmtMergeUser: `
MERGE (u:User {id: $user_id})
ON CREATE SET u.created_at = $now
SET u.updated_at = $now
`,

	StmtMergeLikes: `
MATCH (u:User {id: $user_id})
UNWIND $track_ids AS tid
MATCH (t:Track {id: tid})
MERGE (u)-[r:LIKES]->(t)
ON CREATE SET r.weight = 1.0, r.created_at = $now
RETURN count(r) AS merged
`,

	// Rows are applied in order so a repeated id increments once per row.
	StmtMergeListens: `
MATCH (u:User {id: $user_id})
UNWIND $track_ids AS tid
MATCH (t:Track {id: tid})
MERGE (u)-[r:LISTENED_TO]->(t)
ON CREATE SET r.play_count = 1, r.created_at = $now, r.last_played_at = $now
ON MATCH SET r.play_count = r.play_count + 1, r.last_played_at = $now
RETURN count(r) AS merged
`,

	StmtMergePreferredGenres: `
MATCH (u:User {id: $user_id})
UNWIND $names AS name
MERGE (g:Genre {name: name})
MERGE (u)-[r:PREFERS_GENRE]->(g)
ON CREATE SET r.weight = 1.0, r.created_at = $now
RETURN count(r) AS merged
`,

	StmtMergePreferredMoods: `
MATCH (u:User {id: $user_id})
UNWIND $names AS name
MERGE (m:Mood {name: name})
MERGE (u)-[r:PREFERS_MOOD]->(m)
ON CREATE SET r.weight = 1.0, r.created_at = $now
RETURN count(r) AS merged
`,

	StmtContentCandidates: `
MATCH (u:User {id: $user_id})-[:LIKES|LISTENED_TO]->(known:Track)
WITH collect(DISTINCT known) AS knowns
UNWIND knowns AS src
MATCH (src)-[:SIMILAR_TO|MOOD_MATCHES]-(rec:Track)
WHERE NOT rec IN knowns
` + candidateReturn,

	StmtCollaborativeCandidates: `
MATCH (u:User {id: $user_id})-[:LIKES]->(:Track)<-[:LIKES]-(peer:User)
WHERE peer.id <> u.id
WITH u, collect(DISTINCT peer) AS peers
OPTIONAL MATCH (u)-[:LIKES|LISTENED_TO]->(known:Track)
WITH peers, collect(DISTINCT known) AS knowns
UNWIND peers AS src
MATCH (src)-[:LIKES]->(rec:Track)
WHERE NOT rec IN knowns
` + candidateReturn,

	StmtPairSignals: `
MATCH (a:Track {id: $a_id})
MATCH (b:Track {id: $b_id})
OPTIONAL MATCH (a)-[s:SIMILAR_TO]-(b)
WITH a, b, max(s.weight) AS direct
OPTIONAL MATCH (a)-[:HAS_MOOD]->(m:Mood)<-[:HAS_MOOD]-(b)
WITH a, b, direct, count(DISTINCT m) AS shared_moods
OPTIONAL MATCH (a)-[:HAS_GENRE]->(g:Genre)<-[:HAS_GENRE]-(b)
RETURN coalesce(direct, 0.0) AS direct, shared_moods > 0 AS same_mood, count(DISTINCT g) AS shared_genres
`,

	StmtStats: `
CALL { MATCH (t:Track) RETURN count(t) AS tracks }
CALL { MATCH ()-[r:SIMILAR_TO]->() RETURN count(r) AS similar_edges }
CALL { MATCH ()-[r:MOOD_MATCHES]->() RETURN count(r) AS mood_edges }
CALL { MATCH (u:User) RETURN count(u) AS users }
RETURN tracks, similar_edges, mood_edges, users
`,

	StmtTrackIDs: `
MATCH (t:Track)
WHERE t.id > $after
RETURN t.id AS id
ORDER BY t.id
LIMIT $limit
`,

	StmtConstraintTrackID:     `CREATE CONSTRAINT track_id_unique IF NOT EXISTS FOR (t:Track) REQUIRE t.id IS UNIQUE`,
	StmtConstraintArtistID:    `CREATE CONSTRAINT artist_id_unique IF NOT EXISTS FOR (a:Artist) REQUIRE a.id IS UNIQUE`,
	StmtConstraintAlbumID:     `CREATE CONSTRAINT album_id_unique IF NOT EXISTS FOR (a:Album) REQUIRE a.id IS UNIQUE`,
	StmtConstraintUserID:      `CREATE CONSTRAINT user_id_unique IF NOT EXISTS FOR (u:User) REQUIRE u.id IS UNIQUE`,
	StmtConstraintMoodName:    `CREATE CONSTRAINT mood_name_unique IF NOT EXISTS FOR (m:Mood) REQUIRE m.name IS UNIQUE`,
	StmtConstraintGenreName:   `CREATE CONSTRAINT genre_name_unique IF NOT EXISTS FOR (g:Genre) REQUIRE g.name IS UNIQUE`,
	StmtConstraintFeelingName: `CREATE CONSTRAINT feeling_name_unique IF NOT EXISTS FOR (f:Feeling) REQUIRE f.name IS UNIQUE`,
	StmtIndexTrackMood:        `CREATE INDEX track_mood IF NOT EXISTS FOR (t:Track) ON (t.mood)`,
	StmtIndexTrackVibe:        `CREATE INDEX track_vibe IF NOT EXISTS FOR (t:Track) ON (t.vibe)`,
	StmtIndexTrackGenres:      `CREATE INDEX track_genres IF NOT EXISTS FOR (t:Track) ON (t.genres)`,
}

var schemaStatements = []Statement{
	StmtConstraintTrackID,
	StmtConstraintArtistID,
	StmtConstraintAlbumID,
	StmtConstraintUserID,
	StmtConstraintMoodName,
	StmtConstraintGenreName,
	StmtConstraintFeelingName,
	StmtIndexTrackMood,
	StmtIndexTrackVibe,
	StmtIndexTrackGenres,
}
