package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/tunegraph/internal/platform/ctxutil"
	"github.com/yungbote/tunegraph/internal/platform/logger"
	"github.com/yungbote/tunegraph/internal/vector"
)

const (
	payloadNamespaceKey = "_tg_namespace"
	payloadTrackIDKey   = "_tg_track_id"
	maxErrorBodyBytes   = 1024
	defaultDistance     = "Cosine"
)

var pointIDNamespaceUUID = uuid.MustParse("6b2f6f0e-93f1-4f77-a3c4-0c5e1d7b9a41")

type Store struct {
	log      *logger.Logger
	cfg      Config
	baseURL  string
	distance string
	http     *http.Client
}

type qdrantEnvelope struct {
	Result json.RawMessage `json:"result"`
	Status json.RawMessage `json:"status"`
	Time   float64         `json:"time"`
}

type qdrantSearchResultItem struct {
	ID      json.RawMessage `json:"id"`
	Score   float64         `json:"score"`
	Payload map[string]any  `json:"payload"`
}

type collectionInfo struct {
	PointsCount  *int64 `json:"points_count"`
	VectorsCount *int64 `json:"vectors_count"`
	Config       struct {
		Params struct {
			Vectors struct {
				Size     int    `json:"size"`
				Distance string `json:"distance"`
			} `json:"vectors"`
		} `json:"params"`
	} `json:"config"`
}

// NewVectorStore validates cfg, checks the server is ready and makes sure the
// collection exists with the configured dimension, creating it when absent.
func NewVectorStore(ctx context.Context, log *logger.Logger, cfg Config, client *http.Client) (*Store, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	s := &Store{
		log:     log.With("service", "QdrantVectorStore"),
		cfg:     cfg,
		baseURL: strings.TrimRight(cfg.URL, "/"),
		http:    client,
	}
	if err := s.ensureCollection(ctx); err != nil {
		return nil, err
	}
	s.log.Info(
		"Qdrant vector store selected",
		"url", s.baseURL,
		"collection", cfg.Collection,
		"vector_dim", cfg.VectorDim,
		"distance", s.distance,
	)
	return s, nil
}

func (s *Store) Name() string { return "qdrant" }

func (s *Store) Upsert(ctx context.Context, namespace string, records []vector.Record) error {
	const op = "upsert"
	if len(records) == 0 {
		return nil
	}
	points := make([]map[string]any, 0, len(records))
	for _, r := range records {
		id := strings.TrimSpace(r.ID)
		if id == "" {
			return opErr(op, OperationErrorValidation, "track id is required", nil)
		}
		if len(r.Values) != s.cfg.VectorDim {
			return &vector.DimensionMismatchError{ID: id, Expected: s.cfg.VectorDim, Got: len(r.Values)}
		}
		payload := clonePayload(r.Metadata)
		payload[payloadNamespaceKey] = namespace
		payload[payloadTrackIDKey] = id
		points = append(points, map[string]any{
			"id":      pointID(namespace, id),
			"vector":  r.Values,
			"payload": payload,
		})
	}
	return s.doJSON(ctx, op, http.MethodPut, s.collectionPath("/points?wait=true"), map[string]any{"points": points}, nil)
}

func (s *Store) Query(ctx context.Context, namespace string, q []float32, topK int, filter map[string]any) ([]vector.Match, error) {
	const op = "query"
	if len(q) != s.cfg.VectorDim {
		return nil, &vector.DimensionMismatchError{Expected: s.cfg.VectorDim, Got: len(q)}
	}
	if topK <= 0 {
		topK = 10
	}
	qf, err := translateQueryFilter(namespace, filter)
	if err != nil {
		var typed *OperationError
		if errors.As(err, &typed) && typed.Code == OperationErrorUnsupportedFilter {
			s.log.Warn("qdrant query filter unsupported", "namespace", namespace, "error", err)
		}
		return nil, err
	}

	req := map[string]any{
		"vector":       q,
		"limit":        topK,
		"with_payload": true,
		"with_vector":  false,
		"filter":       qf,
	}
	var raw []qdrantSearchResultItem
	if err := s.doJSON(ctx, op, http.MethodPost, s.collectionPath("/points/search"), req, &raw); err != nil {
		return nil, err
	}

	out := make([]vector.Match, 0, len(raw))
	for _, item := range raw {
		id := extractTrackID(item)
		if id == "" {
			continue
		}
		out = append(out, vector.Match{
			ID:       id,
			Score:    s.normalizeScore(item.Score),
			Metadata: publicPayload(item.Payload),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score == out[j].Score {
			return out[i].ID < out[j].ID
		}
		return out[i].Score > out[j].Score
	})
	return out, nil
}

// Stats reads the collection info. Fullness is points/capacity when a
// capacity is configured, otherwise 0.
func (s *Store) Stats(ctx context.Context) (vector.Stats, error) {
	info, err := s.collectionInfo(ctx, "stats")
	if err != nil {
		return vector.Stats{}, err
	}
	var count int64
	switch {
	case info.PointsCount != nil:
		count = *info.PointsCount
	case info.VectorsCount != nil:
		count = *info.VectorsCount
	}
	st := vector.Stats{Dimension: info.Config.Params.Vectors.Size, TotalCount: count}
	if s.cfg.Capacity > 0 {
		st.FullnessRatio = float64(count) / float64(s.cfg.Capacity)
	}
	return st, nil
}

func (s *Store) ensureCollection(ctx context.Context) error {
	const op = "bootstrap_verify"

	readyReq, err := http.NewRequestWithContext(ctxutil.Default(ctx), http.MethodGet, s.baseURL+"/readyz", nil)
	if err != nil {
		return opErr(op, OperationErrorTransportFailed, "build ready request failed", err)
	}
	readyResp, err := s.http.Do(readyReq)
	if err != nil {
		return classifyHTTPCallError(op, "qdrant ready check failed", err)
	}
	_ = readyResp.Body.Close()
	if readyResp.StatusCode < 200 || readyResp.StatusCode >= 300 {
		return &OperationError{
			Code:       OperationErrorQueryFailed,
			Operation:  op,
			StatusCode: readyResp.StatusCode,
			Message:    fmt.Sprintf("qdrant ready check returned status=%d", readyResp.StatusCode),
		}
	}

	info, err := s.collectionInfo(ctx, op)
	var typed *OperationError
	if errors.As(err, &typed) && typed.Code == OperationErrorNotFound {
		create := map[string]any{
			"vectors": map[string]any{"size": s.cfg.VectorDim, "distance": defaultDistance},
		}
		if err := s.doJSON(ctx, "create_collection", http.MethodPut, s.collectionPath(""), create, nil); err != nil {
			return err
		}
		s.log.Info("qdrant collection created", "collection", s.cfg.Collection, "vector_dim", s.cfg.VectorDim)
		s.distance = defaultDistance
		return s.ensureIndexes(ctx)
	}
	if err != nil {
		return err
	}

	if size := info.Config.Params.Vectors.Size; size != 0 && size != s.cfg.VectorDim {
		return &OperationError{
			Code:      OperationErrorValidation,
			Operation: op,
			Message: fmt.Sprintf("qdrant collection %q vector size mismatch: expected=%d actual=%d",
				s.cfg.Collection, s.cfg.VectorDim, size),
			Cause: &vector.DimensionMismatchError{Expected: s.cfg.VectorDim, Got: size},
		}
	}
	s.distance = strings.TrimSpace(info.Config.Params.Vectors.Distance)
	return s.ensureIndexes(ctx)
}

// ensureIndexes creates payload indexes for the fields used in filters.
// Qdrant treats re-creating an existing index as a no-op.
func (s *Store) ensureIndexes(ctx context.Context) error {
	fields := []struct{ name, schema string }{
		{payloadNamespaceKey, "keyword"},
		{"mood", "keyword"},
		{"genres", "keyword"},
		{"vibe", "float"},
	}
	for _, f := range fields {
		req := map[string]any{"field_name": f.name, "field_schema": f.schema}
		if err := s.doJSON(ctx, "create_index", http.MethodPut, s.collectionPath("/index?wait=true"), req, nil); err != nil {
			s.log.Warn("qdrant payload index creation failed (continuing)", "field", f.name, "error", err)
		}
	}
	return nil
}

func (s *Store) collectionInfo(ctx context.Context, op string) (collectionInfo, error) {
	var info collectionInfo
	err := s.doJSON(ctx, op, http.MethodGet, s.collectionPath(""), nil, &info)
	return info, err
}

func (s *Store) doJSON(ctx context.Context, op, method, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(in); err != nil {
			return opErr(op, OperationErrorEncodeFailed, "encode request failed", err)
		}
		body = &buf
	}

	req, err := http.NewRequestWithContext(ctxutil.Default(ctx), method, s.baseURL+path, body)
	if err != nil {
		return opErr(op, OperationErrorTransportFailed, "build request failed", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return classifyHTTPCallError(op, "qdrant request failed", err)
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 64*maxErrorBodyBytes))
	if readErr != nil {
		return opErr(op, OperationErrorDecodeFailed, "read response failed", readErr)
	}
	if resp.StatusCode == http.StatusNotFound {
		return &OperationError{Code: OperationErrorNotFound, Operation: op, StatusCode: resp.StatusCode, Message: truncateBody(raw)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &OperationError{
			Code:       OperationErrorQueryFailed,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("qdrant http status=%d body=%q", resp.StatusCode, truncateBody(raw)),
		}
	}

	var envelope qdrantEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return opErr(op, OperationErrorDecodeFailed, "decode qdrant envelope failed", err)
	}
	if statusErr := parseEnvelopeStatus(envelope.Status); statusErr != "" {
		return &OperationError{Code: OperationErrorQueryFailed, Operation: op, StatusCode: resp.StatusCode, Message: statusErr}
	}
	if out == nil || len(envelope.Result) == 0 || string(envelope.Result) == "null" {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return opErr(op, OperationErrorDecodeFailed, "decode qdrant result failed", err)
	}
	return nil
}

func classifyHTTPCallError(op, message string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return opErr(op, OperationErrorTimeout, message, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return opErr(op, OperationErrorTimeout, message, err)
	}
	return opErr(op, OperationErrorTransportFailed, message, err)
}

func parseEnvelopeStatus(raw json.RawMessage) string {
	status := strings.TrimSpace(string(raw))
	if status == "" || status == "null" {
		return ""
	}
	var statusString string
	if err := json.Unmarshal(raw, &statusString); err == nil {
		if strings.EqualFold(statusString, "ok") {
			return ""
		}
		return fmt.Sprintf("qdrant status=%q", statusString)
	}
	var statusObject struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &statusObject); err == nil && strings.TrimSpace(statusObject.Error) != "" {
		return strings.TrimSpace(statusObject.Error)
	}
	return fmt.Sprintf("qdrant status=%s", status)
}

func truncateBody(raw []byte) string {
	if len(raw) <= maxErrorBodyBytes {
		return string(raw)
	}
	return string(raw[:maxErrorBodyBytes]) + "..."
}

func clonePayload(in map[string]any) map[string]any {
	out := make(map[string]any, len(in)+2)
	for k, v := range in {
		out[k] = v
	}
	return out
}

func publicPayload(in map[string]any) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		if k == payloadNamespaceKey || k == payloadTrackIDKey {
			continue
		}
		out[k] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func pointID(namespace, trackID string) string {
	return uuid.NewSHA1(pointIDNamespaceUUID, []byte(namespace+"|"+trackID)).String()
}

func (s *Store) collectionPath(suffix string) string {
	return "/collections/" + s.cfg.Collection + suffix
}

func translateQueryFilter(namespace string, filter map[string]any) (map[string]any, error) {
	base := translatedFilter{Must: []any{qdrantMatchCondition(payloadNamespaceKey, namespace)}}
	if len(filter) == 0 {
		return base.asMap(), nil
	}
	translated, err := translateFilterMap(filter)
	if err != nil {
		return nil, err
	}
	mergeTranslatedFilters(&base, translated)
	return base.asMap(), nil
}

func extractTrackID(item qdrantSearchResultItem) string {
	if id, ok := item.Payload[payloadTrackIDKey].(string); ok && strings.TrimSpace(id) != "" {
		return strings.TrimSpace(id)
	}
	return decodePointID(item.ID)
}

func decodePointID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var idString string
	if err := json.Unmarshal(raw, &idString); err == nil {
		return strings.TrimSpace(idString)
	}
	var idNumber int64
	if err := json.Unmarshal(raw, &idNumber); err == nil {
		return fmt.Sprintf("%d", idNumber)
	}
	return strings.TrimSpace(string(raw))
}

// normalizeScore maps distance-style scores into a higher-is-closer similarity.
func (s *Store) normalizeScore(score float64) float64 {
	switch strings.ToLower(strings.TrimSpace(s.distance)) {
	case "euclid", "manhattan":
		if score < 0 {
			score = -score
		}
		return 1.0 / (1.0 + score)
	default:
		return score
	}
}
