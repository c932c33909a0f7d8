// Package qdrant implements vectorstore.Store on a Qdrant cluster, with
// one named vector per retrieval tier.
package qdrant

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/toneill57/innpilot-sub001/internal/model"
	"github.com/toneill57/innpilot-sub001/internal/vectorstore"
)

// pointNamespace derives stable point ids from tenant and document ids.
var pointNamespace = uuid.MustParse("6f1c3a52-8f7e-4f39-9d0a-3c2b1e0a7d41")

// Config holds Qdrant connection configuration.
type Config struct {
	// URL is the Qdrant server address (e.g., "https://example.qdrant.io:6334").
	URL string

	// APIKey is optional API key for authentication.
	APIKey string

	// CollectionPrefix is prepended to every knowledge collection name.
	CollectionPrefix string
}

// Store implements vectorstore.Store for Qdrant.
type Store struct {
	client *qdrant.Client
	prefix string
}

// New creates a new Qdrant store.
func New(cfg Config) (*Store, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("qdrant url is required")
	}

	host, port, useTLS, err := parseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	prefix := cfg.CollectionPrefix
	if prefix == "" {
		prefix = "knowledge_"
	}
	return &Store{client: client, prefix: prefix}, nil
}

func parseURL(raw string) (string, int, bool, error) {
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", 0, false, fmt.Errorf("failed to parse qdrant url: %w", err)
	}

	port := 6334
	if u.Port() != "" {
		p, err := strconv.Atoi(u.Port())
		if err != nil {
			return "", 0, false, fmt.Errorf("invalid port: %w", err)
		}
		port = p
	}
	return u.Hostname(), port, u.Scheme == "https", nil
}

func (s *Store) collectionName(collection string) string {
	return s.prefix + collection
}

// PointID maps a tenant scoped document id onto a Qdrant UUID.
func PointID(tenantID, docID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(tenantID+"\x00"+docID)).String()
}

// EnsureCollection creates the collection with one cosine vector per tier
// when it does not exist yet, and indexes the filter keys.
func (s *Store) EnsureCollection(ctx context.Context, collection string, dims map[model.Tier]int) error {
	name := s.collectionName(collection)
	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("qdrant: check collection %s: %w", name, err)
	}
	if exists {
		return nil
	}

	params := make(map[string]*qdrant.VectorParams, len(dims))
	for tier, size := range dims {
		params[string(tier)] = &qdrant.VectorParams{
			Size:     uint64(size),
			Distance: qdrant.Distance_Cosine,
		}
	}
	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig:  qdrant.NewVectorsConfigMap(params),
	})
	if err != nil {
		return fmt.Errorf("qdrant: create collection %s: %w", name, err)
	}

	for _, key := range []string{vectorstore.KeyTenant, vectorstore.KeyVisibility} {
		_, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: name,
			FieldName:      key,
			FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
			Wait:           qdrant.PtrOf(true),
		})
		if err != nil {
			return fmt.Errorf("qdrant: index %s.%s: %w", name, key, err)
		}
	}
	return nil
}

// Upsert implements vectorstore.Store.
func (s *Store) Upsert(ctx context.Context, docs []vectorstore.Document) error {
	byCollection := make(map[string][]*qdrant.PointStruct)
	for _, d := range docs {
		if err := vectorstore.ValidateDocument(d); err != nil {
			return err
		}
		vectors := make(map[string]*qdrant.Vector, len(d.Vectors))
		for tier, vec := range d.Vectors {
			if tier.Valid() && len(vec) > 0 {
				vectors[string(tier)] = qdrant.NewVector(vec...)
			}
		}
		if len(vectors) == 0 {
			continue
		}

		payload := make(map[string]any, len(d.Metadata)+7)
		for k, v := range d.Metadata {
			if !vectorstore.IsReserved(k) {
				payload[k] = v
			}
		}
		payload[vectorstore.KeyDocID] = d.ID
		payload[vectorstore.KeyTenant] = d.TenantID
		payload[vectorstore.KeyCollection] = d.Collection
		payload[vectorstore.KeyVisibility] = string(d.Visibility)
		payload[vectorstore.KeyTitle] = d.Title
		payload[vectorstore.KeyContent] = d.Content
		payload[vectorstore.KeySeq] = time.Now().UnixNano()

		byCollection[d.Collection] = append(byCollection[d.Collection], &qdrant.PointStruct{
			Id:      qdrant.NewID(PointID(d.TenantID, d.ID)),
			Vectors: qdrant.NewVectorsMap(vectors),
			Payload: qdrant.NewValueMap(payload),
		})
	}

	for collection, points := range byCollection {
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: s.collectionName(collection),
			Wait:           qdrant.PtrOf(true),
			Points:         points,
		})
		if err != nil {
			return fmt.Errorf("qdrant upsert failed: %w", err)
		}
	}
	return nil
}

// tieWindow bounds how many points past the requested limit are fetched
// so that equal scores at the cut are ordered by recency before capping.
// Ties wider than the window fall back to the server's order.
const tieWindow = 16

func fetchLimit(limit int) uint64 {
	return uint64(limit + max(limit, tieWindow))
}

// Search implements vectorstore.Store.
func (s *Store) Search(ctx context.Context, q vectorstore.Query) ([]vectorstore.Result, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if len(q.Visibility) == 0 {
		return nil, nil
	}

	req := &qdrant.QueryPoints{
		CollectionName: s.collectionName(q.Collection),
		Query:          qdrant.NewQuery(q.Vector...),
		Using:          qdrant.PtrOf(string(q.Tier)),
		Filter:         buildFilter(q),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if q.Limit > 0 {
		limit := fetchLimit(q.Limit)
		req.Limit = &limit
	}
	if q.Threshold > 0 {
		req.ScoreThreshold = qdrant.PtrOf(q.Threshold)
	}

	points, err := s.client.Query(ctx, req)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("qdrant search failed: %w", err)
	}

	results := make([]vectorstore.Result, 0, len(points))
	for _, p := range points {
		if r, ok := toResult(p, q); ok {
			results = append(results, r)
		}
	}
	return vectorstore.Rank(results, q.Threshold, q.Limit), nil
}

// buildFilter restricts a query to the tenant, the readable visibility tags
// and any exact metadata matches.
func buildFilter(q vectorstore.Query) *qdrant.Filter {
	tags := make([]string, len(q.Visibility))
	for i, v := range q.Visibility {
		tags[i] = string(v)
	}

	conditions := []*qdrant.Condition{
		qdrant.NewMatchKeyword(vectorstore.KeyTenant, q.TenantID),
		qdrant.NewMatchKeywords(vectorstore.KeyVisibility, tags...),
	}
	for key, value := range q.Metadata {
		conditions = append(conditions, qdrant.NewMatchKeyword(key, value))
	}
	return &qdrant.Filter{Must: conditions}
}

func toResult(p *qdrant.ScoredPoint, q vectorstore.Query) (vectorstore.Result, bool) {
	payload := make(map[string]string, len(p.Payload))
	var seq int64
	for k, v := range p.Payload {
		switch val := v.GetKind().(type) {
		case *qdrant.Value_StringValue:
			payload[k] = val.StringValue
		case *qdrant.Value_IntegerValue:
			if k == vectorstore.KeySeq {
				seq = val.IntegerValue
			}
			payload[k] = strconv.FormatInt(val.IntegerValue, 10)
		case *qdrant.Value_DoubleValue:
			payload[k] = strconv.FormatFloat(val.DoubleValue, 'f', -1, 64)
		case *qdrant.Value_BoolValue:
			payload[k] = strconv.FormatBool(val.BoolValue)
		}
	}

	vis, ok := model.ParseVisibility(payload[vectorstore.KeyVisibility])
	if !ok || payload[vectorstore.KeyTenant] != q.TenantID {
		return vectorstore.Result{}, false
	}

	id := payload[vectorstore.KeyDocID]
	if id == "" && p.GetId() != nil {
		id = p.GetId().GetUuid()
	}
	return vectorstore.Result{
		ID:         id,
		Collection: q.Collection,
		Title:      payload[vectorstore.KeyTitle],
		Content:    payload[vectorstore.KeyContent],
		Score:      p.GetScore(),
		Visibility: vis,
		Metadata:   vectorstore.UserMetadata(payload),
		Seq:        seq,
	}, true
}

// Ping checks that the qdrant server answers health checks.
func (s *Store) Ping(ctx context.Context) error {
	if _, err := s.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("qdrant health check: %w", err)
	}
	return nil
}

// Close implements vectorstore.Store.
func (s *Store) Close() error {
	return s.client.Close()
}

// Compile-time check that Store implements vectorstore.Store.
var _ vectorstore.Store = (*Store)(nil)
