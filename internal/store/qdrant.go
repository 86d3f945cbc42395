package store

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/manifold-labs/memoryd/internal/memory"
)

// payloadIDField stores the original caller-supplied id in the point
// payload when that id isn't itself a UUID, since Qdrant point ids must be
// a UUID or a positive integer.
const payloadIDField = "_original_id"

// Payload field names for memory.VectorMetadata. Kept as named constants
// rather than a generic map walk since the collection only ever carries
// these three fields.
const (
	payloadCreatedAt    = "created_at"
	payloadPrimaryTag   = "primary_tag"
	payloadPriorityRank = "priority_rank"
)

type qdrantStore struct {
	client     *qdrant.Client
	collection string
	dimension  int
}

// NewQdrantStore opens a gRPC connection to Qdrant (default port 6334) and
// ensures the target collection exists with a cosine-metric index of the
// given dimensionality — memoryd embeds every memory with the same model,
// so a single fixed distance metric is correct for the whole collection.
// An API key may be supplied as the dsn's "api_key" query parameter.
func NewQdrantStore(dsn, collection string, dimensions int) (VectorStore, error) {
	if collection == "" {
		return nil, fmt.Errorf("store: qdrant collection name is required")
	}
	parsed, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("store: parse qdrant dsn: %w", err)
	}
	host := parsed.Hostname()
	if host == "" {
		host = "localhost"
	}
	port := parsed.Port()
	if port == "" {
		port = "6334"
	}
	portNum, err := strconv.Atoi(port)
	if err != nil {
		return nil, fmt.Errorf("store: invalid port in qdrant dsn: %w", err)
	}
	cfg := &qdrant.Config{Host: host, Port: portNum}
	if parsed.Scheme == "https" {
		cfg.UseTLS = true
	}
	if apiKey := parsed.Query().Get("api_key"); apiKey != "" {
		cfg.APIKey = apiKey
	}
	client, err := qdrant.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("store: create qdrant client: %w", err)
	}
	q := &qdrantStore{client: client, collection: collection, dimension: dimensions}
	if err := q.ensureCollection(context.Background()); err != nil {
		client.Close()
		return nil, fmt.Errorf("store: ensure collection: %w", err)
	}
	return q, nil
}

func (q *qdrantStore) ensureCollection(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("check collection exists: %w", err)
	}
	if exists {
		return nil
	}
	if q.dimension <= 0 {
		return fmt.Errorf("dimensions must be > 0")
	}
	return q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(q.dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
}

func pointUUID(id string) string {
	if _, err := uuid.Parse(id); err == nil {
		return id
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String()
}

// Upsert writes the point with its I5 payload fields laid out explicitly —
// created_at/primary_tag/priority_rank — rather than flattening an
// arbitrary metadata map, so the payload shape in Qdrant matches
// memory.VectorMetadata field for field.
func (q *qdrantStore) Upsert(ctx context.Context, id string, vector []float32, metadata memory.VectorMetadata) error {
	uid := pointUUID(id)
	payload := map[string]any{
		payloadCreatedAt:    metadata.CreatedAt,
		payloadPrimaryTag:   metadata.PrimaryTag,
		payloadPriorityRank: int64(metadata.PriorityRank),
	}
	if uid != id {
		payload[payloadIDField] = id
	}
	vec := make([]float32, len(vector))
	copy(vec, vector)
	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewIDUUID(uid),
			Vectors: qdrant.NewVectorsDense(vec),
			Payload: qdrant.NewValueMap(payload),
		}},
	})
	return err
}

func (q *qdrantStore) Delete(ctx context.Context, id string) error {
	uid := pointUUID(id)
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collection,
		Points:         qdrant.NewPointsSelector(qdrant.NewIDUUID(uid)),
	})
	return err
}

// SimilaritySearch pushes the primary_tag constraint down as a server-side
// payload match (the only equality Qdrant needs to do for us), and applies
// priority_rank — if requested — as a post-filter over the returned top-k
// payloads, so a priority_rank filter can return fewer than k results.
func (q *qdrantStore) SimilaritySearch(ctx context.Context, vector []float32, k int, filter MetadataFilter) ([]VectorResult, error) {
	if k <= 0 {
		k = 10
	}
	vec := make([]float32, len(vector))
	copy(vec, vector)

	var queryFilter *qdrant.Filter
	if filter.PrimaryTag != "" {
		queryFilter = &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch(payloadPrimaryTag, filter.PrimaryTag)},
		}
	}

	limit := uint64(k)
	hits, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQueryDense(vec),
		Limit:          &limit,
		Filter:         queryFilter,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, err
	}

	results := make([]VectorResult, 0, len(hits))
	for _, hit := range hits {
		id, metadata := pointMetadata(hit)
		if filter.PriorityRank != nil && metadata.PriorityRank != *filter.PriorityRank {
			continue
		}
		results = append(results, VectorResult{ID: id, Score: float64(hit.Score), Metadata: metadata})
	}
	return results, nil
}

// pointMetadata reconstructs the original id and VectorMetadata from a hit's
// payload, unwinding the _original_id indirection used for non-UUID ids.
func pointMetadata(hit *qdrant.ScoredPoint) (string, memory.VectorMetadata) {
	uid := hit.Id.GetUuid()
	if uid == "" {
		uid = hit.Id.String()
	}
	var md memory.VectorMetadata
	originalID := ""
	if hit.Payload != nil {
		if v, ok := hit.Payload[payloadIDField]; ok {
			originalID = v.GetStringValue()
		}
		if v, ok := hit.Payload[payloadCreatedAt]; ok {
			md.CreatedAt = v.GetIntegerValue()
		}
		if v, ok := hit.Payload[payloadPrimaryTag]; ok {
			md.PrimaryTag = v.GetStringValue()
		}
		if v, ok := hit.Payload[payloadPriorityRank]; ok {
			md.PriorityRank = int(v.GetIntegerValue())
		}
	}
	id := originalID
	if id == "" {
		id = uid
	}
	return id, md
}

func (q *qdrantStore) Dimension() int { return q.dimension }

func (q *qdrantStore) Close() error { return q.client.Close() }
