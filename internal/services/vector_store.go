package services

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"

	"cvmatcher/backend/internal/logger"
)

// CVChunk is one embedded slice of a CV's text.
type CVChunk struct {
	CVID    uint
	OwnerID uint
	Index   int
	Text    string
	Vector  []float32
}

type ChunkHit struct {
	CVID  uint
	Score float32
	Text  string
}

type VectorStore interface {
	EnsureCollection(ctx context.Context) error
	UpsertChunks(ctx context.Context, chunks []CVChunk) error
	Search(ctx context.Context, ownerID uint, vector []float32, limit int) ([]ChunkHit, error)
	DeleteCV(ctx context.Context, cvID uint) error
}

type qdrantStore struct {
	client     *qdrant.Client
	collection string
	vectorSize uint64
	log        *zap.Logger
}

func NewQdrantStore(urlStr, apiKey, collection string, vectorSize int, log *zap.Logger) (VectorStore, error) {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return nil, fmt.Errorf("invalid Qdrant URL: %w", err)
	}

	// gRPC port
	port := 6334
	if p := parsed.Port(); p != "" {
		if v, err := strconv.Atoi(p); err == nil {
			port = v
		}
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   parsed.Hostname(),
		Port:   port,
		APIKey: apiKey,
		UseTLS: parsed.Scheme == "https",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	return &qdrantStore{
		client:     client,
		collection: collection,
		vectorSize: uint64(vectorSize),
		log:        logger.OrNop(log),
	}, nil
}

func (q *qdrantStore) EnsureCollection(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if exists {
		return nil
	}

	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     q.vectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	q.log.Info("Qdrant collection created", zap.String("collection", q.collection))
	return nil
}

func (q *qdrantStore) UpsertChunks(ctx context.Context, chunks []CVChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, 0, len(chunks))
	for _, c := range chunks {
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewID(chunkPointID(c.CVID, c.Index)),
			Vectors: qdrant.NewVectors(c.Vector...),
			Payload: qdrant.NewValueMap(map[string]any{
				"cv_id":    int64(c.CVID),
				"owner_id": int64(c.OwnerID),
				"chunk":    int64(c.Index),
				"text":     c.Text,
			}),
		})
	}

	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert points: %w", err)
	}
	return nil
}

func (q *qdrantStore) Search(ctx context.Context, ownerID uint, vector []float32, limit int) ([]ChunkHit, error) {
	points, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(vector...),
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatchInt("owner_id", int64(ownerID)),
			},
		},
		Limit:       qdrant.PtrOf(uint64(limit)),
		WithPayload: qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	hits := make([]ChunkHit, 0, len(points))
	for _, point := range points {
		payload := point.GetPayload()
		hits = append(hits, ChunkHit{
			CVID:  uint(payload["cv_id"].GetIntegerValue()),
			Score: point.GetScore(),
			Text:  payload["text"].GetStringValue(),
		})
	}
	return hits, nil
}

func (q *qdrantStore) DeleteCV(ctx context.Context, cvID uint) error {
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
				Filter: &qdrant.Filter{
					Must: []*qdrant.Condition{
						qdrant.NewMatchInt("cv_id", int64(cvID)),
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete CV points: %w", err)
	}
	return nil
}

// chunkPointID is deterministic so re-indexing a CV overwrites its points.
func chunkPointID(cvID uint, index int) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("cv-%d-chunk-%d", cvID, index))).String()
}
