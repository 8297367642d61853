package vector

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"

	"smt-go/internal/embedding"
)

const upsertBatch = 1000

// QdrantIndex mirrors a phrase embedding store into a qdrant collection
// and serves nearest-phrase queries from it.
type QdrantIndex struct {
	client     *qdrant.Client
	collection string
	logger     *zap.Logger
}

func NewQdrantIndex(host string, port int, apiKey, collection string, logger *zap.Logger) (*QdrantIndex, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to qdrant: %w", err)
	}
	return &QdrantIndex{client: client, collection: collection, logger: logger}, nil
}

// Load recreates the collection and pushes every phrase vector into it.
func (q *QdrantIndex) Load(ctx context.Context, store *embedding.Store) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("checking collection: %w", err)
	}
	if exists {
		if err := q.client.DeleteCollection(ctx, q.collection); err != nil {
			return fmt.Errorf("dropping collection: %w", err)
		}
	}
	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(store.Dim()),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("creating collection: %w", err)
	}

	n := store.Count()
	points := make([]*qdrant.PointStruct, 0, upsertBatch)
	for i := 0; i < n; i++ {
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDNum(uint64(i)),
			Vectors: qdrant.NewVectors(toFloat32(store.Vector(i))...),
			Payload: qdrant.NewValueMap(map[string]any{
				"phrase": store.SurfaceForm(i),
			}),
		})
		if len(points) == upsertBatch || i == n-1 {
			_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
				CollectionName: q.collection,
				Wait:           qdrant.PtrOf(true),
				Points:         points,
			})
			if err != nil {
				return fmt.Errorf("upserting points: %w", err)
			}
			q.logger.Debug("Pushed phrase vectors",
				zap.String("collection", q.collection),
				zap.Int("done", i+1),
				zap.Int("total", n),
			)
			points = points[:0]
		}
	}
	q.logger.Info("Loaded phrase index",
		zap.String("collection", q.collection),
		zap.Int("phrases", n),
	)
	return nil
}

func (q *QdrantIndex) Search(ctx context.Context, vector []float64, limit int) ([]Neighbor, error) {
	if limit <= 0 {
		limit = 10
	}
	points, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(toFloat32(vector)...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("querying collection: %w", err)
	}

	out := make([]Neighbor, 0, len(points))
	for _, p := range points {
		phrase := ""
		if v, ok := p.Payload["phrase"]; ok {
			phrase = v.GetStringValue()
		}
		out = append(out, Neighbor{Phrase: phrase, Score: float64(p.GetScore())})
	}
	return out, nil
}

func (q *QdrantIndex) Close() error {
	return q.client.Close()
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}
