package search

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/voxhollow/parley/internal/embedding"
)

const knowledgeCollection = "knowledge"

// QdrantConfig holds connection settings for the knowledge index.
type QdrantConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// KnowledgeSearcher answers queries from a Qdrant vector index instead of
// the open web: the query is embedded and matched against indexed snippets.
type KnowledgeSearcher struct {
	embedder    embedding.Provider
	conn        *grpc.ClientConn
	collections pb.CollectionsClient
	points      pb.PointsClient
	logger      *zap.Logger
}

// NewKnowledgeSearcher dials Qdrant and ensures the knowledge collection
// exists with the embedder's dimension.
func NewKnowledgeSearcher(cfg QdrantConfig, embedder embedding.Provider, logger *zap.Logger) (*KnowledgeSearcher, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("qdrant connect %s: %w", addr, err)
	}
	ks := &KnowledgeSearcher{
		embedder:    embedder,
		conn:        conn,
		collections: pb.NewCollectionsClient(conn),
		points:      pb.NewPointsClient(conn),
		logger:      logger,
	}
	if err := ks.ensureCollection(context.Background()); err != nil {
		conn.Close()
		return nil, err
	}
	return ks, nil
}

func (ks *KnowledgeSearcher) ensureCollection(ctx context.Context) error {
	if _, err := ks.collections.Get(ctx, &pb.GetCollectionInfoRequest{CollectionName: knowledgeCollection}); err == nil {
		return nil
	}
	dim := uint64(ks.embedder.Dimension())
	if dim == 0 {
		dim = 1024
	}
	_, err := ks.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: knowledgeCollection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     dim,
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create collection %s: %w", knowledgeCollection, err)
	}
	return nil
}

// Index embeds a snippet and stores it in the knowledge collection.
func (ks *KnowledgeSearcher) Index(ctx context.Context, title, content, sourceURL string) error {
	vectors, err := ks.embedder.Embed(ctx, []string{content})
	if err != nil {
		return fmt.Errorf("embed content: %w", err)
	}
	if len(vectors) == 0 {
		return fmt.Errorf("empty embedding result")
	}

	payload := map[string]*pb.Value{
		"title":      {Kind: &pb.Value_StringValue{StringValue: title}},
		"content":    {Kind: &pb.Value_StringValue{StringValue: content}},
		"url":        {Kind: &pb.Value_StringValue{StringValue: sourceURL}},
		"indexed_at": {Kind: &pb.Value_StringValue{StringValue: time.Now().UTC().Format(time.RFC3339)}},
	}
	_, err = ks.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: knowledgeCollection,
		Points: []*pb.PointStruct{
			{
				Id:      &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: uuid.New().String()}},
				Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: vectors[0]}}},
				Payload: payload,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("upsert knowledge point: %w", err)
	}
	return nil
}

// Search embeds the query and returns the nearest indexed snippets. Like
// every Searcher, total failure yields the degraded placeholder set.
func (ks *KnowledgeSearcher) Search(ctx context.Context, query string, maxResults int) []Result {
	if maxResults <= 0 {
		maxResults = 5
	}

	vectors, err := ks.embedder.Embed(ctx, []string{query})
	if err != nil || len(vectors) == 0 {
		ks.logger.Warn("knowledge search embed failed", zap.String("query", query), zap.Error(err))
		return Placeholder(query)
	}

	resp, err := ks.points.Search(ctx, &pb.SearchPoints{
		CollectionName: knowledgeCollection,
		Vector:         vectors[0],
		Limit:          uint64(maxResults),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		ks.logger.Warn("knowledge search failed", zap.String("query", query), zap.Error(err))
		return Placeholder(query)
	}
	if len(resp.Result) == 0 {
		return Placeholder(query)
	}

	results := make([]Result, 0, len(resp.Result))
	for _, r := range resp.Result {
		stringField := func(key string) string {
			if v, ok := r.Payload[key]; ok {
				if sv, ok := v.Kind.(*pb.Value_StringValue); ok {
					return sv.StringValue
				}
			}
			return ""
		}
		results = append(results, Result{
			Title:          stringField("title"),
			URL:            stringField("url"),
			Snippet:        stringField("content"),
			Source:         "knowledge",
			RelevanceScore: r.Score,
		})
	}
	return results
}

// Close tears down the underlying gRPC connection.
func (ks *KnowledgeSearcher) Close() error {
	return ks.conn.Close()
}
