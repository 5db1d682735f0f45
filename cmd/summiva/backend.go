package main

import (
	"context"

	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/cli"
	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/engine"
	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/models"
)

// backend is what the commands need, served either by a local engine or a remote server.
type backend interface {
	Ingest(ctx context.Context, in *models.DocumentInput) (*models.IngestResult, error)
	Query(ctx context.Context, q *models.SearchQuery) (*models.SearchResponse, error)
	SimilarDocuments(ctx context.Context, text string, k int) ([]models.SimilarDocument, error)
	Remove(ctx context.Context, docID string) error
	ClusterOf(ctx context.Context, docID string) (uint64, error)
	MembersOf(ctx context.Context, clusterID uint64) ([]string, error)
	SimilarClusters(ctx context.Context, clusterID uint64, limit int) ([]uint64, error)
	Clusters(ctx context.Context) ([]models.ClusterSummary, error)
	Retrain(ctx context.Context) (models.Stats, error)
	Stats(ctx context.Context) (models.Stats, error)
	Close() error
}

type localBackend struct {
	engine *engine.Engine
}

func (b *localBackend) Ingest(ctx context.Context, in *models.DocumentInput) (*models.IngestResult, error) {
	return b.engine.Ingest(ctx, in.ID, in.Text, in.Metadata)
}

func (b *localBackend) Query(ctx context.Context, q *models.SearchQuery) (*models.SearchResponse, error) {
	return b.engine.Query(ctx, q)
}

func (b *localBackend) SimilarDocuments(ctx context.Context, text string, k int) ([]models.SimilarDocument, error) {
	return b.engine.SimilarDocuments(ctx, text, k)
}

func (b *localBackend) Remove(ctx context.Context, docID string) error {
	return b.engine.Remove(ctx, docID)
}

func (b *localBackend) ClusterOf(_ context.Context, docID string) (uint64, error) {
	return b.engine.ClusterOf(docID)
}

func (b *localBackend) MembersOf(_ context.Context, clusterID uint64) ([]string, error) {
	return b.engine.MembersOf(clusterID), nil
}

func (b *localBackend) SimilarClusters(_ context.Context, clusterID uint64, limit int) ([]uint64, error) {
	return b.engine.SimilarClusters(clusterID, limit)
}

func (b *localBackend) Clusters(context.Context) ([]models.ClusterSummary, error) {
	return b.engine.Clusters(), nil
}

func (b *localBackend) Retrain(ctx context.Context) (models.Stats, error) {
	err := b.engine.Retrain(ctx)
	return b.engine.Stats(), err
}

func (b *localBackend) Stats(context.Context) (models.Stats, error) {
	return b.engine.Stats(), nil
}

func (b *localBackend) Close() error {
	return b.engine.Close()
}

type remoteBackend struct {
	client *cli.Client
}

func (b *remoteBackend) Ingest(ctx context.Context, in *models.DocumentInput) (*models.IngestResult, error) {
	return b.client.Ingest(ctx, in)
}

func (b *remoteBackend) Query(ctx context.Context, q *models.SearchQuery) (*models.SearchResponse, error) {
	return b.client.Search(ctx, q)
}

func (b *remoteBackend) SimilarDocuments(ctx context.Context, text string, k int) ([]models.SimilarDocument, error) {
	return b.client.SimilarDocuments(ctx, text, k)
}

func (b *remoteBackend) Remove(ctx context.Context, docID string) error {
	return b.client.Remove(ctx, docID)
}

func (b *remoteBackend) ClusterOf(ctx context.Context, docID string) (uint64, error) {
	return b.client.ClusterOf(ctx, docID)
}

func (b *remoteBackend) MembersOf(ctx context.Context, clusterID uint64) ([]string, error) {
	return b.client.MembersOf(ctx, clusterID)
}

func (b *remoteBackend) SimilarClusters(ctx context.Context, clusterID uint64, limit int) ([]uint64, error) {
	return b.client.SimilarClusters(ctx, clusterID, limit)
}

func (b *remoteBackend) Clusters(ctx context.Context) ([]models.ClusterSummary, error) {
	return b.client.Clusters(ctx)
}

func (b *remoteBackend) Retrain(ctx context.Context) (models.Stats, error) {
	return b.client.Retrain(ctx)
}

func (b *remoteBackend) Stats(ctx context.Context) (models.Stats, error) {
	return b.client.Stats(ctx)
}

func (b *remoteBackend) Close() error {
	return nil
}
