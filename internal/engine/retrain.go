package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/cluster"
	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/models"
)

// Retrain reclusters every indexed document with k-means and waits for the result.
// k is cluster.num_clusters when set, otherwise the current cluster count.
func (e *Engine) Retrain(ctx context.Context) error {
	e.retrainMu.Lock()
	if e.retraining {
		e.retrainMu.Unlock()
		return fmt.Errorf("%w: retrain already in progress", models.ErrRetrainFailure)
	}
	e.retraining = true
	e.retrainMu.Unlock()

	total, err := e.retrain(ctx)
	e.finishRetrain(total, err)
	return err
}

// maybeRetrain starts a background retrain once the document count reaches
// retrain_multiplier times the cluster count and the previous retrain point.
func (e *Engine) maybeRetrain() {
	if !e.cfg.Cluster.AutoRetrainOrDefault() {
		return
	}
	total := e.index.Size()
	count := e.clusters.Count()
	mult := e.multiplier()

	e.retrainMu.Lock()
	defer e.retrainMu.Unlock()
	if e.closed.Load() || e.retraining || count == 0 {
		return
	}
	if total < mult*count || total < e.nextRetrainAt {
		return
	}
	e.retraining = true
	e.retrainWG.Add(1)
	go func() {
		defer e.retrainWG.Done()
		n, err := e.retrain(context.Background())
		e.finishRetrain(n, err)
	}()
}

func (e *Engine) retrain(ctx context.Context) (int, error) {
	entries := e.index.Entries()
	points := make([]cluster.Point, len(entries))
	for i, entry := range entries {
		points[i] = cluster.Point{DocID: entry.DocID, Vector: entry.Vector}
	}
	k := e.cfg.Cluster.NumClusters
	if k <= 0 {
		k = e.clusters.Count()
	}
	if k <= 0 {
		k = 1
	}
	e.logger.Info("retraining clusters", zap.Int("points", len(points)), zap.Int("k", k))
	return len(points), e.clusters.Retrain(ctx, points, k, e.cfg.Cluster.Threshold())
}

func (e *Engine) finishRetrain(total int, err error) {
	e.retrainMu.Lock()
	e.retraining = false
	if err == nil {
		e.nextRetrainAt = total * e.multiplier()
	}
	e.retrainMu.Unlock()

	if err != nil {
		e.retrainFailures.Add(1)
		e.logger.Warn("cluster retrain failed, keeping previous clusters", zap.Error(err))
		return
	}
	e.retrains.Add(1)
	if e.snapshots != nil {
		e.snapshots.Schedule()
	}
}

func (e *Engine) multiplier() int {
	if m := e.cfg.Cluster.RetrainMultiplier; m > 0 {
		return m
	}
	return 2
}
