package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"TarLab/internal/domain/models"
	"TarLab/internal/domain/repository"
	"TarLab/pkg/cache"
)

const maxIndexedRuns = 1000

type indexEntry struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

// CacheRunStore keeps runs and job states in a cache.Service with a TTL.
// It backs deployments without ClickHouse; runs expire with the TTL.
type CacheRunStore struct {
	c   cache.Service
	ttl time.Duration
	mu  sync.Mutex // serialises index updates within this process
}

func NewCacheRunStore(c cache.Service, ttl time.Duration) *CacheRunStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &CacheRunStore{c: c, ttl: ttl}
}

func runKey(id string) string    { return cache.GenerateKey("run", id) }
func pointsKey(id string) string { return cache.GenerateKey("run:points", id) }
func jobKey(id string) string    { return cache.GenerateKey("job", id) }

const indexKey = "run:index"

func (s *CacheRunStore) Init(context.Context) error { return nil }

func (s *CacheRunStore) SaveRun(ctx context.Context, run *models.Run, points []models.RSSPoint) error {
	if err := s.c.Set(ctx, runKey(run.ID), run, s.ttl); err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	if len(points) > 0 {
		if err := s.c.Set(ctx, pointsKey(run.ID), points, s.ttl); err != nil {
			return fmt.Errorf("save points: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	idx, err := s.index(ctx)
	if err != nil {
		return err
	}
	idx = append(idx, indexEntry{ID: run.ID, CreatedAt: run.CreatedAt})
	sort.SliceStable(idx, func(i, j int) bool { return idx[i].CreatedAt.After(idx[j].CreatedAt) })
	if len(idx) > maxIndexedRuns {
		idx = idx[:maxIndexedRuns]
	}
	return s.c.Set(ctx, indexKey, idx, s.ttl)
}

func (s *CacheRunStore) index(ctx context.Context) ([]indexEntry, error) {
	var idx []indexEntry
	err := s.c.Get(ctx, indexKey, &idx)
	if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
		return nil, fmt.Errorf("load run index: %w", err)
	}
	return idx, nil
}

func (s *CacheRunStore) GetRun(ctx context.Context, id string) (*models.Run, error) {
	var run models.Run
	if err := s.c.Get(ctx, runKey(id), &run); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, repository.ErrRunNotFound
		}
		return nil, fmt.Errorf("get run: %w", err)
	}
	return &run, nil
}

func (s *CacheRunStore) Points(ctx context.Context, id string) ([]models.RSSPoint, error) {
	var pts []models.RSSPoint
	if err := s.c.Get(ctx, pointsKey(id), &pts); err != nil && !errors.Is(err, cache.ErrCacheMiss) {
		return nil, fmt.Errorf("get points: %w", err)
	}
	return pts, nil
}

// ListRuns returns indexed runs newer than since; expired entries are skipped.
func (s *CacheRunStore) ListRuns(ctx context.Context, since time.Time, limit int) ([]*models.Run, error) {
	s.mu.Lock()
	idx, err := s.index(ctx)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	out := make([]*models.Run, 0, min(limit, len(idx)))
	for _, e := range idx {
		if len(out) >= limit || e.CreatedAt.Before(since) {
			break
		}
		run, err := s.GetRun(ctx, e.ID)
		if errors.Is(err, repository.ErrRunNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, nil
}

func (s *CacheRunStore) SetJobState(ctx context.Context, st *models.JobState) error {
	return s.c.Set(ctx, jobKey(st.ID), st, s.ttl)
}

func (s *CacheRunStore) GetJobState(ctx context.Context, id string) (*models.JobState, error) {
	var st models.JobState
	if err := s.c.Get(ctx, jobKey(id), &st); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, repository.ErrRunNotFound
		}
		return nil, fmt.Errorf("get job: %w", err)
	}
	return &st, nil
}

func (s *CacheRunStore) Health(context.Context) error { return nil }

func (s *CacheRunStore) Close() error { return nil }
