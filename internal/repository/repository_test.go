package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"TarLab/internal/domain/models"
	domrepo "TarLab/internal/domain/repository"
	"TarLab/pkg/cache"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopMetrics struct {
	sent   []string
	errors []string
}

func (m *nopMetrics) RecordEstimation(string, string, float64, int, int) {}
func (m *nopMetrics) RecordCacheLookup(bool)                             {}
func (m *nopMetrics) RecordMessageSent(topic string)                     { m.sent = append(m.sent, topic) }
func (m *nopMetrics) RecordError(kind string)                            { m.errors = append(m.errors, kind) }
func (m *nopMetrics) RecordLatency(string, float64)                      {}

func ptr(v float64) *float64 { return &v }

func newCacheStore(t *testing.T) *CacheRunStore {
	t.Helper()
	mem := cache.NewMemoryCache()
	t.Cleanup(func() { _ = mem.Close() })
	return NewCacheRunStore(mem, time.Hour)
}

func TestCacheRunStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newCacheStore(t)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	run := &models.Run{ID: "r1", Variant: models.VariantConstant, ThetaFirst: 10, ThetaLast: 10, RhoHat: -0.5, Halflife: ptr(1), CreatedAt: now}
	points := []models.RSSPoint{
		{RunID: "r1", First: 9, Last: 9, RSS: ptr(120)},
		{RunID: "r1", First: 10, Last: 10, RSS: nil},
	}
	require.NoError(t, s.SaveRun(ctx, run, points))

	got, err := s.GetRun(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, run.RhoHat, got.RhoHat)
	assert.Equal(t, 1.0, *got.Halflife)
	assert.True(t, got.CreatedAt.Equal(now))

	pts, err := s.Points(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, pts, 2)
	assert.Equal(t, 120.0, *pts[0].RSS)
	assert.Nil(t, pts[1].RSS)

	_, err = s.GetRun(ctx, "missing")
	assert.ErrorIs(t, err, domrepo.ErrRunNotFound)
}

func TestCacheRunStoreListRuns(t *testing.T) {
	ctx := context.Background()
	s := newCacheStore(t)
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.SaveRun(ctx, &models.Run{ID: id, CreatedAt: base.Add(time.Duration(i) * time.Hour)}, nil))
	}

	runs, err := s.ListRuns(ctx, base, 10)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "c", runs[0].ID, "newest first")

	runs, err = s.ListRuns(ctx, base.Add(90*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "c", runs[0].ID)

	runs, err = s.ListRuns(ctx, base, 2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestCacheRunStoreJobState(t *testing.T) {
	ctx := context.Background()
	s := newCacheStore(t)

	require.NoError(t, s.SetJobState(ctx, &models.JobState{ID: "j1", Status: models.JobQueued}))
	st, err := s.GetJobState(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, models.JobQueued, st.Status)

	_, err = s.GetJobState(ctx, "j2")
	assert.ErrorIs(t, err, domrepo.ErrRunNotFound)
}

type failingStore struct {
	domrepo.RunStore
	calls int
}

func (f *failingStore) SaveRun(context.Context, *models.Run, []models.RSSPoint) error {
	f.calls++
	return errors.New("clickhouse: connection refused")
}

func TestBreakerRunStoreOpens(t *testing.T) {
	inner := &failingStore{}
	s := NewBreakerRunStore(inner, "test")

	for i := 0; i < 3; i++ {
		assert.Error(t, s.SaveRun(context.Background(), &models.Run{}, nil))
	}
	err := s.SaveRun(context.Background(), &models.Run{}, nil)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 3, inner.calls)
}

type fakeProducer struct {
	keys   []string
	topics []string
	err    error
}

func (p *fakeProducer) Publish(_ context.Context, topic string, key []byte, _ interface{}) error {
	if p.err != nil {
		return p.err
	}
	p.topics = append(p.topics, topic)
	p.keys = append(p.keys, string(key))
	return nil
}

func (p *fakeProducer) Close() error { return nil }

func TestKafkaResultPublisher(t *testing.T) {
	prod := &fakeProducer{}
	m := &nopMetrics{}
	pub := NewKafkaResultPublisher(prod, "tarlab.results", m)

	require.NoError(t, pub.PublishResult(context.Background(), &models.ResultEvent{RunID: "r1", Status: models.JobDone}))
	require.NoError(t, pub.PublishResult(context.Background(), &models.ResultEvent{JobID: "j1", Status: models.JobFailed}))
	assert.Equal(t, []string{"r1", "j1"}, prod.keys)
	assert.Equal(t, []string{"tarlab.results", "tarlab.results"}, m.sent)

	prod.err = errors.New("broker down")
	assert.Error(t, pub.PublishResult(context.Background(), &models.ResultEvent{RunID: "r2"}))
	assert.Equal(t, []string{"publish_result"}, m.errors)
}
