package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"tokengate_backend/internal/model"
	"tokengate_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// memDurable 内存版权威存储，复刻版本守卫的 last-writer-wins 语义
type memDurable struct {
	mu      sync.Mutex
	records map[string]*model.ProgressRecord
	failing bool
	saves   int
}

func newMemDurable() *memDurable {
	return &memDurable{records: make(map[string]*model.ProgressRecord)}
}

func (d *memDurable) Get(userID, courseID uint) (*model.ProgressRecord, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	record, ok := d.records[syncKey(userID, courseID)]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *record
	clone.Statuses = record.Statuses.Clone()
	return &clone, nil
}

func (d *memDurable) Save(record *model.ProgressRecord) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.saves++
	if d.failing {
		return errors.New("connection refused")
	}

	key := syncKey(record.UserID, record.CourseID)
	if existing, ok := d.records[key]; ok && existing.Version >= record.Version {
		return util.ErrStaleWrite
	}
	clone := *record
	clone.Statuses = record.Statuses.Clone()
	d.records[key] = &clone
	return nil
}

type memCache struct {
	mu      sync.Mutex
	records map[string]*model.ProgressRecord
}

func newMemCache() *memCache {
	return &memCache{records: make(map[string]*model.ProgressRecord)}
}

func (c *memCache) Get(ctx context.Context, userID, courseID uint) (*model.ProgressRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	record, ok := c.records[syncKey(userID, courseID)]
	if !ok {
		return nil, nil
	}
	return record, nil
}

func (c *memCache) Set(ctx context.Context, record *model.ProgressRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records[syncKey(record.UserID, record.CourseID)] = record
	return nil
}

type push struct {
	record *model.ProgressRecord
	origin string
}

type recordingPublisher struct {
	mu     sync.Mutex
	pushes []push
}

func (p *recordingPublisher) Publish(record *model.ProgressRecord, originSession string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pushes = append(p.pushes, push{record: record, origin: originSession})
}

func (p *recordingPublisher) last() push {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pushes[len(p.pushes)-1]
}

func testRecord(version int64) *model.ProgressRecord {
	return &model.ProgressRecord{
		UserID:   1,
		CourseID: 7,
		Statuses: model.StatusVector{model.StatusUnlocked, model.StatusLocked},
		Version:  version,
		Attempt:  1,
	}
}

func TestSyncLoadPrimesCache(t *testing.T) {
	ctx := context.Background()
	durable := newMemDurable()
	cache := newMemCache()
	svc := NewSyncService(cache, durable, nil, 3)

	require.NoError(t, durable.Save(testRecord(1)))

	record, err := svc.Load(ctx, 1, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(1), record.Version)

	cached, _ := cache.Get(ctx, 1, 7)
	require.NotNil(t, cached)
	assert.Equal(t, int64(1), cached.Version)
}

func TestSyncLoadMissingRecord(t *testing.T) {
	svc := NewSyncService(newMemCache(), newMemDurable(), nil, 3)
	_, err := svc.Load(context.Background(), 1, 7)
	assert.True(t, NotFound(err))
}

func TestSaveOptimisticPublishesImmediately(t *testing.T) {
	ctx := context.Background()
	publisher := &recordingPublisher{}
	svc := NewSyncService(newMemCache(), newMemDurable(), publisher, 3)

	svc.SaveOptimistic(ctx, testRecord(2), "session-a")

	require.Len(t, publisher.pushes, 1)
	assert.Equal(t, "session-a", publisher.last().origin)
	assert.True(t, svc.HasPending())
}

func TestCancelAndReplacePendingWrite(t *testing.T) {
	ctx := context.Background()
	durable := newMemDurable()
	svc := NewSyncService(newMemCache(), durable, nil, 3)

	svc.SaveOptimistic(ctx, testRecord(2), "")
	svc.SaveOptimistic(ctx, testRecord(3), "")
	svc.FlushPending(ctx)

	// 旧写入被新写入顶替，只有最新版本落盘
	assert.Equal(t, 1, durable.saves)
	stored, err := durable.Get(1, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stored.Version)
	assert.False(t, svc.HasPending())
}

func TestLastWriterWinsBothArrivalOrders(t *testing.T) {
	ctx := context.Background()

	t.Run("newer then older", func(t *testing.T) {
		durable := newMemDurable()
		svc := NewSyncService(nil, durable, nil, 3)

		svc.SaveOptimistic(ctx, testRecord(5), "")
		svc.FlushPending(ctx)
		svc.SaveOptimistic(ctx, testRecord(4), "")
		svc.FlushPending(ctx)

		stored, err := durable.Get(1, 7)
		require.NoError(t, err)
		assert.Equal(t, int64(5), stored.Version)
	})

	t.Run("older then newer", func(t *testing.T) {
		durable := newMemDurable()
		svc := NewSyncService(nil, durable, nil, 3)

		svc.SaveOptimistic(ctx, testRecord(4), "")
		svc.FlushPending(ctx)
		svc.SaveOptimistic(ctx, testRecord(5), "")
		svc.FlushPending(ctx)

		stored, err := durable.Get(1, 7)
		require.NoError(t, err)
		assert.Equal(t, int64(5), stored.Version)
	})
}

func TestStaleWriteAdoptsAuthoritativeVector(t *testing.T) {
	ctx := context.Background()
	durable := newMemDurable()
	cache := newMemCache()
	publisher := &recordingPublisher{}
	svc := NewSyncService(cache, durable, publisher, 3)

	// 别的会话已经写到版本 6
	authoritative := testRecord(6)
	authoritative.Statuses = model.StatusVector{model.StatusCompleted, model.StatusUnlocked}
	require.NoError(t, durable.Save(authoritative))

	// 本会话的版本 5 过旧，被拒后整体采纳权威向量
	svc.SaveOptimistic(ctx, testRecord(5), "session-a")
	svc.FlushPending(ctx)

	cached, _ := cache.Get(ctx, 1, 7)
	require.NotNil(t, cached)
	assert.Equal(t, int64(6), cached.Version)
	assert.Equal(t, model.StatusVector{model.StatusCompleted, model.StatusUnlocked}, cached.Statuses)

	// 采纳后的广播不带发起会话，推给所有订阅者
	last := publisher.last()
	assert.Equal(t, "", last.origin)
	assert.Equal(t, int64(6), last.record.Version)
}

func TestSyncUnavailableAfterRetryBudget(t *testing.T) {
	ctx := context.Background()
	durable := newMemDurable()
	durable.failing = true
	svc := NewSyncService(nil, durable, nil, 2)

	svc.SaveOptimistic(ctx, testRecord(2), "")
	svc.FlushPending(ctx)
	assert.NoError(t, svc.Status(1, 7), "一次失败还在预算内")

	svc.FlushPending(ctx)
	assert.ErrorIs(t, svc.Status(1, 7), util.ErrSyncUnavailable)

	// 失败的写入留在队列里，连通恢复后重新可用
	durable.failing = false
	svc.FlushPending(ctx)
	assert.NoError(t, svc.Status(1, 7))

	stored, err := durable.Get(1, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stored.Version)
}
