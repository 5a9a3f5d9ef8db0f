package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
	"tokengate_backend/internal/model"
	"tokengate_backend/internal/util"
	"tokengate_backend/pkg/logger"
	"tokengate_backend/pkg/monitoring"

	"github.com/avast/retry-go"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DurableStore 权威进度存储契约，*repository.ProgressRepository 是生产实现。
// 写入按版本做 last-writer-wins，过旧写入报 ErrStaleWrite。
type DurableStore interface {
	Get(userID, courseID uint) (*model.ProgressRecord, error)
	Save(record *model.ProgressRecord) error
}

// VectorCache 乐观本地态。读路径未命中返回 (nil, nil)。
type VectorCache interface {
	Get(ctx context.Context, userID, courseID uint) (*model.ProgressRecord, error)
	Set(ctx context.Context, record *model.ProgressRecord) error
}

// Publisher 向同一学员的其他会话推送整条向量
type Publisher interface {
	Publish(record *model.ProgressRecord, originSession string)
}

// RedisVectorCache VectorCache 的 Redis 实现
type RedisVectorCache struct {
	Redis *redis.Client
	TTL   time.Duration
}

func NewRedisVectorCache(rdb *redis.Client, ttl time.Duration) *RedisVectorCache {
	return &RedisVectorCache{Redis: rdb, TTL: ttl}
}

func vectorCacheKey(userID, courseID uint) string {
	return fmt.Sprintf("progress:%d:%d", userID, courseID)
}

func (c *RedisVectorCache) Get(ctx context.Context, userID, courseID uint) (*model.ProgressRecord, error) {
	raw, err := c.Redis.Get(ctx, vectorCacheKey(userID, courseID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var record model.ProgressRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func (c *RedisVectorCache) Set(ctx context.Context, record *model.ProgressRecord) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return c.Redis.Set(ctx, vectorCacheKey(record.UserID, record.CourseID), raw, c.TTL).Err()
}

type pendingWrite struct {
	record   *model.ProgressRecord
	origin   string
	failures uint
}

// SyncService 进度持久化与同步层。
//
// 写路径：本地（缓存）立即生效并广播（乐观更新），持久化写入排队，
// 同一 (学员, 课程) 的新写入直接顶替未落盘的旧写入（cancel-and-replace），
// 绝不把过期向量排在新向量后面重放。
//
// 冲刷：后台任务带退避重试；持久层报 ErrStaleWrite 时说明别的会话
// 已写入更新版本，此时重新加载权威向量、整体替换并广播。
// 连续失败超过预算后 Status 返回 ErrSyncUnavailable，由调用方上抛，
// 本地乐观态保持权威直到连通恢复，绝不静默吞掉。
type SyncService struct {
	Cache     VectorCache
	Durable   DurableStore
	Publisher Publisher

	maxRetries uint

	mu          sync.Mutex
	pending     map[string]*pendingWrite
	unavailable map[string]bool
}

func NewSyncService(cache VectorCache, durable DurableStore, publisher Publisher, maxRetries uint) *SyncService {
	return &SyncService{
		Cache:       cache,
		Durable:     durable,
		Publisher:   publisher,
		maxRetries:  maxRetries,
		pending:     make(map[string]*pendingWrite),
		unavailable: make(map[string]bool),
	}
}

func syncKey(userID, courseID uint) string {
	return fmt.Sprintf("%d:%d", userID, courseID)
}

// Load 先读乐观缓存，未命中回源权威存储并回填。
// 记录不存在时返回 gorm.ErrRecordNotFound，由进度引擎负责初始化。
func (s *SyncService) Load(ctx context.Context, userID, courseID uint) (*model.ProgressRecord, error) {
	if s.Cache != nil {
		record, err := s.Cache.Get(ctx, userID, courseID)
		if err != nil {
			logger.Log.Debug("progress cache read failed", zap.Error(err))
		} else if record != nil {
			return record, nil
		}
	}

	record, err := s.Durable.Get(userID, courseID)
	if err != nil {
		return nil, err
	}

	if s.Cache != nil {
		if err := s.Cache.Set(ctx, record); err != nil {
			logger.Log.Debug("progress cache prime failed", zap.Error(err))
		}
	}
	return record, nil
}

// SaveOptimistic 本地立即生效并广播，持久化写入入队等待冲刷。
// originSession 标记发起会话，广播时不回推给它。
func (s *SyncService) SaveOptimistic(ctx context.Context, record *model.ProgressRecord, originSession string) {
	if s.Cache != nil {
		if err := s.Cache.Set(ctx, record); err != nil {
			logger.Log.Warn("optimistic cache write failed", zap.Error(err))
		}
	}

	if s.Publisher != nil {
		s.Publisher.Publish(record, originSession)
	}

	s.mu.Lock()
	key := syncKey(record.UserID, record.CourseID)
	s.pending[key] = &pendingWrite{record: record, origin: originSession}
	monitoring.SyncPendingGauge.Set(float64(len(s.pending)))
	s.mu.Unlock()
}

// FlushPending 由后台调度器周期触发，把排队的向量落盘
func (s *SyncService) FlushPending(ctx context.Context) {
	s.mu.Lock()
	batch := make(map[string]*pendingWrite, len(s.pending))
	for key, write := range s.pending {
		batch[key] = write
		delete(s.pending, key)
	}
	monitoring.SyncPendingGauge.Set(0)
	s.mu.Unlock()

	for key, write := range batch {
		s.flushOne(ctx, key, write)
	}
}

func (s *SyncService) flushOne(ctx context.Context, key string, write *pendingWrite) {
	err := retry.Do(
		func() error {
			saveErr := s.Durable.Save(write.record)
			if errors.Is(saveErr, util.ErrStaleWrite) {
				return retry.Unrecoverable(saveErr)
			}
			return saveErr
		},
		retry.Attempts(3),
		retry.Delay(100*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			monitoring.SyncRetryCounter.Inc()
		}),
	)

	switch {
	case err == nil:
		monitoring.SyncWriteCounter.WithLabelValues("ok").Inc()
		s.mu.Lock()
		delete(s.unavailable, key)
		s.mu.Unlock()

	case errors.Is(err, util.ErrStaleWrite):
		// 别的会话已写入更新版本：整体采纳权威向量并广播
		monitoring.SyncWriteCounter.WithLabelValues("stale").Inc()
		logger.Log.Info("stale progress write superseded",
			zap.Uint("userId", write.record.UserID),
			zap.Uint("courseId", write.record.CourseID),
			zap.Int64("version", write.record.Version))
		s.adoptAuthoritative(ctx, write.record.UserID, write.record.CourseID)

	default:
		monitoring.SyncWriteCounter.WithLabelValues("failed").Inc()
		write.failures++
		logger.Log.Error("durable progress write failed",
			zap.Uint("userId", write.record.UserID),
			zap.Uint("courseId", write.record.CourseID),
			zap.Uint("failures", write.failures),
			zap.Error(err))

		s.mu.Lock()
		if write.failures >= s.maxRetries {
			s.unavailable[key] = true
		}
		// 期间若有更新的本地写入顶替，丢弃这条旧的
		if _, replaced := s.pending[key]; !replaced {
			s.pending[key] = write
			monitoring.SyncPendingGauge.Set(float64(len(s.pending)))
		}
		s.mu.Unlock()
	}
}

func (s *SyncService) adoptAuthoritative(ctx context.Context, userID, courseID uint) {
	record, err := s.Durable.Get(userID, courseID)
	if err != nil {
		logger.Log.Error("reload after stale write failed", zap.Error(err))
		return
	}

	if s.Cache != nil {
		if err := s.Cache.Set(ctx, record); err != nil {
			logger.Log.Debug("cache update after stale write failed", zap.Error(err))
		}
	}
	if s.Publisher != nil {
		s.Publisher.Publish(record, "")
	}

	s.mu.Lock()
	delete(s.unavailable, syncKey(userID, courseID))
	s.mu.Unlock()
}

// Status 持久化健康度：超出重试预算后报 ErrSyncUnavailable，
// 本地乐观态仍然有效，只是尚未被服务器确认。
func (s *SyncService) Status(userID, courseID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unavailable[syncKey(userID, courseID)] {
		return util.ErrSyncUnavailable
	}
	return nil
}

// HasPending 是否还有未落盘的写入（优雅停机前排空用）
func (s *SyncService) HasPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending) > 0
}

// NotFound 判定加载错误是否为“记录还不存在”
func NotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
