package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
	"tokengate_backend/internal/model"
	"tokengate_backend/internal/registry"
	"tokengate_backend/internal/util"
	"tokengate_backend/pkg/logger"
	"tokengate_backend/pkg/monitoring"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// gatedTiers 需要向注册表求证的层级；open 无需凭证
var gatedTiers = []model.Tier{model.TierHolder, model.TierElite}

// CredentialService 把已连接的钱包身份解析为层级快照。
// 解析失败时返回零值快照并报 ErrCredentialLookupFailed：
// 所有门控层级按未持有处理（fail-closed），绝不缓存陈旧的放行结果。
type CredentialService struct {
	Registry registry.Checker
	Redis    *redis.Client
	CacheTTL time.Duration
}

func NewCredentialService(checker registry.Checker, rdb *redis.Client, cacheTTL time.Duration) *CredentialService {
	return &CredentialService{
		Registry: checker,
		Redis:    rdb,
		CacheTTL: cacheTTL,
	}
}

func snapshotCacheKey(wallet string) string {
	return fmt.Sprintf("cred:snapshot:%s", wallet)
}

// Resolve 返回钱包当前的凭证快照。命中短 TTL 缓存时直接返回；
// 任意一次注册表查询失败都视为整体失败，不做部分放行。
func (s *CredentialService) Resolve(ctx context.Context, wallet string) (model.CredentialSnapshot, error) {
	if cached, ok := s.fromCache(ctx, wallet); ok {
		monitoring.CredentialLookupCounter.WithLabelValues("hit").Inc()
		return cached, nil
	}

	snap := model.CredentialSnapshot{
		Wallet:     wallet,
		Holds:      make(map[model.Tier]bool, len(gatedTiers)),
		ResolvedAt: time.Now(),
	}

	for _, tier := range gatedTiers {
		holds, err := s.Registry.CheckHolds(ctx, wallet, tier)
		if err != nil {
			monitoring.CredentialLookupCounter.WithLabelValues("failed").Inc()
			logger.Log.Warn("credential lookup failed, failing closed",
				zap.String("wallet", wallet),
				zap.String("tier", string(tier)),
				zap.Error(err))
			return model.CredentialSnapshot{Wallet: wallet}, util.ErrCredentialLookupFailed
		}
		snap.Holds[tier] = holds
	}

	monitoring.CredentialLookupCounter.WithLabelValues("resolved").Inc()
	s.toCache(ctx, wallet, snap)
	return snap, nil
}

// Invalidate 断开重连时清掉缓存，强制下次重新解析
func (s *CredentialService) Invalidate(ctx context.Context, wallet string) {
	if s.Redis == nil {
		return
	}
	s.Redis.Del(ctx, snapshotCacheKey(wallet))
}

func (s *CredentialService) fromCache(ctx context.Context, wallet string) (model.CredentialSnapshot, bool) {
	if s.Redis == nil || s.CacheTTL <= 0 {
		return model.CredentialSnapshot{}, false
	}

	raw, err := s.Redis.Get(ctx, snapshotCacheKey(wallet)).Result()
	if err != nil {
		return model.CredentialSnapshot{}, false
	}

	var snap model.CredentialSnapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return model.CredentialSnapshot{}, false
	}
	return snap, true
}

func (s *CredentialService) toCache(ctx context.Context, wallet string, snap model.CredentialSnapshot) {
	if s.Redis == nil || s.CacheTTL <= 0 {
		return
	}

	raw, err := json.Marshal(snap)
	if err != nil {
		return
	}
	if err := s.Redis.Set(ctx, snapshotCacheKey(wallet), raw, s.CacheTTL).Err(); err != nil {
		logger.Log.Debug("credential cache write failed", zap.Error(err))
	}
}
