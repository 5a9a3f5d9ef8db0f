package model

import "time"

// CredentialSnapshot 某一时刻学员持有的凭证层级快照。
// 核心不做持久化，每次访问控制评估都视为新鲜输入；
// 零值快照不满足任何门控层级（fail-closed）。
type CredentialSnapshot struct {
	Wallet     string        `json:"wallet"`
	Holds      map[Tier]bool `json:"holds"`
	ResolvedAt time.Time     `json:"resolvedAt"`
}

// Satisfies 判定快照是否满足课时的层级要求。open 永远满足；
// 高层级凭证覆盖低层级要求。
func (s CredentialSnapshot) Satisfies(required Tier) bool {
	if required == TierOpen {
		return true
	}
	for tier, held := range s.Holds {
		if held && tier.Rank() >= required.Rank() {
			return true
		}
	}
	return false
}
