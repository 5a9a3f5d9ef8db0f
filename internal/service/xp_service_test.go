package service

import (
	"strings"
	"testing"
	"tokengate_backend/internal/model"
	"tokengate_backend/internal/repository"
	"tokengate_backend/internal/util"

	"github.com/stretchr/testify/assert"
)

// fakeLedger 内存版 LedgerStore，保持只追加语义
type fakeLedger struct {
	entries []model.XPLedgerEntry
}

func (f *fakeLedger) Append(entry *model.XPLedgerEntry) error {
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeLedger) Exists(userID uint, source string, attempt int) (bool, error) {
	for _, e := range f.entries {
		if e.UserID == userID && e.Source == source && e.Attempt == attempt {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeLedger) CountBySourcePrefix(userID uint, prefix string) (int64, error) {
	var count int64
	for _, e := range f.entries {
		if e.UserID == userID && strings.HasPrefix(e.Source, prefix) {
			count++
		}
	}
	return count, nil
}

func (f *fakeLedger) TotalFor(userID uint) (int64, error) {
	var total int64
	for _, e := range f.entries {
		if e.UserID == userID {
			total += int64(e.Amount)
		}
	}
	return total, nil
}

func (f *fakeLedger) ListFor(userID uint) ([]model.XPLedgerEntry, error) {
	var out []model.XPLedgerEntry
	for _, e := range f.entries {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeLedger) TopByTotal(limit int) ([]repository.LeaderboardRow, error) {
	return nil, nil
}

func TestAwardQuiz(t *testing.T) {
	ledger := &fakeLedger{}
	xp := NewXPService(ledger, 100)

	entry, err := xp.AwardQuiz(1, 10, 1, true)
	assert.NoError(t, err)
	assert.Equal(t, 100, entry.Amount)
	assert.Equal(t, "quiz:10", entry.Source)

	// 同一尝试内重复入账被拒，账本不变
	_, err = xp.AwardQuiz(1, 10, 1, true)
	assert.ErrorIs(t, err, util.ErrDuplicateSource)
	assert.Len(t, ledger.entries, 1)

	// 未完成的课时不具入账资格
	_, err = xp.AwardQuiz(1, 11, 1, false)
	assert.ErrorIs(t, err, util.ErrSourceNotEligible)
	assert.Len(t, ledger.entries, 1)

	// 重置后的新尝试可以重新入账
	entry, err = xp.AwardQuiz(1, 10, 2, true)
	assert.NoError(t, err)
	assert.Equal(t, 2, entry.Attempt)

	total, err := xp.Total(1)
	assert.NoError(t, err)
	assert.Equal(t, int64(200), total)
}

func TestAwardQuizTotalsAreFoldedPerUser(t *testing.T) {
	ledger := &fakeLedger{}
	xp := NewXPService(ledger, 100)

	_, err := xp.AwardQuiz(1, 10, 1, true)
	assert.NoError(t, err)
	_, err = xp.AwardQuiz(2, 10, 1, true)
	assert.NoError(t, err)

	total, err := xp.Total(1)
	assert.NoError(t, err)
	assert.Equal(t, int64(100), total)
}

func TestAwardBounty(t *testing.T) {
	ledger := &fakeLedger{}
	xp := NewXPService(ledger, 100)
	bounty := &model.Bounty{Slug: "build-a-dapp", ParticipationXP: 50, MaxSubmissions: 2}

	entry, err := xp.AwardBounty(1, bounty, 1)
	assert.NoError(t, err)
	assert.Equal(t, 50, entry.Amount)
	assert.Equal(t, "bounty:build-a-dapp#1", entry.Source)

	_, err = xp.AwardBounty(1, bounty, 2)
	assert.NoError(t, err)

	// 第三次提交超出上限，整体拒绝
	_, err = xp.AwardBounty(1, bounty, 3)
	assert.ErrorIs(t, err, util.ErrSubmissionCapExceeded)
	assert.Len(t, ledger.entries, 2)
}

func TestAwardBountyRank(t *testing.T) {
	ledger := &fakeLedger{}
	xp := NewXPService(ledger, 100)
	bounty := &model.Bounty{Slug: "build-a-dapp", FirstBonus: 300, SecondBonus: 200, ThirdBonus: 100}

	entry, err := xp.AwardBountyRank(1, bounty, 1)
	assert.NoError(t, err)
	assert.Equal(t, 300, entry.Amount)

	// 同一学员同一悬赏最多一次名次加成
	_, err = xp.AwardBountyRank(1, bounty, 2)
	assert.ErrorIs(t, err, util.ErrDuplicateSource)

	// 非法名次
	_, err = xp.AwardBountyRank(2, bounty, 4)
	assert.ErrorIs(t, err, util.ErrSourceNotEligible)
}
