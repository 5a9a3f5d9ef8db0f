package service

import (
	"fmt"
	"tokengate_backend/internal/model"
	"tokengate_backend/internal/repository"
	"tokengate_backend/internal/util"
	"tokengate_backend/pkg/logger"

	"go.uber.org/zap"
)

// LedgerStore 经验值流水存储契约，*repository.XPRepository 是生产实现
type LedgerStore interface {
	Append(entry *model.XPLedgerEntry) error
	Exists(userID uint, source string, attempt int) (bool, error)
	CountBySourcePrefix(userID uint, prefix string) (int64, error)
	TotalFor(userID uint) (int64, error)
	ListFor(userID uint) ([]model.XPLedgerEntry, error)
	TopByTotal(limit int) ([]repository.LeaderboardRow, error)
}

// XPService 只追加的经验值账本。入账失败都是规则拒绝
// （重复来源 / 超出上限 / 来源不合格），状态不变，不重试。
type XPService struct {
	Ledger     LedgerStore
	QuizReward int
}

func NewXPService(ledger LedgerStore, quizReward int) *XPService {
	return &XPService{
		Ledger:     ledger,
		QuizReward: quizReward,
	}
}

func QuizSource(lessonID uint) string {
	return fmt.Sprintf("quiz:%d", lessonID)
}

func BountySource(slug string, n int64) string {
	return fmt.Sprintf("bounty:%s#%d", slug, n)
}

func BountyRankSource(slug string) string {
	return fmt.Sprintf("bounty:%s:rank", slug)
}

// AwardQuiz 课时完成的一次性入账。同一课程尝试内重复来源被拒，
// 重考不重复计分。
func (s *XPService) AwardQuiz(userID, lessonID uint, attempt int, completed bool) (*model.XPLedgerEntry, error) {
	if !completed {
		return nil, util.ErrSourceNotEligible
	}

	source := QuizSource(lessonID)
	exists, err := s.Ledger.Exists(userID, source, attempt)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, util.ErrDuplicateSource
	}

	entry := &model.XPLedgerEntry{
		UserID:  userID,
		Source:  source,
		Attempt: attempt,
		Kind:    model.XPSourceQuiz,
		Amount:  s.QuizReward,
	}
	if err := s.Ledger.Append(entry); err != nil {
		return nil, err
	}

	logger.Log.Info("xp credited",
		zap.Uint("userId", userID),
		zap.String("source", source),
		zap.Int("amount", entry.Amount))
	return entry, nil
}

// AwardBounty 悬赏参与分，受提交次数上限约束
func (s *XPService) AwardBounty(userID uint, bounty *model.Bounty, submissionSeq int64) (*model.XPLedgerEntry, error) {
	count, err := s.Ledger.CountBySourcePrefix(userID, fmt.Sprintf("bounty:%s#", bounty.Slug))
	if err != nil {
		return nil, err
	}
	if count >= int64(bounty.MaxSubmissions) {
		return nil, util.ErrSubmissionCapExceeded
	}

	entry := &model.XPLedgerEntry{
		UserID:  userID,
		Source:  BountySource(bounty.Slug, submissionSeq),
		Attempt: 1,
		Kind:    model.XPSourceBounty,
		Amount:  bounty.ParticipationXP,
	}
	if err := s.Ledger.Append(entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// AwardBountyRank 名次加成，同一学员同一悬赏最多一次
func (s *XPService) AwardBountyRank(userID uint, bounty *model.Bounty, rank int) (*model.XPLedgerEntry, error) {
	var bonus int
	switch rank {
	case 1:
		bonus = bounty.FirstBonus
	case 2:
		bonus = bounty.SecondBonus
	case 3:
		bonus = bounty.ThirdBonus
	default:
		return nil, util.ErrSourceNotEligible
	}

	source := BountyRankSource(bounty.Slug)
	exists, err := s.Ledger.Exists(userID, source, 1)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, util.ErrDuplicateSource
	}

	entry := &model.XPLedgerEntry{
		UserID:  userID,
		Source:  source,
		Attempt: 1,
		Kind:    model.XPSourceBounty,
		Amount:  bonus,
	}
	if err := s.Ledger.Append(entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *XPService) Total(userID uint) (int64, error) {
	return s.Ledger.TotalFor(userID)
}

func (s *XPService) Entries(userID uint) ([]model.XPLedgerEntry, error) {
	return s.Ledger.ListFor(userID)
}

type LeaderboardEntry struct {
	Rank   int    `json:"rank"`
	Name   string `json:"name"`
	Wallet string `json:"wallet"`
	XP     int64  `json:"xp"`
}

func (s *XPService) Leaderboard(limit int) ([]LeaderboardEntry, error) {
	rows, err := s.Ledger.TopByTotal(limit)
	if err != nil {
		return nil, err
	}

	leaderboard := make([]LeaderboardEntry, len(rows))
	for i, row := range rows {
		leaderboard[i] = LeaderboardEntry{
			Rank:   i + 1,
			Name:   row.Name,
			Wallet: row.Wallet,
			XP:     row.Total,
		}
	}
	return leaderboard, nil
}
