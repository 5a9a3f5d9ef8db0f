package service

import (
	"tokengate_backend/internal/model"
	"tokengate_backend/internal/repository"
	"tokengate_backend/internal/util"
	"tokengate_backend/pkg/logger"

	"go.uber.org/zap"
)

// BountyService 悬赏提交与奖励。参与分每次提交入账一次（受上限约束），
// 名次加成由管理员评定，对同一学员同一悬赏最多发放一次。
type BountyService struct {
	BountyRepo *repository.BountyRepository
	XP         *XPService
}

func NewBountyService(bountyRepo *repository.BountyRepository, xp *XPService) *BountyService {
	return &BountyService{
		BountyRepo: bountyRepo,
		XP:         xp,
	}
}

func (s *BountyService) ListActive() ([]model.Bounty, error) {
	return s.BountyRepo.ListActive()
}

type SubmissionResult struct {
	Submission *model.BountySubmission `json:"submission"`
	XPAwarded  int                     `json:"xpAwarded"`
}

// Submit 记录提交并入账参与分。超出该悬赏的提交上限时整体拒绝，
// 不产生提交记录也不产生流水。
func (s *BountyService) Submit(userID uint, slug, submitURL, note string) (*SubmissionResult, error) {
	bounty, err := s.BountyRepo.FindBySlug(slug)
	if err != nil {
		return nil, util.ErrBountyNotFound
	}
	if !bounty.Active {
		return nil, util.ErrBountyInactive
	}

	count, err := s.BountyRepo.CountSubmissions(bounty.ID, userID)
	if err != nil {
		return nil, err
	}
	if count >= int64(bounty.MaxSubmissions) {
		return nil, util.ErrSubmissionCapExceeded
	}

	entry, err := s.XP.AwardBounty(userID, bounty, count+1)
	if err != nil {
		return nil, err
	}

	submission := &model.BountySubmission{
		BountyID:  bounty.ID,
		UserID:    userID,
		SubmitURL: submitURL,
		Note:      note,
	}
	if err := s.BountyRepo.CreateSubmission(submission); err != nil {
		return nil, err
	}

	return &SubmissionResult{
		Submission: submission,
		XPAwarded:  entry.Amount,
	}, nil
}

// AwardRank 管理员评定名次（1/2/3）。加成入账成功后才落名次。
func (s *BountyService) AwardRank(slug string, submissionID uint, rank int) (*SubmissionResult, error) {
	bounty, err := s.BountyRepo.FindBySlug(slug)
	if err != nil {
		return nil, util.ErrBountyNotFound
	}

	submission, err := s.BountyRepo.FindSubmission(submissionID)
	if err != nil || submission.BountyID != bounty.ID {
		return nil, util.ErrBountyNotFound
	}

	ranked, err := s.BountyRepo.HasRankedBonus(bounty.ID, submission.UserID)
	if err != nil {
		return nil, err
	}
	if ranked {
		return nil, util.ErrDuplicateSource
	}

	entry, err := s.XP.AwardBountyRank(submission.UserID, bounty, rank)
	if err != nil {
		return nil, err
	}

	submission.Rank = rank
	submission.RankedOnce = true
	if err := s.BountyRepo.SaveSubmission(submission); err != nil {
		logger.Log.Error("rank persisted partially: ledger entry exists",
			zap.Uint("submissionId", submission.ID), zap.Error(err))
		return nil, err
	}

	return &SubmissionResult{
		Submission: submission,
		XPAwarded:  entry.Amount,
	}, nil
}

func (s *BountyService) ListSubmissions(slug string) ([]model.BountySubmission, error) {
	bounty, err := s.BountyRepo.FindBySlug(slug)
	if err != nil {
		return nil, util.ErrBountyNotFound
	}
	return s.BountyRepo.ListSubmissions(bounty.ID)
}
