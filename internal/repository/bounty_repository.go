package repository

import (
	"tokengate_backend/internal/model"

	"gorm.io/gorm"
)

type BountyRepository struct {
	DB *gorm.DB
}

func NewBountyRepository(db *gorm.DB) *BountyRepository {
	return &BountyRepository{DB: db}
}

func (r *BountyRepository) FindBySlug(slug string) (*model.Bounty, error) {
	var bounty model.Bounty
	err := r.DB.Where("slug = ?", slug).First(&bounty).Error
	if err != nil {
		return nil, err
	}
	return &bounty, nil
}

func (r *BountyRepository) ListActive() ([]model.Bounty, error) {
	var bounties []model.Bounty
	err := r.DB.Where("active = ?", true).Order("id ASC").Find(&bounties).Error
	return bounties, err
}

func (r *BountyRepository) CreateSubmission(sub *model.BountySubmission) error {
	return r.DB.Create(sub).Error
}

func (r *BountyRepository) CountSubmissions(bountyID, userID uint) (int64, error) {
	var count int64
	err := r.DB.Model(&model.BountySubmission{}).
		Where("bounty_id = ? AND user_id = ?", bountyID, userID).
		Count(&count).Error
	return count, err
}

func (r *BountyRepository) ListSubmissions(bountyID uint) ([]model.BountySubmission, error) {
	var subs []model.BountySubmission
	err := r.DB.Where("bounty_id = ?", bountyID).Order("created_at ASC").Find(&subs).Error
	return subs, err
}

func (r *BountyRepository) FindSubmission(id uint) (*model.BountySubmission, error) {
	var sub model.BountySubmission
	err := r.DB.First(&sub, id).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *BountyRepository) SaveSubmission(sub *model.BountySubmission) error {
	return r.DB.Save(sub).Error
}

// HasRankedBonus 同一学员同一悬赏的名次加成最多发放一次
func (r *BountyRepository) HasRankedBonus(bountyID, userID uint) (bool, error) {
	var count int64
	err := r.DB.Model(&model.BountySubmission{}).
		Where("bounty_id = ? AND user_id = ? AND ranked_once = ?", bountyID, userID, true).
		Count(&count).Error
	return count > 0, err
}
