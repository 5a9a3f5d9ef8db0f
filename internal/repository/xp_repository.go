package repository

import (
	"tokengate_backend/internal/model"

	"gorm.io/gorm"
)

type XPRepository struct {
	DB *gorm.DB
}

func NewXPRepository(db *gorm.DB) *XPRepository {
	return &XPRepository{DB: db}
}

func (r *XPRepository) Append(entry *model.XPLedgerEntry) error {
	return r.DB.Create(entry).Error
}

func (r *XPRepository) Exists(userID uint, source string, attempt int) (bool, error) {
	var count int64
	err := r.DB.Model(&model.XPLedgerEntry{}).
		Where("user_id = ? AND source = ? AND attempt = ?", userID, source, attempt).
		Count(&count).Error
	return count > 0, err
}

func (r *XPRepository) CountBySourcePrefix(userID uint, prefix string) (int64, error) {
	var count int64
	err := r.DB.Model(&model.XPLedgerEntry{}).
		Where("user_id = ? AND source LIKE ?", userID, prefix+"%").
		Count(&count).Error
	return count, err
}

// TotalFor 总分是流水折叠，不是可变计数器
func (r *XPRepository) TotalFor(userID uint) (int64, error) {
	var total int64
	err := r.DB.Model(&model.XPLedgerEntry{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	return total, err
}

func (r *XPRepository) ListFor(userID uint) ([]model.XPLedgerEntry, error) {
	var entries []model.XPLedgerEntry
	err := r.DB.Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&entries).Error
	return entries, err
}

type LeaderboardRow struct {
	UserID uint
	Name   string
	Wallet string
	Total  int64
}

func (r *XPRepository) TopByTotal(limit int) ([]LeaderboardRow, error) {
	var rows []LeaderboardRow
	err := r.DB.Model(&model.XPLedgerEntry{}).
		Select("xp_ledger_entries.user_id as user_id, users.name as name, users.wallet_address as wallet, SUM(xp_ledger_entries.amount) as total").
		Joins("JOIN users ON users.id = xp_ledger_entries.user_id").
		Group("xp_ledger_entries.user_id, users.name, users.wallet_address").
		Order("total DESC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}
