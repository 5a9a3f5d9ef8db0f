package repository

import (
	"errors"
	"time"
	"tokengate_backend/internal/model"
	"tokengate_backend/internal/util"

	"gorm.io/gorm"
)

type ProgressRepository struct {
	DB *gorm.DB
}

func NewProgressRepository(db *gorm.DB) *ProgressRepository {
	return &ProgressRepository{DB: db}
}

func (r *ProgressRepository) Get(userID, courseID uint) (*model.ProgressRecord, error) {
	var record model.ProgressRecord
	err := r.DB.Where("user_id = ? AND course_id = ?", userID, courseID).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// Save 版本守卫的写入：只接受比当前记录更新的版本，旧写入返回
// ErrStaleWrite。整条记录作为单一单元覆盖，从不做字段级合并，
// 避免两个会话交错的部分写入造成状态序列出现空洞。
func (r *ProgressRepository) Save(record *model.ProgressRecord) error {
	record.SyncedAt = time.Now()

	return r.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.ProgressRecord{}).
			Where("user_id = ? AND course_id = ? AND version < ?",
				record.UserID, record.CourseID, record.Version).
			Updates(map[string]interface{}{
				"statuses":  record.Statuses,
				"version":   record.Version,
				"attempt":   record.Attempt,
				"synced_at": record.SyncedAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return nil
		}

		// 没有命中：要么记录不存在（首次写入），要么版本过旧
		var existing model.ProgressRecord
		err := tx.Where("user_id = ? AND course_id = ?", record.UserID, record.CourseID).
			First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(record).Error
		}
		if err != nil {
			return err
		}
		return util.ErrStaleWrite
	})
}
