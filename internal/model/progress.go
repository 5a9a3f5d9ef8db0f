package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// LessonStatus 单个课时的解锁状态，只能沿 Locked -> Unlocked -> Completed 前进
type LessonStatus int

const (
	StatusLocked LessonStatus = iota
	StatusUnlocked
	StatusCompleted
)

func (s LessonStatus) String() string {
	switch s {
	case StatusLocked:
		return "locked"
	case StatusUnlocked:
		return "unlocked"
	case StatusCompleted:
		return "completed"
	}
	return "unknown"
}

// StatusVector 一个学员在一门课程内的完整状态数组，作为单一整体持久化与同步
type StatusVector []LessonStatus

func (v StatusVector) Value() (driver.Value, error) {
	return json.Marshal(v)
}

func (v *StatusVector) Scan(value interface{}) error {
	switch data := value.(type) {
	case []byte:
		return json.Unmarshal(data, v)
	case string:
		return json.Unmarshal([]byte(data), v)
	}
	return errors.New("unsupported status vector source")
}

// Clone 拷贝副本，状态机永远在副本上计算
func (v StatusVector) Clone() StatusVector {
	out := make(StatusVector, len(v))
	copy(out, v)
	return out
}

// ProgressRecord (学员, 课程) 的进度记录。Version 单调递增，
// 持久层只接受比当前记录更新的写入。
type ProgressRecord struct {
	UUIDBase
	UserID   uint         `gorm:"uniqueIndex:idx_user_course;type:bigint unsigned;not null" json:"userId"`
	CourseID uint         `gorm:"uniqueIndex:idx_user_course;type:bigint unsigned;not null" json:"courseId"`
	Statuses StatusVector `gorm:"type:json" json:"statuses"`
	Version  int64        `gorm:"not null;default:0" json:"version"`
	Attempt  int          `gorm:"not null;default:1" json:"attempt"` // 管理员重置后递增
	SyncedAt time.Time    `json:"syncedAt"`
}

func (ProgressRecord) TableName() string {
	return "progress_records"
}
