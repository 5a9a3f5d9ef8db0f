package model

// XPSourceKind 经验值来源类别
type XPSourceKind string

const (
	XPSourceQuiz   XPSourceKind = "quiz"
	XPSourceBounty XPSourceKind = "bounty"
)

// XPLedgerEntry 只追加的经验值流水。总分永远是流水折叠，不维护可变计数器。
// 测验来源在同一次课程尝试内最多入账一次，由 (user_id, source, attempt)
// 唯一索引兜底。
type XPLedgerEntry struct {
	BaseModel
	UserID  uint         `gorm:"uniqueIndex:idx_user_source_attempt;type:bigint unsigned;not null" json:"userId"`
	Source  string       `gorm:"uniqueIndex:idx_user_source_attempt;size:150;not null" json:"source"` // quiz:<lessonId> / bounty:<bountyId>#<n>
	Attempt int          `gorm:"uniqueIndex:idx_user_source_attempt;not null;default:1" json:"attempt"`
	Kind    XPSourceKind `gorm:"type:enum('quiz','bounty');not null" json:"kind"`
	Amount  int          `gorm:"not null" json:"amount"`
}

func (XPLedgerEntry) TableName() string {
	return "xp_ledger_entries"
}
