package model

// Tier 课程访问层级，由链上凭证持仓决定
type Tier string

const (
	TierOpen   Tier = "open"   // 无需凭证
	TierHolder Tier = "holder" // 持有基础凭证
	TierElite  Tier = "elite"  // 持有进阶凭证 / DAO 成员
)

var tierRank = map[Tier]int{
	TierOpen:   0,
	TierHolder: 1,
	TierElite:  2,
}

// Rank 层级次序，open < holder < elite
func (t Tier) Rank() int {
	return tierRank[t]
}

func (t Tier) Valid() bool {
	_, ok := tierRank[t]
	return ok
}

// swagger:model Course
type Course struct {
	BaseModel
	Slug        string   `gorm:"size:100;unique;not null" json:"slug"`
	Title       string   `gorm:"size:255;not null" json:"title"`
	Description string   `gorm:"type:text" json:"description"`
	Published   bool     `gorm:"default:true" json:"published"`
	Lessons     []Lesson `gorm:"foreignKey:CourseID" json:"lessons,omitempty"`
}

func (Course) TableName() string {
	return "courses"
}

// Lesson 课时定义，运行时只读。Position 为课程内顺序（从 0 开始）。
type Lesson struct {
	BaseModel
	CourseID uint           `gorm:"index;type:bigint unsigned;not null" json:"courseId"`
	Slug     string         `gorm:"size:100;not null" json:"slug"`
	Title    string         `gorm:"size:255;not null" json:"title"`
	Position int            `gorm:"not null" json:"position"`
	Tier     Tier           `gorm:"type:enum('open','holder','elite');default:'open'" json:"tier"`
	Questions []QuizQuestion `gorm:"foreignKey:LessonID" json:"questions,omitempty"`
}

func (Lesson) TableName() string {
	return "lessons"
}

type QuizQuestion struct {
	BaseModel
	LessonID        uint         `gorm:"index;type:bigint unsigned;not null" json:"lessonId"`
	Position        int          `gorm:"default:0" json:"position"`
	Prompt          string       `gorm:"type:text;not null" json:"prompt"`
	CorrectOptionID uint         `gorm:"not null" json:"-"`
	Explanation     string       `gorm:"type:text" json:"explanation,omitempty"`
	Options         []QuizOption `gorm:"foreignKey:QuestionID" json:"options,omitempty"`
}

func (QuizQuestion) TableName() string {
	return "quiz_questions"
}

type QuizOption struct {
	BaseModel
	QuestionID uint   `gorm:"index;type:bigint unsigned;not null" json:"questionId"`
	Position   int    `gorm:"default:0" json:"position"`
	Text       string `gorm:"type:text;not null" json:"text"`
}

func (QuizOption) TableName() string {
	return "quiz_options"
}
