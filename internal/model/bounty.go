package model

// Bounty 悬赏任务定义。参与即得 ParticipationXP，
// 前三名的名次加成对同一学员同一悬赏最多发放一次。
type Bounty struct {
	BaseModel
	Slug            string `gorm:"size:100;unique;not null" json:"slug"`
	Title           string `gorm:"size:255;not null" json:"title"`
	Description     string `gorm:"type:text" json:"description"`
	ParticipationXP int    `gorm:"not null;default:50" json:"participationXp"`
	MaxSubmissions  int    `gorm:"not null;default:3" json:"maxSubmissions"`
	FirstBonus      int    `gorm:"not null;default:300" json:"firstBonus"`
	SecondBonus     int    `gorm:"not null;default:200" json:"secondBonus"`
	ThirdBonus      int    `gorm:"not null;default:100" json:"thirdBonus"`
	Active          bool   `gorm:"default:true" json:"active"`
}

func (Bounty) TableName() string {
	return "bounties"
}

type BountySubmission struct {
	BaseModel
	BountyID   uint   `gorm:"index;type:bigint unsigned;not null" json:"bountyId"`
	UserID     uint   `gorm:"index;type:bigint unsigned;not null" json:"userId"`
	SubmitURL  string `gorm:"size:500;not null" json:"submitUrl"`
	Note       string `gorm:"type:text" json:"note,omitempty"`
	Rank       int    `gorm:"default:0" json:"rank"` // 0 表示未获名次，1/2/3 为获奖名次
	RankedOnce bool   `gorm:"default:false" json:"-"`
}

func (BountySubmission) TableName() string {
	return "bounty_submissions"
}
