package database

import (
	"fmt"
	"log"
	"tokengate_backend/internal/config"
	"tokengate_backend/internal/model"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func InitDB(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=Local",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.DBName,
		cfg.Charset,
		cfg.ParseTime,
	)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Info),
	})

	if err != nil {
		return nil, err
	}

	log.Println("Database connection established")

	err = db.AutoMigrate(
		&model.User{},
		&model.Course{},
		&model.Lesson{},
		&model.QuizQuestion{},
		&model.QuizOption{},
		&model.ProgressRecord{},
		&model.XPLedgerEntry{},
		&model.Bounty{},
		&model.BountySubmission{},
	)

	if err != nil {
		return nil, err
	}

	log.Println("Database migration completed")

	seedDemoCourse(db)
	seedDemoBounties(db)

	return db, nil
}

// seedDemoCourse 首次启动时写入一门示例课程：第 0 课 open，
// 后续课时逐级要求 holder / elite 凭证。
func seedDemoCourse(db *gorm.DB) {
	var count int64
	db.Model(&model.Course{}).Count(&count)
	if count > 0 {
		return
	}

	course := &model.Course{
		Slug:        "intro-to-web3",
		Title:       "Web3 入门",
		Description: "从钱包到智能合约的入门课程",
		Published:   true,
	}
	if err := db.Create(course).Error; err != nil {
		log.Printf("seed course failed: %v", err)
		return
	}

	lessons := []struct {
		slug  string
		title string
		tier  model.Tier
	}{
		{"wallets", "钱包与身份", model.TierOpen},
		{"tokens", "代币与凭证", model.TierHolder},
		{"dao", "DAO 治理", model.TierElite},
	}

	for i, l := range lessons {
		lesson := &model.Lesson{
			CourseID: course.ID,
			Slug:     l.slug,
			Title:    l.title,
			Position: i,
			Tier:     l.tier,
		}
		if err := db.Create(lesson).Error; err != nil {
			log.Printf("seed lesson failed: %v", err)
			continue
		}

		for q := 0; q < 4; q++ {
			question := &model.QuizQuestion{
				LessonID: lesson.ID,
				Position: q,
				Prompt:   fmt.Sprintf("%s 测验题 %d", l.title, q+1),
			}
			db.Create(question)

			var correctID uint
			for o := 0; o < 4; o++ {
				option := &model.QuizOption{
					QuestionID: question.ID,
					Position:   o,
					Text:       fmt.Sprintf("选项 %d", o+1),
				}
				db.Create(option)
				if o == 0 {
					correctID = option.ID
				}
			}
			db.Model(question).Update("correct_option_id", correctID)
		}
	}
}

func seedDemoBounties(db *gorm.DB) {
	var count int64
	db.Model(&model.Bounty{}).Count(&count)
	if count > 0 {
		return
	}

	bounties := []model.Bounty{
		{Slug: "deploy-contract", Title: "部署一个合约", ParticipationXP: 50, MaxSubmissions: 3, FirstBonus: 300, SecondBonus: 200, ThirdBonus: 100, Active: true},
		{Slug: "write-tutorial", Title: "撰写教程", ParticipationXP: 80, MaxSubmissions: 2, FirstBonus: 500, SecondBonus: 300, ThirdBonus: 150, Active: true},
	}
	for _, b := range bounties {
		db.Create(&b)
	}
}
