package service

import (
	"tokengate_backend/internal/model"
)

// PassThreshold 测验通过线，correct/total >= 0.75 视为通过
const PassThreshold = 0.75

type GradeResult struct {
	Correct int  `json:"correct"`
	Total   int  `json:"total"`
	Passed  bool `json:"passed"`
}

// Grade 对一份提交评分。纯函数，无 I/O。
// answers 为 questionID -> optionID；缺答按答错计，完整性由调用方把关。
// 零题测验定义为直接通过，避免除零落入未定义行为。
func Grade(questions []model.QuizQuestion, answers map[uint]uint) GradeResult {
	total := len(questions)
	if total == 0 {
		return GradeResult{Correct: 0, Total: 0, Passed: true}
	}

	correct := 0
	for _, question := range questions {
		if optionID, ok := answers[question.ID]; ok && optionID == question.CorrectOptionID {
			correct++
		}
	}

	return GradeResult{
		Correct: correct,
		Total:   total,
		Passed:  float64(correct)/float64(total) >= PassThreshold,
	}
}
