package service

import (
	"testing"
	"tokengate_backend/internal/model"

	"github.com/stretchr/testify/assert"
)

func questionSet() []model.QuizQuestion {
	return []model.QuizQuestion{
		{BaseModel: model.BaseModel{ID: 1}, CorrectOptionID: 11},
		{BaseModel: model.BaseModel{ID: 2}, CorrectOptionID: 22},
		{BaseModel: model.BaseModel{ID: 3}, CorrectOptionID: 33},
		{BaseModel: model.BaseModel{ID: 4}, CorrectOptionID: 44},
	}
}

func TestGrade(t *testing.T) {
	tests := []struct {
		name    string
		answers map[uint]uint
		correct int
		passed  bool
	}{
		{
			name:    "all correct",
			answers: map[uint]uint{1: 11, 2: 22, 3: 33, 4: 44},
			correct: 4,
			passed:  true,
		},
		{
			name:    "three of four is exactly the threshold",
			answers: map[uint]uint{1: 11, 2: 22, 3: 33, 4: 40},
			correct: 3,
			passed:  true,
		},
		{
			name:    "two of four fails",
			answers: map[uint]uint{1: 11, 2: 22, 3: 30, 4: 40},
			correct: 2,
			passed:  false,
		},
		{
			name:    "missing answers count as wrong",
			answers: map[uint]uint{1: 11, 2: 22},
			correct: 2,
			passed:  false,
		},
		{
			name:    "empty submission",
			answers: map[uint]uint{},
			correct: 0,
			passed:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Grade(questionSet(), tt.answers)
			assert.Equal(t, tt.correct, result.Correct)
			assert.Equal(t, 4, result.Total)
			assert.Equal(t, tt.passed, result.Passed)
		})
	}
}

func TestGradeNoQuestions(t *testing.T) {
	result := Grade(nil, map[uint]uint{1: 11})
	assert.True(t, result.Passed)
	assert.Equal(t, 0, result.Total)
	assert.Equal(t, 0, result.Correct)
}

func TestGradeIsPure(t *testing.T) {
	questions := questionSet()
	answers := map[uint]uint{1: 11, 2: 22, 3: 33, 4: 44}

	first := Grade(questions, answers)
	second := Grade(questions, answers)
	assert.Equal(t, first, second)
}
