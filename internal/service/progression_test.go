package service

import (
	"testing"
	"tokengate_backend/internal/model"
	"tokengate_backend/internal/util"

	"github.com/stretchr/testify/assert"
)

// 三课时课程：第 0 课 open，第 1 课 holder，第 2 课 elite
func gatedLessons() []model.Lesson {
	return []model.Lesson{
		{BaseModel: model.BaseModel{ID: 10}, Slug: "wallets", Position: 0, Tier: model.TierOpen},
		{BaseModel: model.BaseModel{ID: 11}, Slug: "tokens", Position: 1, Tier: model.TierHolder},
		{BaseModel: model.BaseModel{ID: 12}, Slug: "dao", Position: 2, Tier: model.TierElite},
	}
}

func snapshotWith(tiers ...model.Tier) model.CredentialSnapshot {
	holds := make(map[model.Tier]bool)
	for _, tier := range tiers {
		holds[tier] = true
	}
	return model.CredentialSnapshot{Wallet: "0xabc", Holds: holds}
}

func TestNewStatusVector(t *testing.T) {
	t.Run("open first lesson unlocks without credentials", func(t *testing.T) {
		vector := NewStatusVector(gatedLessons(), model.CredentialSnapshot{})
		assert.Equal(t, model.StatusVector{model.StatusUnlocked, model.StatusLocked, model.StatusLocked}, vector)
	})

	t.Run("tier gated first lesson stays locked without credentials", func(t *testing.T) {
		lessons := []model.Lesson{
			{Slug: "members-only", Position: 0, Tier: model.TierHolder},
			{Slug: "next", Position: 1, Tier: model.TierOpen},
		}
		vector := NewStatusVector(lessons, model.CredentialSnapshot{})
		assert.Equal(t, model.StatusVector{model.StatusLocked, model.StatusLocked}, vector)
	})
}

func TestAdvanceUnlocks(t *testing.T) {
	lessons := gatedLessons()

	tests := []struct {
		name   string
		vector model.StatusVector
		snap   model.CredentialSnapshot
		want   model.StatusVector
	}{
		{
			name:   "tier gate dominates sequence gate",
			vector: model.StatusVector{model.StatusCompleted, model.StatusLocked, model.StatusLocked},
			snap:   model.CredentialSnapshot{},
			want:   model.StatusVector{model.StatusCompleted, model.StatusLocked, model.StatusLocked},
		},
		{
			name:   "holder credential unlocks the frontier lesson",
			vector: model.StatusVector{model.StatusCompleted, model.StatusLocked, model.StatusLocked},
			snap:   snapshotWith(model.TierHolder),
			want:   model.StatusVector{model.StatusCompleted, model.StatusUnlocked, model.StatusLocked},
		},
		{
			name:   "at most one lesson unlocks per advance",
			vector: model.StatusVector{model.StatusCompleted, model.StatusLocked, model.StatusLocked},
			snap:   snapshotWith(model.TierElite),
			want:   model.StatusVector{model.StatusCompleted, model.StatusUnlocked, model.StatusLocked},
		},
		{
			name:   "incomplete predecessor blocks everything behind it",
			vector: model.StatusVector{model.StatusUnlocked, model.StatusLocked, model.StatusLocked},
			snap:   snapshotWith(model.TierElite),
			want:   model.StatusVector{model.StatusUnlocked, model.StatusLocked, model.StatusLocked},
		},
		{
			name:   "reached statuses never regress when credentials lapse",
			vector: model.StatusVector{model.StatusCompleted, model.StatusUnlocked, model.StatusLocked},
			snap:   model.CredentialSnapshot{},
			want:   model.StatusVector{model.StatusCompleted, model.StatusUnlocked, model.StatusLocked},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AdvanceUnlocks(tt.vector, lessons, tt.snap)
			assert.Equal(t, tt.want, got)
			assert.True(t, ValidateVector(got))
		})
	}
}

func TestAdvanceUnlocksDoesNotMutateInput(t *testing.T) {
	vector := model.StatusVector{model.StatusCompleted, model.StatusLocked, model.StatusLocked}
	AdvanceUnlocks(vector, gatedLessons(), snapshotWith(model.TierElite))
	assert.Equal(t, model.StatusLocked, vector[1])
}

func TestApplyGrade(t *testing.T) {
	lessons := gatedLessons()
	passed := GradeResult{Correct: 3, Total: 4, Passed: true}
	failed := GradeResult{Correct: 2, Total: 4, Passed: false}

	t.Run("pass completes and unlocks the next lesson", func(t *testing.T) {
		vector := model.StatusVector{model.StatusUnlocked, model.StatusLocked, model.StatusLocked}
		out, transitioned, err := ApplyGrade(vector, lessons, 0, passed, snapshotWith(model.TierHolder))
		assert.NoError(t, err)
		assert.True(t, transitioned)
		assert.Equal(t, model.StatusVector{model.StatusCompleted, model.StatusUnlocked, model.StatusLocked}, out)
	})

	t.Run("pass without the next tier leaves successor locked", func(t *testing.T) {
		vector := model.StatusVector{model.StatusUnlocked, model.StatusLocked, model.StatusLocked}
		out, transitioned, err := ApplyGrade(vector, lessons, 0, passed, model.CredentialSnapshot{})
		assert.NoError(t, err)
		assert.True(t, transitioned)
		assert.Equal(t, model.StatusVector{model.StatusCompleted, model.StatusLocked, model.StatusLocked}, out)
	})

	t.Run("fail leaves the vector untouched", func(t *testing.T) {
		vector := model.StatusVector{model.StatusUnlocked, model.StatusLocked, model.StatusLocked}
		out, transitioned, err := ApplyGrade(vector, lessons, 0, failed, snapshotWith(model.TierHolder))
		assert.NoError(t, err)
		assert.False(t, transitioned)
		assert.Equal(t, vector, out)
	})

	t.Run("grading a locked lesson is a usage error", func(t *testing.T) {
		vector := model.StatusVector{model.StatusUnlocked, model.StatusLocked, model.StatusLocked}
		_, transitioned, err := ApplyGrade(vector, lessons, 1, passed, snapshotWith(model.TierElite))
		assert.ErrorIs(t, err, util.ErrInvalidTransition)
		assert.False(t, transitioned)
	})

	t.Run("regrading a completed lesson is idempotent", func(t *testing.T) {
		vector := model.StatusVector{model.StatusCompleted, model.StatusUnlocked, model.StatusLocked}
		out, transitioned, err := ApplyGrade(vector, lessons, 0, passed, snapshotWith(model.TierHolder))
		assert.NoError(t, err)
		assert.False(t, transitioned)
		assert.Equal(t, vector, out)
	})

	t.Run("index out of range", func(t *testing.T) {
		vector := model.StatusVector{model.StatusUnlocked, model.StatusLocked, model.StatusLocked}
		_, _, err := ApplyGrade(vector, lessons, 7, passed, model.CredentialSnapshot{})
		assert.ErrorIs(t, err, util.ErrLessonNotFound)
	})
}

func TestValidateVector(t *testing.T) {
	assert.True(t, ValidateVector(model.StatusVector{}))
	assert.True(t, ValidateVector(model.StatusVector{model.StatusCompleted, model.StatusUnlocked, model.StatusLocked}))
	assert.False(t, ValidateVector(model.StatusVector{model.StatusLocked, model.StatusUnlocked}))
	assert.False(t, ValidateVector(model.StatusVector{model.StatusCompleted, model.StatusLocked, model.StatusCompleted}))
}
