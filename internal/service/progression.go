package service

import (
	"tokengate_backend/internal/model"
	"tokengate_backend/internal/util"
)

// 课时状态机的纯转移规则。调用方（ProgressionService）负责加载/保存，
// 这里只在副本上计算新的状态向量：
//
//	Locked -> Unlocked   前驱已完成（或为第 0 课）且层级要求满足
//	Unlocked -> Completed 测验通过
//
// 状态只会前进，回退只能通过管理员重置重建整个向量。

// NewStatusVector 首次观察到学员时的初始向量：全部 Locked，
// 随后按快照推进解锁边界（第 0 课层级满足则解锁）。
func NewStatusVector(lessons []model.Lesson, snap model.CredentialSnapshot) model.StatusVector {
	vector := make(model.StatusVector, len(lessons))
	for i := range vector {
		vector[i] = model.StatusLocked
	}
	return AdvanceUnlocks(vector, lessons, snap)
}

// AdvanceUnlocks 推进解锁边界。严格按索引升序，只有紧跟最高已完成
// 课时的那一课可以解锁，且其层级要求必须被快照满足；层级门槛
// 不满足时该课保持 Locked（层级门槛优先于顺序门槛）。
// 已解锁/已完成的课时永不回退，即使凭证在会话间丢失。
func AdvanceUnlocks(vector model.StatusVector, lessons []model.Lesson, snap model.CredentialSnapshot) model.StatusVector {
	out := vector.Clone()
	for i := range lessons {
		if out[i] != model.StatusLocked {
			continue
		}
		if i > 0 && out[i-1] != model.StatusCompleted {
			break // 前驱未完成，之后的索引也不可能解锁
		}
		if !snap.Satisfies(lessons[i].Tier) {
			break // 层级门槛：本课保持 Locked，边界停在这里
		}
		out[i] = model.StatusUnlocked
		break // 一次最多解锁一课，向量不允许出现空洞
	}
	return out
}

// ApplyGrade 将评分结果作用到第 index 课。
// 返回新向量与是否发生了 Unlocked -> Completed 转移。
// 已完成课时允许复习式重考：评分照常，但不再发生转移（幂等）。
// 对 Locked 课时评分是用法错误，返回 ErrInvalidTransition，状态不变。
func ApplyGrade(vector model.StatusVector, lessons []model.Lesson, index int, result GradeResult, snap model.CredentialSnapshot) (model.StatusVector, bool, error) {
	if index < 0 || index >= len(vector) {
		return vector, false, util.ErrLessonNotFound
	}

	switch vector[index] {
	case model.StatusCompleted:
		return vector, false, nil
	case model.StatusLocked:
		return vector, false, util.ErrInvalidTransition
	}

	if !result.Passed {
		return vector, false, nil
	}

	out := vector.Clone()
	out[index] = model.StatusCompleted
	out = AdvanceUnlocks(out, lessons, snap)
	return out, true, nil
}

// ValidateVector 校验不变量：不允许出现前面 Locked、后面已解锁/完成的空洞。
// 用于吞下远端推送前的防腐检查。
func ValidateVector(vector model.StatusVector) bool {
	seenLocked := false
	for _, status := range vector {
		if status == model.StatusLocked {
			seenLocked = true
			continue
		}
		if seenLocked {
			return false
		}
	}
	return true
}
