package util

import "errors"

var (
	ErrUserNotFound     = errors.New("用户不存在")
	ErrWalletRegistered = errors.New("该钱包地址已被绑定")
	ErrPermissionDenied = errors.New("permission denied")

	ErrCourseNotFound = errors.New("course not found")
	ErrLessonNotFound = errors.New("lesson not found")
	ErrBountyNotFound = errors.New("bounty not found")
	ErrBountyInactive = errors.New("bounty no longer active")

	// 凭证解析失败时一律按未持有处理（fail-closed）
	ErrCredentialLookupFailed = errors.New("credential lookup failed")

	// 状态机规则违例，立即拒绝，不重试
	ErrInvalidTransition = errors.New("lesson is not unlocked for grading")

	// 经验值入账拒绝
	ErrDuplicateSource      = errors.New("source already credited for this attempt")
	ErrSubmissionCapExceeded = errors.New("bounty submission cap exceeded")
	ErrSourceNotEligible    = errors.New("source not eligible for reward")

	// 同步层
	ErrStaleWrite      = errors.New("stale write rejected by progress store")
	ErrSyncUnavailable = errors.New("progress store unreachable after retries")
)
