package service

import (
	"context"
	"errors"
	"tokengate_backend/internal/model"
	"tokengate_backend/internal/util"
	"tokengate_backend/pkg/logger"

	"go.uber.org/zap"
)

// CourseCatalog 课程目录契约，*CourseService 是生产实现
type CourseCatalog interface {
	GetCourse(slug string) (*model.Course, error)
}

// SnapshotResolver 凭证快照契约，*CredentialService 是生产实现
type SnapshotResolver interface {
	Resolve(ctx context.Context, wallet string) (model.CredentialSnapshot, error)
}

// ProgressSyncer 进度同步契约，*SyncService 是生产实现
type ProgressSyncer interface {
	Load(ctx context.Context, userID, courseID uint) (*model.ProgressRecord, error)
	SaveOptimistic(ctx context.Context, record *model.ProgressRecord, originSession string)
	Status(userID, courseID uint) error
}

// QuizRewarder 课时完成入账契约，*XPService 是生产实现
type QuizRewarder interface {
	AwardQuiz(userID, lessonID uint, attempt int, completed bool) (*model.XPLedgerEntry, error)
}

// ProgressionService 门控学习进度引擎的编排层：
// 加载目录与凭证快照，驱动状态机，乐观保存并触发经验值入账。
type ProgressionService struct {
	Catalog     CourseCatalog
	Credentials SnapshotResolver
	Sync        ProgressSyncer
	XP          QuizRewarder
}

func NewProgressionService(catalog CourseCatalog, credentials SnapshotResolver, sync ProgressSyncer, xp QuizRewarder) *ProgressionService {
	return &ProgressionService{
		Catalog:     catalog,
		Credentials: credentials,
		Sync:        sync,
		XP:          xp,
	}
}

type LessonView struct {
	Slug      string     `json:"slug"`
	Title     string     `json:"title"`
	Position  int        `json:"position"`
	Tier      model.Tier `json:"tier"`
	TierMet   bool       `json:"tierMet"`
	Status    string     `json:"status"`
	Questions int        `json:"questions"`
}

type ProgressView struct {
	CourseSlug     string       `json:"courseSlug"`
	Lessons        []LessonView `json:"lessons"`
	Version        int64        `json:"version"`
	Attempt        int          `json:"attempt"`
	CredentialOK   bool         `json:"credentialOk"` // false = 注册表不可达，按未持有处理
	SyncState      string       `json:"syncState"`    // synced / unsynced
}

type QuizOutcome struct {
	Grade            GradeResult  `json:"grade"`
	Transitioned     bool         `json:"transitioned"`
	AlreadyCompleted bool         `json:"alreadyCompleted"`
	XPAwarded        int          `json:"xpAwarded"`
	Progress         ProgressView `json:"progress"`
}

// resolveSnapshot 凭证解析失败时按未持有处理（fail-closed），请求不失败
func (s *ProgressionService) resolveSnapshot(ctx context.Context, wallet string) (model.CredentialSnapshot, bool) {
	snap, err := s.Credentials.Resolve(ctx, wallet)
	if err != nil {
		logger.Log.Warn("progress evaluated with fail-closed credentials",
			zap.String("wallet", wallet), zap.Error(err))
		return model.CredentialSnapshot{Wallet: wallet}, false
	}
	return snap, true
}

// loadOrInit 加载进度记录；首次观察到该学员时按快照初始化并乐观保存
func (s *ProgressionService) loadOrInit(ctx context.Context, userID uint, course *model.Course, snap model.CredentialSnapshot) (*model.ProgressRecord, error) {
	record, err := s.Sync.Load(ctx, userID, course.ID)
	if err == nil {
		// 目录在记录之后扩充过课时时，尾部补 Locked
		if len(record.Statuses) < len(course.Lessons) {
			grown := record.Statuses.Clone()
			for len(grown) < len(course.Lessons) {
				grown = append(grown, model.StatusLocked)
			}
			record.Statuses = grown
		}
		return record, nil
	}
	if !NotFound(err) {
		return nil, err
	}

	record = &model.ProgressRecord{
		UserID:   userID,
		CourseID: course.ID,
		Statuses: NewStatusVector(course.Lessons, snap),
		Version:  1,
		Attempt:  1,
	}
	s.Sync.SaveOptimistic(ctx, record, "")
	return record, nil
}

// GetProgress 读取并按当前快照推进解锁边界（新获得凭证后补解锁）
func (s *ProgressionService) GetProgress(ctx context.Context, userID uint, wallet, courseSlug, sessionID string) (*ProgressView, error) {
	course, err := s.Catalog.GetCourse(courseSlug)
	if err != nil {
		return nil, err
	}

	snap, credentialOK := s.resolveSnapshot(ctx, wallet)

	record, err := s.loadOrInit(ctx, userID, course, snap)
	if err != nil {
		return nil, err
	}

	advanced := AdvanceUnlocks(record.Statuses, course.Lessons, snap)
	if !statusesEqual(advanced, record.Statuses) {
		record.Statuses = advanced
		record.Version++
		s.Sync.SaveOptimistic(ctx, record, sessionID)
	}

	view := s.buildView(course, record, snap, credentialOK)
	return &view, nil
}

// SubmitQuiz 评分并驱动状态机。
// 非 Unlocked 课时提交返回 ErrInvalidTransition（已完成课时除外，
// 复习式重考允许评分但不再转移、不再入账）。
func (s *ProgressionService) SubmitQuiz(ctx context.Context, userID uint, wallet, courseSlug, lessonSlug string, answers map[uint]uint, sessionID string) (*QuizOutcome, error) {
	course, err := s.Catalog.GetCourse(courseSlug)
	if err != nil {
		return nil, err
	}

	index := -1
	for i, lesson := range course.Lessons {
		if lesson.Slug == lessonSlug {
			index = i
			break
		}
	}
	if index < 0 {
		return nil, util.ErrLessonNotFound
	}
	lesson := course.Lessons[index]

	snap, credentialOK := s.resolveSnapshot(ctx, wallet)

	record, err := s.loadOrInit(ctx, userID, course, snap)
	if err != nil {
		return nil, err
	}

	alreadyCompleted := record.Statuses[index] == model.StatusCompleted

	grade := Grade(lesson.Questions, answers)

	newStatuses, transitioned, err := ApplyGrade(record.Statuses, course.Lessons, index, grade, snap)
	if err != nil {
		return nil, err
	}

	outcome := &QuizOutcome{
		Grade:            grade,
		Transitioned:     transitioned,
		AlreadyCompleted: alreadyCompleted,
	}

	if transitioned {
		record.Statuses = newStatuses
		record.Version++
		s.Sync.SaveOptimistic(ctx, record, sessionID)

		entry, err := s.XP.AwardQuiz(userID, lesson.ID, record.Attempt, true)
		switch {
		case err == nil:
			outcome.XPAwarded = entry.Amount
		case errors.Is(err, util.ErrDuplicateSource):
			// 并发会话已入账过，幂等处理
			logger.Log.Info("quiz xp already credited",
				zap.Uint("userId", userID), zap.Uint("lessonId", lesson.ID))
		default:
			return nil, err
		}
	}

	outcome.Progress = s.buildView(course, record, snap, credentialOK)
	return outcome, nil
}

// Reset 管理员重置：从头重建整个向量（这是唯一的回退通道）。
// 重新解析快照，层级满足则第 0 课直接解锁；尝试序号递增，
// 此前的测验入账保持在账本里，新尝试可以重新获得。
func (s *ProgressionService) Reset(ctx context.Context, userID uint, wallet, courseSlug string) (*ProgressView, error) {
	course, err := s.Catalog.GetCourse(courseSlug)
	if err != nil {
		return nil, err
	}

	snap, credentialOK := s.resolveSnapshot(ctx, wallet)

	record, err := s.loadOrInit(ctx, userID, course, snap)
	if err != nil {
		return nil, err
	}

	record.Statuses = NewStatusVector(course.Lessons, snap)
	record.Attempt++
	record.Version++
	s.Sync.SaveOptimistic(ctx, record, "")

	logger.Log.Info("progress reset",
		zap.Uint("userId", userID),
		zap.String("course", courseSlug),
		zap.Int("attempt", record.Attempt))

	view := s.buildView(course, record, snap, credentialOK)
	return &view, nil
}

func (s *ProgressionService) buildView(course *model.Course, record *model.ProgressRecord, snap model.CredentialSnapshot, credentialOK bool) ProgressView {
	lessons := make([]LessonView, len(course.Lessons))
	for i, lesson := range course.Lessons {
		status := model.StatusLocked
		if i < len(record.Statuses) {
			status = record.Statuses[i]
		}
		lessons[i] = LessonView{
			Slug:      lesson.Slug,
			Title:     lesson.Title,
			Position:  lesson.Position,
			Tier:      lesson.Tier,
			TierMet:   snap.Satisfies(lesson.Tier),
			Status:    status.String(),
			Questions: len(lesson.Questions),
		}
	}

	syncState := "synced"
	if s.Sync.Status(record.UserID, record.CourseID) != nil {
		syncState = "unsynced"
	}

	return ProgressView{
		CourseSlug:   course.Slug,
		Lessons:      lessons,
		Version:      record.Version,
		Attempt:      record.Attempt,
		CredentialOK: credentialOK,
		SyncState:    syncState,
	}
}

func statusesEqual(a, b model.StatusVector) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
