package service

import (
	"context"
	"errors"
	"testing"
	"tokengate_backend/internal/model"
	"tokengate_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCatalog struct {
	course *model.Course
}

func (f *fakeCatalog) GetCourse(slug string) (*model.Course, error) {
	if f.course != nil && f.course.Slug == slug {
		return f.course, nil
	}
	return nil, util.ErrCourseNotFound
}

type fakeResolver struct {
	snap model.CredentialSnapshot
	err  error
}

func (f *fakeResolver) Resolve(ctx context.Context, wallet string) (model.CredentialSnapshot, error) {
	if f.err != nil {
		return model.CredentialSnapshot{Wallet: wallet}, f.err
	}
	snap := f.snap
	snap.Wallet = wallet
	return snap, nil
}

func testCourse() *model.Course {
	return &model.Course{
		BaseModel: model.BaseModel{ID: 7},
		Slug:      "intro-to-web3",
		Title:     "Web3 入门",
		Lessons: []model.Lesson{
			{
				BaseModel: model.BaseModel{ID: 10}, CourseID: 7,
				Slug: "wallets", Position: 0, Tier: model.TierOpen,
				Questions: []model.QuizQuestion{
					{BaseModel: model.BaseModel{ID: 1}, CorrectOptionID: 11},
					{BaseModel: model.BaseModel{ID: 2}, CorrectOptionID: 22},
					{BaseModel: model.BaseModel{ID: 3}, CorrectOptionID: 33},
					{BaseModel: model.BaseModel{ID: 4}, CorrectOptionID: 44},
				},
			},
			{
				BaseModel: model.BaseModel{ID: 11}, CourseID: 7,
				Slug: "tokens", Position: 1, Tier: model.TierHolder,
				Questions: []model.QuizQuestion{
					{BaseModel: model.BaseModel{ID: 5}, CorrectOptionID: 55},
					{BaseModel: model.BaseModel{ID: 6}, CorrectOptionID: 66},
				},
			},
			{
				BaseModel: model.BaseModel{ID: 12}, CourseID: 7,
				Slug: "dao", Position: 2, Tier: model.TierElite,
			},
		},
	}
}

type progressionFixture struct {
	svc      *ProgressionService
	sync     *SyncService
	durable  *memDurable
	ledger   *fakeLedger
	resolver *fakeResolver
}

func newProgressionFixture(t *testing.T) *progressionFixture {
	t.Helper()
	durable := newMemDurable()
	syncSvc := NewSyncService(newMemCache(), durable, &recordingPublisher{}, 3)
	ledger := &fakeLedger{}
	resolver := &fakeResolver{}
	svc := NewProgressionService(
		&fakeCatalog{course: testCourse()},
		resolver,
		syncSvc,
		NewXPService(ledger, 100),
	)
	return &progressionFixture{
		svc:      svc,
		sync:     syncSvc,
		durable:  durable,
		ledger:   ledger,
		resolver: resolver,
	}
}

const (
	passingAnswers = iota
	failingAnswers
)

func lessonAnswers(kind int) map[uint]uint {
	if kind == passingAnswers {
		// 4 题对 3 题，恰好到通过线
		return map[uint]uint{1: 11, 2: 22, 3: 33, 4: 40}
	}
	return map[uint]uint{1: 11, 2: 22, 3: 30, 4: 40}
}

func TestGetProgressInitializesFirstVisit(t *testing.T) {
	f := newProgressionFixture(t)
	ctx := context.Background()

	view, err := f.svc.GetProgress(ctx, 1, "0xabc", "intro-to-web3", "")
	require.NoError(t, err)

	require.Len(t, view.Lessons, 3)
	assert.Equal(t, "unlocked", view.Lessons[0].Status)
	assert.Equal(t, "locked", view.Lessons[1].Status)
	assert.Equal(t, "locked", view.Lessons[2].Status)
	assert.Equal(t, int64(1), view.Version)
	assert.Equal(t, 1, view.Attempt)
	assert.True(t, view.CredentialOK)

	// 乐观写入冲刷后落盘
	f.sync.FlushPending(ctx)
	stored, err := f.durable.Get(1, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.Version)
}

func TestSubmitQuizPassCompletesAndCredits(t *testing.T) {
	f := newProgressionFixture(t)
	ctx := context.Background()

	outcome, err := f.svc.SubmitQuiz(ctx, 1, "0xabc", "intro-to-web3", "wallets", lessonAnswers(passingAnswers), "session-a")
	require.NoError(t, err)

	assert.True(t, outcome.Grade.Passed)
	assert.Equal(t, 3, outcome.Grade.Correct)
	assert.True(t, outcome.Transitioned)
	assert.Equal(t, 100, outcome.XPAwarded)
	assert.Equal(t, "completed", outcome.Progress.Lessons[0].Status)
	// 凭证不足，层级门槛压过顺序门槛，下一课保持锁定
	assert.Equal(t, "locked", outcome.Progress.Lessons[1].Status)
	assert.False(t, outcome.Progress.Lessons[1].TierMet)
}

func TestSubmitQuizPassUnlocksNextWithCredential(t *testing.T) {
	f := newProgressionFixture(t)
	f.resolver.snap = snapshotWith(model.TierHolder)
	ctx := context.Background()

	outcome, err := f.svc.SubmitQuiz(ctx, 1, "0xabc", "intro-to-web3", "wallets", lessonAnswers(passingAnswers), "")
	require.NoError(t, err)
	assert.Equal(t, "unlocked", outcome.Progress.Lessons[1].Status)
}

func TestSubmitQuizFailLeavesStateAndLedger(t *testing.T) {
	f := newProgressionFixture(t)
	ctx := context.Background()

	outcome, err := f.svc.SubmitQuiz(ctx, 1, "0xabc", "intro-to-web3", "wallets", lessonAnswers(failingAnswers), "")
	require.NoError(t, err)

	assert.False(t, outcome.Grade.Passed)
	assert.False(t, outcome.Transitioned)
	assert.Zero(t, outcome.XPAwarded)
	assert.Equal(t, "unlocked", outcome.Progress.Lessons[0].Status)
	assert.Empty(t, f.ledger.entries)
}

func TestSubmitQuizLockedLessonRejected(t *testing.T) {
	f := newProgressionFixture(t)
	ctx := context.Background()

	_, err := f.svc.SubmitQuiz(ctx, 1, "0xabc", "intro-to-web3", "tokens", map[uint]uint{5: 55, 6: 66}, "")
	assert.ErrorIs(t, err, util.ErrInvalidTransition)
	assert.Empty(t, f.ledger.entries)
}

func TestSubmitQuizUnknownLesson(t *testing.T) {
	f := newProgressionFixture(t)
	_, err := f.svc.SubmitQuiz(context.Background(), 1, "0xabc", "intro-to-web3", "no-such-lesson", nil, "")
	assert.ErrorIs(t, err, util.ErrLessonNotFound)
}

func TestSubmitQuizRetakeIsIdempotent(t *testing.T) {
	f := newProgressionFixture(t)
	ctx := context.Background()

	first, err := f.svc.SubmitQuiz(ctx, 1, "0xabc", "intro-to-web3", "wallets", lessonAnswers(passingAnswers), "")
	require.NoError(t, err)
	require.True(t, first.Transitioned)
	versionAfterFirst := first.Progress.Version

	retake, err := f.svc.SubmitQuiz(ctx, 1, "0xabc", "intro-to-web3", "wallets", lessonAnswers(passingAnswers), "")
	require.NoError(t, err)

	assert.True(t, retake.AlreadyCompleted)
	assert.False(t, retake.Transitioned)
	assert.Zero(t, retake.XPAwarded)
	assert.Equal(t, versionAfterFirst, retake.Progress.Version, "复习重考不产生新版本")
	assert.Len(t, f.ledger.entries, 1, "重考不重复入账")
}

func TestCredentialLookupFailureIsFailClosed(t *testing.T) {
	f := newProgressionFixture(t)
	f.resolver.err = util.ErrCredentialLookupFailed
	ctx := context.Background()

	view, err := f.svc.GetProgress(ctx, 1, "0xabc", "intro-to-web3", "")
	require.NoError(t, err, "凭证解析失败不应使请求失败")

	assert.False(t, view.CredentialOK)
	// open 课时不受影响，门控课时按未持有处理
	assert.Equal(t, "unlocked", view.Lessons[0].Status)
	assert.False(t, view.Lessons[1].TierMet)
}

func TestNewCredentialUnlocksOnNextRead(t *testing.T) {
	f := newProgressionFixture(t)
	ctx := context.Background()

	outcome, err := f.svc.SubmitQuiz(ctx, 1, "0xabc", "intro-to-web3", "wallets", lessonAnswers(passingAnswers), "")
	require.NoError(t, err)
	require.Equal(t, "locked", outcome.Progress.Lessons[1].Status)
	versionBefore := outcome.Progress.Version

	// 学员随后取得 holder 凭证，下一次读取补解锁
	f.resolver.snap = snapshotWith(model.TierHolder)

	view, err := f.svc.GetProgress(ctx, 1, "0xabc", "intro-to-web3", "")
	require.NoError(t, err)
	assert.Equal(t, "unlocked", view.Lessons[1].Status)
	assert.Greater(t, view.Version, versionBefore)
}

func TestResetRebuildsVectorAndBumpsAttempt(t *testing.T) {
	f := newProgressionFixture(t)
	ctx := context.Background()

	_, err := f.svc.SubmitQuiz(ctx, 1, "0xabc", "intro-to-web3", "wallets", lessonAnswers(passingAnswers), "")
	require.NoError(t, err)

	view, err := f.svc.Reset(ctx, 1, "0xabc", "intro-to-web3")
	require.NoError(t, err)

	assert.Equal(t, 2, view.Attempt)
	assert.Equal(t, "unlocked", view.Lessons[0].Status)
	assert.Equal(t, "locked", view.Lessons[1].Status)

	// 新尝试可以重新获得同一课时的入账
	outcome, err := f.svc.SubmitQuiz(ctx, 1, "0xabc", "intro-to-web3", "wallets", lessonAnswers(passingAnswers), "")
	require.NoError(t, err)
	assert.Equal(t, 100, outcome.XPAwarded)
	assert.Len(t, f.ledger.entries, 2)
}

func TestUnknownCourse(t *testing.T) {
	f := newProgressionFixture(t)
	_, err := f.svc.GetProgress(context.Background(), 1, "0xabc", "no-such-course", "")
	assert.True(t, errors.Is(err, util.ErrCourseNotFound))
}
