package service

import (
	"context"
	"errors"
	"student_control_backend/internal/model"
	"student_control_backend/internal/util"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func populatedSource() *fakeSource {
	return &fakeSource{
		profile: &model.SourceProfile{
			ID:           42,
			DisplayName:  "Ana Silva",
			Email:        "ana@example.com",
			Username:     "ana",
			RegisteredAt: "2023-05-01 09:00:00",
		},
		lastAccess: 1700000000,
		enrollments: []model.SourceEnrollment{
			{CourseID: 7, CourseName: "Go Basics", ProgressPercent: 40, Status: "in_progress", StartTime: 1690000000},
		},
		lessons: []model.SourceLesson{
			{LessonID: 1, CourseID: 7, EndTime: 1691000000},
			{LessonID: 2, CourseID: 9, EndTime: 1692000000},
			{LessonID: 3, CourseID: 9, EndTime: 1693000000},
		},
		quizzes: []model.SourceQuiz{
			{QuizID: 10, CourseID: 9, Timestamp: 1692500000},
			{QuizID: 11, CourseID: 12, Timestamp: 1694000000},
		},
		recentQuizzes: []model.SourceQuizDetail{
			{QuizID: 10, CourseID: 9, Title: "Quiz A", CourseTitle: "Old Course", Progress: "80%", Status: "passed", CompletedAt: "2023-08-20 12:00:00"},
		},
		recentLessons: []model.SourceLessonDetail{
			{LessonID: 3, CourseID: 9, LessonTitle: "Lesson C", CourseTitle: "Old Course", EndTime: 1693000000},
		},
		courses: map[uint]*model.SourceCourse{
			7: {ID: 7, Title: "Go Basics", Status: "publish"},
			9: {ID: 9, Title: "Old Course", Status: "publish"},
			// 12 已被删除
		},
	}
}

func TestRefreshOneAggregatesRecord(t *testing.T) {
	source := populatedSource()
	store := newFakeStore()
	svc := NewAggregationService(source, store, testConfig())

	err := svc.RefreshOne(context.Background(), 42)
	require.NoError(t, err)

	row, err := store.Get(42)
	require.NoError(t, err)
	require.NotNil(t, row)

	assert.Equal(t, uint(42), row.UserID)
	assert.Equal(t, "Ana Silva", row.FullName)
	assert.Equal(t, "ana@example.com", row.Email)
	assert.Equal(t, "2023-05-01 09:00:00", row.RegistrationDate)
	assert.Equal(t, int64(1700000000), row.LastAccessTimestamp)

	// 计数来自无限定全集，而非近期展示窗口
	assert.Equal(t, 3, row.AllLessonsCount)
	assert.Equal(t, 2, row.AllQuizzesCount)
	assert.False(t, row.UpdatedAt.IsZero())

	rec := row.Decode()

	require.Len(t, rec.Courses, 1)
	course := rec.Courses[0]
	assert.Equal(t, uint(7), course.CourseID)
	assert.Equal(t, model.CourseInProgress, course.Status)
	assert.Equal(t, "In Progress", course.StatusLabel)
	assert.Equal(t, "https://lms.example.com/courses/7", course.URL)
	assert.NotEqual(t, "N/A", course.EnrollmentDate)

	// 历史课程 = 触达过(7,9,12) − 在读(7)，按ID升序
	require.Len(t, rec.CourseHistory, 2)
	assert.Equal(t, uint(9), rec.CourseHistory[0].CourseID)
	assert.Equal(t, "Old Course", rec.CourseHistory[0].CourseName)
	assert.Equal(t, "publish", rec.CourseHistory[0].CourseStatus)
	assert.Equal(t, uint(12), rec.CourseHistory[1].CourseID)
	assert.Equal(t, "Course #12 (Removed)", rec.CourseHistory[1].CourseName)
	assert.Equal(t, "deleted", rec.CourseHistory[1].CourseStatus)

	require.Len(t, rec.Quizzes, 1)
	quiz := rec.Quizzes[0]
	assert.Equal(t, util.ToTimestamp("2023-08-20 12:00:00", time.UTC), quiz.CompletionTimestamp)
	assert.Equal(t, "2023-08-20 12:00", quiz.CompletionDate)

	require.Len(t, rec.Lessons, 1)
	lesson := rec.Lessons[0]
	assert.Equal(t, "https://lms.example.com/courses/9/lessons/3", lesson.LessonURL)
	assert.Equal(t, "https://lms.example.com/courses/9", lesson.CourseURL)
	assert.NotEqual(t, "N/A", lesson.CompletionDate)
}

func TestRefreshOneHistoryExcludesActiveCourses(t *testing.T) {
	source := populatedSource()
	store := newFakeStore()
	svc := NewAggregationService(source, store, testConfig())

	require.NoError(t, svc.RefreshOne(context.Background(), 42))

	row, _ := store.Get(42)
	rec := row.Decode()

	active := map[uint]bool{}
	for _, c := range rec.Courses {
		active[c.CourseID] = true
	}
	for _, h := range rec.CourseHistory {
		assert.False(t, active[h.CourseID], "course %d is both active and historical", h.CourseID)
	}
}

func TestRefreshOneDeletedUser(t *testing.T) {
	source := populatedSource()
	source.profile = nil
	store := newFakeStore()
	svc := NewAggregationService(source, store, testConfig())

	err := svc.RefreshOne(context.Background(), 42)
	require.NoError(t, err)

	row, _ := store.Get(42)
	require.NotNil(t, row)
	assert.Equal(t, "Removed user #42", row.FullName)
	assert.Empty(t, row.Email)
	assert.Empty(t, row.Username)
	// 历史数据仍然成行
	assert.Equal(t, 3, row.AllLessonsCount)
}

func TestRefreshOneIdempotent(t *testing.T) {
	source := populatedSource()
	store := newFakeStore()
	svc := NewAggregationService(source, store, testConfig())

	require.NoError(t, svc.RefreshOne(context.Background(), 42))
	first, _ := store.Get(42)

	require.NoError(t, svc.RefreshOne(context.Background(), 42))
	second, _ := store.Get(42)

	// 源数据不变时两次刷新产出相同行（UpdatedAt除外）
	first.UpdatedAt = second.UpdatedAt
	first.ID = second.ID
	assert.Equal(t, first, second)
}

func TestRefreshOneUpstreamError(t *testing.T) {
	source := populatedSource()
	source.profileErr = errors.New("connection refused")
	store := newFakeStore()
	svc := NewAggregationService(source, store, testConfig())

	err := svc.RefreshOne(context.Background(), 42)
	require.Error(t, err)

	row, _ := store.Get(42)
	assert.Nil(t, row, "failed refresh must not write a row")
}

// slowSource 卡住Profile直到上下文超时
type slowSource struct {
	*fakeSource
}

func (s *slowSource) Profile(ctx context.Context, studentID uint) (*model.SourceProfile, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestRefreshOneTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.Cache.StudentTimeout = 10 * time.Millisecond

	store := newFakeStore()
	svc := NewAggregationService(&slowSource{populatedSource()}, store, cfg)

	err := svc.RefreshOne(context.Background(), 42)
	assert.ErrorIs(t, err, util.ErrRefreshTimeout)
}

func TestRefreshMany(t *testing.T) {
	source := populatedSource()
	store := newFakeStore()
	svc := NewAggregationService(source, store, testConfig())

	succeeded, failed := svc.RefreshMany(context.Background(), []uint{1, 2, 3})
	assert.Equal(t, 3, succeeded)
	assert.Equal(t, 0, failed)

	source.profileErr = errors.New("gone")
	succeeded, failed = svc.RefreshMany(context.Background(), []uint{4, 5})
	assert.Equal(t, 0, succeeded)
	assert.Equal(t, 2, failed)
}
