package service

import (
	"context"
	"student_control_backend/internal/model"
	"student_control_backend/internal/repository"
)

// StudentSource 上游LMS的只读访问面，生产实现是 repository.LMSRepository
type StudentSource interface {
	Profile(ctx context.Context, studentID uint) (*model.SourceProfile, error)
	ActiveCourses(ctx context.Context, studentID uint) ([]model.SourceEnrollment, error)
	AllLessons(ctx context.Context, studentID uint) ([]model.SourceLesson, error)
	AllQuizzes(ctx context.Context, studentID uint) ([]model.SourceQuiz, error)
	RecentLessons(ctx context.Context, studentID uint, limit int) ([]model.SourceLessonDetail, error)
	RecentQuizzes(ctx context.Context, studentID uint, limit int) ([]model.SourceQuizDetail, error)
	LastAccess(ctx context.Context, studentID uint) (int64, error)
	Course(ctx context.Context, courseID uint) (*model.SourceCourse, error)
	AllStudentIDs(ctx context.Context) ([]uint, error)
	AllCourses(ctx context.Context) ([]model.SourceCourse, error)
}

// CacheStore 缓存表操作面，生产实现是 repository.CacheRepository
type CacheStore interface {
	EnsureSchema() error
	Upsert(rec *model.StudentCache) error
	Get(studentID uint) (*model.StudentCache, error)
	Delete(studentID uint) error
	Truncate() error
	Query(q repository.StudentQuery) ([]model.StudentCache, int64, error)
	QueryIDs(f repository.StudentFilter) ([]uint, error)
}

// StudentRefresher 单学生刷新，批量控制器只依赖这一个动作
type StudentRefresher interface {
	RefreshOne(ctx context.Context, studentID uint) error
}
