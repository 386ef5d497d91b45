package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"student_control_backend/internal/config"
	"student_control_backend/internal/model"
	"student_control_backend/internal/util"
	"student_control_backend/pkg/logger"
	"student_control_backend/pkg/monitoring"
	"time"

	"go.uber.org/zap"
)

// AggregationService 把单个学生的多个源集合聚合成一条反规范化缓存记录
type AggregationService struct {
	Source      StudentSource
	Store       CacheStore
	recentLimit int
	timeout     time.Duration
	siteURL     string
	dateLayout  string
	loc         *time.Location
}

func NewAggregationService(source StudentSource, store CacheStore, cfg *config.Config) *AggregationService {
	loc, err := time.LoadLocation(cfg.LMS.Timezone)
	if err != nil || cfg.LMS.Timezone == "" {
		loc = time.Local
	}

	return &AggregationService{
		Source:      source,
		Store:       store,
		recentLimit: cfg.Cache.RecentLimit,
		timeout:     cfg.Cache.StudentTimeout,
		siteURL:     cfg.LMS.SiteURL,
		dateLayout:  cfg.LMS.DateFormat,
		loc:         loc,
	}
}

func (s *AggregationService) courseURL(courseID uint) string {
	return fmt.Sprintf("%s/courses/%d", s.siteURL, courseID)
}

func (s *AggregationService) lessonURL(courseID, lessonID uint) string {
	return fmt.Sprintf("%s/courses/%d/lessons/%d", s.siteURL, courseID, lessonID)
}

// RefreshOne 重算并整行覆盖一个学生的缓存记录。
// 档案已被上游删除时用占位名继续，历史数据仍然成行；
// 超出单学生时间额度时返回 ErrRefreshTimeout。
func (s *AggregationService) RefreshOne(ctx context.Context, studentID uint) error {
	start := time.Now()
	err := s.refreshOne(ctx, studentID)
	monitoring.RefreshDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		monitoring.RefreshCounter.WithLabelValues("failure").Inc()
		logger.Log.Error("student cache refresh failed",
			zap.Uint("student_id", studentID),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return err
	}

	monitoring.RefreshCounter.WithLabelValues("success").Inc()
	return nil
}

func (s *AggregationService) refreshOne(ctx context.Context, studentID uint) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	profile, err := s.Source.Profile(ctx, studentID)
	if err != nil {
		return s.classify(ctx, err)
	}

	// 用户被删除也要成行，占位名保住历史连续性
	fullName := fmt.Sprintf("Removed user #%d", studentID)
	email, username, registrationDate := "", "", ""
	if profile != nil {
		fullName = profile.DisplayName
		email = profile.Email
		username = profile.Username
		registrationDate = profile.RegisteredAt
	}

	lastAccess, err := s.Source.LastAccess(ctx, studentID)
	if err != nil {
		return s.classify(ctx, err)
	}

	enrollments, err := s.Source.ActiveCourses(ctx, studentID)
	if err != nil {
		return s.classify(ctx, err)
	}

	courses := make([]model.CourseEnrollment, 0, len(enrollments))
	activeIDs := make(map[uint]bool, len(enrollments))
	for _, e := range enrollments {
		status := model.CourseStatus(e.Status)
		courses = append(courses, model.CourseEnrollment{
			CourseID:        e.CourseID,
			CourseName:      e.CourseName,
			ProgressPercent: e.ProgressPercent,
			Status:          status,
			StatusLabel:     status.Label(),
			URL:             s.courseURL(e.CourseID),
			StartTime:       e.StartTime,
			EnrollmentDate:  util.FormatDateSafely(e.StartTime, s.dateLayout, s.loc),
		})
		activeIDs[e.CourseID] = true
	}

	// 全集只为两件事：精确计数 + 触达过的课程ID集合
	allLessons, err := s.Source.AllLessons(ctx, studentID)
	if err != nil {
		return s.classify(ctx, err)
	}
	allQuizzes, err := s.Source.AllQuizzes(ctx, studentID)
	if err != nil {
		return s.classify(ctx, err)
	}

	touched := make(map[uint]bool)
	for _, l := range allLessons {
		touched[l.CourseID] = true
	}
	for _, q := range allQuizzes {
		touched[q.CourseID] = true
	}

	history, err := s.buildCourseHistory(ctx, touched, activeIDs)
	if err != nil {
		return s.classify(ctx, err)
	}

	quizzes, err := s.recentQuizzes(ctx, studentID)
	if err != nil {
		return s.classify(ctx, err)
	}
	lessons, err := s.recentLessons(ctx, studentID)
	if err != nil {
		return s.classify(ctx, err)
	}

	rec := &model.StudentCache{
		UserID:              studentID,
		FullName:            fullName,
		Email:               email,
		Username:            username,
		RegistrationDate:    registrationDate,
		LastAccessTimestamp: lastAccess,
		CoursesData:         mustEncode(courses),
		CourseHistoryData:   mustEncode(history),
		QuizzesData:         mustEncode(quizzes),
		LessonsData:         mustEncode(lessons),
		AllLessonsCount:     len(allLessons),
		AllQuizzesCount:     len(allQuizzes),
		UpdatedAt:           time.Now(),
	}

	if err := s.Store.Upsert(rec); err != nil {
		return fmt.Errorf("%w: %v", util.ErrRefreshFailed, err)
	}
	return nil
}

// buildCourseHistory 历史课程 = 触达过的课程 − 当前在读课程。
// 课程对象已不存在时填充占位名，状态记为 deleted
func (s *AggregationService) buildCourseHistory(ctx context.Context, touched, active map[uint]bool) ([]model.HistoricalCourse, error) {
	ids := make([]uint, 0, len(touched))
	for id := range touched {
		if !active[id] {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	history := make([]model.HistoricalCourse, 0, len(ids))
	for _, courseID := range ids {
		course, err := s.Source.Course(ctx, courseID)
		if err != nil {
			return nil, err
		}

		if course == nil {
			history = append(history, model.HistoricalCourse{
				CourseID:     courseID,
				CourseName:   fmt.Sprintf("Course #%d (Removed)", courseID),
				CourseStatus: "deleted",
			})
			continue
		}

		history = append(history, model.HistoricalCourse{
			CourseID:     courseID,
			CourseName:   course.Title,
			CourseStatus: course.Status,
		})
	}
	return history, nil
}

func (s *AggregationService) recentQuizzes(ctx context.Context, studentID uint) ([]model.QuizAttempt, error) {
	details, err := s.Source.RecentQuizzes(ctx, studentID, s.recentLimit)
	if err != nil {
		return nil, err
	}

	quizzes := make([]model.QuizAttempt, 0, len(details))
	for _, d := range details {
		ts := util.ToTimestamp(d.CompletedAt, s.loc)
		quizzes = append(quizzes, model.QuizAttempt{
			QuizID:              d.QuizID,
			CourseID:            d.CourseID,
			Title:               d.Title,
			CourseTitle:         d.CourseTitle,
			Progress:            d.Progress,
			Status:              d.Status,
			CompletionTimestamp: ts,
			// 日期只在这里格式化一次，消费方直接取用
			CompletionDate: util.FormatDateSafely(ts, s.dateLayout, s.loc),
		})
	}
	return quizzes, nil
}

func (s *AggregationService) recentLessons(ctx context.Context, studentID uint) ([]model.LessonCompletion, error) {
	details, err := s.Source.RecentLessons(ctx, studentID, s.recentLimit)
	if err != nil {
		return nil, err
	}

	lessons := make([]model.LessonCompletion, 0, len(details))
	for _, d := range details {
		lessons = append(lessons, model.LessonCompletion{
			LessonID:       d.LessonID,
			CourseID:       d.CourseID,
			LessonTitle:    d.LessonTitle,
			CourseTitle:    d.CourseTitle,
			EndTime:        d.EndTime,
			CompletionDate: util.FormatDateSafely(d.EndTime, s.dateLayout, s.loc),
			LessonURL:      s.lessonURL(d.CourseID, d.LessonID),
			CourseURL:      s.courseURL(d.CourseID),
		})
	}
	return lessons, nil
}

// RefreshMany 逐个刷新，单个失败只计数不中断
func (s *AggregationService) RefreshMany(ctx context.Context, studentIDs []uint) (succeeded, failed int) {
	for _, id := range studentIDs {
		if err := s.RefreshOne(ctx, id); err != nil {
			failed++
			continue
		}
		succeeded++
	}
	return succeeded, failed
}

// classify 超时额度用尽时换成明确的超时错误
func (s *AggregationService) classify(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return util.ErrRefreshTimeout
	}
	return err
}

func mustEncode(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		// 集合类型都是纯数据结构，序列化不会失败
		return "[]"
	}
	return string(data)
}
