package repository

import (
	"context"
	"fmt"
	"student_control_backend/internal/config"
	"student_control_backend/internal/model"
	"student_control_backend/internal/util"
	"sync"
	"time"

	"gorm.io/gorm"
)

// 测验表的时间列在不同LMS版本里叫法不一，逐个探测
var quizTimestampCandidates = []string{"timestamp", "time", "complete_time", "date", "completed_at", "end_time"}

// LMSRepository 上游LMS库的只读访问面。表前缀可配置，所有查询参数化
type LMSRepository struct {
	DB     *gorm.DB
	prefix string
	loc    *time.Location

	probeOnce sync.Once
	quizTsCol string
}

func NewLMSRepository(db *gorm.DB, cfg *config.LMSConfig, loc *time.Location) *LMSRepository {
	return &LMSRepository{
		DB:     db,
		prefix: cfg.TablePrefix,
		loc:    loc,
	}
}

func (r *LMSRepository) table(name string) string {
	return r.prefix + name
}

func upstream(err error) error {
	return fmt.Errorf("%w: %v", util.ErrUpstreamUnavailable, err)
}

// Profile 学生档案；用户已被删除时返回nil而非错误
func (r *LMSRepository) Profile(ctx context.Context, studentID uint) (*model.SourceProfile, error) {
	var row model.SourceProfile
	res := r.DB.WithContext(ctx).Raw(fmt.Sprintf(
		`SELECT id, display_name, email, username, registered_at, COALESCE(last_login, 0) AS last_login
		 FROM %s WHERE id = ?`, r.table("users")), studentID).Scan(&row)
	if res.Error != nil {
		return nil, upstream(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &row, nil
}

// ActiveCourses 在读课程报名，联表取课程名（课程被删时名字为空串）
func (r *LMSRepository) ActiveCourses(ctx context.Context, studentID uint) ([]model.SourceEnrollment, error) {
	var rows []model.SourceEnrollment
	err := r.DB.WithContext(ctx).Raw(fmt.Sprintf(
		`SELECT uc.course_id,
		        COALESCE(c.title, '') AS course_name,
		        COALESCE(uc.progress_percent, 0) AS progress_percent,
		        COALESCE(uc.status, 'unknown') AS status,
		        COALESCE(uc.start_time, 0) AS start_time
		 FROM %s uc
		 LEFT JOIN %s c ON c.id = uc.course_id
		 WHERE uc.user_id = ?
		 ORDER BY uc.course_id ASC`,
		r.table("user_courses"), r.table("courses")), studentID).Scan(&rows).Error
	if err != nil {
		return nil, upstream(err)
	}
	return rows, nil
}

// AllLessons 课时完成全集（无LIMIT），用于精确计数和触达课程集合
func (r *LMSRepository) AllLessons(ctx context.Context, studentID uint) ([]model.SourceLesson, error) {
	var rows []model.SourceLesson
	err := r.DB.WithContext(ctx).Raw(fmt.Sprintf(
		`SELECT lesson_id, course_id, COALESCE(end_time, 0) AS end_time
		 FROM %s WHERE user_id = ?
		 ORDER BY end_time DESC`, r.table("user_lessons")), studentID).Scan(&rows).Error
	if err != nil {
		return nil, upstream(err)
	}
	return rows, nil
}

// quizTimestampColumn 探测测验表可用的时间列，进程内只探测一次。
// 一个候选列都没有时返回空串，调用方以0时间戳降级
func (r *LMSRepository) quizTimestampColumn() string {
	r.probeOnce.Do(func() {
		var cols []struct {
			Field string `gorm:"column:Field"`
		}
		if err := r.DB.Raw("SHOW COLUMNS FROM " + r.table("user_quizzes")).Scan(&cols).Error; err != nil {
			return
		}

		present := make(map[string]bool, len(cols))
		for _, c := range cols {
			present[c.Field] = true
		}
		for _, candidate := range quizTimestampCandidates {
			if present[candidate] {
				r.quizTsCol = candidate
				return
			}
		}
	})
	return r.quizTsCol
}

// AllQuizzes 测验全集（无LIMIT）。时间列缺失时所有Timestamp为0
func (r *LMSRepository) AllQuizzes(ctx context.Context, studentID uint) ([]model.SourceQuiz, error) {
	tsCol := r.quizTimestampColumn()

	var query string
	if tsCol != "" {
		query = fmt.Sprintf(
			`SELECT quiz_id, course_id, COALESCE(%s, '') AS raw_ts
			 FROM %s WHERE user_id = ?
			 ORDER BY id DESC`, "`"+tsCol+"`", r.table("user_quizzes"))
	} else {
		query = fmt.Sprintf(
			`SELECT quiz_id, course_id, '' AS raw_ts
			 FROM %s WHERE user_id = ?
			 ORDER BY id DESC`, r.table("user_quizzes"))
	}

	var raw []struct {
		QuizID   uint
		CourseID uint
		RawTs    string
	}
	if err := r.DB.WithContext(ctx).Raw(query, studentID).Scan(&raw).Error; err != nil {
		return nil, upstream(err)
	}

	rows := make([]model.SourceQuiz, 0, len(raw))
	for _, q := range raw {
		rows = append(rows, model.SourceQuiz{
			QuizID:    q.QuizID,
			CourseID:  q.CourseID,
			Timestamp: util.ToTimestamp(q.RawTs, r.loc),
		})
	}
	return rows, nil
}

// RecentLessons 展示用近期课时，最近优先
func (r *LMSRepository) RecentLessons(ctx context.Context, studentID uint, limit int) ([]model.SourceLessonDetail, error) {
	var rows []model.SourceLessonDetail
	err := r.DB.WithContext(ctx).Raw(fmt.Sprintf(
		`SELECT ul.lesson_id, ul.course_id,
		        COALESCE(l.title, '') AS lesson_title,
		        COALESCE(c.title, '') AS course_title,
		        COALESCE(ul.end_time, 0) AS end_time
		 FROM %s ul
		 LEFT JOIN %s l ON l.id = ul.lesson_id
		 LEFT JOIN %s c ON c.id = ul.course_id
		 WHERE ul.user_id = ?
		 ORDER BY ul.end_time DESC
		 LIMIT ?`,
		r.table("user_lessons"), r.table("lessons"), r.table("courses")), studentID, limit).Scan(&rows).Error
	if err != nil {
		return nil, upstream(err)
	}
	return rows, nil
}

// RecentQuizzes 展示用近期测验，最近优先
func (r *LMSRepository) RecentQuizzes(ctx context.Context, studentID uint, limit int) ([]model.SourceQuizDetail, error) {
	var rows []model.SourceQuizDetail
	err := r.DB.WithContext(ctx).Raw(fmt.Sprintf(
		`SELECT uq.quiz_id, uq.course_id,
		        COALESCE(q.title, '') AS title,
		        COALESCE(c.title, '') AS course_title,
		        COALESCE(uq.progress, '') AS progress,
		        COALESCE(uq.status, '') AS status,
		        COALESCE(uq.created_at, '') AS completed_at
		 FROM %s uq
		 LEFT JOIN %s q ON q.id = uq.quiz_id
		 LEFT JOIN %s c ON c.id = uq.course_id
		 WHERE uq.user_id = ?
		 ORDER BY uq.id DESC
		 LIMIT ?`,
		r.table("user_quizzes"), r.table("quizzes"), r.table("courses")), studentID, limit).Scan(&rows).Error
	if err != nil {
		return nil, upstream(err)
	}
	return rows, nil
}

// LastAccess 最近一次活动：max(测验时间, 课时完成时间, 登录时间)。
// 三个信号都缺失时返回0，绝不编造
func (r *LMSRepository) LastAccess(ctx context.Context, studentID uint) (int64, error) {
	var last int64

	if tsCol := r.quizTimestampColumn(); tsCol != "" {
		var rawQuiz string
		err := r.DB.WithContext(ctx).Raw(fmt.Sprintf(
			"SELECT COALESCE(MAX(%s), '') FROM %s WHERE user_id = ?",
			"`"+tsCol+"`", r.table("user_quizzes")), studentID).Scan(&rawQuiz).Error
		if err != nil {
			return 0, upstream(err)
		}
		if ts := util.ToTimestamp(rawQuiz, r.loc); ts > last {
			last = ts
		}
	}

	var lessonMax int64
	err := r.DB.WithContext(ctx).Raw(fmt.Sprintf(
		"SELECT COALESCE(MAX(end_time), 0) FROM %s WHERE user_id = ?",
		r.table("user_lessons")), studentID).Scan(&lessonMax).Error
	if err != nil {
		return 0, upstream(err)
	}
	if lessonMax > last {
		last = lessonMax
	}

	var login int64
	err = r.DB.WithContext(ctx).Raw(fmt.Sprintf(
		"SELECT COALESCE(last_login, 0) FROM %s WHERE id = ?",
		r.table("users")), studentID).Scan(&login).Error
	if err != nil {
		return 0, upstream(err)
	}
	if login > last {
		last = login
	}

	return last, nil
}

// Course 课程行；已删除时返回nil
func (r *LMSRepository) Course(ctx context.Context, courseID uint) (*model.SourceCourse, error) {
	var row model.SourceCourse
	res := r.DB.WithContext(ctx).Raw(fmt.Sprintf(
		"SELECT id, title, status FROM %s WHERE id = ?", r.table("courses")), courseID).Scan(&row)
	if res.Error != nil {
		return nil, upstream(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &row, nil
}

// AllStudentIDs 学生名册：有任一课程报名或持有subscriber角色，
// 排除administrator/editor。角色走结构化成员表而非能力字符串匹配
func (r *LMSRepository) AllStudentIDs(ctx context.Context) ([]uint, error) {
	var ids []uint
	err := r.DB.WithContext(ctx).Raw(fmt.Sprintf(
		`SELECT DISTINCT u.id
		 FROM %s u
		 LEFT JOIN %s ur ON ur.user_id = u.id
		 LEFT JOIN %s uc ON uc.user_id = u.id
		 WHERE (uc.user_id IS NOT NULL OR ur.role = 'subscriber')
		   AND u.id NOT IN (SELECT user_id FROM %s WHERE role IN ('administrator', 'editor'))
		 ORDER BY u.id ASC`,
		r.table("users"), r.table("user_roles"), r.table("user_courses"), r.table("user_roles"))).Scan(&ids).Error
	if err != nil {
		return nil, upstream(err)
	}
	return ids, nil
}

// AllCourses 已发布课程，筛选下拉框用
func (r *LMSRepository) AllCourses(ctx context.Context) ([]model.SourceCourse, error) {
	var rows []model.SourceCourse
	err := r.DB.WithContext(ctx).Raw(fmt.Sprintf(
		`SELECT id, title, status FROM %s
		 WHERE status = 'publish'
		 ORDER BY title ASC`, r.table("courses"))).Scan(&rows).Error
	if err != nil {
		return nil, upstream(err)
	}
	return rows, nil
}
