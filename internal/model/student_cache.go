package model

import (
	"encoding/json"
	"strings"
	"time"
)

// CourseStatus 课程报名状态，取值来自LMS的user_courses.status
type CourseStatus string

const (
	CourseEnrolled   CourseStatus = "enrolled"
	CourseInProgress CourseStatus = "in_progress"
	CourseCompleted  CourseStatus = "completed"
	CourseExpired    CourseStatus = "expired"
	CourseUnknown    CourseStatus = "unknown"
)

// Label 转换状态码为展示文案，未知状态按单词格式化
func (s CourseStatus) Label() string {
	switch s {
	case CourseCompleted:
		return "Completed"
	case CourseInProgress:
		return "In Progress"
	case CourseEnrolled:
		return "Enrolled"
	case CourseExpired:
		return "Expired"
	default:
		label := strings.ReplaceAll(string(s), "_", " ")
		if label == "" {
			return label
		}
		return strings.ToUpper(label[:1]) + label[1:]
	}
}

// StudentCache 缓存表：每个学生一行，集合字段以JSON序列化存储
type StudentCache struct {
	ID                  uint      `gorm:"primaryKey;autoIncrement" json:"-"`
	UserID              uint      `gorm:"uniqueIndex;not null" json:"id"`
	FullName            string    `gorm:"size:255;default:''" json:"full_name"`
	Email               string    `gorm:"size:255;default:''" json:"email"`
	Username            string    `gorm:"size:255;default:''" json:"username"`
	RegistrationDate    string    `gorm:"size:255;default:''" json:"registration_date"` // 源系统原始格式，不二次解析
	LastAccessTimestamp int64     `gorm:"default:0" json:"last_access"`                 // 0 表示从未访问
	CoursesData         string    `gorm:"type:longtext" json:"-"`
	CourseHistoryData   string    `gorm:"type:longtext" json:"-"`
	QuizzesData         string    `gorm:"type:longtext" json:"-"`
	LessonsData         string    `gorm:"type:longtext" json:"-"`
	AllLessonsCount     int       `gorm:"default:0" json:"all_lessons_count"`
	AllQuizzesCount     int       `gorm:"default:0" json:"all_quizzes_count"`
	UpdatedAt           time.Time `json:"updated_at"`
}

func (StudentCache) TableName() string {
	return "student_control_cache"
}

// CourseEnrollment 当前在读课程，日期已预格式化
type CourseEnrollment struct {
	CourseID        uint         `json:"course_id"`
	CourseName      string       `json:"course_name"`
	ProgressPercent int          `json:"progress_percent"`
	Status          CourseStatus `json:"status"`
	StatusLabel     string       `json:"status_label"`
	URL             string       `json:"url"`
	StartTime       int64        `json:"start_time"`
	EnrollmentDate  string       `json:"enrollment_date"`
}

// HistoricalCourse 学生有过互动但已不在读的课程
type HistoricalCourse struct {
	CourseID     uint   `json:"course_id"`
	CourseName   string `json:"course_name"`
	CourseStatus string `json:"course_status"` // 课程生命周期状态，已删除时为 "deleted"
}

// QuizAttempt 近期测验记录（展示用，受recent窗口限制）
type QuizAttempt struct {
	QuizID              uint   `json:"quiz_id"`
	CourseID            uint   `json:"course_id"`
	Title               string `json:"title"`
	CourseTitle         string `json:"course_title"`
	Progress            string `json:"progress"`
	Status              string `json:"status"`
	CompletionTimestamp int64  `json:"completion_timestamp"`
	CompletionDate      string `json:"completion_date"`
}

// LessonCompletion 近期课时完成记录（展示用，受recent窗口限制）
type LessonCompletion struct {
	LessonID       uint   `json:"lesson_id"`
	CourseID       uint   `json:"course_id"`
	LessonTitle    string `json:"lesson_title"`
	CourseTitle    string `json:"course_title"`
	EndTime        int64  `json:"end_time"`
	CompletionDate string `json:"completion_date"`
	LessonURL      string `json:"lesson_url"`
	CourseURL      string `json:"course_url"`
}

// StudentRecord 解码后的完整缓存记录，集合字段只在这里解码一次
type StudentRecord struct {
	ID               uint               `json:"id"`
	FullName         string             `json:"full_name"`
	Email            string             `json:"email"`
	Username         string             `json:"username"`
	RegistrationDate string             `json:"registration_date"`
	LastAccess       int64              `json:"last_access"`
	Courses          []CourseEnrollment `json:"courses"`
	CourseHistory    []HistoricalCourse `json:"course_history"`
	Quizzes          []QuizAttempt      `json:"quizzes"`
	Lessons          []LessonCompletion `json:"lessons"`
	AllLessonsCount  int                `json:"all_lessons_count"`
	AllQuizzesCount  int                `json:"all_quizzes_count"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

// StudentListItem 列表页行：只解码课程集合，其余集合留在明细页
type StudentListItem struct {
	ID               uint               `json:"id"`
	FullName         string             `json:"full_name"`
	Email            string             `json:"email"`
	RegistrationDate string             `json:"registration_date"`
	LastAccess       int64              `json:"last_access"`
	EnrolledCourses  int                `json:"enrolled_courses"`
	Courses          []CourseEnrollment `json:"courses"`
}

func decodeInto(data string, out interface{}) error {
	if data == "" {
		return nil
	}
	return json.Unmarshal([]byte(data), out)
}

// Decode 将序列化行展开为类型化记录。损坏的集合字段按空集处理，不让
// 单条脏数据拖垮整页查询。
func (s *StudentCache) Decode() *StudentRecord {
	rec := &StudentRecord{
		ID:               s.UserID,
		FullName:         s.FullName,
		Email:            s.Email,
		Username:         s.Username,
		RegistrationDate: s.RegistrationDate,
		LastAccess:       s.LastAccessTimestamp,
		Courses:          []CourseEnrollment{},
		CourseHistory:    []HistoricalCourse{},
		Quizzes:          []QuizAttempt{},
		Lessons:          []LessonCompletion{},
		AllLessonsCount:  s.AllLessonsCount,
		AllQuizzesCount:  s.AllQuizzesCount,
		UpdatedAt:        s.UpdatedAt,
	}

	decodeInto(s.CoursesData, &rec.Courses)
	decodeInto(s.CourseHistoryData, &rec.CourseHistory)
	decodeInto(s.QuizzesData, &rec.Quizzes)
	decodeInto(s.LessonsData, &rec.Lessons)

	return rec
}

// DecodeListItem 列表行只需要课程集合
func (s *StudentCache) DecodeListItem() *StudentListItem {
	courses := []CourseEnrollment{}
	decodeInto(s.CoursesData, &courses)

	return &StudentListItem{
		ID:               s.UserID,
		FullName:         s.FullName,
		Email:            s.Email,
		RegistrationDate: s.RegistrationDate,
		LastAccess:       s.LastAccessTimestamp,
		EnrolledCourses:  len(courses),
		Courses:          courses,
	}
}
