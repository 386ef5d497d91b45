package model

// 上游LMS库的只读行类型。这些表不归本服务迁移，结构以LMS为准。

// SourceProfile 学生档案行
type SourceProfile struct {
	ID           uint   `json:"id"`
	DisplayName  string `json:"display_name"`
	Email        string `json:"email"`
	Username     string `json:"username"`
	RegisteredAt string `json:"registered_at"` // 保留源格式字符串
	LastLogin    int64  `json:"last_login"`    // epoch，0 表示无记录
}

// SourceEnrollment 在读课程报名行（已联表取课程名）
type SourceEnrollment struct {
	CourseID        uint   `json:"course_id"`
	CourseName      string `json:"course_name"`
	ProgressPercent int    `json:"progress_percent"`
	Status          string `json:"status"`
	StartTime       int64  `json:"start_time"`
}

// SourceLesson 课时完成行（无限定全集，只取聚合所需字段）
type SourceLesson struct {
	LessonID uint  `json:"lesson_id"`
	CourseID uint  `json:"course_id"`
	EndTime  int64 `json:"end_time"`
}

// SourceQuiz 测验行（无限定全集）。Timestamp 来自探测到的时间列，可能为 0
type SourceQuiz struct {
	QuizID    uint  `json:"quiz_id"`
	CourseID  uint  `json:"course_id"`
	Timestamp int64 `json:"timestamp"`
}

// SourceLessonDetail 近期课时明细（联表取标题）
type SourceLessonDetail struct {
	LessonID    uint   `json:"lesson_id"`
	CourseID    uint   `json:"course_id"`
	LessonTitle string `json:"lesson_title"`
	CourseTitle string `json:"course_title"`
	EndTime     int64  `json:"end_time"`
}

// SourceQuizDetail 近期测验明细（联表取标题）
type SourceQuizDetail struct {
	QuizID      uint   `json:"quiz_id"`
	CourseID    uint   `json:"course_id"`
	Title       string `json:"title"`
	CourseTitle string `json:"course_title"`
	Progress    string `json:"progress"`
	Status      string `json:"status"`
	CompletedAt string `json:"completed_at"` // 源格式，聚合时统一转epoch
}

// SourceCourse 课程行
type SourceCourse struct {
	ID     uint   `json:"id"`
	Title  string `json:"title"`
	Status string `json:"status"`
}
