package service

import (
	"context"
	"encoding/json"
	"student_control_backend/internal/model"
	"student_control_backend/internal/repository"
	"student_control_backend/internal/util"
	"student_control_backend/pkg/logger"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const (
	coursesCacheKey = "student_control:courses"
	coursesCacheTTL = 10 * time.Minute
)

// StudentQueryService 缓存表之上的查询引擎：列表、明细、课程下拉
type StudentQueryService struct {
	store  CacheStore
	source StudentSource
	rdb    *redis.Client
}

func NewStudentQueryService(store CacheStore, source StudentSource, rdb *redis.Client) *StudentQueryService {
	return &StudentQueryService{store: store, source: source, rdb: rdb}
}

// List 过滤+排序+分页的学生列表，total是分页前的命中总数。
// 无命中返回空列表而非错误
func (s *StudentQueryService) List(q repository.StudentQuery) ([]model.StudentListItem, int64, error) {
	rows, total, err := s.store.Query(q)
	if err != nil {
		return nil, 0, err
	}

	items := make([]model.StudentListItem, 0, len(rows))
	for i := range rows {
		// 每行只解码一次
		items = append(items, *rows[i].DecodeListItem())
	}
	return items, total, nil
}

// Detail 单个学生的完整缓存记录
func (s *StudentQueryService) Detail(studentID uint) (*model.StudentRecord, error) {
	rec, err := s.store.Get(studentID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, util.ErrStudentNotFound
	}
	return rec.Decode(), nil
}

// Courses 课程下拉选项。经redis缓存，redis不可用时直接回源
func (s *StudentQueryService) Courses(ctx context.Context) ([]model.SourceCourse, error) {
	if s.rdb != nil {
		cached, err := s.rdb.Get(ctx, coursesCacheKey).Result()
		if err == nil {
			var courses []model.SourceCourse
			if json.Unmarshal([]byte(cached), &courses) == nil {
				return courses, nil
			}
		}
	}

	courses, err := s.source.AllCourses(ctx)
	if err != nil {
		return nil, err
	}

	if s.rdb != nil {
		if data, err := json.Marshal(courses); err == nil {
			if err := s.rdb.Set(ctx, coursesCacheKey, data, coursesCacheTTL).Err(); err != nil {
				logger.Log.Warn("failed to cache course list", zap.Error(err))
			}
		}
	}

	return courses, nil
}
