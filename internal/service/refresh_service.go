package service

import (
	"context"
	"student_control_backend/internal/config"
	"student_control_backend/internal/repository"
	"student_control_backend/pkg/logger"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Pacer 批间限速。注入接口便于测试时用无延迟实现
type Pacer interface {
	Wait(ctx context.Context) error
}

type intervalPacer struct {
	limiter *rate.Limiter
}

// NewIntervalPacer 固定批间隔的令牌桶
func NewIntervalPacer(interval time.Duration) Pacer {
	return &intervalPacer{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

func (p *intervalPacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}

// NopPacer 不等待，测试用
type NopPacer struct{}

func (NopPacer) Wait(ctx context.Context) error { return nil }

// RefreshProgress 增量刷新一步的结果，供客户端循环驱动
type RefreshProgress struct {
	Done       bool `json:"done"`
	NextOffset int  `json:"next_offset"`
	Processed  int  `json:"processed"`
	Total      int  `json:"total"`
	Updated    int  `json:"updated"` // 本步成功刷新条数
}

// RefreshResult 强制单学生刷新的结果
type RefreshResult struct {
	Success     bool    `json:"success"`
	ElapsedSecs float64 `json:"execution_time"`
}

// RefreshService 批量刷新控制器：全量重建、每日刷新、增量步进、单学生强刷。
// 全程串行，批间通过Pacer让出，避免压垮上游和数据库
type RefreshService struct {
	refresher StudentRefresher
	source    StudentSource
	store     CacheStore
	pacer     Pacer

	rebuildBatchSize int
	stepBatchSize    int
}

func NewRefreshService(refresher StudentRefresher, source StudentSource, store CacheStore, pacer Pacer, cfg *config.Config) *RefreshService {
	return &RefreshService{
		refresher:        refresher,
		source:           source,
		store:            store,
		pacer:            pacer,
		rebuildBatchSize: cfg.Cache.RebuildBatchSize,
		stepBatchSize:    cfg.Cache.StepBatchSize,
	}
}

func (s *RefreshService) refreshBatches(ctx context.Context, ids []uint) (updated, failed int) {
	for offset := 0; offset < len(ids); offset += s.rebuildBatchSize {
		if offset > 0 {
			if err := s.pacer.Wait(ctx); err != nil {
				logger.Log.Warn("batch refresh interrupted",
					zap.Int("offset", offset),
					zap.Error(err))
				return updated, failed
			}
		}

		end := offset + s.rebuildBatchSize
		if end > len(ids) {
			end = len(ids)
		}

		for _, id := range ids[offset:end] {
			if err := s.refresher.RefreshOne(ctx, id); err != nil {
				failed++
				continue
			}
			updated++
		}
	}
	return updated, failed
}

// RebuildAll 清空缓存表后按批重建全部学生，返回总数和失败数
func (s *RefreshService) RebuildAll(ctx context.Context) (total, failed int, err error) {
	if err := s.store.Truncate(); err != nil {
		return 0, 0, err
	}

	ids, err := s.source.AllStudentIDs(ctx)
	if err != nil {
		return 0, 0, err
	}

	logger.Log.Info("cache rebuild started", zap.Int("students", len(ids)))
	_, failed = s.refreshBatches(ctx, ids)
	logger.Log.Info("cache rebuild finished",
		zap.Int("students", len(ids)),
		zap.Int("failed", failed))

	return len(ids), failed, nil
}

// RefreshAll 每日定时刷新：不清表，逐批覆盖
func (s *RefreshService) RefreshAll(ctx context.Context) (total, failed int, err error) {
	ids, err := s.source.AllStudentIDs(ctx)
	if err != nil {
		return 0, 0, err
	}

	_, failed = s.refreshBatches(ctx, ids)
	return len(ids), failed, nil
}

// RefreshStep 增量刷新一步：带筛选时目标是缓存里的筛选子集，
// 否则是上游全量名册。客户端用返回的next_offset循环调用直到done
func (s *RefreshService) RefreshStep(ctx context.Context, offset int, filter repository.StudentFilter) (*RefreshProgress, error) {
	if offset < 0 {
		offset = 0
	}

	var ids []uint
	var err error
	if filter.Empty() {
		ids, err = s.source.AllStudentIDs(ctx)
	} else {
		ids, err = s.store.QueryIDs(filter)
	}
	if err != nil {
		return nil, err
	}

	total := len(ids)
	if offset >= total {
		return &RefreshProgress{Done: true, NextOffset: offset, Processed: total, Total: total}, nil
	}

	end := offset + s.stepBatchSize
	if end > total {
		end = total
	}

	updated := 0
	for _, id := range ids[offset:end] {
		if err := s.refresher.RefreshOne(ctx, id); err == nil {
			updated++
		}
	}

	return &RefreshProgress{
		Done:       false,
		NextOffset: end,
		Processed:  end,
		Total:      total,
		Updated:    updated,
	}, nil
}

// ForceRefresh 删除现有记录后同步重算一个学生。刷新失败不作为错误
// 返回，而是Success=false加耗时，调用方据此提示重试
func (s *RefreshService) ForceRefresh(ctx context.Context, studentID uint) (*RefreshResult, error) {
	if err := s.store.Delete(studentID); err != nil {
		return nil, err
	}

	start := time.Now()
	err := s.refresher.RefreshOne(ctx, studentID)
	elapsed := time.Since(start).Seconds()

	return &RefreshResult{Success: err == nil, ElapsedSecs: elapsed}, nil
}
