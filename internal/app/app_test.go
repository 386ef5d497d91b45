package app

import (
	"student_control_backend/internal/config"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNextDailyRun(t *testing.T) {
	loc := time.UTC

	// 当天尚未到点：今天触发
	now := time.Date(2024, 3, 15, 1, 30, 0, 0, loc)
	assert.Equal(t, time.Date(2024, 3, 15, 3, 0, 0, 0, loc), nextDailyRun(now, 3))

	// 已过点：顺延到明天
	now = time.Date(2024, 3, 15, 3, 0, 0, 0, loc)
	assert.Equal(t, time.Date(2024, 3, 16, 3, 0, 0, 0, loc), nextDailyRun(now, 3))

	now = time.Date(2024, 3, 15, 23, 59, 59, 0, loc)
	assert.Equal(t, time.Date(2024, 3, 16, 3, 0, 0, 0, loc), nextDailyRun(now, 3))
}

func TestConfigReloadConcurrent(t *testing.T) {
	a := &App{}
	a.cfg.Store(&config.Config{Server: config.ServerConfig{Port: "8080"}})

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			a.cfg.Store(&config.Config{Server: config.ServerConfig{Port: "9090"}})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			cfg := a.Config()
			assert.NotNil(t, cfg)
			assert.NotEmpty(t, cfg.Server.Port)
		}
	}()

	wg.Wait()
	assert.Equal(t, "9090", a.Config().Server.Port)
}
