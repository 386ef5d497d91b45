package database

import (
	"fmt"
	"log"
	"student_control_backend/internal/config"
	"student_control_backend/internal/model"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func dsn(cfg *config.DatabaseConfig) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=Local",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.DBName,
		cfg.Charset,
		cfg.ParseTime,
	)
}

// InitDB 应用自身的数据库（缓存表 + 管理员账号）
func InitDB(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn(cfg)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	log.Println("Database connection established")

	// 缓存表不在这里迁移：由 CacheRepository.EnsureSchema 自愈式维护
	if err := db.AutoMigrate(&model.AdminUser{}); err != nil {
		return nil, err
	}

	return db, nil
}

// InitLMSDB 上游LMS数据库，只读访问，不做任何迁移
func InitLMSDB(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn(cfg)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	log.Println("LMS database connection established")
	return db, nil
}
