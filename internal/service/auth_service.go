package service

import (
	"os"
	"student_control_backend/internal/config"
	"student_control_backend/internal/model"
	"student_control_backend/internal/repository"
	"student_control_backend/internal/util"
	"student_control_backend/pkg/logger"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type AuthService struct {
	AdminRepo *repository.AdminRepository
	Cfg       *config.Config
}

func NewAuthService(adminRepo *repository.AdminRepository, cfg *config.Config) *AuthService {
	return &AuthService{
		AdminRepo: adminRepo,
		Cfg:       cfg,
	}
}

func (s *AuthService) Login(email, password string) (string, error) {
	user, err := s.AdminRepo.FindByEmail(email)
	if err != nil {
		return "", util.ErrInvalidCredentials
	}

	if user.Disabled {
		return "", util.ErrAccountDisabled
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return "", util.ErrInvalidCredentials
	}

	return util.GenerateJWT(user, s.Cfg.JWT.Secret, s.Cfg.JWT.ExpireTime)
}

// EnsureBootstrapAdmin 空账号表时从环境变量创建首个管理员，
// 未设置 ADMIN_EMAIL/ADMIN_PASSWORD 则跳过
func (s *AuthService) EnsureBootstrapAdmin() error {
	count, err := s.AdminRepo.Count()
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	email := os.Getenv("ADMIN_EMAIL")
	password := os.Getenv("ADMIN_PASSWORD")
	if email == "" || password == "" {
		logger.Log.Warn("no admin accounts exist and ADMIN_EMAIL/ADMIN_PASSWORD not set, login will be impossible")
		return nil
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	admin := &model.AdminUser{
		Name:     "Administrator",
		Email:    email,
		Password: string(hashed),
		Role:     model.RoleAdmin,
	}

	if err := s.AdminRepo.Create(admin); err != nil && err != gorm.ErrDuplicatedKey {
		return err
	}

	logger.Log.Info("bootstrap admin account created")
	return nil
}
