package repository

import (
	"student_control_backend/internal/model"

	"gorm.io/gorm"
)

type AdminRepository struct {
	DB *gorm.DB
}

func NewAdminRepository(db *gorm.DB) *AdminRepository {
	return &AdminRepository{DB: db}
}

func (r *AdminRepository) FindByEmail(email string) (*model.AdminUser, error) {
	var user model.AdminUser
	err := r.DB.Where("email = ?", email).First(&user).Error
	return &user, err
}

func (r *AdminRepository) FindByID(id uint) (*model.AdminUser, error) {
	var user model.AdminUser
	err := r.DB.First(&user, id).Error
	return &user, err
}

func (r *AdminRepository) Create(user *model.AdminUser) error {
	return r.DB.Create(user).Error
}

func (r *AdminRepository) Count() (int64, error) {
	var count int64
	err := r.DB.Model(&model.AdminUser{}).Count(&count).Error
	return count, err
}
