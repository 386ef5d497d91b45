package model

type AdminRole string

const (
	RoleAdmin   AdminRole = "admin"
	RoleManager AdminRole = "manager"
)

// AdminUser 后台账号，仅用于保护缓存管理接口
type AdminUser struct {
	BaseModel
	Name     string    `gorm:"size:100;not null" json:"Name"`
	Email    string    `gorm:"size:100;unique;not null" json:"Email"`
	Password string    `gorm:"size:100;not null" json:"-"`
	Role     AdminRole `gorm:"type:enum('admin','manager');default:'admin'" json:"Role"`
	Disabled bool      `gorm:"default:false" json:"Disabled"`
}

func (AdminUser) TableName() string {
	return "admin_users"
}
