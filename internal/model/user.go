package model

import "time"

// User 注册用户
type User struct {
	BaseModel

	// 基础信息
	Email    string `gorm:"size:100;uniqueIndex;not null"`
	Password string `gorm:"size:255;not null"` // bcrypt 哈希

	// 系统级角色: admin (管理员), user (普通用户)
	Role string `gorm:"size:20;default:'user'"`

	Status int `gorm:"default:1"` // 1 正常, 0 禁用

	LastLoginAt *time.Time

	// Stripe 客户号，首次发起结账时写入
	StripeCustomerID string `gorm:"size:64;index"`
}

func (User) TableName() string {
	return "users"
}

// ==================== 状态常量 ====================

const (
	UserStatusDisabled = 0
	UserStatusActive   = 1
)

const (
	UserRoleAdmin = "admin"
	UserRoleUser  = "user"
)
