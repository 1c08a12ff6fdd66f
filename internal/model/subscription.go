package model

import (
	"time"

	"github.com/lib/pq"
)

// ==================== 套餐 ====================

// Plan 订阅套餐（启动时种子写入，运营可改价）
type Plan struct {
	BaseModel

	Code     string `gorm:"size:20;uniqueIndex;not null"` // free / pro / ultra
	Name     string `gorm:"size:50;not null"`
	PriceUSD float64
	Interval string `gorm:"size:10;default:'month'"` // month / year

	Features pq.StringArray `gorm:"type:text[]"`

	StripePriceID string `gorm:"size:64"`

	// 每周期生成额度，0 表示不限量
	GenerationsLimit int `gorm:"default:0"`
}

func (Plan) TableName() string {
	return "plans"
}

const (
	PlanFree  = "free"
	PlanPro   = "pro"
	PlanUltra = "ultra"
)

// DefaultPlans 默认套餐配置（价格 ID 用环境变量覆盖）
func DefaultPlans(proPriceID, ultraPriceID string) []Plan {
	return []Plan{
		{
			Code:     PlanFree,
			Name:     "Gratuito",
			PriceUSD: 0,
			Interval: "month",
			Features: pq.StringArray{
				"10 diseños por mes", "Resolución estándar", "Estilos básicos",
			},
			GenerationsLimit: 10,
		},
		{
			Code:     PlanPro,
			Name:     "Pro",
			PriceUSD: 5,
			Interval: "month",
			Features: pq.StringArray{
				"Diseños ilimitados", "Resolución alta", "Todos los estilos", "Soporte prioritario",
			},
			StripePriceID: proPriceID,
		},
		{
			Code:     PlanUltra,
			Name:     "Ultra",
			PriceUSD: 48,
			Interval: "year",
			Features: pq.StringArray{
				"Funciones avanzadas", "Resolución máxima", "Acceso anticipado", "Soporte dedicado",
			},
			StripePriceID: ultraPriceID,
		},
	}
}

// ==================== 订阅 ====================

// Subscription 用户订阅，由 Stripe webhook 驱动更新
type Subscription struct {
	BaseModel

	UserID int64 `gorm:"uniqueIndex;not null"`

	StripeCustomerID     string `gorm:"size:64;index"`
	StripeSubscriptionID string `gorm:"size:64;index"`
	StripePriceID        string `gorm:"size:64"`

	Plan   string `gorm:"size:20;default:'free'"`
	Status string `gorm:"size:20;default:'active'"` // active / trialing / past_due / incomplete / canceled

	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time

	// 周期内用量
	GenerationsUsed  int `gorm:"default:0"`
	GenerationsLimit int `gorm:"default:10"`
}

func (Subscription) TableName() string {
	return "subscriptions"
}

// 订阅状态常量
const (
	SubStatusActive     = "active"
	SubStatusTrialing   = "trialing"
	SubStatusPastDue    = "past_due"
	SubStatusIncomplete = "incomplete"
	SubStatusCanceled   = "canceled"
)

// IsEntitled 是否仍享有付费权益
func (s *Subscription) IsEntitled() bool {
	switch s.Status {
	case SubStatusActive, SubStatusTrialing, SubStatusPastDue, SubStatusIncomplete:
		return true
	}
	return false
}
