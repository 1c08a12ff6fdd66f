package dto

import "time"

// ==================== 结账 ====================

// CheckoutRequest 发起订阅结账
type CheckoutRequest struct {
	Plan string `json:"plan" binding:"required,oneof=pro ultra"`
}

// CheckoutResponse 结账会话
type CheckoutResponse struct {
	SessionID string `json:"session_id"`
}

// ==================== 订阅概要 ====================

// BillingSummary 当前用户订阅概要
type BillingSummary struct {
	Plan             string     `json:"plan"`
	Status           string     `json:"status"`
	GenerationsUsed  int        `json:"generations_used"`
	GenerationsLimit int        `json:"generations_limit"` // 0 表示不限量
	CurrentPeriodEnd *time.Time `json:"current_period_end,omitempty"`
}

// PlanInfo 套餐展示
type PlanInfo struct {
	Code     string   `json:"code"`
	Name     string   `json:"name"`
	PriceUSD float64  `json:"price_usd"`
	Interval string   `json:"interval"`
	Features []string `json:"features"`
}
