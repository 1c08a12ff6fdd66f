package dto

// ==================== 生成 ====================

// GenerateRequest 生成请求
// Colors 兼容两种形态: 表单历史字符串 ("black-and-white" 等) 或结构化 {mode, hex}
type GenerateRequest struct {
	Prompt string      `json:"prompt"`
	Style  string      `json:"style"`
	Colors interface{} `json:"colors"`
	Source string      `json:"source"` // landing | dashboard
}

// GenerateResult 生成结果
// ID 为 0 表示生成成功但元数据未落库（匿名 dashboard 请求或落库失败）
type GenerateResult struct {
	ID           int64  `json:"id,omitempty"`
	URL          string `json:"url"`
	ModelVersion string `json:"model_version,omitempty"`
}

// ==================== 用量 ====================

// DailyUsage 单日调用量
type DailyUsage struct {
	Date       string `json:"date"`
	TotalCalls int64  `json:"total_calls"`
}

// UsageSummary 用户生成用量汇总（近 N 天）
type UsageSummary struct {
	Days          int          `json:"days"`
	TotalCalls    int64        `json:"total_calls"`
	SuccessCount  int64        `json:"success_count"`
	FailedCount   int64        `json:"failed_count"`
	FallbackCount int64        `json:"fallback_count"`
	AvgDurationMs float64      `json:"avg_duration_ms"`
	Daily         []DailyUsage `json:"daily"`
}
