package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"tattoo_studio_v1_202608/internal/model"
)

// ==================== 仓储接口 ====================

// GenerationLogRepository 生成调用日志仓储接口
type GenerationLogRepository interface {
	Create(ctx context.Context, log *model.GenerationLog) error

	// 统计查询
	GetUsageByUser(ctx context.Context, userID int64, startTime, endTime time.Time) (*GenerationStats, error)
	GetDailyUsage(ctx context.Context, userID int64, startDate, endDate time.Time) ([]DailyGenerationStats, error)
}

// ==================== 统计结构 ====================

// GenerationStats 生成用量统计
type GenerationStats struct {
	TotalCalls    int64   `json:"total_calls"`
	SuccessCount  int64   `json:"success_count"`
	FailedCount   int64   `json:"failed_count"`
	FallbackCount int64   `json:"fallback_count"`
	AvgDurationMs float64 `json:"avg_duration_ms"`
}

// DailyGenerationStats 每日生成统计
type DailyGenerationStats struct {
	Date       string `json:"date"`
	TotalCalls int64  `json:"total_calls"`
}

// ==================== 仓储实现 ====================

type generationLogRepo struct {
	db *gorm.DB
}

// NewGenerationLogRepository 创建生成日志仓储
func NewGenerationLogRepository(db *gorm.DB) GenerationLogRepository {
	return &generationLogRepo{db: db}
}

func (r *generationLogRepo) Create(ctx context.Context, log *model.GenerationLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

func (r *generationLogRepo) GetUsageByUser(ctx context.Context, userID int64, startTime, endTime time.Time) (*GenerationStats, error) {
	var stats GenerationStats

	query := r.db.WithContext(ctx).Model(&model.GenerationLog{}).Where("user_id = ?", userID)
	if !startTime.IsZero() {
		query = query.Where("created_at >= ?", startTime)
	}
	if !endTime.IsZero() {
		query = query.Where("created_at <= ?", endTime)
	}

	err := query.Select(`
		COUNT(*) as total_calls,
		SUM(CASE WHEN status = 'success' THEN 1 ELSE 0 END) as success_count,
		SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END) as failed_count,
		SUM(CASE WHEN used_fallback THEN 1 ELSE 0 END) as fallback_count,
		COALESCE(AVG(duration_ms), 0) as avg_duration_ms
	`).Scan(&stats).Error

	return &stats, err
}

func (r *generationLogRepo) GetDailyUsage(ctx context.Context, userID int64, startDate, endDate time.Time) ([]DailyGenerationStats, error) {
	var stats []DailyGenerationStats

	err := r.db.WithContext(ctx).Model(&model.GenerationLog{}).
		Where("user_id = ? AND created_at >= ? AND created_at <= ?", userID, startDate, endDate).
		Select(`
			DATE(created_at) as date,
			COUNT(*) as total_calls
		`).
		Group("DATE(created_at)").
		Order("date ASC").
		Scan(&stats).Error

	return stats, err
}
