package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tattoo_studio_v1_202608/internal/model"
)

// ==================== SubscriptionRepository 订阅仓库 ====================

// SubscriptionRepository 订阅仓储接口
type SubscriptionRepository interface {
	Upsert(ctx context.Context, sub *model.Subscription) error
	GetByUserID(ctx context.Context, userID int64) (*model.Subscription, error)
	GetByStripeSubscription(ctx context.Context, subscriptionID string) (*model.Subscription, error)
	IncrementUsage(ctx context.Context, userID int64) error
	ResetAllUsage(ctx context.Context) (int64, error)
}

type subscriptionRepository struct {
	db *gorm.DB
}

// NewSubscriptionRepository 创建订阅仓库
func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

// Upsert 按 user_id 写入或覆盖订阅（webhook 驱动，以 Stripe 为准）
func (r *subscriptionRepository) Upsert(ctx context.Context, sub *model.Subscription) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"stripe_customer_id", "stripe_subscription_id", "stripe_price_id",
				"plan", "status", "current_period_start", "current_period_end",
				"generations_limit", "updated_at",
			}),
		}).
		Create(sub).Error
}

func (r *subscriptionRepository) GetByUserID(ctx context.Context, userID int64) (*model.Subscription, error) {
	var sub model.Subscription
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &sub, err
}

func (r *subscriptionRepository) GetByStripeSubscription(ctx context.Context, subscriptionID string) (*model.Subscription, error) {
	var sub model.Subscription
	err := r.db.WithContext(ctx).Where("stripe_subscription_id = ?", subscriptionID).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &sub, err
}

// IncrementUsage 周期内用量 +1
func (r *subscriptionRepository) IncrementUsage(ctx context.Context, userID int64) error {
	return r.db.WithContext(ctx).
		Model(&model.Subscription{}).
		Where("user_id = ?", userID).
		Update("generations_used", gorm.Expr("generations_used + 1")).Error
}

// ResetAllUsage 月度额度清零（定时任务调用）
func (r *subscriptionRepository) ResetAllUsage(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Subscription{}).
		Where("generations_used > 0").
		Update("generations_used", 0)
	return result.RowsAffected, result.Error
}

// ==================== PlanRepository 套餐仓库 ====================

// PlanRepository 套餐仓储接口
type PlanRepository interface {
	Seed(ctx context.Context, plans []model.Plan) error
	GetByCode(ctx context.Context, code string) (*model.Plan, error)
	GetByStripePrice(ctx context.Context, priceID string) (*model.Plan, error)
	List(ctx context.Context) ([]model.Plan, error)
}

type planRepository struct {
	db *gorm.DB
}

// NewPlanRepository 创建套餐仓库
func NewPlanRepository(db *gorm.DB) PlanRepository {
	return &planRepository{db: db}
}

// Seed 写入默认套餐，已存在的只补价格 ID
func (r *planRepository) Seed(ctx context.Context, plans []model.Plan) error {
	for i := range plans {
		err := r.db.WithContext(ctx).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "code"}},
				DoUpdates: clause.AssignmentColumns([]string{"stripe_price_id", "updated_at"}),
			}).
			Create(&plans[i]).Error
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *planRepository) GetByCode(ctx context.Context, code string) (*model.Plan, error) {
	var plan model.Plan
	err := r.db.WithContext(ctx).Where("code = ?", code).First(&plan).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &plan, err
}

func (r *planRepository) GetByStripePrice(ctx context.Context, priceID string) (*model.Plan, error) {
	if priceID == "" {
		return nil, nil
	}
	var plan model.Plan
	err := r.db.WithContext(ctx).Where("stripe_price_id = ?", priceID).First(&plan).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &plan, err
}

func (r *planRepository) List(ctx context.Context) ([]model.Plan, error) {
	var plans []model.Plan
	err := r.db.WithContext(ctx).Order("price_usd ASC").Find(&plans).Error
	return plans, err
}
