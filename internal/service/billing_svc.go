package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/customer"
	stripesub "github.com/stripe/stripe-go/v79/subscription"
	"github.com/stripe/stripe-go/v79/webhook"

	"tattoo_studio_v1_202608/internal/api/dto"
	"tattoo_studio_v1_202608/internal/model"
	"tattoo_studio_v1_202608/internal/repository"
	"tattoo_studio_v1_202608/pkg/utils"
)

// 错误定义
var (
	ErrBillingDisabled   = errors.New("未配置支付服务 (STRIPE_SECRET_KEY)")
	ErrPlanNotFound      = errors.New("套餐不存在或不可购买")
	ErrBillingUser       = errors.New("用户不存在")
	ErrInvalidSignature  = errors.New("webhook 签名校验失败")
	ErrSignatureRequired = errors.New("缺少 Stripe-Signature 请求头")
)

// 订阅概要缓存时长
const summaryCacheTTL = 60 * time.Second

// BillingConfig Stripe 配置
type BillingConfig struct {
	SecretKey     string
	WebhookSecret string
	SiteURL       string // 结账完成后的回跳地址
}

// BillingService 订阅计费服务
type BillingService struct {
	config   BillingConfig
	userRepo repository.UserRepository
	subRepo  repository.SubscriptionRepository
	planRepo repository.PlanRepository
}

// NewBillingService 创建计费服务
func NewBillingService(cfg BillingConfig, userRepo repository.UserRepository, subRepo repository.SubscriptionRepository, planRepo repository.PlanRepository) *BillingService {
	stripe.Key = cfg.SecretKey
	return &BillingService{
		config:   cfg,
		userRepo: userRepo,
		subRepo:  subRepo,
		planRepo: planRepo,
	}
}

// ==================== 结账 ====================

// CreateCheckout 为指定套餐创建 Stripe 结账会话
func (s *BillingService) CreateCheckout(ctx context.Context, userID int64, planCode string) (*dto.CheckoutResponse, error) {
	if s.config.SecretKey == "" {
		return nil, ErrBillingDisabled
	}

	plan, err := s.planRepo.GetByCode(ctx, planCode)
	if err != nil {
		return nil, fmt.Errorf("查询套餐失败: %v", err)
	}
	// 免费套餐无需结账
	if plan == nil || plan.Code == model.PlanFree || plan.StripePriceID == "" {
		return nil, ErrPlanNotFound
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("查询用户失败: %v", err)
	}
	if user == nil {
		return nil, ErrBillingUser
	}

	customerID, err := s.ensureCustomer(ctx, user)
	if err != nil {
		return nil, err
	}

	params := &stripe.CheckoutSessionParams{
		Customer:           stripe.String(customerID),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Mode:               stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(plan.StripePriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(fmt.Sprintf("%s/dashboard?success=true&plan=%s", s.config.SiteURL, plan.Code)),
		CancelURL:  stripe.String(fmt.Sprintf("%s/dashboard?canceled=true", s.config.SiteURL)),
	}
	params.AddMetadata("user_id", strconv.FormatInt(userID, 10))
	params.AddMetadata("plan", plan.Code)

	sess, err := session.New(params)
	if err != nil {
		return nil, fmt.Errorf("创建结账会话失败: %v", err)
	}

	return &dto.CheckoutResponse{SessionID: sess.ID}, nil
}

// ensureCustomer 确保用户已有对应的 Stripe customer，首次结账时创建
func (s *BillingService) ensureCustomer(ctx context.Context, user *model.User) (string, error) {
	if user.StripeCustomerID != "" {
		return user.StripeCustomerID, nil
	}

	params := &stripe.CustomerParams{
		Email: stripe.String(user.Email),
	}
	params.AddMetadata("user_id", strconv.FormatInt(user.ID, 10))

	cus, err := customer.New(params)
	if err != nil {
		return "", fmt.Errorf("创建 Stripe customer 失败: %v", err)
	}

	if err := s.userRepo.UpdateStripeCustomer(ctx, user.ID, cus.ID); err != nil {
		return "", fmt.Errorf("保存 customer ID 失败: %v", err)
	}
	return cus.ID, nil
}

// ==================== Webhook ====================

// HandleWebhook 处理 Stripe webhook 事件，订阅状态以 Stripe 为准
func (s *BillingService) HandleWebhook(ctx context.Context, payload []byte, sigHeader string) error {
	if sigHeader == "" {
		return ErrSignatureRequired
	}

	event, err := webhook.ConstructEvent(payload, sigHeader, s.config.WebhookSecret)
	if err != nil {
		log.Printf("webhook 签名校验失败: %v", err)
		return ErrInvalidSignature
	}

	switch string(event.Type) {
	case "checkout.session.completed":
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
			return fmt.Errorf("解析 checkout session 失败: %v", err)
		}
		return s.handleCheckoutCompleted(ctx, &cs)

	case "customer.subscription.updated", "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("解析 subscription 失败: %v", err)
		}
		return s.syncSubscription(ctx, &sub)

	case "invoice.payment_failed":
		var inv stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return fmt.Errorf("解析 invoice 失败: %v", err)
		}
		return s.handlePaymentFailed(ctx, &inv)

	default:
		log.Printf("未处理的 webhook 事件类型: %s", event.Type)
	}
	return nil
}

// handleCheckoutCompleted 结账完成后拉取完整订阅并落库
func (s *BillingService) handleCheckoutCompleted(ctx context.Context, cs *stripe.CheckoutSession) error {
	if cs.Subscription == nil {
		log.Printf("checkout session %s 未关联订阅, 跳过", cs.ID)
		return nil
	}

	// 事件内嵌的 subscription 只有 ID，需要回查完整对象
	sub, err := stripesub.Get(cs.Subscription.ID, nil)
	if err != nil {
		return fmt.Errorf("查询 Stripe 订阅失败: %v", err)
	}
	return s.syncSubscription(ctx, sub)
}

// syncSubscription 将 Stripe 订阅状态同步到本地
func (s *BillingService) syncSubscription(ctx context.Context, sub *stripe.Subscription) error {
	if sub.Customer == nil {
		return fmt.Errorf("订阅 %s 缺少 customer", sub.ID)
	}

	user, err := s.userRepo.GetByStripeCustomer(ctx, sub.Customer.ID)
	if err != nil {
		return fmt.Errorf("查询用户失败: %v", err)
	}
	if user == nil {
		// 非本站产生的 customer，忽略
		log.Printf("customer %s 不属于任何用户, 跳过订阅 %s", sub.Customer.ID, sub.ID)
		return nil
	}

	priceID := ""
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		priceID = sub.Items.Data[0].Price.ID
	}

	planCode := model.PlanFree
	limit := 10
	plan, err := s.planRepo.GetByStripePrice(ctx, priceID)
	if err != nil {
		return fmt.Errorf("查询套餐失败: %v", err)
	}
	if plan != nil {
		planCode = plan.Code
		limit = plan.GenerationsLimit
	}

	record := &model.Subscription{
		UserID:               user.ID,
		StripeCustomerID:     sub.Customer.ID,
		StripeSubscriptionID: sub.ID,
		StripePriceID:        priceID,
		Plan:                 planCode,
		Status:               string(sub.Status),
		CurrentPeriodStart:   time.Unix(sub.CurrentPeriodStart, 0),
		CurrentPeriodEnd:     time.Unix(sub.CurrentPeriodEnd, 0),
		GenerationsLimit:     limit,
	}
	if err := s.subRepo.Upsert(ctx, record); err != nil {
		return fmt.Errorf("保存订阅失败: %v", err)
	}

	utils.DeleteCache(summaryCacheKey(user.ID))
	log.Printf("订阅已同步: user=%d plan=%s status=%s", user.ID, planCode, sub.Status)
	return nil
}

// handlePaymentFailed 扣款失败时标记为 past_due，权益暂不回收
func (s *BillingService) handlePaymentFailed(ctx context.Context, inv *stripe.Invoice) error {
	if inv.Customer == nil {
		return nil
	}

	user, err := s.userRepo.GetByStripeCustomer(ctx, inv.Customer.ID)
	if err != nil {
		return fmt.Errorf("查询用户失败: %v", err)
	}
	if user == nil {
		return nil
	}

	existing, err := s.subRepo.GetByUserID(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("查询订阅失败: %v", err)
	}
	if existing == nil {
		return nil
	}

	existing.Status = model.SubStatusPastDue
	if err := s.subRepo.Upsert(ctx, existing); err != nil {
		return fmt.Errorf("保存订阅失败: %v", err)
	}

	utils.DeleteCache(summaryCacheKey(user.ID))
	log.Printf("扣款失败: user=%d invoice=%s", user.ID, inv.ID)
	return nil
}

// ==================== 概要与套餐 ====================

func summaryCacheKey(userID int64) string {
	return fmt.Sprintf("billing:summary:%d", userID)
}

// GetSummary 查询当前用户的订阅概要，带短期缓存
func (s *BillingService) GetSummary(ctx context.Context, userID int64) (*dto.BillingSummary, error) {
	if cached, ok := utils.GetCache(summaryCacheKey(userID)); ok {
		var summary dto.BillingSummary
		if err := json.Unmarshal([]byte(cached), &summary); err == nil {
			return &summary, nil
		}
	}

	sub, err := s.subRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("查询订阅失败: %v", err)
	}

	summary := &dto.BillingSummary{
		Plan:             model.PlanFree,
		Status:           model.SubStatusActive,
		GenerationsLimit: 10,
	}
	if free, err := s.planRepo.GetByCode(ctx, model.PlanFree); err == nil && free != nil {
		summary.GenerationsLimit = free.GenerationsLimit
	}

	if sub != nil {
		summary.GenerationsUsed = sub.GenerationsUsed
		if sub.IsEntitled() {
			summary.Plan = sub.Plan
			summary.Status = sub.Status
			summary.GenerationsLimit = sub.GenerationsLimit
			if !sub.CurrentPeriodEnd.IsZero() {
				end := sub.CurrentPeriodEnd
				summary.CurrentPeriodEnd = &end
			}
		}
	}

	if data, err := json.Marshal(summary); err == nil {
		utils.SetCache(summaryCacheKey(userID), string(data), summaryCacheTTL)
	}
	return summary, nil
}

// ListPlans 查询可用套餐列表
func (s *BillingService) ListPlans(ctx context.Context) ([]dto.PlanInfo, error) {
	plans, err := s.planRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("查询套餐列表失败: %v", err)
	}

	infos := make([]dto.PlanInfo, 0, len(plans))
	for _, p := range plans {
		infos = append(infos, dto.PlanInfo{
			Code:     p.Code,
			Name:     p.Name,
			PriceUSD: p.PriceUSD,
			Interval: p.Interval,
			Features: []string(p.Features),
		})
	}
	return infos, nil
}
