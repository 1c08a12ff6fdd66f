package controller

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"tattoo_studio_v1_202608/internal/api/dto"
	"tattoo_studio_v1_202608/internal/middleware"
	"tattoo_studio_v1_202608/internal/service"
)

// ==================== 控制器 ====================

// BillingController 订阅计费控制器
type BillingController struct {
	billingService *service.BillingService
}

func NewBillingController(billingService *service.BillingService) *BillingController {
	return &BillingController{billingService: billingService}
}

// ==================== API 方法 ====================

// ListPlans 套餐列表
// @Summary 查询可选套餐
// @Tags Billing
// @Produce json
// @Success 200 {array} dto.PlanInfo
// @Router /api/billing/plans [get]
func (ctrl *BillingController) ListPlans(c *gin.Context) {
	result, err := ctrl.billingService.ListPlans(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    500,
			"message": "查询失败: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
		"data":    result,
	})
}

// CreateCheckout 创建结账会话
// @Summary 为付费套餐创建 Stripe 结账会话
// @Tags Billing
// @Accept json
// @Produce json
// @Param body body dto.CheckoutRequest true "结账请求"
// @Success 200 {object} dto.CheckoutResponse
// @Failure 400 {object} map[string]interface{} "套餐不可购买"
// @Security BearerAuth
// @Router /api/billing/checkout [post]
func (ctrl *BillingController) CreateCheckout(c *gin.Context) {
	var req dto.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "参数错误: " + err.Error(),
		})
		return
	}

	userID := middleware.GetUserID(c)

	result, err := ctrl.billingService.CreateCheckout(c.Request.Context(), userID, req.Plan)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, service.ErrPlanNotFound):
			status = http.StatusBadRequest
		case errors.Is(err, service.ErrBillingDisabled):
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"code":    status,
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
		"data":    result,
	})
}

// Webhook Stripe 回调
// @Summary 接收 Stripe webhook 事件
// @Description 校验签名后同步订阅状态，必须读取原始请求体
// @Tags Billing
// @Accept json
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{} "签名校验失败"
// @Router /api/billing/webhook [post]
func (ctrl *BillingController) Webhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "读取请求体失败",
		})
		return
	}

	sigHeader := c.GetHeader("Stripe-Signature")

	if err := ctrl.billingService.HandleWebhook(c.Request.Context(), payload, sigHeader); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, service.ErrInvalidSignature) || errors.Is(err, service.ErrSignatureRequired) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{
			"code":    status,
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

// GetSummary 订阅概要
// @Summary 查询当前用户套餐与用量
// @Tags Billing
// @Produce json
// @Success 200 {object} dto.BillingSummary
// @Security BearerAuth
// @Router /api/me/summary [get]
func (ctrl *BillingController) GetSummary(c *gin.Context) {
	userID := middleware.GetUserID(c)

	result, err := ctrl.billingService.GetSummary(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    500,
			"message": "查询失败: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
		"data":    result,
	})
}
