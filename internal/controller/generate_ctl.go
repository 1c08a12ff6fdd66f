package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"tattoo_studio_v1_202608/internal/api/dto"
	"tattoo_studio_v1_202608/internal/middleware"
	"tattoo_studio_v1_202608/internal/service"
)

// ==================== 控制器 ====================

// GenerateController 图稿生成控制器
type GenerateController struct {
	aiService *service.AIService
}

func NewGenerateController(aiService *service.AIService) *GenerateController {
	return &GenerateController{aiService: aiService}
}

// ==================== API 方法 ====================

// Generate 生成纹身图稿
// @Summary 根据描述生成纹身线稿
// @Description 合成提示词后调用生成服务，落地图片并写入图稿记录；登录用户从 token 识别，匿名也可调用
// @Tags Generate
// @Accept json
// @Produce json
// @Param body body dto.GenerateRequest true "生成请求"
// @Success 200 {object} dto.GenerateResult
// @Failure 400 {object} map[string]interface{} "参数错误"
// @Failure 500 {object} map[string]interface{} "生成失败"
// @Router /api/generate [post]
func (ctrl *GenerateController) Generate(c *gin.Context) {
	var req dto.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "参数错误: " + err.Error(),
		})
		return
	}

	// 匿名请求时为 0
	userID := middleware.GetUserID(c)

	result, err := ctrl.aiService.Generate(c.Request.Context(), userID, &req)
	if err != nil {
		// 校验错误 400，其余（上游失败、超时、内部错误）一律 500
		status := http.StatusInternalServerError
		if errors.Is(err, service.ErrPromptRequired) || errors.Is(err, service.ErrStyleRequired) {
			status = http.StatusBadRequest
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

// GetUsage 查询当前用户的生成用量
// @Summary 查询生成用量统计
// @Description 返回近 N 天（默认 30）的调用总量、成功/失败/降级次数与每日调用曲线
// @Tags Generate
// @Produce json
// @Security BearerAuth
// @Param days query int false "统计窗口天数，默认 30"
// @Success 200 {object} dto.UsageSummary
// @Failure 401 {object} map[string]interface{} "未登录"
// @Router /api/me/usage [get]
func (ctrl *GenerateController) GetUsage(c *gin.Context) {
	userID := middleware.GetUserID(c)

	days, _ := strconv.Atoi(c.Query("days"))

	summary, err := ctrl.aiService.GetUsage(c.Request.Context(), userID, days)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    500,
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
		"data":    summary,
	})
}
