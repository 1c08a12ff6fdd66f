package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"tattoo_studio_v1_202608/internal/middleware"
	"tattoo_studio_v1_202608/internal/service"
)

// ==================== 控制器 ====================

// GalleryController 图稿画廊控制器
type GalleryController struct {
	galleryService *service.GalleryService
}

func NewGalleryController(galleryService *service.GalleryService) *GalleryController {
	return &GalleryController{galleryService: galleryService}
}

// ==================== API 方法 ====================

// ListPublic 公开画廊
// @Summary 查询落地页公开图稿，按创建时间倒序
// @Tags Gallery
// @Produce json
// @Success 200 {object} dto.GalleryListResponse
// @Router /api/gallery/public [get]
func (ctrl *GalleryController) ListPublic(c *gin.Context) {
	result, err := ctrl.galleryService.ListPublic(c.Request.Context())
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

// ListMine 我的图稿
// @Summary 查询当前用户的私有图稿
// @Tags Gallery
// @Produce json
// @Success 200 {object} dto.GalleryListResponse
// @Security BearerAuth
// @Router /api/me/images [get]
func (ctrl *GalleryController) ListMine(c *gin.Context) {
	userID := middleware.GetUserID(c)

	result, err := ctrl.galleryService.ListMine(c.Request.Context(), userID)
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

// DeleteImage 删除图稿
// @Summary 删除当前用户名下的图稿
// @Tags Gallery
// @Produce json
// @Param image_id path int true "图稿ID"
// @Success 200 {object} dto.DeleteImageResponse
// @Failure 403 {object} map[string]interface{} "无权操作"
// @Failure 404 {object} map[string]interface{} "图稿不存在"
// @Security BearerAuth
// @Router /api/me/images/{image_id} [delete]
func (ctrl *GalleryController) DeleteImage(c *gin.Context) {
	imageIDStr := c.Param("image_id")
	imageID, err := strconv.ParseInt(imageIDStr, 10, 64)
	if err != nil || imageID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "无效的图稿ID",
		})
		return
	}

	userID := middleware.GetUserID(c)

	if err := ctrl.galleryService.DeleteImage(c.Request.Context(), userID, imageID); err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, service.ErrImageNotFound):
			status = http.StatusNotFound
		case errors.Is(err, service.ErrImageForbidden):
			status = http.StatusForbidden
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
		"data":    gin.H{"id": imageID},
	})
}
