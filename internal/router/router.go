package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"tattoo_studio_v1_202608/internal/controller"
	"tattoo_studio_v1_202608/internal/middleware"

	_ "tattoo_studio_v1_202608/docs"
)

// InitRoutes 注册所有路由
func InitRoutes(r *gin.Engine,
	generateCtl *controller.GenerateController,
	userCtl *controller.UserController,
	galleryCtl *controller.GalleryController,
	billingCtl *controller.BillingController,
	generateCooldown time.Duration) {
	// 1. Swagger 文档路由
	// 访问 http://localhost:8080/swagger/index.html 即可查看
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// 2. 健康检查
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// 3. API 路由组
	api := r.Group("/api")
	{
		// 生成接口：匿名可用，登录用户按 token 识别，同一来源限频
		api.POST("/generate",
			middleware.OptionalAuth(),
			middleware.AuditContext(),
			middleware.GenerateCooldown(generateCooldown),
			generateCtl.Generate)

		// auth 鉴权组
		auth := api.Group("/auth")
		{
			auth.POST("/signup", userCtl.Signup)
			auth.POST("/login", userCtl.Login)
			auth.POST("/refresh", userCtl.Refresh)
			auth.POST("/logout", middleware.JWTAuth(), userCtl.Logout)
		}

		// gallery 公开画廊
		api.GET("/gallery/public", galleryCtl.ListPublic)

		// billing 计费组
		billing := api.Group("/billing")
		{
			billing.GET("/plans", billingCtl.ListPlans)
			billing.POST("/checkout", middleware.JWTAuth(), billingCtl.CreateCheckout)
			// webhook 由 Stripe 签名校验，不走 JWT
			billing.POST("/webhook", billingCtl.Webhook)
		}

		// me 当前用户组，全部需要登录
		me := api.Group("/me", middleware.JWTAuth())
		{
			me.GET("", userCtl.Profile)
			me.GET("/images", galleryCtl.ListMine)
			me.DELETE("/images/:image_id", galleryCtl.DeleteImage)
			me.GET("/summary", billingCtl.GetSummary)
			me.GET("/usage", generateCtl.GetUsage)
		}
	}
}
