package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"tattoo_studio_v1_202608/internal/controller"
	"tattoo_studio_v1_202608/internal/middleware"
	"tattoo_studio_v1_202608/internal/model"
	"tattoo_studio_v1_202608/internal/repository"
	"tattoo_studio_v1_202608/internal/router"
	"tattoo_studio_v1_202608/internal/service"
	"tattoo_studio_v1_202608/internal/task"
	"tattoo_studio_v1_202608/pkg/database"
)

// @title Tattoo Studio API
// @version 1.0
// @description 纹身线稿生成服务接口文档
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	// 1. 初始化数据库
	db := initDatabase()

	// 2. 初始化依赖
	deps := initDependencies(db)

	// 3. 种子套餐数据
	seedPlans(deps)

	// 4. 启动定时任务
	tm := initTasks(deps)
	defer tm.Stop()

	// 5. 初始化路由
	r := gin.Default()
	router.InitRoutes(r,
		deps.Controllers.Generate,
		deps.Controllers.User,
		deps.Controllers.Gallery,
		deps.Controllers.Billing,
		generateCooldown(),
	)

	// 6. 启动服务
	startServer(r)
}

// ==================== 依赖容器 ====================

// Dependencies 依赖容器
type Dependencies struct {
	DB          *gorm.DB
	Repos       *Repositories
	Services    *Services
	Controllers *Controllers
}

// Repositories 仓库集合
type Repositories struct {
	User          repository.UserRepository
	Image         repository.ImageRepository
	GenerationLog repository.GenerationLogRepository
	Subscription  repository.SubscriptionRepository
	Plan          repository.PlanRepository
}

// Services 服务集合
type Services struct {
	Storage *service.StorageService
	AI      *service.AIService
	User    *service.UserService
	Gallery *service.GalleryService
	Billing *service.BillingService
}

// Controllers 控制器集合
type Controllers struct {
	Generate *controller.GenerateController
	User     *controller.UserController
	Gallery  *controller.GalleryController
	Billing  *controller.BillingController
}

// ==================== 初始化函数 ====================

// initDatabase 初始化数据库
func initDatabase() *gorm.DB {
	dsn := getEnv("DATABASE_URL", fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		getEnv("DB_HOST", "localhost"),
		getEnv("DB_USER", "postgres"),
		getEnv("DB_PASSWORD", "postgres"),
		getEnv("DB_NAME", "tattoo_studio"),
		getEnv("DB_PORT", "5432"),
	))

	return database.InitDB(dsn,
		// Account
		&model.User{},
		// Artwork
		&model.TattooImage{}, &model.GenerationLog{},
		// Billing
		&model.Plan{}, &model.Subscription{},
	)
}

// initDependencies 初始化所有依赖
func initDependencies(db *gorm.DB) *Dependencies {
	// -------- Repo 层 --------
	repos := &Repositories{
		User:          repository.NewUserRepository(db),
		Image:         repository.NewImageRepository(db),
		GenerationLog: repository.NewGenerationLogRepository(db),
		Subscription:  repository.NewSubscriptionRepository(db),
		Plan:          repository.NewPlanRepository(db),
	}

	// -------- JWT 配置 --------
	middleware.SetJWTConfig(&middleware.JWTConfig{
		SecretKey:       getEnv("JWT_SECRET", "tattoo-studio-secret-key-change-in-production"),
		AccessTokenTTL:  2 * time.Hour,
		RefreshTokenTTL: 7 * 24 * time.Hour,
		Issuer:          "tattoo-studio",
	})

	// -------- 存储 & 生成服务 --------
	storageSvc := initStorageService()
	aiSvc := service.NewAIService(&service.AIConfig{
		BaseURL:      getEnv("GEN_BASE_URL", ""),
		APIKey:       getEnv("GEN_API_KEY", ""),
		ModelVersion: getEnv("GEN_MODEL_VERSION", ""),
	}, storageSvc, repos.Image, repos.GenerationLog, repos.Subscription)

	// -------- 业务服务 --------
	services := &Services{
		Storage: storageSvc,
		AI:      aiSvc,
		User:    service.NewUserService(repos.User),
		Gallery: service.NewGalleryService(repos.Image, storageSvc),
		Billing: service.NewBillingService(service.BillingConfig{
			SecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
			SiteURL:       getEnv("SITE_URL", "http://localhost:3000"),
		}, repos.User, repos.Subscription, repos.Plan),
	}

	// -------- Controller 层 --------
	controllers := &Controllers{
		Generate: controller.NewGenerateController(services.AI),
		User:     controller.NewUserController(services.User),
		Gallery:  controller.NewGalleryController(services.Gallery),
		Billing:  controller.NewBillingController(services.Billing),
	}

	return &Dependencies{
		DB:          db,
		Repos:       repos,
		Services:    services,
		Controllers: controllers,
	}
}

// initStorageService 初始化存储服务
func initStorageService() *service.StorageService {
	storageSvc, err := service.NewStorageService(&service.StorageConfig{
		Provider:  getEnv("STORAGE_PROVIDER", "s3"),
		Bucket:    getEnv("AWS_BUCKET", ""),
		Region:    getEnv("AWS_REGION", ""),
		AccessKey: getEnv("AWS_ACCESS_KEY_ID", ""),
		SecretKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		Endpoint:  getEnv("STORAGE_ENDPOINT", ""),
		CDNDomain: getEnv("AWS_CDN_DOMAIN", ""),
		BasePath:  getEnv("STORAGE_BASE_PATH", "tattoo-studio"),
	})
	if err != nil {
		// 存储不可用时服务照常启动，图稿会以 data URL 降级保存
		log.Printf("警告: 存储服务初始化失败: %v", err)
		return nil
	}
	return storageSvc
}

// seedPlans 写入默认套餐，价格 ID 来自环境变量
func seedPlans(deps *Dependencies) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	plans := model.DefaultPlans(
		getEnv("STRIPE_PRO_PRICE_ID", ""),
		getEnv("STRIPE_ULTRA_PRICE_ID", ""),
	)
	if err := deps.Repos.Plan.Seed(ctx, plans); err != nil {
		log.Printf("警告: 套餐种子写入失败: %v", err)
	}
}

// ==================== 定时任务 ====================

// initTasks 初始化定时任务
func initTasks(deps *Dependencies) *task.TaskManager {
	tm := task.NewTaskManager(&task.TaskManagerDeps{
		ImageRepo: deps.Repos.Image,
		SubRepo:   deps.Repos.Subscription,
		Storage:   deps.Services.Storage,
	}, task.DefaultConfig())
	tm.Start()
	return tm
}

// generateCooldown 生成接口限频间隔
func generateCooldown() time.Duration {
	seconds, err := strconv.Atoi(getEnv("GENERATE_COOLDOWN_SECONDS", "10"))
	if err != nil || seconds < 0 {
		seconds = 10
	}
	return time.Duration(seconds) * time.Second
}

// ==================== 服务启动 ====================

// startServer 启动服务
func startServer(r *gin.Engine) {
	port := getEnv("SERVER_PORT", "8080")

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}

	// 异步启动服务
	go func() {
		log.Printf("服务启动在 :%s", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("服务启动失败: %v", err)
		}
	}()

	// 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("正在关闭服务...")

	// 优雅关闭
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("服务强制关闭: %v", err)
	}

	log.Println("服务已退出")
}

// ==================== 工具函数 ====================

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
