package task

import (
	"log"
	"time"

	"tattoo_studio_v1_202608/internal/repository"
	"tattoo_studio_v1_202608/internal/service"
)

// ==================== TaskManager 后台任务管理器 ====================

// TaskManager 统一管理后台定时任务
// 管理范围：降级图稿回迁、周期用量重置
type TaskManager struct {
	sweepTask *StorageSweepTask
	resetTask *UsageResetTask
}

// TaskManagerDeps 任务管理器依赖
type TaskManagerDeps struct {
	ImageRepo repository.ImageRepository
	SubRepo   repository.SubscriptionRepository
	Storage   *service.StorageService
}

// TaskManagerConfig 任务管理器配置
type TaskManagerConfig struct {
	// 降级回迁
	SweepEnabled   bool
	SweepBatchSize int

	// 用量重置
	ResetEnabled bool
}

// DefaultConfig 默认配置
func DefaultConfig() *TaskManagerConfig {
	return &TaskManagerConfig{
		SweepEnabled:   true,
		SweepBatchSize: 20,
		ResetEnabled:   true,
	}
}

// NewTaskManager 创建任务管理器
func NewTaskManager(deps *TaskManagerDeps, cfg *TaskManagerConfig) *TaskManager {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	tm := &TaskManager{}

	// 降级图稿回迁任务，本地存储或未配置存储时无意义
	if cfg.SweepEnabled && deps.Storage != nil {
		tm.sweepTask = NewStorageSweepTask(deps.ImageRepo, deps.Storage)
		tm.sweepTask.SetBatch(cfg.SweepBatchSize, 200*time.Millisecond)
	}

	// 用量重置任务
	if cfg.ResetEnabled && deps.SubRepo != nil {
		tm.resetTask = NewUsageResetTask(deps.SubRepo)
	}

	return tm
}

// ==================== 生命周期管理 ====================

// Start 启动所有任务
func (tm *TaskManager) Start() {
	log.Println("[TaskManager] 正在启动后台任务...")

	if tm.sweepTask != nil {
		tm.sweepTask.Start()
	}
	if tm.resetTask != nil {
		tm.resetTask.Start()
	}

	log.Println("[TaskManager] 后台任务已全部启动")
}

// Stop 停止所有任务
func (tm *TaskManager) Stop() {
	log.Println("[TaskManager] 正在停止后台任务...")

	if tm.sweepTask != nil {
		tm.sweepTask.Stop()
	}
	if tm.resetTask != nil {
		tm.resetTask.Stop()
	}

	log.Println("[TaskManager] 后台任务已全部停止")
}
