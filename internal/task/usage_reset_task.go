package task

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"tattoo_studio_v1_202608/internal/repository"
)

// ==================== UsageResetTask 周期用量重置任务 ====================

// UsageResetTask 每月重置各订阅的生成用量计数
type UsageResetTask struct {
	subRepo repository.SubscriptionRepository
	cron    *cron.Cron
}

// NewUsageResetTask 创建用量重置任务
func NewUsageResetTask(subRepo repository.SubscriptionRepository) *UsageResetTask {
	return &UsageResetTask{
		subRepo: subRepo,
		cron:    cron.New(cron.WithSeconds()),
	}
}

// Start 启动定时任务
func (t *UsageResetTask) Start() {
	// 每月 1 日 00:00 执行
	_, err := t.cron.AddFunc("0 0 0 1 * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		t.ResetNow(ctx)
	})
	if err != nil {
		log.Printf("[UsageResetTask] 定时任务启动失败: %v", err)
		return
	}

	t.cron.Start()
	log.Println("[UsageResetTask] 已启动 (每月1日)")
}

// Stop 停止任务
func (t *UsageResetTask) Stop() {
	ctx := t.cron.Stop()
	<-ctx.Done()
	log.Println("[UsageResetTask] 已停止")
}

// ResetNow 立即重置所有订阅的周期用量
func (t *UsageResetTask) ResetNow(ctx context.Context) {
	affected, err := t.subRepo.ResetAllUsage(ctx)
	if err != nil {
		log.Printf("[UsageResetTask] 重置用量失败: %v", err)
		return
	}
	log.Printf("[UsageResetTask] 已重置 %d 条订阅的周期用量", affected)
}
