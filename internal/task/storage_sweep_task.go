package task

import (
	"context"
	"encoding/base64"
	"log"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"tattoo_studio_v1_202608/internal/repository"
	"tattoo_studio_v1_202608/internal/service"
	"tattoo_studio_v1_202608/pkg/utils"
)

// ==================== StorageSweepTask 降级图稿回迁任务 ====================

// StorageSweepTask 定时扫描以 data URL 降级保存的图稿，重新上传到对象存储
// 对象存储短暂不可用时 Generate 会把图片内联进记录，这里负责事后回迁
type StorageSweepTask struct {
	imageRepo repository.ImageRepository
	storage   *service.StorageService
	cron      *cron.Cron

	batchSize int
	sleepTime time.Duration
}

// NewStorageSweepTask 创建回迁任务
func NewStorageSweepTask(imageRepo repository.ImageRepository, storage *service.StorageService) *StorageSweepTask {
	return &StorageSweepTask{
		imageRepo: imageRepo,
		storage:   storage,
		cron:      cron.New(cron.WithSeconds()),
		batchSize: 20,
		sleepTime: 200 * time.Millisecond,
	}
}

// SetBatch 设置批量参数
func (t *StorageSweepTask) SetBatch(size int, sleep time.Duration) {
	t.batchSize = size
	t.sleepTime = sleep
}

// Start 启动定时任务
func (t *StorageSweepTask) Start() {
	// 每 10 分钟执行
	_, err := t.cron.AddFunc("0 */10 * * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		t.SweepOnce(ctx)
	})
	if err != nil {
		log.Printf("[StorageSweepTask] 定时任务启动失败: %v", err)
		return
	}

	t.cron.Start()
	log.Println("[StorageSweepTask] 已启动 (每10分钟)")
}

// Stop 停止任务
func (t *StorageSweepTask) Stop() {
	ctx := t.cron.Stop()
	<-ctx.Done()
	log.Println("[StorageSweepTask] 已停止")
}

// SweepOnce 扫描一批降级图稿并回迁
func (t *StorageSweepTask) SweepOnce(ctx context.Context) {
	images, err := t.imageRepo.ListFallbackURLs(ctx, t.batchSize)
	if err != nil {
		log.Printf("[StorageSweepTask] 查询降级图稿失败: %v", err)
		return
	}
	if len(images) == 0 {
		return
	}

	log.Printf("[StorageSweepTask] 开始回迁 %d 条降级图稿", len(images))

	var migrated int
	for _, img := range images {
		data, ok := decodeDataURL(img.URL)
		if !ok {
			log.Printf("[StorageSweepTask] 图稿 %d 的 data URL 无法解析, 跳过", img.ID)
			continue
		}

		name := service.NewObjectName()
		url, err := t.storage.Upload(ctx, data, name, "image/png")
		if err != nil {
			// 存储仍不可用，留待下一轮
			log.Printf("[StorageSweepTask] 图稿 %d 上传失败: %v", img.ID, err)
			continue
		}

		thumbURL := ""
		if thumb, err := utils.MakeThumbnail(data, 256); err == nil {
			if u, err := t.storage.Upload(ctx, thumb, service.ThumbObjectName(name), "image/png"); err == nil {
				thumbURL = u
			}
		}

		if err := t.imageRepo.UpdateURL(ctx, img.ID, url, thumbURL); err != nil {
			log.Printf("[StorageSweepTask] 图稿 %d 更新地址失败: %v", img.ID, err)
			continue
		}
		migrated++

		time.Sleep(t.sleepTime)
	}

	log.Printf("[StorageSweepTask] 回迁完成: %d/%d", migrated, len(images))
}

// decodeDataURL 解析 data:image/png;base64,... 形式的内联图片
func decodeDataURL(url string) ([]byte, bool) {
	if !strings.HasPrefix(url, "data:image/") {
		return nil, false
	}
	idx := strings.Index(url, ";base64,")
	if idx < 0 {
		return nil, false
	}
	data, err := base64.StdEncoding.DecodeString(url[idx+len(";base64,"):])
	if err != nil {
		return nil, false
	}
	return data, true
}
