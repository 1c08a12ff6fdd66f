package model

// GenerationLog 生成调用日志
// 每次管线执行记一条，含被吞掉的落库失败（运维排查入口）
type GenerationLog struct {
	BaseModel

	UserID  int64 `gorm:"index"` // 0 表示匿名
	ImageID int64 `gorm:"index"` // 落库失败时为 0

	ModelVersion string `gorm:"size:128"`
	Style        string `gorm:"size:32"`
	Seed         int    `gorm:"comment:发给生成服务的随机种子"`

	DurationMs int64 `gorm:"comment:外部调用耗时(毫秒)"`

	// 存储降级: 对象存储失败后以 data URL 返回
	UsedFallback bool `gorm:"default:false"`

	Status   string `gorm:"size:32;index;default:success"`
	ErrorMsg string `gorm:"size:1024"`
}

func (GenerationLog) TableName() string {
	return "generation_logs"
}

// ==================== 状态常量 ====================

const (
	GenerationStatusSuccess = "success"
	GenerationStatusFailed  = "failed"

	// 生成成功但元数据落库失败，结果仍返回给调用方
	GenerationStatusRecordLost = "record_lost"
)
