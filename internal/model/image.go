package model

import "gorm.io/datatypes"

// TattooImage 生成的纹身图稿记录
// 归属规则是硬性业务约束:
//   - landing 来源: is_public=true, user_id=NULL（即便带了登录态也一样）
//   - dashboard 来源: is_public=false, user_id=登录用户，无登录态则不落库
type TattooImage struct {
	BaseModel

	// NULL 表示公开画廊的匿名作品
	UserID *int64 `gorm:"index"`

	// 生成结果的公开访问地址；存储失败时是 data: URL
	URL      string `gorm:"type:text;not null"`
	ThumbURL string `gorm:"type:text"` // 缩略图，尽力而为

	// 生成输入快照
	Prompt string         `gorm:"type:text;not null"`
	Style  string         `gorm:"size:32;index"`
	Colors datatypes.JSON `gorm:"type:jsonb"` // 归一化后的 ColorSpec

	IsPublic     bool   `gorm:"index;default:false"`
	ModelVersion string `gorm:"size:128"`
}

func (TattooImage) TableName() string {
	return "tattoo_images"
}

// ==================== 请求来源常量 ====================

const (
	SourceLanding   = "landing"
	SourceDashboard = "dashboard"
)
