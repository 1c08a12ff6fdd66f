package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"tattoo_studio_v1_202608/internal/model"
)

// ==================== 仓储接口 ====================

// ImageRepository 图稿记录仓储接口
type ImageRepository interface {
	Create(ctx context.Context, image *model.TattooImage) error
	GetByID(ctx context.Context, id int64) (*model.TattooImage, error)

	// 画廊查询
	ListPublic(ctx context.Context, limit int) ([]model.TattooImage, error)
	ListByUser(ctx context.Context, userID int64, limit int) ([]model.TattooImage, error)

	// 删除（软删除，调用方自行校验归属）
	Delete(ctx context.Context, id int64, userID int64) error

	// 存储降级补偿: 找出仍是 data: URL 的记录并改写
	ListFallbackURLs(ctx context.Context, limit int) ([]model.TattooImage, error)
	UpdateURL(ctx context.Context, id int64, url, thumbURL string) error
}

// ==================== 实现 ====================

type imageRepository struct {
	db *gorm.DB
}

// NewImageRepository 创建图稿仓储
func NewImageRepository(db *gorm.DB) ImageRepository {
	return &imageRepository{db: db}
}

func (r *imageRepository) Create(ctx context.Context, image *model.TattooImage) error {
	return r.db.WithContext(ctx).Create(image).Error
}

func (r *imageRepository) GetByID(ctx context.Context, id int64) (*model.TattooImage, error) {
	var image model.TattooImage
	err := r.db.WithContext(ctx).First(&image, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &image, err
}

// ListPublic 公开画廊，最新在前
func (r *imageRepository) ListPublic(ctx context.Context, limit int) ([]model.TattooImage, error) {
	if limit < 1 {
		limit = 60
	}
	var images []model.TattooImage
	err := r.db.WithContext(ctx).
		Where("is_public = ?", true).
		Order("created_at DESC").
		Limit(limit).
		Find(&images).Error
	return images, err
}

// ListByUser 用户私有画廊，最新在前
func (r *imageRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]model.TattooImage, error) {
	if limit < 1 {
		limit = 50
	}
	var images []model.TattooImage
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&images).Error
	return images, err
}

func (r *imageRepository) Delete(ctx context.Context, id int64, userID int64) error {
	return r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&model.TattooImage{}).Error
}

func (r *imageRepository) ListFallbackURLs(ctx context.Context, limit int) ([]model.TattooImage, error) {
	if limit < 1 {
		limit = 20
	}
	var images []model.TattooImage
	err := r.db.WithContext(ctx).
		Where("url LIKE ?", "data:image/%").
		Order("id ASC").
		Limit(limit).
		Find(&images).Error
	return images, err
}

func (r *imageRepository) UpdateURL(ctx context.Context, id int64, url, thumbURL string) error {
	return r.db.WithContext(ctx).
		Model(&model.TattooImage{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"url":       url,
			"thumb_url": thumbURL,
		}).Error
}
