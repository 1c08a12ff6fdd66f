package service

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/samber/lo"

	"tattoo_studio_v1_202608/internal/api/dto"
	"tattoo_studio_v1_202608/internal/model"
	"tattoo_studio_v1_202608/internal/repository"
)

// ==================== 错误定义 ====================

var (
	ErrImageNotFound  = errors.New("图稿不存在")
	ErrImageForbidden = errors.New("无权操作该图稿")
)

// ==================== GalleryService 画廊服务 ====================

// GalleryService 画廊服务：公开画廊 + 用户私有画廊
type GalleryService struct {
	imageRepo repository.ImageRepository
	storage   *StorageService // 可为 nil
}

// NewGalleryService 创建画廊服务
func NewGalleryService(imageRepo repository.ImageRepository, storage *StorageService) *GalleryService {
	return &GalleryService{
		imageRepo: imageRepo,
		storage:   storage,
	}
}

// ==================== 查询 ====================

// ListPublic 公开画廊（landing 页），最新 60 条
func (s *GalleryService) ListPublic(ctx context.Context) (*dto.GalleryListResponse, error) {
	images, err := s.imageRepo.ListPublic(ctx, 60)
	if err != nil {
		return nil, err
	}
	return &dto.GalleryListResponse{Items: toGalleryItems(images)}, nil
}

// ListMine 用户私有画廊（dashboard），最新 50 条
func (s *GalleryService) ListMine(ctx context.Context, userID int64) (*dto.GalleryListResponse, error) {
	images, err := s.imageRepo.ListByUser(ctx, userID, 50)
	if err != nil {
		return nil, err
	}
	return &dto.GalleryListResponse{Items: toGalleryItems(images)}, nil
}

// ==================== 删除 ====================

// DeleteImage 删除用户自己的图稿
// 存储对象删除尽力而为，失败不阻断记录删除
func (s *GalleryService) DeleteImage(ctx context.Context, userID, imageID int64) error {
	image, err := s.imageRepo.GetByID(ctx, imageID)
	if err != nil {
		return err
	}
	if image == nil {
		return ErrImageNotFound
	}
	if image.UserID == nil || *image.UserID != userID {
		return ErrImageForbidden
	}

	// 先尝试清理存储对象（data URL 没有存储对象，跳过）
	if s.storage != nil && !strings.HasPrefix(image.URL, "data:") {
		if delErr := s.storage.Delete(ctx, image.URL); delErr != nil {
			log.Printf("存储对象删除失败（继续删除记录）: %v", delErr)
		}
		if image.ThumbURL != "" {
			if delErr := s.storage.Delete(ctx, image.ThumbURL); delErr != nil {
				log.Printf("缩略图删除失败: %v", delErr)
			}
		}
	}

	return s.imageRepo.Delete(ctx, imageID, userID)
}

// ==================== 转换 ====================

func toGalleryItems(images []model.TattooImage) []dto.GalleryItem {
	return lo.Map(images, func(img model.TattooImage, _ int) dto.GalleryItem {
		return dto.GalleryItem{
			ID:        img.ID,
			Prompt:    img.Prompt,
			Style:     img.Style,
			URL:       img.URL,
			ThumbURL:  img.ThumbURL,
			IsPublic:  img.IsPublic,
			CreatedAt: img.CreatedAt,
		}
	})
}
