package service

import (
	"context"
	"errors"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"tattoo_studio_v1_202608/internal/model"
	"tattoo_studio_v1_202608/internal/repository"
)

func setupGalleryTestService(t *testing.T) (*GalleryService, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("连接测试数据库失败: %v", err)
	}

	if err := db.AutoMigrate(&model.TattooImage{}); err != nil {
		t.Fatalf("数据库迁移失败: %v", err)
	}
	return NewGalleryService(repository.NewImageRepository(db), nil), db
}

func TestGalleryService_ListPublic(t *testing.T) {
	svc, db := setupGalleryTestService(t)

	owner := int64(1)
	db.Create(&model.TattooImage{URL: "a", Prompt: "public one", IsPublic: true})
	db.Create(&model.TattooImage{URL: "b", Prompt: "private one", UserID: &owner})

	resp, err := svc.ListPublic(context.Background())
	if err != nil {
		t.Fatalf("ListPublic() error = %v", err)
	}
	if len(resp.Items) != 1 {
		t.Fatalf("公开画廊数量错误: %d", len(resp.Items))
	}
	if resp.Items[0].Prompt != "public one" {
		t.Errorf("内容不符: %s", resp.Items[0].Prompt)
	}
}

func TestGalleryService_ListMine(t *testing.T) {
	svc, db := setupGalleryTestService(t)

	u1, u2 := int64(1), int64(2)
	db.Create(&model.TattooImage{URL: "a", UserID: &u1})
	db.Create(&model.TattooImage{URL: "b", UserID: &u2})

	resp, err := svc.ListMine(context.Background(), u1)
	if err != nil {
		t.Fatalf("ListMine() error = %v", err)
	}
	if len(resp.Items) != 1 {
		t.Errorf("私有画廊数量错误: %d", len(resp.Items))
	}
}

func TestGalleryService_DeleteImage(t *testing.T) {
	svc, db := setupGalleryTestService(t)
	ctx := context.Background()

	owner := int64(1)
	img := model.TattooImage{URL: "https://cdn.example.com/a.png", UserID: &owner}
	db.Create(&img)
	anon := model.TattooImage{URL: "b", IsPublic: true}
	db.Create(&anon)

	// 不存在
	if err := svc.DeleteImage(ctx, owner, 999); !errors.Is(err, ErrImageNotFound) {
		t.Errorf("应返回 ErrImageNotFound, got %v", err)
	}

	// 他人图稿
	if err := svc.DeleteImage(ctx, 2, img.ID); !errors.Is(err, ErrImageForbidden) {
		t.Errorf("应返回 ErrImageForbidden, got %v", err)
	}

	// 匿名公开图稿没有归属，任何人都不能删
	if err := svc.DeleteImage(ctx, owner, anon.ID); !errors.Is(err, ErrImageForbidden) {
		t.Errorf("匿名图稿应返回 ErrImageForbidden, got %v", err)
	}

	// 归属用户删除成功
	if err := svc.DeleteImage(ctx, owner, img.ID); err != nil {
		t.Fatalf("DeleteImage() error = %v", err)
	}

	var count int64
	db.Model(&model.TattooImage{}).Count(&count)
	if count != 1 {
		t.Errorf("删除后应剩 1 条, got %d", count)
	}
}
