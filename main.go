package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// 手动全链路测试脚本：数据库连接 + 生成服务可达性
// 正式服务入口在 cmd/main.go
func main() {
	fmt.Println(">>> 开始执行全链路测试...")

	// ------------------------------------------------
	// 1. 连接数据库
	// ------------------------------------------------
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		dsn = "host=localhost user=postgres password=postgres dbname=tattoo_studio port=5432 sslmode=disable"
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("❌ 数据库连接失败: %v", err)
	}
	fmt.Println("✅ 数据库连接成功！")

	var count int64
	if err := db.Table("tattoo_images").Count(&count).Error; err != nil {
		fmt.Printf("⚠️ 图稿表不可用 (首次启动前正常): %v\n", err)
	} else {
		fmt.Printf("✅ 图稿表可用，当前 %d 条记录\n", count)
	}

	// ------------------------------------------------
	// 2. 探测生成服务
	// ------------------------------------------------
	baseURL := os.Getenv("GEN_BASE_URL")
	if baseURL == "" {
		log.Fatalf("❌ 未设置 GEN_BASE_URL，无法探测生成服务")
	}

	client := resty.New()
	client.SetTimeout(10 * time.Second)

	if key := os.Getenv("GEN_API_KEY"); key != "" {
		client.SetHeader("x-api-key", key)
	}

	fmt.Printf(">>> 正在探测生成服务 %s ...\n", baseURL)

	resp, err := client.R().Get(baseURL)
	if err != nil {
		log.Fatalf("❌ 请求失败 (网络不通或地址错误): %v", err)
	}

	// ------------------------------------------------
	// 3. 结果验证
	// ------------------------------------------------
	switch {
	case resp.StatusCode() < 500:
		fmt.Println("🎉 测试成功！全链路已打通！")
		fmt.Printf("生成服务状态码: %d\n", resp.StatusCode())
	default:
		fmt.Printf("⚠️ 连接通了，但生成服务返回 %d\n", resp.StatusCode())
		fmt.Println("提示: 如果是 503，通常是 Space 正在冷启动，稍后重试。")
	}
}
