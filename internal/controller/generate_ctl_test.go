package controller

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"tattoo_studio_v1_202608/internal/middleware"
	"tattoo_studio_v1_202608/internal/model"
	"tattoo_studio_v1_202608/internal/repository"
	"tattoo_studio_v1_202608/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// ==================== 测试辅助 ====================

func setupGenerateTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("连接测试数据库失败: %v", err)
	}
	if err := db.AutoMigrate(&model.TattooImage{}, &model.GenerationLog{}); err != nil {
		t.Fatalf("数据库迁移失败: %v", err)
	}
	return db
}

func setupGenerateRouter(db *gorm.DB, baseURL string) *gin.Engine {
	svc := service.NewAIService(&service.AIConfig{
		BaseURL: baseURL,
		Timeout: 5 * time.Second,
	}, nil,
		repository.NewImageRepository(db),
		repository.NewGenerationLogRepository(db), nil)

	ctl := NewGenerateController(svc)

	r := gin.New()
	r.POST("/api/generate", middleware.OptionalAuth(), ctl.Generate)
	return r
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func postJSON(r *gin.Engine, path string, body interface{}, token string) *httptest.ResponseRecorder {
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ==================== 测试 ====================

func TestGenerateCtl_Success(t *testing.T) {
	db := setupGenerateTestDB(t)

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("\x89PNG\r\n\x1a\nfakebody"))
	}))
	defer upstream.Close()

	r := setupGenerateRouter(db, upstream.URL)

	w := postJSON(r, "/api/generate", map[string]interface{}{
		"prompt": "a dragon",
		"style":  "japanese",
		"colors": "black-and-white",
		"source": "landing",
	}, "")

	if w.Code != http.StatusOK {
		t.Fatalf("状态码错误: %d, body=%s", w.Code, w.Body.String())
	}

	var resp envelope
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("响应解析失败: %v", err)
	}
	if resp.Code != 0 || resp.Message != "success" {
		t.Errorf("响应封包错误: %+v", resp)
	}

	var result struct {
		ID  int64  `json:"id"`
		URL string `json:"url"`
	}
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		t.Fatalf("data 解析失败: %v", err)
	}
	if result.ID == 0 || result.URL == "" {
		t.Errorf("生成结果不完整: %+v", result)
	}
}

func TestGenerateCtl_DashboardWithToken(t *testing.T) {
	db := setupGenerateTestDB(t)

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("\x89PNG\r\n\x1a\nfakebody"))
	}))
	defer upstream.Close()

	r := setupGenerateRouter(db, upstream.URL)

	access, _, err := middleware.GenerateTokenPair(9, "ink@example.com", "user")
	if err != nil {
		t.Fatalf("生成测试 token 失败: %v", err)
	}

	w := postJSON(r, "/api/generate", map[string]interface{}{
		"prompt": "a compass",
		"style":  "geometric",
		"source": "dashboard",
	}, access)

	if w.Code != http.StatusOK {
		t.Fatalf("状态码错误: %d, body=%s", w.Code, w.Body.String())
	}

	// 记录应归属 token 对应的用户
	var img model.TattooImage
	if err := db.First(&img).Error; err != nil {
		t.Fatalf("图稿未落库: %v", err)
	}
	if img.UserID == nil || *img.UserID != 9 {
		t.Errorf("归属错误: %v", img.UserID)
	}
	if img.IsPublic {
		t.Error("dashboard 图稿应私有")
	}
}

func TestGenerateCtl_BadRequest(t *testing.T) {
	db := setupGenerateTestDB(t)
	r := setupGenerateRouter(db, "http://localhost:9")

	// 非法 JSON
	req := httptest.NewRequest(http.MethodPost, "/api/generate", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("非法 JSON 应 400, got %d", w.Code)
	}

	// prompt 为空
	w = postJSON(r, "/api/generate", map[string]interface{}{
		"prompt": "  ",
		"style":  "tribal",
		"source": "landing",
	}, "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("空 prompt 应 400, got %d", w.Code)
	}
}

func TestGenerateCtl_UpstreamFailure(t *testing.T) {
	db := setupGenerateTestDB(t)

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer upstream.Close()

	r := setupGenerateRouter(db, upstream.URL)

	w := postJSON(r, "/api/generate", map[string]interface{}{
		"prompt": "a rose",
		"style":  "minimalist",
		"source": "landing",
	}, "")
	if w.Code != http.StatusInternalServerError {
		t.Errorf("上游失败应 500, got %d", w.Code)
	}
}

func TestGenerateCtl_UpstreamTimeout(t *testing.T) {
	db := setupGenerateTestDB(t)

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		_, _ = w.Write([]byte("\x89PNG\r\n\x1a\nfakebody"))
	}))
	defer upstream.Close()

	svc := service.NewAIService(&service.AIConfig{
		BaseURL: upstream.URL,
		Timeout: 100 * time.Millisecond,
	}, nil,
		repository.NewImageRepository(db),
		repository.NewGenerationLogRepository(db), nil)
	ctl := NewGenerateController(svc)

	r := gin.New()
	r.POST("/api/generate", middleware.OptionalAuth(), ctl.Generate)

	w := postJSON(r, "/api/generate", map[string]interface{}{
		"prompt": "a wolf",
		"style":  "blackwork",
		"source": "landing",
	}, "")

	// 超时与其他上游失败同属 500，不做 504 区分
	if w.Code != http.StatusInternalServerError {
		t.Errorf("超时应 500, got %d", w.Code)
	}
}
