package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"tattoo_studio_v1_202608/internal/api/dto"
	"tattoo_studio_v1_202608/internal/model"
	"tattoo_studio_v1_202608/internal/repository"
)

// ==================== 测试辅助 ====================

// stubRand 确定性随机源
// Intn(len(variabilityPhrases)) 返回 phrase，其余返回 seed % n
type stubRand struct {
	phrase int
	seed   int
}

func (r stubRand) Intn(n int) int {
	if n == len(variabilityPhrases) {
		return r.phrase
	}
	return r.seed % n
}

func setupAITestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("连接测试数据库失败: %v", err)
	}

	err = db.AutoMigrate(&model.TattooImage{}, &model.GenerationLog{}, &model.Subscription{})
	if err != nil {
		t.Fatalf("数据库迁移失败: %v", err)
	}
	return db
}

func makePNG(t *testing.T) []byte {
	var buf bytes.Buffer
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("生成测试 PNG 失败: %v", err)
	}
	return buf.Bytes()
}

func newTestAIService(t *testing.T, db *gorm.DB, baseURL string) *AIService {
	svc := NewAIService(&AIConfig{
		BaseURL: baseURL,
		Timeout: 5 * time.Second,
	}, nil,
		repository.NewImageRepository(db),
		repository.NewGenerationLogRepository(db),
		repository.NewSubscriptionRepository(db))
	svc.Rand = stubRand{phrase: 2, seed: 424242}
	return svc
}

// ==================== 默认配置 ====================

func TestNewAIService_DefaultConfig(t *testing.T) {
	svc := NewAIService(&AIConfig{}, nil, nil, nil, nil)

	if svc.Config.ModelVersion != "runwayml/stable-diffusion-v1-5" {
		t.Errorf("默认 ModelVersion 不正确: got %s", svc.Config.ModelVersion)
	}
	if svc.Config.Timeout != 300*time.Second {
		t.Errorf("默认超时不正确: got %v", svc.Config.Timeout)
	}
}

// ==================== 校验 ====================

func TestValidateRequest(t *testing.T) {
	tests := []struct {
		name    string
		req     dto.GenerateRequest
		wantErr error
	}{
		{"正常请求", dto.GenerateRequest{Prompt: "a dragon", Style: "japanese"}, nil},
		{"prompt 为空", dto.GenerateRequest{Prompt: "  ", Style: "tribal"}, ErrPromptRequired},
		{"style 为空", dto.GenerateRequest{Prompt: "a rose", Style: ""}, ErrStyleRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prompt, _, _, err := ValidateRequest(&tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ValidateRequest() error = %v, want %v", err, tt.wantErr)
			}
			if err == nil && prompt != strings.TrimSpace(tt.req.Prompt) {
				t.Errorf("prompt 未 trim: %q", prompt)
			}
		})
	}
}

func TestNormalizeColors(t *testing.T) {
	t.Run("字符串别名", func(t *testing.T) {
		spec := NormalizeColors("black-and-white")
		if spec.Mode != model.ColorModeBW {
			t.Errorf("got %s, want bw", spec.Mode)
		}
	})

	t.Run("结构化配色", func(t *testing.T) {
		spec := NormalizeColors(map[string]interface{}{"mode": "single", "hex": "#00ff00"})
		if spec.Mode != model.ColorModeSingle {
			t.Errorf("got %s, want single", spec.Mode)
		}
		if spec.Hex == nil || *spec.Hex != "#00ff00" {
			t.Errorf("hex 未透传: %v", spec.Hex)
		}
	})

	t.Run("缺省按全彩", func(t *testing.T) {
		if spec := NormalizeColors(nil); spec.Mode != model.ColorModeFull {
			t.Errorf("got %s, want full", spec.Mode)
		}
	})
}

// ==================== 提示词合成 ====================

func TestBuildStudioPrompt(t *testing.T) {
	prompt := BuildStudioPrompt("dragon wrapping a forearm", model.StyleJapanese, model.ColorSpec{Mode: model.ColorModeBW})

	// 用户输入必须原样嵌入
	if !strings.Contains(prompt, "standalone dragon wrapping a forearm design") {
		t.Errorf("用户输入未原样嵌入: %s", prompt)
	}
	if !strings.Contains(prompt, "traditional Japanese tattoo flash art") {
		t.Errorf("缺少风格短语: %s", prompt)
	}
	if !strings.Contains(prompt, "black and white ink stencil") {
		t.Errorf("缺少配色短语: %s", prompt)
	}
	if !strings.Contains(prompt, "tattoo flash sheet style") {
		t.Errorf("缺少工作室版式: %s", prompt)
	}
}

func TestSynthesizePrompt_AppendsVariation(t *testing.T) {
	svc := NewAIService(&AIConfig{}, nil, nil, nil, nil)
	svc.Rand = stubRand{phrase: 2}

	prompt := svc.SynthesizePrompt("a rose", model.StyleMinimalist, model.ColorSpec{Mode: model.ColorModeFull})

	if !strings.HasSuffix(prompt, ", "+variabilityPhrases[2]) {
		t.Errorf("变化短语未追加在末尾: %s", prompt)
	}

	base := BuildStudioPrompt("a rose", model.StyleMinimalist, model.ColorSpec{Mode: model.ColorModeFull})
	if !strings.HasPrefix(prompt, base) {
		t.Errorf("合成结果未以固定部分开头")
	}
}

func TestNewSeed_Range(t *testing.T) {
	svc := NewAIService(&AIConfig{}, nil, nil, nil, nil)
	for i := 0; i < 100; i++ {
		seed := svc.NewSeed()
		if seed < 0 || seed >= seedUpperBound {
			t.Fatalf("种子越界: %d", seed)
		}
	}
}

// ==================== 地址归一化 ====================

func TestNormalizeBaseURL(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"https://huggingface.co/spaces/acme/tattoo-gen", "https://acme-tattoo-gen.hf.space"},
		{"https://huggingface.co/spaces/acme/tattoo-gen/", "https://acme-tattoo-gen.hf.space"},
		{"https://hf.space/embed/acme/tattoo-gen", "https://acme-tattoo-gen.hf.space"},
		{"https://acme-tattoo-gen.hf.space", "https://acme-tattoo-gen.hf.space"},
		{"http://localhost:7860/", "http://localhost:7860"},
	}

	for _, tt := range tests {
		if got := NormalizeBaseURL(tt.input); got != tt.want {
			t.Errorf("NormalizeBaseURL(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

// ==================== 生成管线 ====================

func TestGenerate_LandingIsPublicAnonymous(t *testing.T) {
	db := setupAITestDB(t)
	pngData := makePNG(t)

	var gotPayload generatePayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotPayload)
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(pngData)
	}))
	defer server.Close()

	svc := newTestAIService(t, db, server.URL)

	// 登录用户从落地页生成，记录仍必须公开且无归属
	result, err := svc.Generate(context.Background(), 5, &dto.GenerateRequest{
		Prompt: "dragon wrapping a forearm",
		Style:  "japanese",
		Colors: "black-and-white",
		Source: model.SourceLanding,
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if result.ID == 0 {
		t.Fatal("图稿记录未写入")
	}
	// 无存储配置，走 data URL 降级
	if !strings.HasPrefix(result.URL, "data:image/png;base64,") {
		t.Errorf("应降级为 data URL: %.40s", result.URL)
	}

	// 请求体断言
	if !strings.Contains(gotPayload.Prompt, "standalone dragon wrapping a forearm design") {
		t.Errorf("提示词未嵌入用户输入: %s", gotPayload.Prompt)
	}
	if gotPayload.Colors != "black and white" {
		t.Errorf("配色描述错误: %q", gotPayload.Colors)
	}
	if gotPayload.Steps != 35 || gotPayload.Width != 1024 || gotPayload.Height != 1024 {
		t.Errorf("固定参数错误: steps=%d width=%d height=%d", gotPayload.Steps, gotPayload.Width, gotPayload.Height)
	}
	if gotPayload.GuidanceScale != 12.0 {
		t.Errorf("guidance_scale 错误: %v", gotPayload.GuidanceScale)
	}
	if gotPayload.Seed < 0 || gotPayload.Seed >= seedUpperBound {
		t.Errorf("种子越界: %d", gotPayload.Seed)
	}
	if !strings.Contains(gotPayload.NegativePrompt, "human body") {
		t.Errorf("负向提示词缺失")
	}

	// 归属断言
	var img model.TattooImage
	if err := db.First(&img, result.ID).Error; err != nil {
		t.Fatalf("查询图稿失败: %v", err)
	}
	if !img.IsPublic {
		t.Error("landing 图稿必须公开")
	}
	if img.UserID != nil {
		t.Errorf("landing 图稿不应有归属: %v", *img.UserID)
	}
	if img.Prompt != "dragon wrapping a forearm" {
		t.Errorf("落库的应是用户原始输入: %q", img.Prompt)
	}
}

func TestGenerate_DashboardOwnedPrivate(t *testing.T) {
	db := setupAITestDB(t)
	pngData := makePNG(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(pngData)
	}))
	defer server.Close()

	svc := newTestAIService(t, db, server.URL)

	result, err := svc.Generate(context.Background(), 7, &dto.GenerateRequest{
		Prompt: "a compass rose",
		Style:  "geometric",
		Source: model.SourceDashboard,
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	var img model.TattooImage
	if err := db.First(&img, result.ID).Error; err != nil {
		t.Fatalf("查询图稿失败: %v", err)
	}
	if img.IsPublic {
		t.Error("dashboard 图稿必须私有")
	}
	if img.UserID == nil || *img.UserID != 7 {
		t.Errorf("dashboard 图稿归属错误: %v", img.UserID)
	}
}

func TestGenerate_DashboardAnonymousSkipsRecord(t *testing.T) {
	db := setupAITestDB(t)
	pngData := makePNG(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(pngData)
	}))
	defer server.Close()

	svc := newTestAIService(t, db, server.URL)

	// 登录态缺失: 生成照常，但不写图稿记录
	result, err := svc.Generate(context.Background(), 0, &dto.GenerateRequest{
		Prompt: "a wolf head",
		Style:  "tribal",
		Source: model.SourceDashboard,
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if result.ID != 0 {
		t.Errorf("匿名 dashboard 请求不应产生记录 ID: %d", result.ID)
	}
	if result.URL == "" {
		t.Error("生成结果仍应返回")
	}

	var count int64
	db.Model(&model.TattooImage{}).Count(&count)
	if count != 0 {
		t.Errorf("不应写入图稿记录, got %d", count)
	}
}

func TestGenerate_DashboardIncrementsUsage(t *testing.T) {
	db := setupAITestDB(t)
	pngData := makePNG(t)

	if err := db.Create(&model.Subscription{
		UserID: 7, Plan: model.PlanPro, Status: model.SubStatusActive,
	}).Error; err != nil {
		t.Fatalf("写入订阅失败: %v", err)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(pngData)
	}))
	defer server.Close()

	svc := newTestAIService(t, db, server.URL)

	if _, err := svc.Generate(context.Background(), 7, &dto.GenerateRequest{
		Prompt: "a phoenix",
		Style:  "watercolor",
		Source: model.SourceDashboard,
	}); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	var sub model.Subscription
	db.Where("user_id = ?", 7).First(&sub)
	if sub.GenerationsUsed != 1 {
		t.Errorf("用量未累加: %d", sub.GenerationsUsed)
	}
}

func TestGenerate_UpstreamError(t *testing.T) {
	db := setupAITestDB(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model loading", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	svc := newTestAIService(t, db, server.URL)

	_, err := svc.Generate(context.Background(), 0, &dto.GenerateRequest{
		Prompt: "a rose",
		Style:  "minimalist",
		Source: model.SourceLanding,
	})

	var upstreamErr *UpstreamError
	if !errors.As(err, &upstreamErr) {
		t.Fatalf("应返回 UpstreamError, got %v", err)
	}
	if upstreamErr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("状态码错误: %d", upstreamErr.StatusCode)
	}

	// 失败不得产生图稿记录
	var count int64
	db.Model(&model.TattooImage{}).Count(&count)
	if count != 0 {
		t.Errorf("失败请求不应写入图稿, got %d", count)
	}

	// 但要留下失败日志
	var genLog model.GenerationLog
	if err := db.First(&genLog).Error; err != nil {
		t.Fatalf("失败日志未写入: %v", err)
	}
	if genLog.Status != model.GenerationStatusFailed {
		t.Errorf("日志状态错误: %s", genLog.Status)
	}
}

func TestGenerate_Upstream401(t *testing.T) {
	db := setupAITestDB(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	svc := newTestAIService(t, db, server.URL)

	_, err := svc.Generate(context.Background(), 0, &dto.GenerateRequest{
		Prompt: "a rose",
		Style:  "minimalist",
		Source: model.SourceLanding,
	})
	if !errors.Is(err, ErrUpstreamAuth) {
		t.Fatalf("应返回 ErrUpstreamAuth, got %v", err)
	}
}

func TestGenerate_Timeout(t *testing.T) {
	db := setupAITestDB(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer server.Close()

	svc := NewAIService(&AIConfig{
		BaseURL: server.URL,
		Timeout: 100 * time.Millisecond,
	}, nil,
		repository.NewImageRepository(db),
		repository.NewGenerationLogRepository(db), nil)

	_, err := svc.Generate(context.Background(), 0, &dto.GenerateRequest{
		Prompt: "a rose",
		Style:  "minimalist",
		Source: model.SourceLanding,
	})
	if !errors.Is(err, ErrGenerateTimeout) {
		t.Fatalf("应返回 ErrGenerateTimeout, got %v", err)
	}

	var count int64
	db.Model(&model.TattooImage{}).Count(&count)
	if count != 0 {
		t.Errorf("超时不应产生任何图稿, got %d", count)
	}
}

func TestGenerate_MissingBaseURL(t *testing.T) {
	db := setupAITestDB(t)
	svc := newTestAIService(t, db, "")

	_, err := svc.Generate(context.Background(), 0, &dto.GenerateRequest{
		Prompt: "a rose",
		Style:  "minimalist",
		Source: model.SourceLanding,
	})
	if !errors.Is(err, ErrBaseURLMissing) {
		t.Fatalf("应返回 ErrBaseURLMissing, got %v", err)
	}
}

// ==================== 用量统计 ====================

func TestGetUsage(t *testing.T) {
	db := setupAITestDB(t)
	svc := newTestAIService(t, db, "")
	logRepo := repository.NewGenerationLogRepository(db)
	ctx := context.Background()

	seed := []*model.GenerationLog{
		{UserID: 5, Status: model.GenerationStatusSuccess, DurationMs: 1000},
		{UserID: 5, Status: model.GenerationStatusSuccess, DurationMs: 3000, UsedFallback: true},
		{UserID: 5, Status: model.GenerationStatusFailed, DurationMs: 200},
		// 其他用户的记录不应计入
		{UserID: 6, Status: model.GenerationStatusSuccess, DurationMs: 500},
	}
	for _, entry := range seed {
		if err := logRepo.Create(ctx, entry); err != nil {
			t.Fatalf("写入日志失败: %v", err)
		}
	}

	summary, err := svc.GetUsage(ctx, 5, 0)
	if err != nil {
		t.Fatalf("查询用量失败: %v", err)
	}

	if summary.Days != 30 {
		t.Errorf("默认窗口应为 30 天, got %d", summary.Days)
	}
	if summary.TotalCalls != 3 {
		t.Errorf("总调用量应为 3, got %d", summary.TotalCalls)
	}
	if summary.SuccessCount != 2 || summary.FailedCount != 1 {
		t.Errorf("成功/失败计数不正确: %d/%d", summary.SuccessCount, summary.FailedCount)
	}
	if summary.FallbackCount != 1 {
		t.Errorf("降级计数应为 1, got %d", summary.FallbackCount)
	}
	if summary.AvgDurationMs != 1400 {
		t.Errorf("平均耗时应为 1400, got %v", summary.AvgDurationMs)
	}

	// 今天的记录归入同一天
	if len(summary.Daily) != 1 {
		t.Fatalf("每日曲线应有 1 个点, got %d", len(summary.Daily))
	}
	if summary.Daily[0].TotalCalls != 3 {
		t.Errorf("当日调用量应为 3, got %d", summary.Daily[0].TotalCalls)
	}
}

// ==================== 随机性 ====================

// 默认随机源下，相同输入多次合成应出现不同的变化短语与种子
func TestSynthesizePrompt_NonDeterministic(t *testing.T) {
	svc := NewAIService(&AIConfig{}, nil, nil, nil, nil)

	prompts := make(map[string]struct{})
	seeds := make(map[int]struct{})
	for i := 0; i < 32; i++ {
		p := svc.SynthesizePrompt("a dragon", model.StyleJapanese, model.ColorSpec{Mode: model.ColorModeBW})
		prompts[p] = struct{}{}

		seed := svc.NewSeed()
		if seed < 0 || seed >= 1_000_000 {
			t.Fatalf("种子越界: %d", seed)
		}
		seeds[seed] = struct{}{}
	}

	if len(prompts) < 2 {
		t.Error("32 次合成应出现至少两种变化短语")
	}
	if len(seeds) < 2 {
		t.Error("32 次取种应出现至少两个不同种子")
	}
}
