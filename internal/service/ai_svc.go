package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"regexp"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"gorm.io/datatypes"

	"tattoo_studio_v1_202608/internal/api/dto"
	"tattoo_studio_v1_202608/internal/model"
	"tattoo_studio_v1_202608/internal/repository"
	"tattoo_studio_v1_202608/pkg/utils"
)

// ==================== 配置 ====================

// AIConfig 生成服务配置
type AIConfig struct {
	BaseURL      string // 生成服务地址，支持 huggingface.co/spaces 两种写法
	APIKey       string // x-api-key，可为空
	ModelVersion string
	Timeout      time.Duration
}

// ==================== 错误定义 ====================

var (
	ErrPromptRequired = errors.New("prompt 不能为空")
	ErrStyleRequired  = errors.New("style 不能为空")
	ErrBaseURLMissing = errors.New("未配置生成服务地址 (GEN_BASE_URL)")

	// 超时: 单次调用超出配置上限，不产生任何工件
	ErrGenerateTimeout = errors.New("生成服务调用超时")

	// 401: 服务端凭证配置问题，不是用户输入问题，运维需单独关注
	ErrUpstreamAuth = errors.New("生成服务鉴权失败，请检查服务端 SERVICE_TOKEN 与本侧 API Key 配置")
)

// UpstreamError 生成服务返回非 2xx
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("生成服务错误 [%d]: %s", e.StatusCode, e.Body)
}

// ==================== 随机源 ====================

// RandSource 随机源接口，注入式设计便于测试替换为确定性序列
type RandSource interface {
	Intn(n int) int
}

// globalRand 默认随机源，包装并发安全的全局生成器
type globalRand struct{}

func (globalRand) Intn(n int) int { return rand.Intn(n) }

// ==================== 提示词素材 ====================

// variabilityPhrases 变化短语，每次生成随机取一条，降低同题重复感
var variabilityPhrases = []string{
	"unique interpretation",
	"creative variation",
	"artistic twist",
	"distinctive style",
	"original design",
	"fresh perspective",
	"innovative approach",
	"custom artwork",
}

// studioFormat 工作室版式（固定文本，不参与随机）
const studioFormat = `
tattoo flash sheet style, isolated stencil design,
clean white background, floating design only,
no human body, no skin, no person, no anatomical parts,
tattoo parlor reference art, printable stencil template,
centered composition on plain background,
professional tattoo artist reference sheet,
clean outline design ready to transfer,
standalone artwork, flat design presentation,
studio quality, tattoo shop wall art style`

// negativePrompt 人体/躯体压制词表（固定）
const negativePrompt = "human body, person, people, skin, face, hands, arms, legs, torso, anatomy, body parts, muscle, flesh, realistic skin texture, body outline, anatomical, limbs, shoulders, chest, back, stomach, neck, head, human figure, mannequin, model, portrait, selfie, photo of person, man, woman, child, crowd, group, on skin, tattooed on body, body placement, arm tattoo, leg tattoo, chest tattoo, back tattoo, blurred, low quality, deformed, extra limbs, multiple designs, text, watermark, signature, cluttered background, messy, dirty, complex background, detailed background"

// 固定生成参数
const (
	genSteps         = 35
	genWidth         = 1024
	genHeight        = 1024
	genGuidanceScale = 12.0

	seedUpperBound = 1_000_000
)

// ==================== 服务 ====================

// AIService 图稿生成服务
// 管线: 校验 → 合成提示词 → 调用生成服务 → 持久化工件 → 写记录
type AIService struct {
	Config  *AIConfig
	Storage *StorageService // 可为 nil，nil 时直接走 data URL 降级
	Rand    RandSource

	client    *resty.Client
	imageRepo repository.ImageRepository
	logRepo   repository.GenerationLogRepository
	subRepo   repository.SubscriptionRepository // 可为 nil
}

// NewAIService 创建生成服务
func NewAIService(cfg *AIConfig, storage *StorageService,
	imageRepo repository.ImageRepository,
	logRepo repository.GenerationLogRepository,
	subRepo repository.SubscriptionRepository) *AIService {

	if cfg.ModelVersion == "" {
		cfg.ModelVersion = "runwayml/stable-diffusion-v1-5"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 300 * time.Second
	}

	return &AIService{
		Config:    cfg,
		Storage:   storage,
		Rand:      globalRand{},
		client:    utils.NewAPIClient(cfg.Timeout),
		imageRepo: imageRepo,
		logRepo:   logRepo,
		subRepo:   subRepo,
	}
}

// ==================== 校验 ====================

// ValidateRequest 校验原始请求并归一化配色
// 无副作用；prompt 返回前已 trim
func ValidateRequest(req *dto.GenerateRequest) (prompt string, style model.StyleID, colors model.ColorSpec, err error) {
	prompt = strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return "", "", model.ColorSpec{}, ErrPromptRequired
	}
	if strings.TrimSpace(req.Style) == "" {
		return "", "", model.ColorSpec{}, ErrStyleRequired
	}

	return prompt, model.StyleID(req.Style), NormalizeColors(req.Colors), nil
}

// NormalizeColors 把 colors 字段归一化为 ColorSpec
// 允许历史字符串别名，未知字符串按 full 处理；已是结构化则透传 mode/hex
func NormalizeColors(raw interface{}) model.ColorSpec {
	switch v := raw.(type) {
	case string:
		return model.ColorSpec{Mode: model.NormalizeColorMode(v)}
	case map[string]interface{}:
		spec := model.ColorSpec{Mode: model.ColorModeFull}
		if mode, ok := v["mode"].(string); ok {
			spec.Mode = model.NormalizeColorMode(mode)
		}
		if hex, ok := v["hex"].(string); ok && hex != "" {
			spec.Hex = &hex
		}
		return spec
	default:
		return model.ColorSpec{Mode: model.ColorModeFull}
	}
}

// ==================== 提示词合成 ====================

// BuildStudioPrompt 合成最终提示词（不含变化短语，纯函数）
// 固定顺序: 基础短语(嵌入用户输入) → 风格短语 → 配色短语 → 工作室版式
func BuildStudioPrompt(userPrompt string, style model.StyleID, colors model.ColorSpec) string {
	basePrompt := fmt.Sprintf(
		"Tattoo stencil design, tattoo flash art, standalone %s design, isolated artwork, no body, no human",
		userPrompt,
	)

	return fmt.Sprintf("%s, %s, \n%s, %s",
		basePrompt,
		model.StylePhrase(style),
		model.ColorPhrase(colors.Mode),
		studioFormat,
	)
}

// SynthesizePrompt 合成提示词并追加随机变化短语
// 相同输入多次调用结果不同——这是产品要求，不是缺陷
func (s *AIService) SynthesizePrompt(userPrompt string, style model.StyleID, colors model.ColorSpec) string {
	prompt := BuildStudioPrompt(userPrompt, style, colors)
	variation := variabilityPhrases[s.Rand.Intn(len(variabilityPhrases))]
	return prompt + ", " + variation
}

// NewSeed 生成随机种子 [0, 1000000)，与变化短语相互独立
func (s *AIService) NewSeed() int {
	return s.Rand.Intn(seedUpperBound)
}

// ==================== 地址归一化 ====================

var (
	hfSpacesPattern = regexp.MustCompile(`(?i)^https?://huggingface\.co/spaces/([^/]+)/([^/?#]+)$`)
	hfEmbedPattern  = regexp.MustCompile(`(?i)^https?://hf\.space/embed/([^/]+)/([^/?#]+)$`)
)

// NormalizeBaseURL 把两种 Hugging Face Space 写法归一化为 *.hf.space 子域
func NormalizeBaseURL(input string) string {
	trimmed := strings.TrimRight(input, "/")
	if m := hfSpacesPattern.FindStringSubmatch(trimmed); m != nil {
		return fmt.Sprintf("https://%s-%s.hf.space", m[1], m[2])
	}
	if m := hfEmbedPattern.FindStringSubmatch(trimmed); m != nil {
		return fmt.Sprintf("https://%s-%s.hf.space", m[1], m[2])
	}
	return trimmed
}

func joinURL(base, path string) string {
	b := strings.TrimRight(base, "/")
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return b + path
}

// ==================== 生成管线 ====================

// generatePayload 发给生成服务的请求体
type generatePayload struct {
	Prompt         string  `json:"prompt"`
	Style          string  `json:"style"`
	Colors         string  `json:"colors"`
	Seed           int     `json:"seed"`
	Steps          int     `json:"steps"`
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	GuidanceScale  float64 `json:"guidance_scale"`
	NegativePrompt string  `json:"negative_prompt"`
}

// Generate 执行一次完整生成管线
// ownerID: 登录用户 ID，0 表示匿名
// 归属规则: landing 一律公开匿名入库; dashboard 私有，匿名则只生成不入库
func (s *AIService) Generate(ctx context.Context, ownerID int64, req *dto.GenerateRequest) (*dto.GenerateResult, error) {
	// 1. 校验
	prompt, style, colors, err := ValidateRequest(req)
	if err != nil {
		return nil, err
	}

	// 2. 提示词合成 + 种子
	finalPrompt := s.SynthesizePrompt(prompt, style, colors)
	seed := s.NewSeed()

	// 3. 调用生成服务（失败即终止，无重试）
	start := time.Now()
	imageData, err := s.invoke(ctx, finalPrompt, style, colors, seed)
	duration := time.Since(start).Milliseconds()
	if err != nil {
		s.writeLog(ownerID, 0, style, seed, duration, false, model.GenerationStatusFailed, err.Error())
		return nil, err
	}

	// 4. 持久化工件（存储失败降级为 data URL，不让请求失败）
	url, thumbURL, usedFallback := s.persist(ctx, imageData)

	// 5. 写记录（尽力而为，落库失败不掩盖已成功的生成结果）
	isPublic := req.Source == model.SourceLanding
	var userID *int64
	skipRecord := false
	if req.Source == model.SourceDashboard {
		if ownerID > 0 {
			userID = &ownerID
		} else {
			// 无登录态的 dashboard 请求: 只生成不入库
			skipRecord = true
		}
	}

	var imageID int64
	if !skipRecord {
		colorsJSON, _ := json.Marshal(colors)
		image := &model.TattooImage{
			UserID:       userID,
			URL:          url,
			ThumbURL:     thumbURL,
			Prompt:       prompt,
			Style:        string(style),
			Colors:       datatypes.JSON(colorsJSON),
			IsPublic:     isPublic,
			ModelVersion: s.Config.ModelVersion,
		}
		if dbErr := s.imageRepo.Create(ctx, image); dbErr != nil {
			log.Printf("图稿元数据落库失败（结果仍返回）: %v", dbErr)
			s.writeLog(ownerID, 0, style, seed, duration, usedFallback, model.GenerationStatusRecordLost, dbErr.Error())
		} else {
			imageID = image.ID
			s.writeLog(ownerID, imageID, style, seed, duration, usedFallback, model.GenerationStatusSuccess, "")
		}
	} else {
		s.writeLog(ownerID, 0, style, seed, duration, usedFallback, model.GenerationStatusSuccess, "")
	}

	// 6. dashboard 生成计入订阅用量
	if req.Source == model.SourceDashboard && ownerID > 0 && s.subRepo != nil {
		if usageErr := s.subRepo.IncrementUsage(ctx, ownerID); usageErr != nil {
			log.Printf("订阅用量更新失败: %v", usageErr)
		}
	}

	return &dto.GenerateResult{
		ID:           imageID,
		URL:          url,
		ModelVersion: s.Config.ModelVersion,
	}, nil
}

// invoke 单次调用外部生成服务，返回 PNG 字节
func (s *AIService) invoke(ctx context.Context, finalPrompt string, style model.StyleID, colors model.ColorSpec, seed int) ([]byte, error) {
	if s.Config.BaseURL == "" {
		return nil, ErrBaseURLMissing
	}
	endpoint := joinURL(NormalizeBaseURL(s.Config.BaseURL), "/generate")

	payload := &generatePayload{
		Prompt:         finalPrompt,
		Style:          string(style),
		Colors:         colors.HumanizeColors(),
		Seed:           seed,
		Steps:          genSteps,
		Width:          genWidth,
		Height:         genHeight,
		GuidanceScale:  genGuidanceScale,
		NegativePrompt: negativePrompt,
	}

	callCtx, cancel := context.WithTimeout(ctx, s.Config.Timeout)
	defer cancel()

	req := s.client.R().
		SetContext(callCtx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "image/png").
		SetBody(payload)
	if s.Config.APIKey != "" {
		req.SetHeader("x-api-key", s.Config.APIKey)
	}

	resp, err := req.Post(endpoint)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || callCtx.Err() == context.DeadlineExceeded {
			return nil, ErrGenerateTimeout
		}
		return nil, fmt.Errorf("请求生成服务失败: %v", err)
	}

	if resp.StatusCode() == 401 {
		log.Printf("生成服务返回 401, endpoint=%s", endpoint)
		return nil, ErrUpstreamAuth
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return nil, &UpstreamError{
			StatusCode: resp.StatusCode(),
			Body:       resp.String(),
		}
	}

	data := resp.Body()
	if !utils.IsPNG(data) {
		// 部分 Space 返回 PNG 时不带标准头，只记日志不拦截
		log.Printf("警告: 生成服务响应不是标准 PNG (size=%d)", len(data))
	}
	return data, nil
}

// persist 上传工件并解析公开 URL
// 任何存储层错误都降级为内嵌 data URL——这是文档化的降级路径，请求不因存储失败而失败
func (s *AIService) persist(ctx context.Context, data []byte) (url, thumbURL string, usedFallback bool) {
	if s.Storage == nil {
		return dataURL(data), "", true
	}

	name := NewObjectName()
	uploaded, err := s.Storage.Upload(ctx, data, name, "image/png")
	if err != nil {
		log.Printf("对象存储上传失败，降级为 data URL: %v", err)
		return dataURL(data), "", true
	}

	// 缩略图尽力而为，失败不影响主流程
	if thumb, thumbErr := utils.MakeThumbnail(data, 256); thumbErr == nil {
		if tURL, upErr := s.Storage.Upload(ctx, thumb, ThumbObjectName(name), "image/png"); upErr == nil {
			thumbURL = tURL
		} else {
			log.Printf("缩略图上传失败: %v", upErr)
		}
	}

	return uploaded, thumbURL, false
}

func dataURL(data []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(data)
}

// writeLog 写生成日志，失败只打日志
func (s *AIService) writeLog(userID, imageID int64, style model.StyleID, seed int, durationMs int64, usedFallback bool, status, errMsg string) {
	if s.logRepo == nil {
		return
	}
	if len(errMsg) > 1024 {
		errMsg = errMsg[:1024]
	}
	entry := &model.GenerationLog{
		UserID:       userID,
		ImageID:      imageID,
		ModelVersion: s.Config.ModelVersion,
		Style:        string(style),
		Seed:         seed,
		DurationMs:   durationMs,
		UsedFallback: usedFallback,
		Status:       status,
		ErrorMsg:     errMsg,
	}
	if err := s.logRepo.Create(context.Background(), entry); err != nil {
		log.Printf("生成日志写入失败: %v", err)
	}
}

// ==================== 用量统计 ====================

// defaultUsageWindowDays 用量统计默认窗口
const defaultUsageWindowDays = 30

// GetUsage 查询用户近 days 天的生成用量汇总与每日调用量
func (s *AIService) GetUsage(ctx context.Context, userID int64, days int) (*dto.UsageSummary, error) {
	if days <= 0 || days > 365 {
		days = defaultUsageWindowDays
	}
	end := time.Now()
	start := end.AddDate(0, 0, -days)

	stats, err := s.logRepo.GetUsageByUser(ctx, userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("用量统计查询失败: %v", err)
	}

	daily, err := s.logRepo.GetDailyUsage(ctx, userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("每日用量查询失败: %v", err)
	}

	summary := &dto.UsageSummary{
		Days:          days,
		TotalCalls:    stats.TotalCalls,
		SuccessCount:  stats.SuccessCount,
		FailedCount:   stats.FailedCount,
		FallbackCount: stats.FallbackCount,
		AvgDurationMs: stats.AvgDurationMs,
		Daily:         make([]dto.DailyUsage, 0, len(daily)),
	}
	for _, d := range daily {
		summary.Daily = append(summary.Daily, dto.DailyUsage{Date: d.Date, TotalCalls: d.TotalCalls})
	}

	return summary, nil
}
