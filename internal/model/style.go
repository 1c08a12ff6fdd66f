package model

// ==================== 风格枚举 ====================

// StyleID 纹身风格标识
type StyleID string

const (
	StylePhotorealistic StyleID = "photorealistic"
	StyleTribal         StyleID = "tribal"
	StyleGeometric      StyleID = "geometric"
	StyleMinimalist     StyleID = "minimalist"
	StyleWatercolor     StyleID = "watercolor"
	StyleNewSchool      StyleID = "new-school"
	StyleJapanese       StyleID = "japanese"
	StyleOldSchool      StyleID = "old-school"
)

// stylePhrases 风格短语表（闭合枚举，未知风格统一走 photorealistic）
var stylePhrases = map[StyleID]string{
	StylePhotorealistic: "photorealistic tattoo flash art, detailed shading, realistic stencil artwork",
	StyleTribal:         "tribal tattoo flash art, bold black lines, geometric patterns, traditional tribal stencil",
	StyleGeometric:      "geometric tattoo flash art, clean lines, symmetrical patterns, precise geometry stencil",
	StyleMinimalist:     "minimalist tattoo flash art, simple clean lines, elegant simplicity, minimal stencil",
	StyleWatercolor:     "watercolor tattoo flash art, artistic brush strokes, paint effects, colorful stencil",
	StyleNewSchool:      "new school tattoo flash art, bold outlines, vibrant cartoon style, modern stencil",
	StyleJapanese:       "traditional Japanese tattoo flash art, oriental style, cultural motifs, asian stencil",
	StyleOldSchool:      "traditional old school tattoo flash art, classic americana style, vintage stencil",
}

// StylePhrase 返回风格短语，未知风格回退到 photorealistic
func StylePhrase(style StyleID) string {
	if phrase, ok := stylePhrases[style]; ok {
		return phrase
	}
	return stylePhrases[StylePhotorealistic]
}

// ==================== 配色枚举 ====================

// ColorMode 配色模式，归一化后只允许三个取值
type ColorMode string

const (
	ColorModeBW     ColorMode = "bw"
	ColorModeSingle ColorMode = "single"
	ColorModeFull   ColorMode = "full"
)

// ColorSpec 归一化后的配色说明
type ColorSpec struct {
	Mode ColorMode `json:"mode"`
	Hex  *string   `json:"hex,omitempty"`
}

// NormalizeColorMode 把表单里的历史写法归一化为标准模式
// 未知字符串一律按 full 处理
func NormalizeColorMode(raw string) ColorMode {
	switch raw {
	case "black-and-white", "bw":
		return ColorModeBW
	case "single-color", "single":
		return ColorModeSingle
	default:
		return ColorModeFull
	}
}

// colorPhrases 配色短语表
var colorPhrases = map[ColorMode]string{
	ColorModeBW:     "black and white ink stencil, monochrome tattoo art",
	ColorModeSingle: "single color ink stencil, minimal color palette",
	ColorModeFull:   "full color tattoo stencil, vibrant colored inks",
}

// ColorPhrase 返回配色短语，未知模式回退到 full
func ColorPhrase(mode ColorMode) string {
	if phrase, ok := colorPhrases[mode]; ok {
		return phrase
	}
	return colorPhrases[ColorModeFull]
}

// HumanizeColors 转成发给生成服务的自然语言描述
func (c ColorSpec) HumanizeColors() string {
	switch c.Mode {
	case ColorModeBW:
		return "black and white"
	case ColorModeSingle:
		if c.Hex != nil && *c.Hex != "" {
			return "single color " + *c.Hex
		}
		return "single color monochrome"
	default:
		return "full color"
	}
}
