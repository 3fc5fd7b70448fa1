package result

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/doppl/types"
	"github.com/BaSui01/doppl/vton"
)

var (
	markdownImageRe = regexp.MustCompile(`!\[.*?\]\((.*?)\)`)
	dataURIRe       = regexp.MustCompile(`data:image/[a-zA-Z0-9.+-]+;base64,[A-Za-z0-9+/=]+`)

	// JSON 候选，按优先级排列
	jsonFenceRe = regexp.MustCompile("```json\\s*([\\s\\S]*?)\\s*```")
	anyFenceRe  = regexp.MustCompile("```\\s*([\\s\\S]*?)\\s*```")
	braceRe     = regexp.MustCompile(`\{[\s\S]*\}`)

	trailingBraceRe   = regexp.MustCompile(`,\s*}`)
	trailingBracketRe = regexp.MustCompile(`,\s*]`)
)

// Parser 把 UniversalResponse 解析为最终结果。无状态，可并发使用。
type Parser struct {
	logger *zap.Logger
}

// NewParser creates a parser. A nil logger disables diagnostics.
func NewParser(logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{logger: logger}
}

// Parse 解析图像与分析记录。图像缺失时返回 NO_IMAGE 错误；分析解析失败只记日志，退回默认值。
func (p *Parser) Parse(resp *vton.UniversalResponse, lang vton.Language) (*vton.Result, error) {
	if resp == nil {
		resp = &vton.UniversalResponse{}
	}
	image, ok := ResolveImage(resp)
	if !ok {
		return nil, types.NewNoImageError(
			"the model returned text only and no image. Make sure the selected model can generate images, " +
				"or that it returns the image as a Markdown link.")
	}
	return &vton.Result{
		Image:    image,
		Analysis: p.ParseAnalysis(resp.Content, lang),
	}, nil
}

// ResolveImage 依次尝试：images 第一项、Markdown 图像链接、内嵌 data URI。
func ResolveImage(resp *vton.UniversalResponse) (string, bool) {
	for _, img := range resp.Images {
		if img = strings.TrimSpace(img); img != "" {
			return img, true
		}
	}
	if m := markdownImageRe.FindStringSubmatch(resp.Content); m != nil {
		// ![alt](url "title") 只取 url
		if fields := strings.Fields(m[1]); len(fields) > 0 {
			return strings.Trim(fields[0], "<>"), true
		}
	}
	if m := dataURIRe.FindString(resp.Content); m != "" {
		return m, true
	}
	return "", false
}

// Candidates 按优先级返回 content 中的 JSON 候选：```json 区块、任意代码块、首个大括号子串。
func Candidates(content string) []string {
	var out []string
	if m := jsonFenceRe.FindStringSubmatch(content); m != nil {
		out = append(out, m[1])
	}
	if m := anyFenceRe.FindStringSubmatch(content); m != nil {
		out = append(out, m[1])
	}
	if m := braceRe.FindString(content); m != "" {
		out = append(out, m)
	}
	return out
}

// StripTrailingCommas 去掉 } 与 ] 前多余的逗号。
func StripTrailingCommas(s string) string {
	s = trailingBraceRe.ReplaceAllString(s, "}")
	return trailingBracketRe.ReplaceAllString(s, "]")
}

// ParseAnalysis 从文本中恢复分析记录，总是返回完整记录。
func (p *Parser) ParseAnalysis(content string, lang vton.Language) vton.AnalysisRecord {
	record := vton.DefaultAnalysis(lang, content)

	candidates := Candidates(content)
	if len(candidates) == 0 {
		p.logger.Warn("no analysis JSON found in model output, using defaults",
			zap.String("code", string(types.ErrAnalysisParse)),
			zap.Int("content_len", len(content)))
		return record
	}

	var lastErr error
	for i, candidate := range candidates {
		var parsed map[string]any
		if err := json.Unmarshal([]byte(StripTrailingCommas(candidate)), &parsed); err != nil {
			lastErr = err
			continue
		}
		if merge(&record, parsed) {
			record.Defaulted = false
		}
		p.logger.Debug("analysis JSON recovered", zap.Int("candidate", i), zap.Bool("defaulted", record.Defaulted))
		return record
	}

	p.logger.Warn("analysis JSON could not be parsed, using defaults",
		zap.String("code", string(types.ErrAnalysisParse)),
		zap.Int("candidates", len(candidates)),
		zap.Error(lastErr))
	return record
}

// merge 把识别到的字段覆盖到默认记录上，scores 逐键合并。返回是否恢复了任何字段。
func merge(record *vton.AnalysisRecord, parsed map[string]any) bool {
	recovered := false
	descriptors := []struct {
		key string
		dst *string
	}{
		{"comfort", &record.Comfort},
		{"weight", &record.Weight},
		{"touch", &record.Touch},
		{"breathability", &record.Breathability},
	}
	for _, d := range descriptors {
		if s, ok := safeString(parsed[d.key]); ok {
			*d.dst = s
			recovered = true
		}
	}

	scores, _ := parsed["scores"].(map[string]any)
	fields := []struct {
		key string
		dst *int
	}{
		{"comfort", &record.Scores.Comfort},
		{"heaviness", &record.Scores.Heaviness},
		{"softness", &record.Scores.Softness},
		{"breathability", &record.Scores.Breathability},
		{"elasticity", &record.Scores.Elasticity},
	}
	for _, f := range fields {
		if n, ok := safeScore(scores[f.key]); ok {
			*f.dst = n
			recovered = true
		}
	}
	return recovered
}

// safeString 只接受非空字符串
func safeString(value any) (string, bool) {
	if s, ok := value.(string); ok {
		if s = strings.TrimSpace(s); s != "" {
			return s, true
		}
	}
	return "", false
}

// safeScore 接受数字或数字字符串，四舍五入后限制在 1-10
func safeScore(value any) (int, bool) {
	var f float64
	switch v := value.(type) {
	case float64:
		f = v
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return vton.ClampScore(int(math.Round(f))), true
}
