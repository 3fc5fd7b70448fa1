package vton

// 评分范围
const (
	MinScore     = 1
	MaxScore     = 10
	DefaultScore = 5
)

// ScoreSet 五个维度的 1-10 分。
type ScoreSet struct {
	Comfort       int `json:"comfort"`
	Heaviness     int `json:"heaviness"`
	Softness      int `json:"softness"`
	Breathability int `json:"breathability"`
	Elasticity    int `json:"elasticity"`
}

// AnalysisRecord 面料/贴合分析。字段总是齐全：解析不到的部分取本地化默认值。
type AnalysisRecord struct {
	Comfort       string   `json:"comfort"`
	Weight        string   `json:"weight"`
	Touch         string   `json:"touch"`
	Breathability string   `json:"breathability"`
	Scores        ScoreSet `json:"scores"`
	// RawText 模型返回的完整文字，供调试
	RawText string `json:"raw_text"`
	// Defaulted 为 true 表示没有从模型文本中恢复出任何字段
	Defaulted bool `json:"defaulted"`
}

// Result 一次成功生成的输出。
type Result struct {
	Image    string         `json:"image"`
	Analysis AnalysisRecord `json:"analysis"`
}

// ConnectionCategory 连接测试失败的分类。
type ConnectionCategory string

const (
	ConnectionOK            ConnectionCategory = "ok"
	ConnectionMissingConfig ConnectionCategory = "missing_config"
	ConnectionUnauthorized  ConnectionCategory = "unauthorized"
	ConnectionNotFound      ConnectionCategory = "not_found"
	ConnectionHTTPError     ConnectionCategory = "http_error"
	ConnectionNetworkError  ConnectionCategory = "network_error"
)

// ConnectionTestResult 连接测试的结果。测试从不返回错误，失败也用这个结构表达。
type ConnectionTestResult struct {
	OK       bool               `json:"ok"`
	Message  string             `json:"message"`
	Category ConnectionCategory `json:"category"`
	Status   int                `json:"status,omitempty"`
	// Detail 上游响应片段或诊断信息
	Detail string `json:"detail,omitempty"`
}

// placeholder 解析中占位文字
var placeholder = map[Language]string{
	LangZhTW: "分析中...",
	LangEN:   "Analyzing...",
}

// Placeholder returns the localized descriptor used when a field is missing.
func Placeholder(lang Language) string {
	if s, ok := placeholder[lang]; ok {
		return s
	}
	return placeholder[LangEN]
}

// DefaultAnalysis 返回一份全新的默认记录，所有分数为 DefaultScore。
func DefaultAnalysis(lang Language, rawText string) AnalysisRecord {
	p := Placeholder(lang)
	return AnalysisRecord{
		Comfort:       p,
		Weight:        p,
		Touch:         p,
		Breathability: p,
		Scores: ScoreSet{
			Comfort:       DefaultScore,
			Heaviness:     DefaultScore,
			Softness:      DefaultScore,
			Breathability: DefaultScore,
			Elasticity:    DefaultScore,
		},
		RawText:   rawText,
		Defaulted: true,
	}
}

// ClampScore 把分数限制在 [MinScore, MaxScore]。
func ClampScore(v int) int {
	if v < MinScore {
		return MinScore
	}
	if v > MaxScore {
		return MaxScore
	}
	return v
}
