package prompt

import (
	"strconv"
	"strings"

	"github.com/BaSui01/doppl/vton"
)

// AnalysisKeys 模型必须在末尾 JSON 区块中输出的顶层键
var AnalysisKeys = []string{"comfort", "weight", "touch", "breathability", "scores"}

// ScoreKeys scores 对象中的键，均为 1-10 的整数
var ScoreKeys = []string{"comfort", "heaviness", "softness", "breathability", "elasticity"}

// exampleScores 示例中的分数，与 ScoreKeys 一一对应。
// 取不同的值，避免模型照抄示例或退回默认分。
var exampleScores = []int{8, 6, 9, 7, 5}

// locale 每种语言的提示词文本
type locale struct {
	system       string
	task         string
	captionUser  string
	captionCloth string
	refinement   string // 含一个 %s
	begin        string
	// 示例描述，按 comfort/weight/touch/breathability 顺序
	examples [4]string
}

var locales = map[vton.Language]locale{
	vton.LangZhTW: {
		system: `你是頂尖的 "Doppl-Next VTON Engine"（虛擬試穿引擎）。
任務：
1. 分析使用者圖片（輸入 A）與服裝圖片（輸入 B）。
2. 生成一張將服裝穿在使用者身上的寫實試穿圖像。
3. 提供「虛擬觸感報告」的 JSON 數據。

# 生成規則
- 身分鎖定：100% 保留使用者的臉部、五官、膚色、髮型、體型與姿勢，不得美化或替換。
- 物理模擬：依布料材質呈現真實的垂墜、重力、皺褶與張力，服裝須貼合身體輪廓。
- 光影匹配：服裝的光源方向、陰影與色溫必須與原圖一致。
- 遮擋處理：手臂、頭髮、配件與服裝的前後關係必須正確。
- 背景與構圖維持原圖不變。

# 輸出要求
- 圖像：直接輸出生成的圖像。若只能輸出文字，請以 Markdown 圖像連結 ![result](URL) 提供。
- JSON 數據：無論如何，回應的最後必須包含以下 JSON 區塊，鍵名不可更改，描述請使用繁體中文：
`,
		task:         "【任務】請根據以下兩張圖片生成 VTON 試穿結果。",
		captionUser:  "【輸入 A：使用者原圖】",
		captionCloth: "【輸入 B：目標服飾】",
		refinement:   "【使用者額外指令】: %s",
		begin:        "開始生成試穿圖像與詳細 JSON 數據分析：",
		examples:     [4]string{"柔軟親膚", "輕盈", "絲滑", "透氣"},
	},
	vton.LangEN: {
		system: `You are the "Doppl-Next VTON Engine", a state-of-the-art virtual try-on engine.
Tasks:
1. Analyze the user photo (input A) and the garment photo (input B).
2. Generate one photorealistic image of the user wearing the garment.
3. Provide a "Phantom Haptics Report" as JSON data.

# Generation rules
- Identity lock: preserve the user's face, features, skin tone, hair, body shape and pose 100%. Never beautify or replace them.
- Physics: render realistic drape, gravity, folds and tension for the fabric, fitted to the body contour.
- Lighting: the garment must match the light direction, shadows and color temperature of the original photo.
- Occlusion: arms, hair and accessories must layer correctly in front of or behind the garment.
- Keep the background and framing of the original photo unchanged.

# Output requirements
- Image: output the generated image directly. If you can only output text, provide a Markdown image link ![result](URL).
- JSON data: no matter what, the response MUST end with the following JSON block. Do not rename keys. Write descriptions in English:
`,
		task:         "[Task] Generate a VTON try-on result from the two images below.",
		captionUser:  "[Input A: user photo]",
		captionCloth: "[Input B: target garment]",
		refinement:   "[Additional user instruction]: %s",
		begin:        "Begin generating the try-on image and the detailed JSON analysis:",
		examples:     [4]string{"soft on skin", "lightweight", "silky", "breathable"},
	},
}

func localeFor(lang vton.Language) locale {
	if l, ok := locales[lang]; ok {
		return l
	}
	return locales[vton.LangEN]
}

// SystemPrompt 返回指定语言的完整系统提示词，末尾附带 JSON 契约示例。
func SystemPrompt(lang vton.Language) string {
	l := localeFor(lang)
	var b strings.Builder
	b.WriteString(l.system)
	b.WriteString("\n```json\n{\n")
	for i, key := range AnalysisKeys[:4] {
		b.WriteString(`  "` + key + `": "` + l.examples[i] + `",` + "\n")
	}
	b.WriteString(`  "scores": {` + "\n")
	for i, key := range ScoreKeys {
		b.WriteString(`    "` + key + `": ` + strconv.Itoa(exampleScores[i]))
		if i < len(ScoreKeys)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString("  }\n}\n```\n")
	b.WriteString(scoreNote(lang))
	return b.String()
}

func scoreNote(lang vton.Language) string {
	if lang == vton.LangZhTW {
		return "scores 中每一項皆為 1 到 10 的整數。\n"
	}
	return "Every value in scores is an integer from 1 to 10.\n"
}
