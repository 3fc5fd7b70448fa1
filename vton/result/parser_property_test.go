package result

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/BaSui01/doppl/vton"
)

type contractRecord struct {
	Comfort       string        `json:"comfort"`
	Weight        string        `json:"weight"`
	Touch         string        `json:"touch"`
	Breathability string        `json:"breathability"`
	Scores        vton.ScoreSet `json:"scores"`
}

func recordFrom(desc []string, scores []int) contractRecord {
	return contractRecord{
		Comfort:       desc[0],
		Weight:        desc[1],
		Touch:         desc[2],
		Breathability: desc[3],
		Scores: vton.ScoreSet{
			Comfort:       scores[0],
			Heaviness:     scores[1],
			Softness:      scores[2],
			Breathability: scores[3],
			Elasticity:    scores[4],
		},
	}
}

func sameRecord(a vton.AnalysisRecord, want contractRecord) bool {
	return a.Comfort == want.Comfort &&
		a.Weight == want.Weight &&
		a.Touch == want.Touch &&
		a.Breathability == want.Breathability &&
		a.Scores == want.Scores &&
		!a.Defaulted
}

// 编码记录、嵌入 ```json 区块、解析，应当完全还原
func TestProperty_AnalysisRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)
	parser := NewParser(nil)

	properties.Property("fenced JSON record is recovered exactly", prop.ForAll(
		func(desc []string, scores []int, lang bool) bool {
			want := recordFrom(desc, scores)
			data, err := json.MarshalIndent(want, "", "  ")
			if err != nil {
				return false
			}
			language := vton.LangEN
			if lang {
				language = vton.LangZhTW
			}
			content := "Here is your try-on.\n![r](https://x/r.png)\n```json\n" + string(data) + "\n```\n"
			got := parser.ParseAnalysis(content, language)
			if !sameRecord(got, want) {
				t.Logf("mismatch: got %+v want %+v", got, want)
				return false
			}
			return true
		},
		gen.SliceOfN(4, gen.Identifier()),
		gen.SliceOfN(5, gen.IntRange(vton.MinScore, vton.MaxScore)),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

// 在 } 与 ] 前插入逗号不影响解析结果
func TestProperty_TrailingCommaTolerance(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)
	parser := NewParser(nil)

	properties.Property("trailing commas are stripped before parsing", prop.ForAll(
		func(desc []string, scores []int, ws string) bool {
			want := recordFrom(desc, scores)
			clean := fmt.Sprintf(`{"comfort":%q,"weight":%q,"touch":%q,"breathability":%q,"scores":{"comfort":%d,"heaviness":%d,"softness":%d,"breathability":%d,"elasticity":%d}}`,
				want.Comfort, want.Weight, want.Touch, want.Breathability,
				scores[0], scores[1], scores[2], scores[3], scores[4])
			dirty := strings.ReplaceAll(clean, "}", ","+ws+"}")

			a := parser.ParseAnalysis("```json\n"+clean+"\n```", vton.LangEN)
			b := parser.ParseAnalysis("```json\n"+dirty+"\n```", vton.LangEN)
			return sameRecord(a, want) && sameRecord(b, want)
		},
		gen.SliceOfN(4, gen.Identifier()),
		gen.SliceOfN(5, gen.IntRange(vton.MinScore, vton.MaxScore)),
		gen.OneConstOf("", " ", "\n", "\t "),
	))

	properties.TestingRun(t)
}
