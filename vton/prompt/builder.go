package prompt

import (
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/BaSui01/doppl/types"
	"github.com/BaSui01/doppl/vton"
	"github.com/BaSui01/doppl/vton/providers"
)

// SegmentKind 片段类型
type SegmentKind int

const (
	SegmentText SegmentKind = iota
	SegmentImage
)

// Segment 有序载荷中的一项：文本或图像。
type Segment struct {
	Kind  SegmentKind
	Text  string
	Image vton.ImagePayload
}

// Payload 与 Provider 无关的提示载荷。两种 Provider 都从同一个 Segments 渲染，
// 因此身分锁定、A/B 标注、附加指令与结尾指令在两边完全一致。
type Payload struct {
	Language     vton.Language
	SystemPrompt string
	Segments     []Segment
}

// Build 根据请求构造载荷。
// 顺序：任务说明、图 A、标注 A、图 B、标注 B、可选附加指令、开始生成指令。
func Build(req *vton.GenerationRequest) *Payload {
	l := localeFor(req.Language)
	segs := []Segment{
		{Kind: SegmentText, Text: l.task},
		{Kind: SegmentImage, Image: req.UserImage},
		{Kind: SegmentText, Text: l.captionUser},
		{Kind: SegmentImage, Image: req.GarmentImage},
		{Kind: SegmentText, Text: l.captionCloth},
	}
	if refinement := strings.TrimSpace(req.Refinement); refinement != "" {
		segs = append(segs, Segment{Kind: SegmentText, Text: fmt.Sprintf(l.refinement, refinement)})
	}
	segs = append(segs, Segment{Kind: SegmentText, Text: l.begin})

	return &Payload{
		Language:     req.Language,
		SystemPrompt: SystemPrompt(req.Language),
		Segments:     segs,
	}
}

// GeminiContents 渲染为 SDK 的单条 user Content。图像以原始字节加 MIME 内联。
func (p *Payload) GeminiContents() ([]*genai.Content, error) {
	parts := make([]*genai.Part, 0, len(p.Segments))
	for i, seg := range p.Segments {
		switch seg.Kind {
		case SegmentText:
			parts = append(parts, genai.NewPartFromText(seg.Text))
		case SegmentImage:
			data, err := seg.Image.Bytes()
			if err != nil {
				return nil, types.NewInvalidRequestError(fmt.Sprintf("segment %d: image is not valid base64", i)).WithCause(err)
			}
			parts = append(parts, &genai.Part{
				InlineData: &genai.Blob{
					MIMEType: seg.Image.MIMEType,
					Data:     data,
				},
			})
		}
	}
	return []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}, nil
}

// GeminiConfig 系统提示词放在独立的 SystemInstruction 字段中，不拼进用户内容。
func (p *Payload) GeminiConfig() *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		SystemInstruction:  genai.NewContentFromText(p.SystemPrompt, genai.RoleUser),
		ResponseModalities: []string{"TEXT", "IMAGE"},
	}
}

// ChatMessages 渲染为 system + user 两条消息，user 内容为文本与 data URI 图像混排。
func (p *Payload) ChatMessages() []providers.ChatMessage {
	content := make([]providers.ChatContentPart, 0, len(p.Segments))
	for _, seg := range p.Segments {
		switch seg.Kind {
		case SegmentText:
			content = append(content, providers.TextPart(seg.Text))
		case SegmentImage:
			content = append(content, providers.ImagePart(seg.Image.DataURI()))
		}
	}
	return []providers.ChatMessage{
		{Role: providers.RoleSystem, Content: p.SystemPrompt},
		{Role: providers.RoleUser, Content: content},
	}
}

// TextSegments returns the text of every text segment in order.
func (p *Payload) TextSegments() []string {
	out := make([]string, 0, len(p.Segments))
	for _, seg := range p.Segments {
		if seg.Kind == SegmentText {
			out = append(out, seg.Text)
		}
	}
	return out
}
