package normalize

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/BaSui01/doppl/types"
	"github.com/BaSui01/doppl/vton"
	"github.com/BaSui01/doppl/vton/providers"
)

// defaultImageMIME 上游未标注 MIME 时使用
const defaultImageMIME = "image/png"

// Normalize 把适配器原始输出转换为 UniversalResponse。
// 无法识别的形状返回 UNRECOGNIZED_RESPONSE 错误，从不返回空结果。
func Normalize(raw vton.RawResponse) (*vton.UniversalResponse, error) {
	shape := Classify(raw)
	var rawBody json.RawMessage
	if body, ok := raw.(vton.HTTPBody); ok {
		rawBody = body.Body
	}

	switch s := shape.(type) {
	case ChatCompletion:
		return &vton.UniversalResponse{Content: s.Content, Images: s.Images, Raw: rawBody}, nil
	case ImageArray:
		return &vton.UniversalResponse{Images: s.Images, Raw: rawBody}, nil
	case OutputWrapper:
		return &vton.UniversalResponse{Content: s.Content, Images: s.Images, Raw: rawBody}, nil
	case RawText:
		return &vton.UniversalResponse{Content: s.Text, Raw: rawBody}, nil
	case SDKParts:
		return fromSDKParts(s.Parts), nil
	case Unrecognized:
		return nil, types.NewError(types.ErrUnrecognizedResponse,
			"provider response does not match any known shape (chat completion, image array, output wrapper, or raw text)").
			WithEndpoint(s.Endpoint).
			WithDetail(s.Snippet)
	default:
		return nil, fmt.Errorf("normalize: unhandled shape %T", shape)
	}
}

// Classify 识别原始响应的形状。
// 顺序：choices → data → output → JSON 字符串，否则 Unrecognized。
func Classify(raw vton.RawResponse) Shape {
	switch r := raw.(type) {
	case vton.SDKResponse:
		return SDKParts{Parts: r.Parts}
	case vton.HTTPBody:
		return classifyBody(r)
	default:
		return Unrecognized{Snippet: fmt.Sprintf("%T", raw)}
	}
}

func classifyBody(body vton.HTTPBody) Shape {
	unrecognized := Unrecognized{
		Endpoint: body.Endpoint,
		Snippet:  providers.Truncate(string(body.Body), providers.SnippetLimit),
	}
	data := bytes.TrimSpace(body.Body)
	if len(data) == 0 {
		return unrecognized
	}

	if data[0] == '"' {
		var text string
		if err := json.Unmarshal(data, &text); err == nil {
			return RawText{Text: text}
		}
		return unrecognized
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return unrecognized
	}

	if v, ok := obj["choices"]; ok && isArray(v) {
		var resp providers.ChatResponse
		if err := json.Unmarshal(data, &resp); err == nil {
			return chatShape(resp)
		}
	}
	if v, ok := obj["data"]; ok && isArray(v) {
		if images, ok := imageArray(v); ok {
			return ImageArray{Images: images}
		}
	}
	if v, ok := obj["output"]; ok && !isNull(v) {
		if shape, ok := outputShape(v); ok {
			return shape
		}
	}
	return unrecognized
}

func chatShape(resp providers.ChatResponse) ChatCompletion {
	var out ChatCompletion
	if len(resp.Choices) == 0 {
		return out
	}
	msg := resp.Choices[0].Message

	content := bytes.TrimSpace(msg.Content)
	switch {
	case len(content) == 0 || isNull(content):
	case content[0] == '"':
		_ = json.Unmarshal(content, &out.Content)
	case content[0] == '[':
		var parts []providers.ChatContentPart
		if err := json.Unmarshal(content, &parts); err == nil {
			var b strings.Builder
			for _, p := range parts {
				switch {
				case p.Type == providers.PartTypeImageURL && p.ImageURL != nil && p.ImageURL.URL != "":
					out.Images = append(out.Images, p.ImageURL.URL)
				case p.Text != "":
					b.WriteString(p.Text)
				}
			}
			out.Content = b.String()
		}
	}

	for _, img := range msg.Images {
		if img.ImageURL != nil && img.ImageURL.URL != "" {
			out.Images = append(out.Images, img.ImageURL.URL)
		}
	}
	return out
}

// imageItem data[] 中的一项
type imageItem struct {
	URL     string `json:"url"`
	B64JSON string `json:"b64_json"`
}

func imageArray(raw json.RawMessage) ([]string, bool) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, false
	}
	images := make([]string, 0, len(items))
	for _, item := range items {
		var s string
		if json.Unmarshal(item, &s) == nil {
			if s != "" {
				images = append(images, s)
			}
			continue
		}
		var it imageItem
		if err := json.Unmarshal(item, &it); err != nil {
			continue
		}
		switch {
		case it.URL != "":
			images = append(images, it.URL)
		case it.B64JSON != "":
			images = append(images, "data:"+defaultImageMIME+";base64,"+it.B64JSON)
		}
	}
	return images, true
}

func outputShape(raw json.RawMessage) (Shape, bool) {
	var values []json.RawMessage
	if isArray(raw) {
		if err := json.Unmarshal(raw, &values); err != nil {
			return nil, false
		}
	} else {
		values = []json.RawMessage{raw}
	}

	var out OutputWrapper
	var text strings.Builder
	for _, v := range values {
		ref, ok := outputValue(v)
		if !ok {
			continue
		}
		if looksLikeImage(ref) {
			out.Images = append(out.Images, ref)
		} else {
			text.WriteString(ref)
		}
	}
	out.Content = text.String()
	if len(out.Images) == 0 && out.Content == "" && len(values) > 0 {
		return nil, false
	}
	return out, true
}

// outputValue 取出裸字符串，或对象中的 url / image / image_url 字段。
func outputValue(raw json.RawMessage) (string, bool) {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s, true
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return "", false
	}
	for _, key := range []string{"url", "image", "image_url", "b64_json"} {
		v, ok := obj[key]
		if !ok {
			continue
		}
		if json.Unmarshal(v, &s) == nil && s != "" {
			if key == "b64_json" {
				return "data:" + defaultImageMIME + ";base64," + s, true
			}
			return s, true
		}
		var nested providers.ChatImageURL
		if json.Unmarshal(v, &nested) == nil && nested.URL != "" {
			return nested.URL, true
		}
	}
	return "", false
}

func fromSDKParts(parts []vton.SDKPart) *vton.UniversalResponse {
	out := &vton.UniversalResponse{}
	var text strings.Builder
	for _, p := range parts {
		if len(p.Data) > 0 {
			mime := p.MIMEType
			if mime == "" {
				mime = defaultImageMIME
			}
			out.Images = append(out.Images, "data:"+mime+";base64,"+base64.StdEncoding.EncodeToString(p.Data))
			continue
		}
		text.WriteString(p.Text)
	}
	out.Content = text.String()
	return out
}

func looksLikeImage(ref string) bool {
	return strings.HasPrefix(ref, "http://") ||
		strings.HasPrefix(ref, "https://") ||
		strings.HasPrefix(ref, "data:image/")
}

func isArray(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '['
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
