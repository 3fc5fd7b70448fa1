package vton

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/BaSui01/doppl/types"
)

// Language 生成文字所用的语言。
type Language string

const (
	LangZhTW Language = "zh-TW"
	LangEN   Language = "en"
)

// ParseLanguage accepts the two supported locales, case-insensitively.
func ParseLanguage(s string) (Language, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "zh-tw", "zh_tw", "zh-hant":
		return LangZhTW, true
	case "en", "en-us", "en-gb":
		return LangEN, true
	}
	return "", false
}

// ImagePayload 是已编码的图像：不带 data: 前缀的 base64 与 MIME 类型。
type ImagePayload struct {
	Data     string `json:"data"`
	MIMEType string `json:"mime_type"`
}

// NewImagePayload builds a payload, accepting either bare base64 or a full
// data URI. A MIME type embedded in the URI is used when mime is empty.
func NewImagePayload(data, mime string) ImagePayload {
	data = strings.TrimSpace(data)
	mime = strings.TrimSpace(mime)
	if strings.HasPrefix(data, "data:") {
		if comma := strings.IndexByte(data, ','); comma > 0 {
			header := data[len("data:"):comma]
			if mime == "" {
				mime = strings.TrimSuffix(header, ";base64")
			}
			data = data[comma+1:]
		}
	}
	return ImagePayload{Data: data, MIMEType: mime}
}

// DataURI 返回 data:<mime>;base64,<data>。
func (p ImagePayload) DataURI() string {
	return "data:" + p.MIMEType + ";base64," + p.Data
}

// Bytes decodes the base64 payload.
func (p ImagePayload) Bytes() ([]byte, error) {
	return base64.StdEncoding.DecodeString(p.Data)
}

// Validate checks that the payload is non-empty, decodable, and tagged as an image.
func (p ImagePayload) Validate(label string) error {
	if p.Data == "" {
		return types.NewInvalidRequestError(fmt.Sprintf("%s image is required", label))
	}
	if !strings.HasPrefix(p.MIMEType, "image/") {
		return types.NewInvalidRequestError(fmt.Sprintf("%s image has unsupported MIME type %q", label, p.MIMEType))
	}
	if _, err := p.Bytes(); err != nil {
		return types.NewInvalidRequestError(fmt.Sprintf("%s image is not valid base64", label)).WithCause(err)
	}
	return nil
}

// GenerationRequest 单次生成调用的不可变输入。
type GenerationRequest struct {
	UserImage    ImagePayload
	GarmentImage ImagePayload
	// Refinement 可选的用户附加指令，可以为空
	Refinement string
	Language   Language
	Provider   ProviderConfig
}

// Validate 在任何 I/O 之前校验请求。
func (r *GenerationRequest) Validate() error {
	if r == nil {
		return types.NewInvalidRequestError("generation request is nil")
	}
	if r.Provider == nil {
		return types.NewConfigError("no provider selected")
	}
	if _, ok := ParseLanguage(string(r.Language)); !ok {
		return types.NewInvalidRequestError(fmt.Sprintf("unsupported language %q", r.Language))
	}
	if err := r.UserImage.Validate("user"); err != nil {
		return err
	}
	return r.GarmentImage.Validate("garment")
}
