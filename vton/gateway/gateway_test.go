package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/doppl/types"
	"github.com/BaSui01/doppl/vton"
	"github.com/BaSui01/doppl/vton/prompt"
)

const pngB64 = "iVBORw0KGgo="

// fakeAdapter 返回固定响应并记录收到的载荷
type fakeAdapter struct {
	name    string
	raw     vton.RawResponse
	err     error
	mu      sync.Mutex
	calls   int
	payload *prompt.Payload
	cfg     vton.ProviderConfig
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) Call(_ context.Context, cfg vton.ProviderConfig, payload *prompt.Payload) (vton.RawResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.payload = payload
	f.cfg = cfg
	return f.raw, f.err
}

type fakeTester struct {
	res vton.ConnectionTestResult
}

func (f *fakeTester) TestConnection(context.Context, vton.CustomConfig) vton.ConnectionTestResult {
	return f.res
}

// recordingObserver 记录观察到的事件
type recordingObserver struct {
	mu          sync.Mutex
	generations []string
	shapes      []string
	defaulted   []bool
	tests       []string
}

func (o *recordingObserver) ObserveGeneration(provider, model, status string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.generations = append(o.generations, provider+"/"+model+"/"+status)
}

func (o *recordingObserver) ObserveResponseShape(provider, shape string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.shapes = append(o.shapes, provider+"/"+shape)
}

func (o *recordingObserver) ObserveAnalysis(_ string, defaulted bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.defaulted = append(o.defaulted, defaulted)
}

func (o *recordingObserver) ObserveConnectionTest(category string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.tests = append(o.tests, category)
}

func chatBody(content string) vton.HTTPBody {
	data, _ := json.Marshal(map[string]any{
		"choices": []any{map[string]any{"message": map[string]any{"role": "assistant", "content": content}}},
	})
	return vton.HTTPBody{Endpoint: "https://x/v1/chat/completions", Body: data}
}

func request(cfg vton.ProviderConfig) *vton.GenerationRequest {
	return &vton.GenerationRequest{
		UserImage:    vton.ImagePayload{Data: pngB64, MIMEType: "image/png"},
		GarmentImage: vton.ImagePayload{Data: pngB64, MIMEType: "image/png"},
		Provider:     cfg,
	}
}

func TestGenerate_CustomProviderPipeline(t *testing.T) {
	custom := &fakeAdapter{name: "custom", raw: chatBody(
		"![result](https://cdn.example.com/out.png)\n```json\n{\"comfort\":\"soft\",\"scores\":{\"comfort\":9,}}\n```")}
	google := &fakeAdapter{name: "google"}
	obs := &recordingObserver{}
	gw := New(google, custom, nil, Config{DefaultLanguage: vton.LangEN}, zap.NewNop(), WithObserver(obs))

	cfg := vton.CustomConfig{BaseURL: "https://x/v1", APIKey: "k", Model: "gpt-4o"}
	res, err := gw.Generate(context.Background(), request(cfg))
	require.NoError(t, err)

	assert.Equal(t, "https://cdn.example.com/out.png", res.Image)
	assert.Equal(t, "soft", res.Analysis.Comfort)
	assert.Equal(t, "Analyzing...", res.Analysis.Weight)
	assert.Equal(t, 9, res.Analysis.Scores.Comfort)
	assert.Equal(t, vton.DefaultScore, res.Analysis.Scores.Softness)
	assert.False(t, res.Analysis.Defaulted)

	assert.Equal(t, 1, custom.calls)
	assert.Equal(t, 0, google.calls)
	assert.Equal(t, cfg, custom.cfg)
	assert.Equal(t, vton.LangEN, custom.payload.Language, "default language applied")

	assert.Equal(t, []string{"custom/gpt-4o/ok"}, obs.generations)
	assert.Equal(t, []string{"custom/chat_completion"}, obs.shapes)
	assert.Equal(t, []bool{false}, obs.defaulted)
}

func TestGenerate_GoogleProviderPipeline(t *testing.T) {
	google := &fakeAdapter{name: "google", raw: vton.SDKResponse{Parts: []vton.SDKPart{
		{Text: "no json here"},
		{Data: []byte{1, 2, 3}, MIMEType: "image/png"},
	}}}
	gw := New(google, &fakeAdapter{name: "custom"}, nil, Config{}, nil)

	req := request(vton.GoogleConfig{APIKey: "AIzaX"})
	req.Language = "en-US"
	res, err := gw.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,AQID", res.Image)
	assert.True(t, res.Analysis.Defaulted)
	assert.Equal(t, "Analyzing...", res.Analysis.Comfort)
	assert.Equal(t, vton.LangEN, google.payload.Language)
	assert.Equal(t, vton.Language("en-US"), req.Language, "caller request is not mutated")
}

func TestGenerate_ErrorsPropagateUnchanged(t *testing.T) {
	upstream := types.NewProviderError("rate limited", 429, "custom")

	tests := []struct {
		name    string
		adapter *fakeAdapter
		req     *vton.GenerationRequest
		code    types.ErrorCode
		same    error
		calls   int
	}{
		{
			name:    "adapter error",
			adapter: &fakeAdapter{name: "custom", err: upstream},
			req:     request(vton.CustomConfig{BaseURL: "https://x", APIKey: "k", Model: "m"}),
			code:    types.ErrProvider,
			same:    upstream,
			calls:   1,
		},
		{
			name:    "unrecognized shape",
			adapter: &fakeAdapter{name: "custom", raw: vton.HTTPBody{Body: []byte(`{"unexpected": true}`)}},
			req:     request(vton.CustomConfig{BaseURL: "https://x", APIKey: "k", Model: "m"}),
			code:    types.ErrUnrecognizedResponse,
			calls:   1,
		},
		{
			name:    "text only",
			adapter: &fakeAdapter{name: "custom", raw: chatBody("I cannot draw.")},
			req:     request(vton.CustomConfig{BaseURL: "https://x", APIKey: "k", Model: "m"}),
			code:    types.ErrNoImage,
			calls:   1,
		},
		{
			name:    "invalid request never reaches adapter",
			adapter: &fakeAdapter{name: "custom"},
			req: &vton.GenerationRequest{
				UserImage: vton.ImagePayload{Data: pngB64, MIMEType: "text/plain"},
				Provider:  vton.CustomConfig{},
			},
			code:  types.ErrInvalidRequest,
			calls: 0,
		},
		{
			name:    "no provider",
			adapter: &fakeAdapter{name: "custom"},
			req:     &vton.GenerationRequest{},
			code:    types.ErrConfig,
			calls:   0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs := &recordingObserver{}
			gw := New(&fakeAdapter{name: "google"}, tt.adapter, nil, Config{}, nil, WithObserver(obs))
			res, err := gw.Generate(context.Background(), tt.req)
			require.Error(t, err)
			assert.Nil(t, res)
			assert.Equal(t, tt.code, types.GetErrorCode(err))
			if tt.same != nil {
				assert.Same(t, tt.same, err)
			}
			assert.Equal(t, tt.calls, tt.adapter.calls)
			require.Len(t, obs.generations, 1)
			assert.Contains(t, obs.generations[0], string(tt.code))
		})
	}
}

// 未通过校验的请求不把调用方的模型名交给 Observer
func TestGenerate_InvalidRequestUsesFixedModelLabel(t *testing.T) {
	obs := &recordingObserver{}
	gw := New(&fakeAdapter{name: "google"}, &fakeAdapter{name: "custom"}, nil, Config{}, nil, WithObserver(obs))

	for i := 0; i < 20; i++ {
		req := &vton.GenerationRequest{
			Provider: vton.CustomConfig{BaseURL: "https://x", APIKey: "k", Model: fmt.Sprintf("junk-%d", i)},
		}
		_, err := gw.Generate(context.Background(), req)
		require.Error(t, err)
	}

	require.Len(t, obs.generations, 20)
	for _, g := range obs.generations {
		assert.Equal(t, "custom/"+InvalidModel+"/"+string(types.ErrInvalidRequest), g)
	}
}

func TestGenerate_NilRequest(t *testing.T) {
	_, err := New(nil, nil, nil, Config{}, nil).Generate(context.Background(), nil)
	assert.True(t, types.IsCode(err, types.ErrInvalidRequest))
}

func TestGenerate_MissingAdapter(t *testing.T) {
	gw := New(nil, &fakeAdapter{name: "custom"}, nil, Config{}, nil)
	_, err := gw.Generate(context.Background(), request(vton.GoogleConfig{APIKey: "AIzaX"}))
	assert.True(t, types.IsCode(err, types.ErrConfig))
}

func TestGenerate_RecordsSpan(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	gw := New(&fakeAdapter{name: "google", raw: vton.SDKResponse{}}, nil, nil, Config{}, nil,
		WithTracer(tp.Tracer("test")))
	_, err := gw.Generate(context.Background(), request(vton.GoogleConfig{APIKey: "AIzaX"}))
	require.Error(t, err)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "vton.generate", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)

	attrs := map[string]string{}
	for _, kv := range spans[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "google", attrs["vton.provider"])
	assert.Equal(t, vton.DefaultGoogleModel, attrs["vton.model"])
	assert.Equal(t, "zh-TW", attrs["vton.language"])
}

func TestGenerate_ConcurrentCallsDoNotInterfere(t *testing.T) {
	google := &fakeAdapter{name: "google", raw: vton.SDKResponse{Parts: []vton.SDKPart{{Data: []byte{9}, MIMEType: "image/png"}}}}
	custom := &fakeAdapter{name: "custom", raw: chatBody("![x](https://custom/x.png)")}
	gw := New(google, custom, nil, Config{}, nil)

	var g errgroup.Group
	for i := 0; i < 20; i++ {
		g.Go(func() error {
			var cfg vton.ProviderConfig = vton.GoogleConfig{APIKey: "AIzaX"}
			want := "data:image/png;base64,CQ=="
			if i%2 == 0 {
				cfg = vton.CustomConfig{BaseURL: "https://x", APIKey: "k", Model: "m"}
				want = "https://custom/x.png"
			}
			res, err := gw.Generate(context.Background(), request(cfg))
			if err != nil {
				return err
			}
			if res.Image != want {
				return assert.AnError
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, 10, google.calls)
	assert.Equal(t, 10, custom.calls)
}

func TestTestCustomConnection(t *testing.T) {
	obs := &recordingObserver{}
	tester := &fakeTester{res: vton.ConnectionTestResult{OK: false, Category: vton.ConnectionUnauthorized, Message: "authentication failed"}}
	gw := New(nil, nil, tester, Config{}, nil, WithObserver(obs))

	res := gw.TestCustomConnection(context.Background(), vton.CustomConfig{})
	assert.False(t, res.OK)
	assert.Equal(t, vton.ConnectionUnauthorized, res.Category)
	assert.Equal(t, []string{"unauthorized"}, obs.tests)

	res = New(nil, nil, nil, Config{}, nil).TestCustomConnection(context.Background(), vton.CustomConfig{})
	assert.False(t, res.OK)
}

func TestNewDefault_EndToEndCustom(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"b64_json":"AAAA"}]}`))
	}))
	defer srv.Close()

	gw := NewDefault(Config{DefaultLanguage: vton.LangZhTW, Timeout: 5 * time.Second}, zap.NewNop())
	res, err := gw.Generate(context.Background(), request(vton.CustomConfig{BaseURL: srv.URL, APIKey: "k", Model: "dall-e"}))
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,AAAA", res.Image)
	assert.True(t, res.Analysis.Defaulted)
	assert.Equal(t, "分析中...", res.Analysis.Touch)

	conn := gw.TestCustomConnection(context.Background(), vton.CustomConfig{BaseURL: srv.URL, APIKey: "k", Model: "dall-e"})
	assert.True(t, conn.OK)

	_, err = gw.Generate(context.Background(), request(vton.GoogleConfig{APIKey: "not-a-google-key"}))
	assert.True(t, types.IsCode(err, types.ErrCredentialFormat))
}
