package metrics

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/doppl/vton/gateway"
)

var _ gateway.Observer = (*Collector)(nil)

var collectorNamespaceSeq uint64

func nextTestNamespace() string {
	seq := atomic.AddUint64(&collectorNamespaceSeq, 1)
	return fmt.Sprintf("test_%d", seq)
}

// =============================================================================
// 🧪 Collector 测试
// =============================================================================

func TestNewCollector(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	assert.NotNil(t, collector)
	assert.NotNil(t, collector.httpRequestsTotal)
	assert.NotNil(t, collector.httpRequestDuration)
	assert.NotNil(t, collector.generationsTotal)
	assert.NotNil(t, collector.generationDuration)
	assert.NotNil(t, collector.responseShapes)
	assert.NotNil(t, collector.analysisTotal)
	assert.NotNil(t, collector.connectionTestsTotal)
}

func TestNewCollector_NilLogger(t *testing.T) {
	assert.NotPanics(t, func() {
		NewCollector(nextTestNamespace(), nil, prometheus.NewRegistry())
	})
}

func TestCollector_RecordHTTPRequest(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop(), prometheus.NewRegistry())

	collector.RecordHTTPRequest("POST", "/api/v1/vton/generate", 200, 100*time.Millisecond, 1024, 2048)
	collector.RecordHTTPRequest("POST", "/api/v1/vton/generate", 200, 50*time.Millisecond, 512, 1024)
	collector.RecordHTTPRequest("POST", "/api/v1/vton/generate", 502, 50*time.Millisecond, -1, 128)

	assert.Equal(t, 2.0, testutil.ToFloat64(collector.httpRequestsTotal.WithLabelValues("POST", "/api/v1/vton/generate", "2xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.httpRequestsTotal.WithLabelValues("POST", "/api/v1/vton/generate", "5xx")))
	assert.Equal(t, 1, testutil.CollectAndCount(collector.httpRequestDuration))
}

func TestCollector_ObserveGeneration(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop(), prometheus.NewRegistry())
	collector.SetModelAllowList("gemini-2.5-flash-image", " m ", "")

	collector.ObserveGeneration("google", "gemini-2.5-flash-image", "ok", 12*time.Second)
	collector.ObserveGeneration("google", "gemini-2.5-flash-image", "ok", 8*time.Second)
	collector.ObserveGeneration("custom", "m", "PROVIDER_ERROR", time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(collector.generationsTotal.WithLabelValues("google", "gemini-2.5-flash-image", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.generationsTotal.WithLabelValues("custom", "m", "PROVIDER_ERROR")))
	assert.Equal(t, 2, testutil.CollectAndCount(collector.generationDuration))
}

func TestCollector_ObserveShapesAndAnalysis(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop(), prometheus.NewRegistry())

	collector.ObserveResponseShape("custom", "chat_completion")
	collector.ObserveResponseShape("custom", "chat_completion")
	collector.ObserveResponseShape("google", "sdk_parts")
	collector.ObserveAnalysis("custom", true)
	collector.ObserveAnalysis("custom", false)
	collector.ObserveAnalysis("custom", false)

	assert.Equal(t, 2.0, testutil.ToFloat64(collector.responseShapes.WithLabelValues("custom", "chat_completion")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.responseShapes.WithLabelValues("google", "sdk_parts")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.analysisTotal.WithLabelValues("custom", "true")))
	assert.Equal(t, 2.0, testutil.ToFloat64(collector.analysisTotal.WithLabelValues("custom", "false")))
}

func TestCollector_ObserveConnectionTest(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop(), prometheus.NewRegistry())

	collector.ObserveConnectionTest("ok", 300*time.Millisecond)
	collector.ObserveConnectionTest("unauthorized", 100*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(collector.connectionTestsTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.connectionTestsTotal.WithLabelValues("unauthorized")))
	assert.Equal(t, 1, testutil.CollectAndCount(collector.connectionTestDuration))
}

func TestCollector_ConcurrentRecording(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop(), prometheus.NewRegistry())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			collector.RecordHTTPRequest("GET", "/health", 200, time.Millisecond, 0, 64)
			collector.ObserveGeneration("google", "m", "ok", time.Second)
			collector.ObserveAnalysis("google", false)
		}()
	}
	wg.Wait()

	assert.Equal(t, 10.0, testutil.ToFloat64(collector.httpRequestsTotal.WithLabelValues("GET", "/health", "2xx")))
	assert.Equal(t, 10.0, testutil.ToFloat64(collector.generationsTotal.WithLabelValues("google", "m", "ok")))
}

func TestCollector_CustomRegistry(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector := NewCollector("doppl", zap.NewNop(), registry)

	collector.ObserveGeneration("google", "m", "ok", time.Second)

	families, err := registry.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "doppl_vton_generations_total")
	assert.Contains(t, names, "doppl_vton_generation_duration_seconds")

	// 同一 registry 重复注册会 panic
	assert.Panics(t, func() { NewCollector("doppl", zap.NewNop(), registry) })
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{200, "2xx"}, {204, "2xx"}, {301, "3xx"}, {404, "4xx"}, {422, "4xx"}, {502, "5xx"}, {0, "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusCode(tt.code), "code %d", tt.code)
	}
}

func TestCollector_ModelLabelCardinalityIsBounded(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop(), prometheus.NewRegistry())
	collector.SetModelAllowList("gemini-2.5-flash-image")

	for i := 0; i < 500; i++ {
		collector.ObserveGeneration("custom", fmt.Sprintf("junk-%d", i), "ok", time.Second)
		collector.ObserveGeneration("custom", fmt.Sprintf("junk-%d", i), "INVALID_REQUEST", time.Millisecond)
	}
	collector.ObserveGeneration("google", "gemini-2.5-flash-image", "ok", time.Second)
	collector.ObserveGeneration("custom", "invalid", "INVALID_REQUEST", time.Millisecond)

	// custom/other x 2 状态, google 白名单模型, invalid
	assert.Equal(t, 4, testutil.CollectAndCount(collector.generationsTotal))
	assert.Equal(t, 3, testutil.CollectAndCount(collector.generationDuration))
	assert.Equal(t, 500.0, testutil.ToFloat64(collector.generationsTotal.WithLabelValues("custom", OtherModel, "ok")))
}

func TestCollector_SetModelAllowListReplaces(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop(), prometheus.NewRegistry())

	assert.Equal(t, gateway.InvalidModel, collector.modelLabel(gateway.InvalidModel))
	assert.Equal(t, OtherModel, collector.modelLabel("m1"))
	collector.SetModelAllowList("m1")
	assert.Equal(t, "m1", collector.modelLabel("m1"))
	collector.SetModelAllowList("m2")
	assert.Equal(t, OtherModel, collector.modelLabel("m1"))
	assert.Equal(t, "m2", collector.modelLabel("m2"))
}
