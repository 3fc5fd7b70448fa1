package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter 按 key（通常是客户端 IP）判断请求是否放行。
// 返回 error 表示后端不可用，由调用方决定放行或拒绝。
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// =============================================================================
// 🪣 进程内令牌桶
// =============================================================================

// Local 每个 key 一个 rate.Limiter，长时间未访问的 key 由后台清理
type Local struct {
	rps   rate.Limit
	burst int
	idle  time.Duration

	mu       sync.Mutex
	visitors map[string]*visitor
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLocal 创建进程内限流器。ctx 结束时停止后台清理。
func NewLocal(ctx context.Context, rps float64, burst int) *Local {
	l := &Local{
		rps:      rate.Limit(rps),
		burst:    burst,
		idle:     3 * time.Minute,
		visitors: make(map[string]*visitor),
	}
	go l.cleanupLoop(ctx, time.Minute)
	return l
}

// Allow 消耗 key 的一个令牌
func (l *Local) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.visitors[key] = v
	}
	v.lastSeen = time.Now()
	l.mu.Unlock()
	return v.limiter.Allow(), nil
}

// Len 当前跟踪的 key 数量
func (l *Local) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.visitors)
}

func (l *Local) cleanupLoop(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.evictIdle(time.Now())
		}
	}
}

func (l *Local) evictIdle(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, v := range l.visitors {
		if now.Sub(v.lastSeen) > l.idle {
			delete(l.visitors, key)
		}
	}
}

// Window 把令牌桶参数换算成固定窗口：窗口内最多 burst 次，窗口长度为装满桶的时间，
// 长期平均速率与令牌桶一致。
func Window(rps float64, burst int) (limit int, window time.Duration) {
	if burst < 1 {
		burst = 1
	}
	if rps <= 0 {
		return burst, time.Second
	}
	window = time.Duration(float64(burst) / rps * float64(time.Second))
	if window < time.Millisecond {
		window = time.Millisecond
	}
	return burst, window
}
