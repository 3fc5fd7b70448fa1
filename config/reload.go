// 运行时配置存储与热重载。
//
// 只有 Gateway / Google / Custom 三段是热生效的：它们只是请求的服务端默认值。
// Server / Log / Telemetry 的变化会被记录，但需要重启才生效。
package config

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// ReloadCallback 在新配置生效后调用
type ReloadCallback func(oldConfig, newConfig *Config)

// Store 持有当前生效的配置，读取无锁
type Store struct {
	current atomic.Pointer[Config]
	loader  *Loader
	logger  *zap.Logger

	mu        sync.Mutex
	callbacks []ReloadCallback
	watcher   *FileWatcher
}

// NewStore 用已加载的配置创建存储。loader 为 nil 时不支持重载。
func NewStore(cfg *Config, loader *Loader, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		loader: loader,
		logger: logger.With(zap.String("component", "config_store")),
	}
	s.current.Store(cfg)
	return s
}

// Current 返回当前配置，调用方不得修改
func (s *Store) Current() *Config {
	return s.current.Load()
}

// OnReload 注册重载回调
func (s *Store) OnReload(cb ReloadCallback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbacks = append(s.callbacks, cb)
}

// Reload 重新加载并校验配置，失败时保留旧配置
func (s *Store) Reload() error {
	if s.loader == nil {
		return fmt.Errorf("config store has no loader")
	}
	next, err := s.loader.Load()
	if err != nil {
		return err
	}
	if err := next.Validate(); err != nil {
		return err
	}

	prev := s.current.Load()
	// 需要重启的段沿用旧值，避免运行时状态与配置不一致
	if prev != nil {
		if !reflect.DeepEqual(prev.Server, next.Server) ||
			!reflect.DeepEqual(prev.Redis, next.Redis) ||
			!reflect.DeepEqual(prev.Log, next.Log) ||
			!reflect.DeepEqual(prev.Telemetry, next.Telemetry) {
			s.logger.Warn("server, redis, log or telemetry settings changed; restart required")
		}
		next.Server, next.Redis, next.Log, next.Telemetry = prev.Server, prev.Redis, prev.Log, prev.Telemetry
	}
	s.current.Store(next)

	s.mu.Lock()
	callbacks := make([]ReloadCallback, len(s.callbacks))
	copy(callbacks, s.callbacks)
	s.mu.Unlock()
	for _, cb := range callbacks {
		cb(prev, next)
	}

	s.logger.Info("configuration reloaded",
		zap.String("default_provider", next.Gateway.DefaultProvider),
		zap.String("default_language", next.Gateway.DefaultLanguage))
	return nil
}

// Watch 监听配置文件，变化时自动 Reload。ctx 结束或 Stop 时退出。
func (s *Store) Watch(ctx context.Context, opts ...WatcherOption) error {
	if s.loader == nil || s.loader.configPath == "" {
		return fmt.Errorf("config store has no config file to watch")
	}
	opts = append([]WatcherOption{WithWatcherLogger(s.logger)}, opts...)
	w, err := NewFileWatcher(s.loader.configPath, opts...)
	if err != nil {
		return err
	}
	w.OnChange(func(evt FileEvent) {
		if evt.Op == FileOpRemove {
			s.logger.Warn("config file removed, keeping current configuration", zap.String("path", evt.Path))
			return
		}
		if err := s.Reload(); err != nil {
			s.logger.Error("config reload failed, keeping current configuration", zap.Error(err))
		}
	})
	if err := w.Start(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	s.watcher = w
	s.mu.Unlock()
	return nil
}

// Stop 停止文件监听
func (s *Store) Stop() error {
	s.mu.Lock()
	w := s.watcher
	s.watcher = nil
	s.mu.Unlock()
	if w == nil {
		return nil
	}
	return w.Stop()
}
