// Agent 与安全规则文件的变更监听。
//
// fsnotify 监听所在目录，事件到达时立即比较修改时间；轮询作为兜底。
// 防抖后回调；WatchCatalog 把变更接到 AgentCatalog.Reload。
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// FileEvent 描述一次文件变化
type FileEvent struct {
	Path      string    `json:"path"`
	Op        FileOp    `json:"op"`
	Timestamp time.Time `json:"timestamp"`
}

// FileOp 文件操作类型
type FileOp int

const (
	FileOpCreate FileOp = iota
	FileOpWrite
	FileOpRemove
)

// String returns the string representation of FileOp
func (op FileOp) String() string {
	switch op {
	case FileOpCreate:
		return "CREATE"
	case FileOpWrite:
		return "WRITE"
	case FileOpRemove:
		return "REMOVE"
	default:
		return "UNKNOWN"
	}
}

// WatcherOption configures the FileWatcher
type WatcherOption func(*FileWatcher)

// WithDebounceDelay sets the debounce delay for file events
func WithDebounceDelay(d time.Duration) WatcherOption {
	return func(w *FileWatcher) {
		if d > 0 {
			w.debounceDelay = d
		}
	}
}

// WithPollInterval sets how often files are stat'ed
func WithPollInterval(d time.Duration) WatcherOption {
	return func(w *FileWatcher) {
		if d > 0 {
			w.pollInterval = d
		}
	}
}

// WithWatcherLogger sets the logger for the watcher
func WithWatcherLogger(logger *zap.Logger) WatcherOption {
	return func(w *FileWatcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// FileWatcher 监听一组文件的修改时间，同一路径在防抖窗口内的多次变化合并为一次回调。
type FileWatcher struct {
	mu sync.Mutex

	paths         []string
	debounceDelay time.Duration
	pollInterval  time.Duration

	running   bool
	stopChan  chan struct{}
	done      chan struct{}
	eventChan chan FileEvent
	callbacks []func(FileEvent)
	modTimes  map[string]time.Time
	notifier  *fsnotify.Watcher

	logger *zap.Logger
}

// NewFileWatcher creates a watcher. Missing files are allowed and reported
// as CREATE once they appear.
func NewFileWatcher(paths []string, opts ...WatcherOption) (*FileWatcher, error) {
	w := &FileWatcher{
		paths:         append([]string(nil), paths...),
		debounceDelay: 100 * time.Millisecond,
		pollInterval:  time.Second,
		eventChan:     make(chan FileEvent, 64),
		modTimes:      make(map[string]time.Time),
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With(zap.String("component", "file_watcher"))

	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to stat path %s: %w", path, err)
			}
			w.logger.Warn("watched file does not exist yet", zap.String("path", path))
		}
	}
	return w, nil
}

// OnChange registers a callback for file change events
func (w *FileWatcher) OnChange(callback func(FileEvent)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, callback)
}

// Start begins watching. The watcher stops on Stop or when ctx is done.
func (w *FileWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return fmt.Errorf("watcher already running")
	}
	w.running = true
	w.stopChan = make(chan struct{})
	w.done = make(chan struct{})

	for _, path := range w.paths {
		if info, err := os.Stat(path); err == nil {
			w.modTimes[path] = info.ModTime()
		}
	}

	w.notifier = w.openNotifier()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		w.pollLoop(ctx, w.stopChan)
	}()
	go func() {
		defer wg.Done()
		w.dispatchLoop(ctx, w.stopChan)
	}()
	if w.notifier != nil {
		wg.Add(1)
		go func(n *fsnotify.Watcher) {
			defer wg.Done()
			w.notifyLoop(ctx, w.stopChan, n)
		}(w.notifier)
	}
	go func(done chan struct{}) {
		wg.Wait()
		close(done)
	}(w.done)

	w.logger.Info("file watcher started",
		zap.Strings("paths", w.paths),
		zap.Bool("fsnotify", w.notifier != nil),
		zap.Duration("debounce_delay", w.debounceDelay))
	return nil
}

// openNotifier 监听被监视文件所在的目录（编辑器常用 rename 保存，直接监听文件会丢失）。
// 失败时返回 nil，只靠轮询。
func (w *FileWatcher) openNotifier() *fsnotify.Watcher {
	n, err := fsnotify.NewWatcher()
	if err != nil {
		w.logger.Warn("fsnotify unavailable, falling back to polling", zap.Error(err))
		return nil
	}
	added := 0
	seen := make(map[string]struct{})
	for _, path := range w.paths {
		dir := filepath.Dir(path)
		if _, ok := seen[dir]; ok {
			continue
		}
		seen[dir] = struct{}{}
		if err := n.Add(dir); err != nil {
			w.logger.Warn("cannot watch directory, relying on polling",
				zap.String("dir", dir), zap.Error(err))
			continue
		}
		added++
	}
	if added == 0 {
		_ = n.Close()
		return nil
	}
	return n
}

// Stop stops the watcher and waits for its goroutines to exit.
func (w *FileWatcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	close(w.stopChan)
	w.running = false
	done := w.done
	notifier := w.notifier
	w.notifier = nil
	w.mu.Unlock()

	<-done
	if notifier != nil {
		_ = notifier.Close()
	}
	w.logger.Info("file watcher stopped")
	return nil
}

// Paths returns the list of watched paths
func (w *FileWatcher) Paths() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.paths...)
}

// IsRunning returns whether the watcher is running
func (w *FileWatcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *FileWatcher) pollLoop(ctx context.Context, stop <-chan struct{}) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			for _, evt := range w.checkFiles() {
				select {
				case w.eventChan <- evt:
				case <-stop:
					return
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

// notifyLoop 把与监视文件相关的目录事件转换为一次即时检查
func (w *FileWatcher) notifyLoop(ctx context.Context, stop <-chan struct{}, n *fsnotify.Watcher) {
	watched := make(map[string]struct{}, len(w.paths))
	for _, path := range w.paths {
		watched[filepath.Clean(path)] = struct{}{}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case evt, ok := <-n.Events:
			if !ok {
				return
			}
			if _, hit := watched[filepath.Clean(evt.Name)]; !hit {
				continue
			}
			for _, fe := range w.checkFiles() {
				select {
				case w.eventChan <- fe:
				case <-stop:
					return
				case <-ctx.Done():
					return
				}
			}
		case err, ok := <-n.Errors:
			if !ok {
				return
			}
			w.logger.Warn("fsnotify error", zap.Error(err))
		}
	}
}

// checkFiles 比较修改时间，返回本轮检测到的事件
func (w *FileWatcher) checkFiles() []FileEvent {
	w.mu.Lock()
	defer w.mu.Unlock()

	var events []FileEvent
	now := time.Now()
	for _, path := range w.paths {
		info, err := os.Stat(path)
		last, tracked := w.modTimes[path]
		switch {
		case err != nil:
			if os.IsNotExist(err) && tracked {
				delete(w.modTimes, path)
				events = append(events, FileEvent{Path: path, Op: FileOpRemove, Timestamp: now})
			}
		case !tracked:
			w.modTimes[path] = info.ModTime()
			events = append(events, FileEvent{Path: path, Op: FileOpCreate, Timestamp: now})
		case !info.ModTime().Equal(last):
			w.modTimes[path] = info.ModTime()
			events = append(events, FileEvent{Path: path, Op: FileOpWrite, Timestamp: now})
		}
	}
	return events
}

// dispatchLoop 在单个 goroutine 内合并事件并在防抖到期后回调
func (w *FileWatcher) dispatchLoop(ctx context.Context, stop <-chan struct{}) {
	pending := make(map[string]FileEvent)
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case evt := <-w.eventChan:
			pending[evt.Path] = evt
			fire = time.After(w.debounceDelay)
		case <-fire:
			fire = nil
			w.mu.Lock()
			callbacks := make([]func(FileEvent), len(w.callbacks))
			copy(callbacks, w.callbacks)
			w.mu.Unlock()
			for path, evt := range pending {
				w.logger.Debug("dispatching file event",
					zap.String("path", path),
					zap.String("op", evt.Op.String()))
				for _, cb := range callbacks {
					cb(evt)
				}
			}
			pending = make(map[string]FileEvent)
		}
	}
}

// WatchCatalog 监听 catalog 的两个文件，变化时调用 Reload。
// 返回的 watcher 已启动，由调用方负责 Stop。
func WatchCatalog(ctx context.Context, catalog *AgentCatalog, logger *zap.Logger, opts ...WatcherOption) (*FileWatcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts = append([]WatcherOption{WithWatcherLogger(logger)}, opts...)
	w, err := NewFileWatcher(catalog.Paths(), opts...)
	if err != nil {
		return nil, err
	}

	// 同一防抖窗口内两个文件都变化时只需要重载一次
	var reloadMu sync.Mutex
	w.OnChange(func(evt FileEvent) {
		reloadMu.Lock()
		defer reloadMu.Unlock()
		changed, err := catalog.Reload(ctx)
		if err != nil {
			logger.Error("agent config reload rejected, keeping current agents",
				zap.String("path", evt.Path),
				zap.String("op", evt.Op.String()),
				zap.Error(err))
			return
		}
		if changed {
			logger.Info("agent config reloaded", zap.String("path", evt.Path))
		}
	})
	if err := w.Start(ctx); err != nil {
		return nil, err
	}
	return w, nil
}
