package progress

import (
	"context"
	"sync"
	"time"

	"livre/internal/model/book"
	"livre/internal/pkg/id"
)

// MemoryTracker 进程内任务跟踪（未配置 Redis 时使用）
type MemoryTracker struct {
	removeDelay time.Duration

	mu    sync.Mutex
	tasks map[string]*book.ImportTask
}

// NewMemoryTracker 创建进程内跟踪器
func NewMemoryTracker(removeDelay time.Duration) *MemoryTracker {
	if removeDelay <= 0 {
		removeDelay = DefaultRemoveDelay
	}
	return &MemoryTracker{
		removeDelay: removeDelay,
		tasks:       make(map[string]*book.ImportTask),
	}
}

// Start 实现 Tracker
func (t *MemoryTracker) Start(ctx context.Context, sourceName string) (*book.ImportTask, error) {
	now := time.Now()
	task := &book.ImportTask{
		ID:         id.WithPrefix("import"),
		SourceName: sourceName,
		Status:     book.TaskLabelStarting,
		Progress:   5,
		State:      book.TaskStateRunning,
		StartedAt:  now,
		UpdatedAt:  now,
	}

	t.mu.Lock()
	t.tasks[task.ID] = task
	t.mu.Unlock()

	copied := *task
	return &copied, nil
}

// Update 实现 Tracker
func (t *MemoryTracker) Update(ctx context.Context, id, status string, progress float64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	task, ok := t.tasks[id]
	if !ok {
		return ErrTaskNotFound
	}
	task.Status = status
	task.Progress = clampProgress(progress)
	task.UpdatedAt = time.Now()
	return nil
}

// Finish 实现 Tracker，removeDelay 之后移除任务
func (t *MemoryTracker) Finish(ctx context.Context, id string, state book.TaskState, status string, progress float64, bookID string) error {
	t.mu.Lock()
	task, ok := t.tasks[id]
	if !ok {
		t.mu.Unlock()
		return ErrTaskNotFound
	}
	task.State = state
	task.Status = status
	task.Progress = clampProgress(progress)
	task.BookID = bookID
	task.UpdatedAt = time.Now()
	t.mu.Unlock()

	time.AfterFunc(t.removeDelay, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.tasks, id)
	})
	return nil
}

// List 实现 Tracker，按开始时间排序
func (t *MemoryTracker) List(ctx context.Context) ([]*book.ImportTask, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	tasks := make([]*book.ImportTask, 0, len(t.tasks))
	for _, task := range t.tasks {
		copied := *task
		tasks = append(tasks, &copied)
	}
	sortTasks(tasks)
	return tasks, nil
}

// Get 实现 Tracker
func (t *MemoryTracker) Get(ctx context.Context, id string) (*book.ImportTask, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	task, ok := t.tasks[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	copied := *task
	return &copied, nil
}
