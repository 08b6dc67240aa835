package progress

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"livre/internal/model/book"
	"livre/internal/pkg/cache"
	"livre/internal/pkg/id"
)

// runningTTL 进行中任务的兜底过期时间（进程崩溃时不会永久残留）
const runningTTL = 24 * time.Hour

// RedisTracker 基于 Redis 的任务跟踪，多个服务实例共享
// 任务以 JSON 保存在 import_task:<id>，终态时设置过期时间
type RedisTracker struct {
	cache       *cache.RedisCache
	removeDelay time.Duration
}

// NewRedisTracker 创建 Redis 跟踪器
func NewRedisTracker(c *cache.RedisCache, removeDelay time.Duration) *RedisTracker {
	if removeDelay <= 0 {
		removeDelay = DefaultRemoveDelay
	}
	return &RedisTracker{cache: c, removeDelay: removeDelay}
}

// Start 实现 Tracker
func (t *RedisTracker) Start(ctx context.Context, sourceName string) (*book.ImportTask, error) {
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
	if err := t.cache.Set(ctx, cache.ImportTaskKey(task.ID), task, runningTTL); err != nil {
		return nil, fmt.Errorf("failed to save import task: %w", err)
	}
	return task, nil
}

// Update 实现 Tracker
func (t *RedisTracker) Update(ctx context.Context, id, status string, progress float64) error {
	task, err := t.Get(ctx, id)
	if err != nil {
		return err
	}
	task.Status = status
	task.Progress = clampProgress(progress)
	task.UpdatedAt = time.Now()
	return t.cache.Set(ctx, cache.ImportTaskKey(id), task, runningTTL)
}

// Finish 实现 Tracker，终态任务 removeDelay 后过期
func (t *RedisTracker) Finish(ctx context.Context, id string, state book.TaskState, status string, progress float64, bookID string) error {
	task, err := t.Get(ctx, id)
	if err != nil {
		return err
	}
	task.State = state
	task.Status = status
	task.Progress = clampProgress(progress)
	task.BookID = bookID
	task.UpdatedAt = time.Now()
	return t.cache.Set(ctx, cache.ImportTaskKey(id), task, t.removeDelay)
}

// List 实现 Tracker
func (t *RedisTracker) List(ctx context.Context) ([]*book.ImportTask, error) {
	keys, err := t.cache.Keys(ctx, cache.ImportTaskKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to scan import tasks: %w", err)
	}

	tasks := make([]*book.ImportTask, 0, len(keys))
	for _, key := range keys {
		var task book.ImportTask
		if err := t.cache.Get(ctx, key, &task); err != nil {
			// 扫描和读取之间过期
			if errors.Is(err, cache.ErrCacheMiss) {
				continue
			}
			log.Warn().Err(err).Str("key", key).Msg("failed to read import task")
			continue
		}
		tasks = append(tasks, &task)
	}
	sortTasks(tasks)
	return tasks, nil
}

// Get 实现 Tracker
func (t *RedisTracker) Get(ctx context.Context, id string) (*book.ImportTask, error) {
	var task book.ImportTask
	if err := t.cache.Get(ctx, cache.ImportTaskKey(id), &task); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}
	return &task, nil
}
