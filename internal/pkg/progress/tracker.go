package progress

import (
	"context"
	"errors"
	"sort"
	"time"

	"livre/internal/model/book"
)

// DefaultRemoveDelay 终态任务保留时间
const DefaultRemoveDelay = 4 * time.Second

// ErrTaskNotFound 任务不存在或已移除
var ErrTaskNotFound = errors.New("import task not found")

// Tracker 导入进度跟踪
// 终态任务在 removeDelay 之后被移除，而不是立即移除
type Tracker interface {
	Start(ctx context.Context, sourceName string) (*book.ImportTask, error)
	Update(ctx context.Context, id, status string, progress float64) error
	Finish(ctx context.Context, id string, state book.TaskState, status string, progress float64, bookID string) error
	List(ctx context.Context) ([]*book.ImportTask, error)
	Get(ctx context.Context, id string) (*book.ImportTask, error)
}

// clampProgress 进度限制在 0-100
func clampProgress(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// sortTasks 先开始的在前
func sortTasks(tasks []*book.ImportTask) {
	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].StartedAt.Before(tasks[j].StartedAt)
	})
}
