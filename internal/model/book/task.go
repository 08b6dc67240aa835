package book

import "time"

// TaskState 导入任务状态
type TaskState string

const (
	TaskStateRunning   TaskState = "running"   // 进行中
	TaskStateSucceeded TaskState = "succeeded" // 成功
	TaskStateFailed    TaskState = "failed"    // 失败
)

// String 返回状态的字符串表示
func (s TaskState) String() string {
	return string(s)
}

// IsTerminal 是否为终态
func (s TaskState) IsTerminal() bool {
	return s == TaskStateSucceeded || s == TaskStateFailed
}

// 任务状态文案
const (
	TaskLabelStarting   = "Starting..."
	TaskLabelReadingPDF = "Reading PDF..."
	TaskLabelCreating   = "Creating book..."
	TaskLabelSaving     = "Saving..."
	TaskLabelDone       = "Done!"
)

// ImportTask 导入进度任务（临时数据，不持久化到书库）
// 终态后经过固定延迟自动移除
type ImportTask struct {
	ID         string    `json:"id"`
	SourceName string    `json:"source_name"`
	Status     string    `json:"status"`   // 展示给用户的阶段或错误摘要
	Progress   float64   `json:"progress"` // 0-100
	State      TaskState `json:"state"`
	BookID     string    `json:"book_id,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
