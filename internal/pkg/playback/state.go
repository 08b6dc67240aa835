package playback

// State 播放状态
type State int

const (
	StateIdle State = iota
	StateLoading
	StatePlaying
	StateCompleted
	StateCancelled
	StateFailed
)

var stateNames = [...]string{"idle", "loading", "playing", "completed", "cancelled", "failed"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Active 是否仍在加载或播放
func (s State) Active() bool {
	return s == StateLoading || s == StatePlaying
}

// NoHighlight 表示没有高亮的偏移
const NoHighlight = -1

// Listener 播放事件回调，在播放协程中调用
// 回调中不得同步调用 Engine 的方法
type Listener struct {
	OnOffset func(offset int)
	OnDone   func(state State, err error)
}

func (l Listener) offset(o int) {
	if l.OnOffset != nil {
		l.OnOffset(o)
	}
}

func (l Listener) done(state State, err error) {
	if l.OnDone != nil {
		l.OnDone(state, err)
	}
}
