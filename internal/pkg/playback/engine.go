package playback

import (
	"context"
	"errors"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"livre/internal/pkg/speech"
)

var (
	// ErrWordBusy 单词发音仍在进行，新请求被丢弃
	ErrWordBusy = errors.New("word playback in progress")
	// ErrEngineClosed 引擎已关闭
	ErrEngineClosed = errors.New("playback engine closed")
)

// Config 播放引擎配置
type Config struct {
	Device   Device         // 缓存音频输出设备
	Speaker  speech.Speaker // 本机朗读（降级）
	Tick     time.Duration  // 高亮刷新间隔，默认 50ms
	Language string         // 默认 fr-FR
	Rate     float64        // 默认 0.9
}

// PageRequest 页面朗读请求
type PageRequest struct {
	Key   string // 页面标识，同一页面重复请求不会重新开始
	Text  string // 高亮映射的展示文本
	Audio []byte // 缓存音频，可为空
}

// WordRequest 单词发音请求
type WordRequest struct {
	Word  string
	Audio []byte
}

type slot int

const (
	pageSlot slot = iota
	wordSlot
)

// Engine 播放与高亮引擎
// 页面朗读和单词发音是两个独立的通道，互不打断
type Engine struct {
	cfg Config

	pageCtl sync.Mutex // 串行化页面通道的控制操作
	wordCtl sync.Mutex // 串行化单词通道的控制操作

	mu        sync.Mutex
	page      *session
	word      *session
	pageState State
	wordState State
	closed    bool
}

// NewEngine 创建播放引擎
func NewEngine(cfg Config) *Engine {
	if cfg.Device == nil {
		cfg.Device = NewClockDevice()
	}
	if cfg.Tick <= 0 {
		cfg.Tick = DefaultTick
	}
	if cfg.Language == "" {
		cfg.Language = speech.DefaultLanguage
	}
	if cfg.Rate <= 0 {
		cfg.Rate = speech.DefaultRate
	}
	return &Engine{cfg: cfg}
}

// PlayPage 朗读一页
// 同一页面正在加载或播放时不做任何事；其他页面正在播放时先完全停止它
// 有可解码的缓存音频时播放缓存，否则（或设备、播放失败时）改用本机朗读
func (e *Engine) PlayPage(ctx context.Context, req PageRequest, listener Listener) error {
	e.pageCtl.Lock()
	defer e.pageCtl.Unlock()

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrEngineClosed
	}
	current := e.page
	if current != nil && current.key == req.Key && e.pageState.Active() {
		e.mu.Unlock()
		return nil
	}
	e.mu.Unlock()

	if current != nil {
		current.stop()
	}

	live := NewLiveStrategy(e.cfg.Speaker, e.utterance(req.Text))
	s := e.install(pageSlot, req.Key, req.Text, listener, live)

	var strategy Strategy = live
	if len(req.Audio) > 0 {
		if buffer, err := DecodePCM(req.Audio); err == nil {
			strategy = NewBufferStrategy(e.cfg.Device, buffer, req.Text, e.cfg.Tick)
		} else {
			log.Warn().Err(err).Str("page", req.Key).Msg("cached narration undecodable, using on-device speech")
		}
	}

	return s.start(context.WithoutCancel(ctx), strategy)
}

// PlayWord 播放单词发音，不影响页面朗读；上一个单词未结束时返回 ErrWordBusy
func (e *Engine) PlayWord(ctx context.Context, req WordRequest, listener Listener) error {
	e.wordCtl.Lock()
	defer e.wordCtl.Unlock()

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrEngineClosed
	}
	if e.word != nil {
		e.mu.Unlock()
		return ErrWordBusy
	}
	e.mu.Unlock()

	live := NewLiveStrategy(e.cfg.Speaker, e.utterance(req.Word))
	s := e.install(wordSlot, req.Word, req.Word, listener, live)

	var strategy Strategy = live
	if len(req.Audio) > 0 {
		if buffer, err := DecodePCM(req.Audio); err == nil {
			strategy = NewBufferStrategy(e.cfg.Device, buffer, req.Word, e.cfg.Tick)
		}
	}

	return s.start(context.WithoutCancel(ctx), strategy)
}

// StopPage 停止页面朗读
func (e *Engine) StopPage() {
	e.pageCtl.Lock()
	defer e.pageCtl.Unlock()

	e.mu.Lock()
	current := e.page
	e.mu.Unlock()
	if current != nil {
		current.stop()
	}
}

// StopWord 停止单词发音
func (e *Engine) StopWord() {
	e.wordCtl.Lock()
	defer e.wordCtl.Unlock()

	e.mu.Lock()
	current := e.word
	e.mu.Unlock()
	if current != nil {
		current.stop()
	}
}

// Close 停止所有播放，之后的请求返回 ErrEngineClosed
func (e *Engine) Close() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()

	e.StopPage()
	e.StopWord()
}

// PageState 页面通道状态
func (e *Engine) PageState() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pageState
}

// WordState 单词通道状态
func (e *Engine) WordState() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.wordState
}

// PageKey 当前页面通道的页面标识
func (e *Engine) PageKey() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.page == nil {
		return ""
	}
	return e.page.key
}

func (e *Engine) utterance(text string) speech.Utterance {
	return speech.Utterance{Text: text, Language: e.cfg.Language, Rate: e.cfg.Rate}
}

func (e *Engine) install(sl slot, key, text string, listener Listener, fallback Strategy) *session {
	s := &session{
		engine:   e,
		slot:     sl,
		key:      key,
		length:   utf8.RuneCountInString(text),
		listener: listener,
		fallback: fallback,
		last:     NoHighlight,
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if sl == pageSlot {
		e.page, e.pageState = s, StateLoading
	} else {
		e.word, e.wordState = s, StateLoading
	}
	return s
}

// setState 只更新仍占用通道的会话
func (e *Engine) setState(s *session, state State, release bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch s.slot {
	case pageSlot:
		if e.page == s {
			e.pageState = state
			if release {
				e.page = nil
			}
		}
	case wordSlot:
		if e.word == s {
			e.wordState = state
			if release {
				e.word = nil
			}
		}
	}
}

// session 一次播放
type session struct {
	engine   *Engine
	slot     slot
	key      string
	length   int
	listener Listener
	fallback Strategy

	mu       sync.Mutex
	ctx      context.Context
	handles  []Handle
	usedLive bool
	last     int
	stopped  bool
	finished bool
}

func (s *session) start(ctx context.Context, strategy Strategy) error {
	s.mu.Lock()
	s.ctx = ctx
	s.usedLive = strategy == s.fallback
	handle, err := strategy.Start(ctx, s.offset, s.complete)
	if err != nil && !s.usedLive {
		log.Warn().Err(err).Str("key", s.key).Msg("audio playback unavailable, using on-device speech")
		s.usedLive = true
		handle, err = s.fallback.Start(ctx, s.offset, s.complete)
	}
	if err != nil {
		s.mu.Unlock()
		s.finish(StateFailed, err)
		return err
	}
	s.handles = append(s.handles, handle)
	s.mu.Unlock()

	s.engine.setState(s, StatePlaying, false)
	return nil
}

// offset 转发单调不减的偏移（限制在 [0, length]）
func (s *session) offset(o int) {
	s.mu.Lock()
	if s.stopped || s.finished {
		s.mu.Unlock()
		return
	}
	if o < 0 {
		o = 0
	}
	if o > s.length {
		o = s.length
	}
	if o <= s.last {
		s.mu.Unlock()
		return
	}
	s.last = o
	s.mu.Unlock()

	s.listener.offset(o)
}

// complete 播放协程的结束回调；缓存音频中途失败时改用本机朗读
func (s *session) complete(err error) {
	if err != nil {
		s.mu.Lock()
		if s.stopped || s.finished {
			s.mu.Unlock()
			return
		}
		if !s.usedLive {
			log.Warn().Err(err).Str("key", s.key).Msg("audio playback failed mid-stream, using on-device speech")
			s.usedLive = true
			handle, startErr := s.fallback.Start(s.ctx, s.offset, s.complete)
			if startErr == nil {
				s.handles = append(s.handles, handle)
				s.mu.Unlock()
				return
			}
			err = startErr
		}
		s.mu.Unlock()
		s.finish(StateFailed, err)
		return
	}
	s.finish(StateCompleted, nil)
}

func (s *session) finish(state State, err error) {
	s.mu.Lock()
	if s.stopped || s.finished {
		s.mu.Unlock()
		return
	}
	s.finished = true
	s.mu.Unlock()

	s.engine.setState(s, state, true)
	s.listener.offset(NoHighlight)
	s.listener.done(state, err)
}

// stop 取消播放并等待资源释放，然后报告 Cancelled
func (s *session) stop() {
	s.mu.Lock()
	if s.stopped || s.finished {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	handles := s.handles
	s.mu.Unlock()

	for i := len(handles) - 1; i >= 0; i-- {
		handles[i].Cancel()
	}

	s.engine.setState(s, StateCancelled, true)
	s.listener.offset(NoHighlight)
	s.listener.done(StateCancelled, nil)
}
