package pdfrender

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
)

// ErrRenderCancelled 渲染结果属于已被替代的请求，调用方应丢弃
var ErrRenderCancelled = errors.New("render superseded by a newer request")

// PageRenderer 可渲染页面的文档
type PageRenderer interface {
	RenderPage(ctx context.Context, index int, size TargetSize) ([]byte, error)
}

// Viewer 交互式翻页渲染：只有最新的请求会得到结果
// 新请求会取消仍在进行的旧请求
type Viewer struct {
	doc  PageRenderer
	size TargetSize

	mu         sync.Mutex
	generation uint64
	cancel     context.CancelFunc
}

// NewViewer 创建翻页渲染器
func NewViewer(doc PageRenderer, size TargetSize) *Viewer {
	return &Viewer{doc: doc, size: size}
}

// Render 渲染一页；被更新的请求替代时返回 ErrRenderCancelled
func (v *Viewer) Render(ctx context.Context, index int) ([]byte, error) {
	v.mu.Lock()
	if v.cancel != nil {
		v.cancel()
	}
	v.generation++
	generation := v.generation
	renderCtx, cancel := context.WithCancel(ctx)
	v.cancel = cancel
	v.mu.Unlock()
	defer cancel()

	data, err := v.doc.RenderPage(renderCtx, index, v.size)

	v.mu.Lock()
	superseded := generation != v.generation
	if !superseded {
		v.cancel = nil
	}
	v.mu.Unlock()

	if superseded {
		log.Debug().Int("page", index).Msg("discarding superseded page render")
		return nil, ErrRenderCancelled
	}
	return data, err
}

// Stop 取消进行中的渲染
func (v *Viewer) Stop() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.cancel != nil {
		v.cancel()
		v.cancel = nil
	}
	v.generation++
}
