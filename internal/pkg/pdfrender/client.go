package pdfrender

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

// 渲染默认值
const (
	DefaultScale       = 1.5
	DefaultJPEGQuality = 85
	pointsPerInch      = 72
)

var (
	// ErrNotPDF 数据不是 PDF 文档
	ErrNotPDF = errors.New("not a pdf document")
	// ErrPageOutOfRange 页码越界
	ErrPageOutOfRange = errors.New("page index out of range")
	// ErrDocumentClosed 文档已关闭
	ErrDocumentClosed = errors.New("document closed")
)

// Config 渲染工具配置
type Config struct {
	PdftoppmPath string // 默认: pdftoppm
	PdfinfoPath  string // 默认: pdfinfo
	JPEGQuality  int    // 默认: 85
}

// TargetSize 渲染尺寸：Width > 0 时按宽度缩放，否则按 Scale（1.0 = 72 DPI）
type TargetSize struct {
	Scale float64
	Width int
}

// Client poppler 命令行工具封装
type Client struct {
	pdftoppmPath string
	pdfinfoPath  string
	quality      int
	run          func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewClient 创建渲染客户端
func NewClient(cfg Config) *Client {
	c := &Client{
		pdftoppmPath: cfg.PdftoppmPath,
		pdfinfoPath:  cfg.PdfinfoPath,
		quality:      cfg.JPEGQuality,
		run:          runCommand,
	}
	if c.pdftoppmPath == "" {
		c.pdftoppmPath = "pdftoppm"
	}
	if c.pdfinfoPath == "" {
		c.pdfinfoPath = "pdfinfo"
	}
	if c.quality <= 0 || c.quality > 100 {
		c.quality = DefaultJPEGQuality
	}
	return c
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	output, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%s failed: %w: %s", filepath.Base(name), err, strings.TrimSpace(stderr.String()))
	}
	return output, nil
}

// Document 已加载的 PDF 文档，使用完必须 Close
type Document struct {
	client *Client
	dir    string
	path   string
	pages  int
	seq    atomic.Uint64

	mu     sync.RWMutex
	closed bool
}

// LoadDocument 把文档写入临时目录并读取页数
func (c *Client) LoadDocument(ctx context.Context, data []byte) (*Document, error) {
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return nil, ErrNotPDF
	}

	dir, err := os.MkdirTemp("", "livre-pdf-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	path := filepath.Join(dir, "source.pdf")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("failed to write temp pdf: %w", err)
	}

	output, err := c.run(ctx, c.pdfinfoPath, path)
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, err
	}
	pages, err := parsePageCount(output)
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, err
	}

	log.Debug().Int("pages", pages).Int("size", len(data)).Msg("pdf document loaded")

	return &Document{client: c, dir: dir, path: path, pages: pages}, nil
}

// parsePageCount 解析 pdfinfo 输出中的 "Pages:" 行
func parsePageCount(output []byte) (int, error) {
	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "Pages:") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "Pages:")))
		if err != nil {
			return 0, fmt.Errorf("invalid page count %q: %w", line, err)
		}
		if n <= 0 {
			return 0, fmt.Errorf("document has no pages")
		}
		return n, nil
	}
	return 0, fmt.Errorf("page count not found in pdfinfo output")
}

// PageCount 页数
func (d *Document) PageCount() int {
	return d.pages
}

// RenderPage 渲染一页（index 从 0 开始）为 JPEG，可并发调用
func (d *Document) RenderPage(ctx context.Context, index int, size TargetSize) ([]byte, error) {
	if index < 0 || index >= d.pages {
		return nil, fmt.Errorf("%w: %d of %d", ErrPageOutOfRange, index, d.pages)
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return nil, ErrDocumentClosed
	}

	page := strconv.Itoa(index + 1)
	prefix := filepath.Join(d.dir, fmt.Sprintf("page-%d-%d", index+1, d.seq.Add(1)))
	args := []string{
		"-f", page, "-l", page,
		"-jpeg", "-jpegopt", fmt.Sprintf("quality=%d", d.client.quality),
		"-singlefile",
	}
	if size.Width > 0 {
		args = append(args, "-scale-to-x", strconv.Itoa(size.Width), "-scale-to-y", "-1")
	} else {
		scale := size.Scale
		if scale <= 0 {
			scale = DefaultScale
		}
		args = append(args, "-r", strconv.Itoa(int(scale*pointsPerInch)))
	}
	args = append(args, d.path, prefix)

	if _, err := d.client.run(ctx, d.client.pdftoppmPath, args...); err != nil {
		return nil, err
	}

	output := prefix + ".jpg"
	defer os.Remove(output)
	data, err := os.ReadFile(output)
	if err != nil {
		return nil, fmt.Errorf("failed to read rendered page: %w", err)
	}
	return data, nil
}

// Close 删除临时文件
func (d *Document) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	return os.RemoveAll(d.dir)
}
