package booktools

import (
	"bytes"
	"hash/fnv"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"math/rand"
	"strings"
)

// 占位封面尺寸与 JPEG 质量
const (
	CoverWidth   = 600
	CoverHeight  = 400
	coverQuality = 80
)

var (
	coverTop    = color.RGBA{0xfe, 0xfc, 0xe8, 0xff} // yellow-50
	coverBottom = color.RGBA{0xfe, 0xf9, 0xc3, 0xff} // yellow-100
	coverAmber  = color.RGBA{0xd9, 0x77, 0x06, 0xff} // amber-600
	coverBlue   = color.RGBA{0x1e, 0x3a, 0x8a, 0xff} // blue-900
)

// PlaceholderCover 生成确定性的占位封面（JPEG）
// 同一标题总是得到同一张图：纹理点和标题色块由标题哈希决定
func PlaceholderCover(title string) []byte {
	img := image.NewRGBA(image.Rect(0, 0, CoverWidth, CoverHeight))

	// 对角渐变背景
	for y := 0; y < CoverHeight; y++ {
		for x := 0; x < CoverWidth; x++ {
			t := float64(x+y) / float64(CoverWidth+CoverHeight-2)
			img.SetRGBA(x, y, lerp(coverTop, coverBottom, t))
		}
	}

	seed := titleSeed(title)
	rng := rand.New(rand.NewSource(seed))

	// 纹理点
	dot := color.RGBA{0xf0, 0xec, 0xc8, 0xff}
	for i := 0; i < 3000; i++ {
		img.SetRGBA(rng.Intn(CoverWidth), rng.Intn(CoverHeight), dot)
	}

	// 双层边框与四角圆点
	strokeRect(img, 15, 15, 585, 385, 3, coverAmber)
	strokeRect(img, 22, 22, 578, 378, 1, coverBlue)
	for _, x := range []int{22, 578} {
		for _, y := range []int{22, 378} {
			fillCircle(img, x, y, 4, coverBlue)
		}
	}

	// 装饰下划线
	fill(img, image.Rect(250, 149, 350, 151), coverAmber)

	// 标题色块：每个单词一块，宽度与单词长度相关，按行折行
	words := strings.Fields(title)
	x, y := 60, 180
	for _, w := range words {
		width := 12 * len([]rune(w))
		if width > 300 {
			width = 300
		}
		if x+width > CoverWidth-60 && x > 60 {
			x = 60
			y += 48
		}
		if y > CoverHeight-70 {
			break
		}
		shade := uint8(0x60 + rng.Intn(0x40))
		fill(img, image.Rect(x, y, x+width, y+28), color.RGBA{coverBlue.R, coverBlue.G, shade, 0xff})
		x += width + 14
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: coverQuality}); err != nil {
		return []byte{}
	}
	return buf.Bytes()
}

func titleSeed(title string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(title))
	return int64(h.Sum64())
}

func lerp(a, b color.RGBA, t float64) color.RGBA {
	mix := func(x, y uint8) uint8 { return uint8(float64(x) + (float64(y)-float64(x))*t) }
	return color.RGBA{mix(a.R, b.R), mix(a.G, b.G), mix(a.B, b.B), 0xff}
}

func fill(img *image.RGBA, r image.Rectangle, c color.RGBA) {
	draw.Draw(img, r, &image.Uniform{C: c}, image.Point{}, draw.Src)
}

func strokeRect(img *image.RGBA, x0, y0, x1, y1, width int, c color.RGBA) {
	fill(img, image.Rect(x0, y0, x1, y0+width), c)
	fill(img, image.Rect(x0, y1-width, x1, y1), c)
	fill(img, image.Rect(x0, y0, x0+width, y1), c)
	fill(img, image.Rect(x1-width, y0, x1, y1), c)
}

func fillCircle(img *image.RGBA, cx, cy, r int, c color.RGBA) {
	for y := -r; y <= r; y++ {
		for x := -r; x <= r; x++ {
			if x*x+y*y <= r*r {
				img.SetRGBA(cx+x, cy+y, c)
			}
		}
	}
}
