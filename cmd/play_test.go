package cmd

import (
	"bytes"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"livre/internal/pkg/playback"
)

func TestOffsetQueue(t *testing.T) {
	Convey("偏移队列", t, func() {
		q := newOffsetQueue()

		Convey("无人读取时也不丢弃偏移，顺序保持", func() {
			want := make([]int, 0, 102)
			for i := 0; i < 100; i++ {
				q.push(i)
				want = append(want, i)
			}
			q.push(120)
			q.push(playback.NoHighlight)
			want = append(want, 120, playback.NoHighlight)

			So(q.drain(), ShouldResemble, want)
			So(q.drain(), ShouldBeEmpty)
		})

		Convey("多次 push 只保留一个通知", func() {
			q.push(1)
			q.push(2)
			So(len(q.notify), ShouldEqual, 1)
		})
	})
}

func TestDrawOffsets(t *testing.T) {
	Convey("绘制高亮", t, func() {
		text := "Le petit chat"
		segments := playback.Segments(text, []string{"chat"})

		Convey("结束偏移高亮最后一个词", func() {
			var out bytes.Buffer
			drawOffsets(&out, segments, []int{0, len(text), playback.NoHighlight})

			frames := strings.Split(out.String(), "\r\033[K")[1:]
			So(len(frames), ShouldEqual, 3)
			So(frames[0], ShouldStartWith, "\033[7mLe\033[0m")
			So(frames[1], ShouldEndWith, "\033[7mchat\033[0m")
			So(frames[2], ShouldNotContainSubstring, "\033[7m")
		})

		Convey("词汇加粗显示", func() {
			So(renderHighlight(segments, -1), ShouldEqual, "Le petit \033[1mchat\033[0m")
		})
	})
}
