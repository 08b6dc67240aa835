package playback

import (
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestSegments(t *testing.T) {
	Convey("Segments 保留空白切分", t, func() {
		text := "Le  Chat, dort\tbien."
		segments := Segments(text, []string{"chat", " Bien "})

		var sb strings.Builder
		for _, seg := range segments {
			sb.WriteString(seg.Text)
		}
		So(sb.String(), ShouldEqual, text)

		So(len(segments), ShouldEqual, 7)
		So(segments[1].IsSpace, ShouldBeTrue)
		So(segments[1].Text, ShouldEqual, "  ")
		So(segments[2].Text, ShouldEqual, "Chat,")
		So(segments[2].IsVocabulary, ShouldBeTrue)
		So(segments[4].IsVocabulary, ShouldBeFalse)
		So(segments[6].IsVocabulary, ShouldBeTrue)
		So(segments[2].Start, ShouldEqual, 4)
		So(segments[2].End, ShouldEqual, 9)

		So(Segments("", nil), ShouldBeEmpty)
	})

	Convey("偏移按字符计算", t, func() {
		segments := Segments("Là où", nil)
		So(segments[2].Text, ShouldEqual, "où")
		So(segments[2].Start, ShouldEqual, 3)
		So(segments[2].End, ShouldEqual, 5)
	})
}

func TestActiveSegment(t *testing.T) {
	Convey("ActiveSegment 活动区间为 [Start, End+1)", t, func() {
		segments := Segments("Le chat dort", nil)
		So(ActiveSegment(segments, NoHighlight), ShouldEqual, -1)
		So(ActiveSegment(segments, 0), ShouldEqual, 0)
		So(ActiveSegment(segments, 2), ShouldEqual, 0)
		So(ActiveSegment(segments, 3), ShouldEqual, 2)
		So(ActiveSegment(segments, 12), ShouldEqual, 4)
		So(ActiveSegment(segments, 13), ShouldEqual, -1)
	})
}

func TestOffsetAt(t *testing.T) {
	Convey("OffsetAt 按字符长度线性插值", t, func() {
		text := "Le chat dort"

		So(OffsetAt(-1, text), ShouldEqual, 0)
		So(OffsetAt(0, text), ShouldEqual, 0)
		So(OffsetAt(0.1, text), ShouldEqual, 0)
		So(OffsetAt(0.2, text), ShouldEqual, 2)
		So(OffsetAt(0.5, text), ShouldEqual, 3)
		So(OffsetAt(0.9, text), ShouldEqual, 8)
		So(OffsetAt(1, text), ShouldEqual, 12)
		So(OffsetAt(1.5, text), ShouldEqual, 12)
		So(OffsetAt(0.5, ""), ShouldEqual, 0)

		Convey("随进度单调不减，结束时等于文本长度", func() {
			long := "Il était une fois un petit chat qui habitait dans une grande maison bleue."
			prev := 0
			for i := 0; i <= 1000; i++ {
				offset := OffsetAt(float64(i)/1000, long)
				So(offset, ShouldBeGreaterThanOrEqualTo, prev)
				prev = offset
			}
			So(prev, ShouldEqual, len([]rune(long)))
		})
	})
}
