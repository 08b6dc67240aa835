package booktools

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"livre/internal/model/book"
)

func TestFilterNewWords(t *testing.T) {
	Convey("FilterNewWords 跨页去重", t, func() {
		seen := NewWordSet()

		Convey("首次出现者保留，顺序不变，大小写与空白不敏感", func() {
			page1 := FilterNewWords([]book.Keyword{
				{Word: "Chat", Explanation: "cat"},
				{Word: "maison"},
				{Word: " chat "},
			}, seen)
			So(len(page1), ShouldEqual, 2)
			So(page1[0].Word, ShouldEqual, "Chat")
			So(page1[0].Explanation, ShouldEqual, "cat")
			So(page1[1].Word, ShouldEqual, "maison")

			page2 := FilterNewWords([]book.Keyword{
				{Word: "MAISON"},
				{Word: "souris"},
			}, seen)
			So(len(page2), ShouldEqual, 1)
			So(page2[0].Word, ShouldEqual, "souris")

			So(seen.Len(), ShouldEqual, 3)
			So(seen.Words(), ShouldResemble, []string{"chat", "maison", "souris"})
			So(seen.Contains("Souris"), ShouldBeTrue)
		})

		Convey("全部重复时返回空列表而不是 nil", func() {
			seen.Add("chat")
			out := FilterNewWords([]book.Keyword{{Word: "chat"}}, seen)
			So(out, ShouldNotBeNil)
			So(len(out), ShouldEqual, 0)
		})

		Convey("空白词不进入集合", func() {
			So(seen.Add("   "), ShouldBeFalse)
			So(seen.Len(), ShouldEqual, 0)
		})

		Convey("Words 返回副本", func() {
			seen.Add("chat")
			words := seen.Words()
			words[0] = "x"
			So(seen.Words()[0], ShouldEqual, "chat")
		})
	})
}
