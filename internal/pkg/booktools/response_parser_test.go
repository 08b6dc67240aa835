package booktools

import (
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestParseStructured(t *testing.T) {
	Convey("ParseStructured 校验响应结构", t, func() {
		Convey("空句子列表是合法的无朗读状态", func() {
			content, err := ParseStructured(`{"title":"Fin","sentences":[],"keywords":[]}`)
			So(err, ShouldBeNil)
			So(content.Title, ShouldEqual, "Fin")
			So(content.Sentences, ShouldNotBeNil)
			So(len(content.Sentences), ShouldEqual, 0)
			So(len(content.Keywords), ShouldEqual, 0)
		})

		Convey("缺少 sentences 字段视为不合规", func() {
			_, err := ParseStructured(`{"title":"Fin","keywords":[]}`)
			So(errors.Is(err, ErrMalformedResponse), ShouldBeTrue)
		})

		Convey("空响应和非 JSON 视为不合规", func() {
			_, err := ParseStructured("   ")
			So(errors.Is(err, ErrMalformedResponse), ShouldBeTrue)

			_, err = ParseStructured("Le chat dort.")
			So(errors.Is(err, ErrMalformedResponse), ShouldBeTrue)
		})

		Convey("去掉首尾空白，JSON 前后的说明文字被忽略", func() {
			content, err := ParseStructured("Voici le résultat:\n{\"title\":\"  Page  \",\"sentences\":[{\"source\":\" Bonjour. \",\"target\":\" Hello. \"}]}\nMerci")
			So(err, ShouldBeNil)
			So(content.Title, ShouldEqual, "Page")
			So(content.Sentences[0].Source, ShouldEqual, "Bonjour.")
			So(content.Sentences[0].Target, ShouldEqual, "Hello.")
			So(content.FromFallback, ShouldBeFalse)
		})
	})
}

func TestParseFreeText(t *testing.T) {
	Convey("ParseFreeText 逐行降级解析", t, func() {
		lines := ParseFreeText("```\n- Il pleut.\r\n* Oui\n• Le soleil revient.\n```")
		So(lines, ShouldResemble, []string{"Il pleut.", "Le soleil revient."})

		So(ParseFreeText(""), ShouldBeEmpty)
	})
}
