package book

import (
	"context"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"livre/internal/model/book"
)

func newTestRepo(t *testing.T) *SQLiteRepo {
	repo, err := NewSQLiteRepo(context.Background(), "file::memory:")
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func sampleBook(id string, dateAdded int64) *book.Book {
	return &book.Book{
		ID:        id,
		Title:     "Le chat",
		DateAdded: dateAdded,
		Pages: []*book.Page{
			{
				ID:        "p1",
				Title:     "Page 1",
				Sentences: []book.Sentence{{Source: "Le chat dort.", Target: "The cat sleeps."}},
				Keywords:  []book.Keyword{{Word: "chat", Pronunciation: "sha", Explanation: "cat"}},
				Audio:     []byte{1, 2, 3, 4},
			},
		},
	}
}

func TestSQLiteRepo(t *testing.T) {
	ctx := context.Background()

	Convey("SQLiteRepo 书籍存取", t, func() {
		repo := newTestRepo(t)

		Convey("保存后按ID读取，内容一致", func() {
			So(repo.Save(ctx, sampleBook("b1", 1000)), ShouldBeNil)

			got, err := repo.FindByID(ctx, "b1")
			So(err, ShouldBeNil)
			So(got.Title, ShouldEqual, "Le chat")
			So(got.DateAdded, ShouldEqual, int64(1000))
			So(got.CoverImage, ShouldNotBeNil)
			So(len(got.Pages), ShouldEqual, 1)
			So(got.Pages[0].Sentences[0].Target, ShouldEqual, "The cat sleeps.")
			So(got.Pages[0].Audio, ShouldResemble, []byte{1, 2, 3, 4})
			So(got.Pages[0].Keywords[0].Word, ShouldEqual, "chat")
		})

		Convey("同ID再次保存覆盖旧记录", func() {
			So(repo.Save(ctx, sampleBook("b1", 1000)), ShouldBeNil)
			updated := sampleBook("b1", 1000)
			updated.Title = "Le chien"
			So(repo.Save(ctx, updated), ShouldBeNil)

			books, err := repo.FindAll(ctx)
			So(err, ShouldBeNil)
			So(len(books), ShouldEqual, 1)
			So(books[0].Title, ShouldEqual, "Le chien")
		})

		Convey("列表按添加时间降序", func() {
			So(repo.Save(ctx, sampleBook("old", 1000)), ShouldBeNil)
			So(repo.Save(ctx, sampleBook("new", 3000)), ShouldBeNil)
			So(repo.Save(ctx, sampleBook("mid", 2000)), ShouldBeNil)

			books, err := repo.FindAll(ctx)
			So(err, ShouldBeNil)
			So(len(books), ShouldEqual, 3)
			So(books[0].ID, ShouldEqual, "new")
			So(books[1].ID, ShouldEqual, "mid")
			So(books[2].ID, ShouldEqual, "old")
		})

		Convey("空书库返回空列表", func() {
			books, err := repo.FindAll(ctx)
			So(err, ShouldBeNil)
			So(books, ShouldNotBeNil)
			So(len(books), ShouldEqual, 0)
		})

		Convey("不存在的书返回 ErrNotFound", func() {
			_, err := repo.FindByID(ctx, "missing")
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
		})

		Convey("删除后不可再读取，重复删除不报错", func() {
			So(repo.Save(ctx, sampleBook("b1", 1000)), ShouldBeNil)
			So(repo.Delete(ctx, "b1"), ShouldBeNil)
			_, err := repo.FindByID(ctx, "b1")
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
			So(repo.Delete(ctx, "b1"), ShouldBeNil)
		})

		Convey("关闭后的操作归为存储错误", func() {
			So(repo.Close(), ShouldBeNil)
			err := repo.Save(ctx, sampleBook("b1", 1000))
			So(errors.Is(err, ErrStorage), ShouldBeTrue)
		})
	})
}
