package progress

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"livre/internal/model/book"
)

func TestMemoryTracker(t *testing.T) {
	ctx := context.Background()

	Convey("MemoryTracker 跟踪导入进度", t, func() {
		tracker := NewMemoryTracker(50 * time.Millisecond)

		task, err := tracker.Start(ctx, "chat.pdf")
		So(err, ShouldBeNil)
		So(task.Status, ShouldEqual, book.TaskLabelStarting)
		So(task.Progress, ShouldEqual, 5.0)
		So(task.State, ShouldEqual, book.TaskStateRunning)

		So(tracker.Update(ctx, task.ID, "Analyzing page 1/2...", 50), ShouldBeNil)
		got, err := tracker.Get(ctx, task.ID)
		So(err, ShouldBeNil)
		So(got.Status, ShouldEqual, "Analyzing page 1/2...")
		So(got.Progress, ShouldEqual, 50.0)

		Convey("进度限制在 0-100", func() {
			So(tracker.Update(ctx, task.ID, "x", 150), ShouldBeNil)
			got, _ := tracker.Get(ctx, task.ID)
			So(got.Progress, ShouldEqual, 100.0)
		})

		Convey("终态任务延迟移除，而不是立即移除", func() {
			So(tracker.Finish(ctx, task.ID, book.TaskStateSucceeded, book.TaskLabelDone, 100, "book-1"), ShouldBeNil)

			got, err := tracker.Get(ctx, task.ID)
			So(err, ShouldBeNil)
			So(got.State, ShouldEqual, book.TaskStateSucceeded)
			So(got.BookID, ShouldEqual, "book-1")

			So(func() bool {
				deadline := time.Now().Add(2 * time.Second)
				for time.Now().Before(deadline) {
					if _, err := tracker.Get(ctx, task.ID); errors.Is(err, ErrTaskNotFound) {
						return true
					}
					time.Sleep(10 * time.Millisecond)
				}
				return false
			}(), ShouldBeTrue)
		})

		Convey("按开始顺序列出", func() {
			time.Sleep(2 * time.Millisecond)
			second, _ := tracker.Start(ctx, "b.txt")
			tasks, err := tracker.List(ctx)
			So(err, ShouldBeNil)
			So(len(tasks), ShouldEqual, 2)
			So(tasks[0].ID, ShouldEqual, task.ID)
			So(tasks[1].ID, ShouldEqual, second.ID)
		})

		Convey("未知任务返回 ErrTaskNotFound", func() {
			So(errors.Is(tracker.Update(ctx, "nope", "x", 1), ErrTaskNotFound), ShouldBeTrue)
			So(errors.Is(tracker.Finish(ctx, "nope", book.TaskStateFailed, "x", 0, ""), ErrTaskNotFound), ShouldBeTrue)
		})

		Convey("返回的是副本", func() {
			got.Status = "mutated"
			again, _ := tracker.Get(ctx, task.ID)
			So(again.Status, ShouldNotEqual, "mutated")
		})
	})
}
