package console

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	. "github.com/smartystreets/goconvey/convey"

	service "github.com/okian/flightboard/internal/app"
	"github.com/okian/flightboard/internal/domain/display"
	"github.com/okian/flightboard/internal/domain/endpoint"
	"github.com/okian/flightboard/pkg/logger"
)

type countingTrigger struct {
	calls atomic.Int32
	err   error
}

func (t *countingTrigger) TriggerConsistencyCheck() error {
	t.calls.Add(1)
	return t.err
}

func TestFormatting(t *testing.T) {
	Convey("Given board content", t, func() {
		now := time.Date(2026, 10, 15, 9, 41, 10, 0, time.Local)

		Convey("The header shows the last-updated label", func() {
			So(headerText(display.Snapshot{LastUpdated: "10/15/2026, 9:41:00 AM"}), ShouldContainSubstring, "10/15/2026, 9:41:00 AM")
			So(headerText(display.Snapshot{}), ShouldContainSubstring, "never")
		})

		Convey("An empty region is titled by id only", func() {
			So(regionTitle(display.Region{ID: "event-flight"}, now), ShouldEqual, " event-flight ")
		})

		Convey("A filled region shows size and age", func() {
			r := display.Region{ID: "processing-stats", Text: `{"count":5}`, UpdatedAt: now.Add(-10 * time.Second)}
			So(regionTitle(r, now), ShouldEqual, " processing-stats (11 B, 10 seconds ago) ")
		})

		Convey("Banners render newest first with escaped brackets", func() {
			text := bannerText([]display.Banner{
				{ID: "error-2", Message: "Failed to fetch", When: "9:41:02 AM"},
				{ID: "error-1", Message: "bad [red] body", When: "9:41:01 AM"},
			})
			So(text, ShouldStartWith, "Something happened at 9:41:02 AM!\n  Failed to fetch")
			So(text, ShouldContainSubstring, "bad [red[] body")
		})

		Convey("No banners render nothing", func() {
			So(bannerText(nil), ShouldBeEmpty)
		})
	})
}

func TestConsoleKeys(t *testing.T) {
	Convey("Given a console on a simulated screen", t, func() {
		screen := tcell.NewSimulationScreen("UTF-8")
		board := display.NewBoard("processing-stats", "consistency-stats")
		trigger := &countingTrigger{}
		c := New(board, trigger, WithScreen(screen))

		done := make(chan error, 1)
		go func() { done <- c.Run(context.Background()) }()
		c.WaitReady()

		Convey("Pressing c triggers a consistency check", func() {
			screen.InjectKey(tcell.KeyRune, 'c', tcell.ModNone)
			deadline := time.Now().Add(2 * time.Second)
			for trigger.calls.Load() == 0 && time.Now().Before(deadline) {
				time.Sleep(5 * time.Millisecond)
			}
			So(trigger.calls.Load(), ShouldEqual, 1)

			c.Stop()
			So(<-done, ShouldBeNil)
		})

		Convey("A failing trigger does not stop the console", func() {
			trigger.err = errors.New("stopped")
			screen.InjectKey(tcell.KeyRune, 'c', tcell.ModNone)
			screen.InjectKey(tcell.KeyRune, 'q', tcell.ModNone)
			So(<-done, ShouldBeNil)
			So(trigger.calls.Load(), ShouldEqual, 1)
		})

		Convey("Pressing q quits", func() {
			screen.InjectKey(tcell.KeyRune, 'q', tcell.ModNone)
			select {
			case err := <-done:
				So(err, ShouldBeNil)
			case <-time.After(2 * time.Second):
				So("console did not quit", ShouldBeEmpty)
			}
		})
	})
}

func TestConsoleContextCancel(t *testing.T) {
	Convey("Cancelling the context ends Run", t, func() {
		screen := tcell.NewSimulationScreen("UTF-8")
		c := New(display.NewBoard("event-flight"), &countingTrigger{}, WithScreen(screen))
		ctx, cancel := context.WithCancel(context.Background())

		done := make(chan error, 1)
		go func() { done <- c.Run(ctx) }()
		c.WaitReady()
		cancel()

		select {
		case err := <-done:
			So(err, ShouldBeNil)
		case <-time.After(2 * time.Second):
			So("console did not stop", ShouldBeEmpty)
		}
	})
}

type staticFetcher struct{}

func (staticFetcher) Fetch(context.Context, endpoint.Endpoint) ([]byte, error) {
	return []byte(`{"count":5}`), nil
}

func logPaneContains(c *Console, text string) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if strings.Contains(c.logView.GetText(true), text) {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

func TestLogWriter(t *testing.T) {
	Convey("Given a console that is not running yet", t, func() {
		c := New(display.NewBoard("event-flight"), &countingTrigger{}, WithScreen(tcell.NewSimulationScreen("UTF-8")))
		w := c.LogWriter()

		Convey("Writes return at once even past the queue size", func() {
			finished := make(chan struct{})
			go func() {
				for i := 0; i < eventQueueSize*4; i++ {
					_, _ = w.Write([]byte("early line\n"))
				}
				close(finished)
			}()
			select {
			case <-finished:
			case <-time.After(2 * time.Second):
				So("log writes blocked", ShouldBeEmpty)
			}
		})

		Convey("Once drawn, written lines reach the log pane", func() {
			done := make(chan error, 1)
			go func() { done <- c.Run(context.Background()) }()
			So(c.WaitReady(), ShouldBeTrue)

			n, err := w.Write([]byte("pane line\n"))
			So(err, ShouldBeNil)
			So(n, ShouldEqual, len("pane line\n"))
			So(logPaneContains(c, "pane line"), ShouldBeTrue)

			c.Stop()
			So(<-done, ShouldBeNil)

			Convey("And writes after Stop do not block", func() {
				n, err := w.Write([]byte("late line\n"))
				So(err, ShouldBeNil)
				So(n, ShouldEqual, len("late line\n"))
			})
		})
	})
}

func TestConsoleWithPoller(t *testing.T) {
	Convey("Given a running console receiving the global log", t, func() {
		board := display.NewBoard(endpoint.Regions...)
		c := New(board, &countingTrigger{}, WithScreen(tcell.NewSimulationScreen("UTF-8")))
		done := make(chan error, 1)
		go func() { done <- c.Run(context.Background()) }()
		So(c.WaitReady(), ShouldBeTrue)

		So(logger.InitWithWriter(c.LogWriter()), ShouldBeNil)
		Reset(func() {
			c.Stop()
			<-done
			_ = logger.Init()
		})

		set, err := endpoint.NewSet("http://upstream.test", nil)
		So(err, ShouldBeNil)
		svc := service.New(set, staticFetcher{},
			service.WithBoard(board),
			service.WithLogger(logger.Get().Named("poller")),
		)

		Convey("When the poller starts", func() {
			started := make(chan error, 1)
			go func() { started <- svc.Start(context.Background()) }()

			Convey("Then Start returns and its log record reaches the pane", func() {
				select {
				case err := <-started:
					So(err, ShouldBeNil)
				case <-time.After(2 * time.Second):
					So("poller start blocked on the log pane", ShouldBeEmpty)
				}
				svc.Stop()
				So(logPaneContains(c, "dashboard poller started"), ShouldBeTrue)
			})
		})
	})
}

func TestWaitReadyAfterFailedRun(t *testing.T) {
	Convey("WaitReady reports false when Run ends before drawing", t, func() {
		c := New(display.NewBoard("event-flight"), &countingTrigger{}, WithScreen(tcell.NewSimulationScreen("UTF-8")))
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		So(c.Run(ctx), ShouldBeNil)
		So(c.WaitReady(), ShouldBeFalse)
	})
}

func TestRenderAfterStop(t *testing.T) {
	Convey("Given a console that has been stopped", t, func() {
		board := display.NewBoard("processing-stats")
		c := New(board, &countingTrigger{}, WithScreen(tcell.NewSimulationScreen("UTF-8")))
		done := make(chan error, 1)
		go func() { done <- c.Run(context.Background()) }()
		So(c.WaitReady(), ShouldBeTrue)
		c.Stop()
		So(<-done, ShouldBeNil)

		Convey("Rendering new board state returns at once", func() {
			finished := make(chan struct{})
			go func() {
				for i := 0; i < eventQueueSize*2; i++ {
					board.SetRegion("processing-stats", `{"count":5}`)
					c.render(board.Snapshot())
				}
				close(finished)
			}()
			select {
			case <-finished:
			case <-time.After(2 * time.Second):
				So("render blocked after Stop", ShouldBeEmpty)
			}
		})
	})
}
