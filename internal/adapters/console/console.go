// Package console renders the dashboard in a terminal.
//
// The layout mirrors the web page: a header with the last-updated label, one
// pane per display region, the error banners and a log pane. Key bindings:
// c runs the consistency check, q or Ctrl-C quits.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/okian/flightboard/internal/domain/display"
)

// ErrConsole is returned when the terminal UI cannot run.
var ErrConsole = errors.New("console failed")

// ConsistencyTrigger starts a consistency check without waiting for it.
type ConsistencyTrigger interface {
	TriggerConsistencyCheck() error
}

// TriggerFunc adapts a function to ConsistencyTrigger.
type TriggerFunc func() error

// TriggerConsistencyCheck calls f.
func (f TriggerFunc) TriggerConsistencyCheck() error { return f() }

// Option configures a Console.
type Option func(*Console)

// WithScreen draws on screen instead of the process terminal.
func WithScreen(screen tcell.Screen) Option {
	return func(c *Console) {
		c.screen = screen
	}
}

// WithClock sets the time source used for relative ages.
func WithClock(now func() time.Time) Option {
	return func(c *Console) {
		if now != nil {
			c.now = now
		}
	}
}

// Console is a tview application bound to a display board.
type Console struct {
	board   *display.Board
	trigger ConsistencyTrigger
	now     func() time.Time
	screen  tcell.Screen

	app      *tview.Application
	header   *tview.TextView
	regions  map[string]*tview.TextView
	messages *tview.TextView
	logView  *tview.TextView

	events chan func()
	drawMu sync.Mutex
	ready  chan struct{}
	done   chan struct{}
	closed atomic.Bool
}

const eventQueueSize = 256

// New builds the console layout for board. Nothing is drawn until Run.
func New(board *display.Board, trigger ConsistencyTrigger, opts ...Option) *Console {
	c := &Console{
		board:   board,
		trigger: trigger,
		now:     time.Now,
		app:     tview.NewApplication(),
		regions: make(map[string]*tview.TextView),
		events:  make(chan func(), eventQueueSize),
		ready:   make(chan struct{}),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	makePane := func(title string) *tview.TextView {
		tv := tview.NewTextView().SetDynamicColors(true).SetWrap(true)
		tv.SetBorder(true).SetTitle(" " + title + " ").SetTitleAlign(tview.AlignLeft)
		return tv
	}

	c.header = tview.NewTextView().SetDynamicColors(true).SetWrap(false)
	c.header.SetTextColor(tcell.ColorYellow)

	grid := tview.NewFlex().SetDirection(tview.FlexRow)
	for _, id := range board.RegionIDs() {
		pane := makePane(id)
		c.regions[id] = pane
		grid.AddItem(pane, 0, 1, false)
	}

	c.messages = makePane("Messages")
	c.messages.SetTextColor(tcell.ColorRed)
	c.logView = makePane("Log")
	c.logView.SetDynamicColors(false).SetMaxLines(200)

	side := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(c.messages, 0, 1, false).
		AddItem(c.logView, 0, 2, false)

	body := tview.NewFlex().
		AddItem(grid, 0, 3, false).
		AddItem(side, 0, 2, false)

	layout := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(c.header, 1, 0, false).
		AddItem(body, 0, 1, true)

	var once sync.Once
	c.app.SetRoot(layout, true).EnableMouse(false)
	c.app.SetBeforeDrawFunc(func(tcell.Screen) bool {
		once.Do(func() { close(c.ready) })
		return false
	})
	c.app.SetInputCapture(c.handleKey)
	if c.screen != nil {
		c.app.SetScreen(c.screen)
	}
	return c
}

// Run draws the board until the user quits or ctx is cancelled.
func (c *Console) Run(ctx context.Context) error {
	defer close(c.done)
	if ctx.Err() != nil || c.closed.Load() {
		return nil
	}
	updates, cancel := c.board.Subscribe()
	defer cancel()
	go c.follow(updates)
	go c.runEventLoop()

	stop := context.AfterFunc(ctx, c.Stop)
	defer stop()

	if err := c.app.Run(); err != nil {
		c.closed.Store(true)
		return fmt.Errorf("%w: %w", ErrConsole, err)
	}
	c.closed.Store(true)
	return nil
}

// Stop ends Run. It must not be called from the UI goroutine.
func (c *Console) Stop() {
	c.closed.Store(true)
	// Let an update already handed to the application finish first.
	c.drawMu.Lock()
	defer c.drawMu.Unlock()
	c.app.Stop()
}

// WaitReady blocks until the first frame has been drawn. It reports false
// if Run ended before that.
func (c *Console) WaitReady() bool {
	select {
	case <-c.ready:
		return true
	case <-c.done:
		return false
	}
}

// LogWriter returns a writer appending to the log pane. Writes never block;
// lines are dropped while the pane is saturated or after Stop.
func (c *Console) LogWriter() io.Writer {
	return &paneWriter{console: c}
}

func (c *Console) follow(updates <-chan display.Snapshot) {
	for snap := range updates {
		if c.closed.Load() {
			return
		}
		c.render(snap)
	}
}

func (c *Console) render(snap display.Snapshot) {
	now := c.now()
	header := headerText(snap)
	banners := bannerText(snap.Banners)
	type paneUpdate struct {
		view        *tview.TextView
		title, text string
	}
	updates := make([]paneUpdate, 0, len(c.regions))
	for id, view := range c.regions {
		r := snap.Regions[id]
		updates = append(updates, paneUpdate{view: view, title: regionTitle(r, now), text: tview.Escape(r.Text)})
	}

	c.enqueue(func() {
		c.header.SetText(header)
		for _, u := range updates {
			u.view.SetTitle(u.title)
			u.view.SetText(u.text)
		}
		c.messages.SetText(banners)
	})
}

// enqueue hands fn to the event loop without blocking the caller.
func (c *Console) enqueue(fn func()) {
	if c.closed.Load() {
		return
	}
	select {
	case c.events <- fn:
	default:
		// Drop on saturation.
	}
}

// runEventLoop applies queued updates once the application draws. Only this
// goroutine calls QueueUpdateDraw, and it does so under drawMu so Stop never
// strands it waiting on a stopped application.
func (c *Console) runEventLoop() {
	select {
	case <-c.ready:
	case <-c.done:
		return
	}
	for {
		select {
		case <-c.done:
			return
		case fn := <-c.events:
			if !c.apply(fn) {
				return
			}
		}
	}
}

func (c *Console) apply(fn func()) bool {
	c.drawMu.Lock()
	defer c.drawMu.Unlock()
	if c.closed.Load() {
		return false
	}
	c.app.QueueUpdateDraw(fn)
	return true
}

func (c *Console) handleKey(ev *tcell.EventKey) *tcell.EventKey {
	if ev.Key() == tcell.KeyCtrlC {
		go c.Stop()
		return nil
	}
	if ev.Key() != tcell.KeyRune {
		return ev
	}
	switch ev.Rune() {
	case 'q':
		go c.Stop()
		return nil
	case 'c':
		if err := c.trigger.TriggerConsistencyCheck(); err != nil {
			fmt.Fprintf(c.logView, "consistency check not started: %v\n", err)
			return nil
		}
		fmt.Fprintln(c.logView, "consistency check started")
		return nil
	}
	return ev
}

type paneWriter struct {
	console *Console
}

func (w *paneWriter) Write(p []byte) (int, error) {
	text := string(p)
	view := w.console.logView
	w.console.enqueue(func() {
		fmt.Fprint(view, text)
		view.ScrollToEnd()
	})
	return len(p), nil
}
