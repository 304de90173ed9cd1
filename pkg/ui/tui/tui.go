// Package tui is a text front end for the boot menu.
package tui

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gdamore/tcell/v2"
	"go.uber.org/zap"

	"github.com/joaohf/kexecboot/pkg/menu"
)

// TUI draws the boot menu on a terminal and turns key presses into menu
// actions.
type TUI struct {
	logger *zap.Logger
	screen tcell.Screen
	clock  clock.Clock

	// the boot timeout is armed until the first key press
	armed    bool
	deadline time.Time

	events    chan tcell.Event
	quit      chan struct{}
	closeOnce sync.Once
	closed    bool
	numKeys   bool
}

var (
	_ menu.FrontEnd = (*TUI)(nil)
	_ menu.Input    = (*TUI)(nil)
)

// New opens the terminal. An empty ttyPath uses the controlling terminal. A
// zero timeout disables automatic selection.
func New(logger *zap.Logger, ttyPath string, timeout time.Duration, clk clock.Clock) (*TUI, error) {
	var (
		screen tcell.Screen
		err    error
	)

	if ttyPath != "" {
		var tty tcell.Tty

		tty, err = tcell.NewDevTtyFromDev(ttyPath)
		if err != nil {
			return nil, fmt.Errorf("error opening %s: %w", ttyPath, err)
		}

		screen, err = tcell.NewTerminfoScreenFromTty(tty)
	} else {
		screen, err = tcell.NewScreen()
	}

	if err != nil {
		return nil, fmt.Errorf("error creating screen: %w", err)
	}

	return newWithScreen(logger, screen, timeout, clk)
}

func newWithScreen(logger *zap.Logger, screen tcell.Screen, timeout time.Duration, clk clock.Clock) (*TUI, error) {
	if err := screen.Init(); err != nil {
		return nil, fmt.Errorf("error initializing screen: %w", err)
	}

	screen.HideCursor()

	t := &TUI{
		logger:  logger,
		screen:  screen,
		clock:   clk,
		events:  make(chan tcell.Event, 16),
		quit:    make(chan struct{}),
		numKeys: true,
	}

	if timeout > 0 {
		t.armed = true
		t.deadline = clk.Now().Add(timeout)
	}

	go screen.ChannelEvents(t.events, t.quit)

	return t, nil
}

// Close restores the terminal.
func (t *TUI) Close() {
	t.closeOnce.Do(func() {
		t.closed = true
		close(t.quit)
		t.screen.Fini()
	})
}

// SetNumKeys enables or disables the digit shortcuts.
func (t *TUI) SetNumKeys(enabled bool) {
	t.numKeys = enabled
}

// Closed reports whether the terminal was released.
func (t *TUI) Closed() bool {
	return t.closed
}

// NextAction implements menu.Input.
func (t *TUI) NextAction(ctx context.Context) menu.Action {
	var timeout <-chan time.Time

	if t.armed {
		remaining := t.deadline.Sub(t.clock.Now())
		if remaining <= 0 {
			t.armed = false

			return menu.ActionTimeout
		}

		timer := t.clock.Timer(remaining)
		defer timer.Stop()

		timeout = timer.C
	}

	select {
	case <-ctx.Done():
		return menu.ActionError
	case <-timeout:
		t.armed = false

		return menu.ActionTimeout
	case ev, ok := <-t.events:
		if !ok {
			return menu.ActionError
		}

		switch ev := ev.(type) {
		case *tcell.EventKey:
			t.armed = false

			action := translateKey(ev)
			if !t.numKeys && action >= menu.ActionKey0 && action <= menu.ActionKey9 {
				return menu.ActionNone
			}

			return action
		case *tcell.EventResize:
			t.screen.Sync()
		}

		return menu.ActionNone
	}
}

func translateKey(ev *tcell.EventKey) menu.Action {
	switch ev.Key() {
	case tcell.KeyUp:
		return menu.ActionUp
	case tcell.KeyDown:
		return menu.ActionDown
	case tcell.KeyEnter:
		return menu.ActionSelect
	case tcell.KeyRight:
		return menu.ActionSubmenu
	case tcell.KeyLeft, tcell.KeyEscape:
		return menu.ActionParentMenu
	case tcell.KeyCtrlC:
		return menu.ActionExit
	case tcell.KeyRune:
	default:
		return menu.ActionNone
	}

	r := ev.Rune()
	switch {
	case r >= '0' && r <= '9':
		return menu.ActionKey0 + menu.Action(r-'0')
	case r == ' ':
		return menu.ActionSelect
	case r == 'k':
		return menu.ActionUp
	case r == 'j':
		return menu.ActionDown
	case r == 'r':
		return menu.ActionRescan
	case r == 'd':
		return menu.ActionDebug
	case r == 'q':
		return menu.ActionExit
	}

	return menu.ActionNone
}

var (
	styleNormal   = tcell.StyleDefault
	styleTitle    = tcell.StyleDefault.Bold(true)
	styleSelected = tcell.StyleDefault.Reverse(true)
	styleDesc     = tcell.StyleDefault.Dim(true)
)

// ShowMenu implements menu.FrontEnd.
func (t *TUI) ShowMenu(m *menu.Menu) {
	if t.closed {
		return
	}

	t.screen.Clear()

	title := "kexecboot"
	if m.Active == m.System {
		title = menu.LabelSystem
	}
	t.drawText(0, 0, styleTitle, title)

	row := 2
	for i, item := range m.Active.Items {
		style := styleNormal
		if i == m.Active.Current {
			style = styleSelected
		}

		label := item.Label
		if m.Active == m.Top {
			label = fmt.Sprintf("%d. %s", i, item.Label)
		}
		t.drawText(1, row, style, label)
		row++

		if item.Description != "" {
			t.drawText(4, row, styleDesc, item.Description)
			row++
		}
	}

	t.screen.Show()
}

// ShowText implements menu.FrontEnd.
func (t *TUI) ShowText(lines []string, first int) {
	if t.closed {
		return
	}

	t.screen.Clear()

	_, height := t.screen.Size()
	for row := 0; row < height && first+row < len(lines); row++ {
		t.drawText(0, row, styleNormal, lines[first+row])
	}

	t.screen.Show()
}

// ShowMessage implements menu.FrontEnd.
func (t *TUI) ShowMessage(text string) {
	if t.closed {
		return
	}

	t.screen.Clear()

	width, height := t.screen.Size()
	lines := strings.Split(text, "\n")

	top := (height - len(lines)) / 2
	for i, line := range lines {
		t.drawText(max((width-len(line))/2, 0), top+i, styleTitle, line)
	}

	t.screen.Show()
}

func (t *TUI) drawText(x, y int, style tcell.Style, text string) {
	width, _ := t.screen.Size()
	for _, r := range text {
		if x >= width {
			return
		}
		t.screen.SetContent(x, y, r, nil, style)
		x++
	}
}
