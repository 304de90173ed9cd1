package menu

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/joaohf/kexecboot/pkg/booter"
)

var (
	// ErrExit is returned when the user leaves the boot manager.
	ErrExit = errors.New("exit requested")
	// ErrInput is returned when the input source fails.
	ErrInput = errors.New("input error")
)

// Messages shown while a system action runs.
const (
	MessageReboot   = "Rebooting..."
	MessageShutdown = "Shutting down..."
	MessageRescan   = "Rescanning devices.\nPlease wait..."
)

// UIContext is what the front end is showing.
type UIContext int

// UI contexts.
const (
	ContextMenu UIContext = iota
	ContextTextView
)

// Result tells the loop what to do after an action.
type Result int

// Dispatch results.
const (
	ResultContinue Result = iota
	ResultSelect
	ResultError
)

// FrontEnd renders the menu, the log viewer and transient messages.
type FrontEnd interface {
	ShowMenu(m *Menu)
	ShowText(lines []string, first int)
	ShowMessage(text string)
}

// Input produces user actions. It returns ActionTimeout when the boot
// timeout elapses and ActionError when ctx is done.
type Input interface {
	NextAction(ctx context.Context) Action
}

// Discoverer builds a fresh registry from the attached devices.
type Discoverer interface {
	Discover(ctx context.Context) (*booter.Registry, error)
}

// Power reboots or powers off the machine.
type Power interface {
	Reboot() error
	Shutdown() error
}

// LogSource provides the lines shown in the debug view.
type LogSource interface {
	Lines() []string
}

// Context is the runtime state of the boot menu.
type Context struct {
	Logger *zap.Logger

	FrontEnd   FrontEnd
	Discoverer Discoverer
	Power      Power
	Log        LogSource

	MountPoint string
	InitMode   bool

	UI       UIContext
	Menu     *Menu
	Registry *booter.Registry
	// LineNo is the first log line shown in the debug view.
	LineNo int
}

// Scan discards the current registry and menu entries and rebuilds them.
func (c *Context) Scan(ctx context.Context) error {
	if c.Menu == nil {
		c.Menu = New(c.InitMode)
	}

	c.Registry.Release()
	c.Registry = nil
	c.Menu.Reset()

	reg, err := c.Discoverer.Discover(ctx)
	if err != nil {
		return err
	}

	c.Registry = reg
	c.Menu.Fill(reg, c.MountPoint)
	c.UI = ContextMenu

	c.Logger.Info("boot entries", zap.Int("count", reg.Len()))

	return nil
}

// Selected returns the boot entry of the highlighted item.
func (c *Context) Selected() (*booter.BootEntry, error) {
	item := c.Menu.Selected()
	if item == nil {
		return nil, fmt.Errorf("nothing selected")
	}
	index, ok := item.ID.DeviceIndex()
	if !ok {
		return nil, fmt.Errorf("%s is not a boot entry", item.Label)
	}
	entry := c.Registry.Entry(index)
	if entry == nil {
		return nil, fmt.Errorf("no boot entry %d", index)
	}
	return entry, nil
}

// Draw renders the current context.
func (c *Context) Draw() {
	switch c.UI {
	case ContextMenu:
		c.FrontEnd.ShowMenu(c.Menu)
	case ContextTextView:
		c.FrontEnd.ShowText(c.Log.Lines(), c.LineNo)
	}
}

// Dispatch applies action to the current context.
func (c *Context) Dispatch(ctx context.Context, action Action) (Result, error) {
	if c.UI == ContextTextView {
		return c.dispatchTextView(action)
	}
	return c.dispatchMenu(ctx, action)
}

func (c *Context) dispatchMenu(ctx context.Context, action Action) (Result, error) {
	m := c.Menu

	if action >= ActionKey0 && action <= ActionKey9 {
		if !m.SelectByNo(int(action - ActionKey0)) {
			return ResultContinue, nil
		}
		action = ActionSelect
	}

	menuAction := action
	if action == ActionSelect {
		item := m.Selected()
		if item == nil {
			return ResultContinue, nil
		}
		menuAction = item.ID
	}

	switch menuAction {
	case ActionUp:
		m.Active.Move(-1)
	case ActionDown:
		m.Active.Move(1)
	case ActionSubmenu:
		if item := m.Selected(); item != nil && item.Submenu != nil {
			m.Active = item.Submenu
		}
	case ActionParentMenu:
		if m.Active.Parent != nil {
			m.Active = m.Active.Parent
		}
	case ActionReboot:
		c.FrontEnd.ShowMessage(MessageReboot)
		if err := c.Power.Reboot(); err != nil {
			c.Logger.Error("can't initiate reboot", zap.Error(err))
		}
	case ActionShutdown:
		c.FrontEnd.ShowMessage(MessageShutdown)
		if err := c.Power.Shutdown(); err != nil {
			c.Logger.Error("can't initiate shutdown", zap.Error(err))
		}
	case ActionRescan:
		c.FrontEnd.ShowMessage(MessageRescan)
		if err := c.Scan(ctx); err != nil {
			c.Logger.Error("rescan failed", zap.Error(err))
			return ResultError, err
		}
	case ActionDebug:
		c.UI = ContextTextView
	case ActionExit:
		if !c.InitMode {
			return ResultError, ErrExit
		}
	case ActionError:
		return ResultError, ErrInput
	case ActionTimeout:
		m.Active = m.Top
		if len(m.Top.Items) > 1 {
			m.Top.Current = 1
			return ResultSelect, nil
		}
	default:
		if menuAction >= ActionDevices {
			return ResultSelect, nil
		}
	}

	return ResultContinue, nil
}

func (c *Context) dispatchTextView(action Action) (Result, error) {
	switch action {
	case ActionUp:
		if c.LineNo > 0 {
			c.LineNo--
		}
	case ActionDown:
		if c.LineNo+1 < len(c.Log.Lines()) {
			c.LineNo++
		}
	case ActionSelect:
		c.LineNo = 0
		c.UI = ContextMenu
	case ActionExit:
		if !c.InitMode {
			return ResultError, ErrExit
		}
	case ActionError:
		return ResultError, ErrInput
	}

	return ResultContinue, nil
}

// Run draws the menu and processes input until an entry is selected or the
// loop fails.
func (c *Context) Run(ctx context.Context, input Input) (*booter.BootEntry, error) {
	c.UI = ContextMenu
	c.Draw()

	for {
		action := input.NextAction(ctx)
		if action == ActionNone {
			continue
		}

		c.Logger.Debug("action", zap.Stringer("action", action))

		result, err := c.Dispatch(ctx, action)
		switch result {
		case ResultContinue:
			c.Draw()
		case ResultSelect:
			return c.Selected()
		case ResultError:
			return nil, err
		}
	}
}
