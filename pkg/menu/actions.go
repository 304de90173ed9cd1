package menu

import "fmt"

// Action is an abstract user input, or the id of a menu item.
type Action int

// Actions.
const (
	ActionNone Action = iota
	ActionUp
	ActionDown
	ActionSelect
	ActionSubmenu
	ActionParentMenu
	ActionKey0
	ActionKey1
	ActionKey2
	ActionKey3
	ActionKey4
	ActionKey5
	ActionKey6
	ActionKey7
	ActionKey8
	ActionKey9
	ActionRescan
	ActionReboot
	ActionShutdown
	ActionDebug
	ActionExit
	ActionTimeout
	ActionError
)

// ActionDevices is the id of the boot entry at registry index 0. The entry
// at index i has id ActionDevices + i.
const ActionDevices Action = 100

// DeviceAction returns the item id of the boot entry at index.
func DeviceAction(index int) Action {
	return ActionDevices + Action(index)
}

// DeviceIndex returns the registry index carried by a boot entry id.
func (a Action) DeviceIndex() (int, bool) {
	if a < ActionDevices {
		return 0, false
	}
	return int(a - ActionDevices), true
}

func (a Action) String() string {
	switch {
	case a >= ActionDevices:
		return fmt.Sprintf("device(%d)", int(a-ActionDevices))
	case a >= ActionKey0 && a <= ActionKey9:
		return fmt.Sprintf("key%d", int(a-ActionKey0))
	}

	switch a {
	case ActionNone:
		return "none"
	case ActionUp:
		return "up"
	case ActionDown:
		return "down"
	case ActionSelect:
		return "select"
	case ActionSubmenu:
		return "submenu"
	case ActionParentMenu:
		return "parent"
	case ActionRescan:
		return "rescan"
	case ActionReboot:
		return "reboot"
	case ActionShutdown:
		return "shutdown"
	case ActionDebug:
		return "debug"
	case ActionExit:
		return "exit"
	case ActionTimeout:
		return "timeout"
	case ActionError:
		return "error"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}
