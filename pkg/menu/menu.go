// Package menu implements the boot menu model and the state machine driving
// it.
package menu

import (
	"github.com/joaohf/kexecboot/pkg/booter"
)

// Item is a menu entry.
type Item struct {
	ID          Action
	Label       string
	Description string
	Icon        []byte
	Submenu     *Level
}

// Level is a list of items with a cursor.
type Level struct {
	Items   []*Item
	Current int
	Parent  *Level
}

// Selected returns the highlighted item.
func (l *Level) Selected() *Item {
	if l.Current < 0 || l.Current >= len(l.Items) {
		return nil
	}
	return l.Items[l.Current]
}

// Move moves the cursor by delta, wrapping around.
func (l *Level) Move(delta int) {
	n := len(l.Items)
	if n < 2 {
		return
	}
	l.Current = ((l.Current+delta)%n + n) % n
}

// Menu is the two level boot menu: the top level holds the system menu entry
// followed by the boot entries.
type Menu struct {
	Top    *Level
	System *Level
	// Active is the level receiving navigation.
	Active *Level
}

// Labels of the fixed entries.
const (
	LabelSystem   = "System menu"
	LabelBack     = "Back"
	LabelRescan   = "Rescan"
	LabelDebug    = "Show debug info"
	LabelReboot   = "Reboot"
	LabelShutdown = "Shutdown"
	LabelExit     = "Exit"
)

// New builds a menu without boot entries. Exit is left out in init mode.
func New(initMode bool) *Menu {
	top := &Level{}
	system := &Level{Parent: top}

	system.Items = []*Item{
		{ID: ActionParentMenu, Label: LabelBack},
		{ID: ActionRescan, Label: LabelRescan},
		{ID: ActionDebug, Label: LabelDebug},
		{ID: ActionReboot, Label: LabelReboot},
		{ID: ActionShutdown, Label: LabelShutdown},
	}
	if !initMode {
		system.Items = append(system.Items, &Item{ID: ActionExit, Label: LabelExit})
	}

	top.Items = []*Item{{ID: ActionSubmenu, Label: LabelSystem, Submenu: system}}

	return &Menu{Top: top, System: system, Active: top}
}

// Reset drops the boot entries and returns to the top level.
func (m *Menu) Reset() {
	m.Top.Items = m.Top.Items[:1]
	m.Top.Current = 0
	m.System.Current = 0
	m.Active = m.Top
}

// Fill appends one item per boot entry in descending priority. Entries with
// equal priority keep their registry order. Item ids carry the registry
// index.
func (m *Menu) Fill(reg *booter.Registry, mountPoint string) {
	entries := reg.Entries()
	processed := make([]bool, len(entries))

	for range entries {
		best := -1
		for i, e := range entries {
			if processed[i] {
				continue
			}
			if best < 0 || e.Priority > entries[best].Priority {
				best = i
			}
		}
		processed[best] = true

		e := entries[best]
		m.Top.Items = append(m.Top.Items, &Item{
			ID:          DeviceAction(best),
			Label:       e.DisplayLabel(mountPoint),
			Description: e.Description(),
			Icon:        e.Icon,
		})
	}
}

// Selected returns the highlighted item of the active level.
func (m *Menu) Selected() *Item {
	return m.Active.Selected()
}

// SelectByNo highlights the nth top level item and makes the top level
// active.
func (m *Menu) SelectByNo(n int) bool {
	if n < 0 || n >= len(m.Top.Items) {
		return false
	}
	m.Active = m.Top
	m.Top.Current = n
	return true
}
