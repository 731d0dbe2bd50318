package terminal

import (
	"github.com/gdamore/tcell/v2"

	"github.com/Flgjfvevdk/pilot-together/internal/input"
)

// Command is a non-control key action.
type Command uint8

const (
	CommandNone Command = iota
	CommandQuit
	CommandRepair
	CommandWeapon1
	CommandWeapon2
	CommandWeapon3
	CommandWeapon4
)

// Weapon returns the weapon slot selected by c, or 0.
func (c Command) Weapon() int {
	if c >= CommandWeapon1 && c <= CommandWeapon4 {
		return int(c-CommandWeapon1) + 1
	}
	return 0
}

// keyToControl maps a key event to a held control name, or "".
func keyToControl(ev *tcell.EventKey) string {
	// Named keys.
	switch ev.Key() {
	case tcell.KeyUp:
		return input.Up
	case tcell.KeyDown:
		return input.Down
	case tcell.KeyLeft:
		return input.Left
	case tcell.KeyRight:
		return input.Right
	}

	// Rune keys.
	switch ev.Rune() {
	case 'w', 'W':
		return input.ShootUp
	case 's', 'S':
		return input.ShootDown
	case 'a', 'A':
		return input.ShootLeft
	case 'd', 'D':
		return input.ShootRight
	case 'i', 'I':
		return input.ShieldUp
	case 'k', 'K':
		return input.ShieldDown
	case 'j', 'J':
		return input.ShieldLeft
	case 'l', 'L':
		return input.ShieldRight
	case 'e', 'E':
		return input.Shield
	case ' ':
		return input.Cool
	}
	return ""
}

// keyToCommand maps a key event to a one-shot command.
func keyToCommand(ev *tcell.EventKey) Command {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return CommandQuit
	}

	switch ev.Rune() {
	case 'q', 'Q':
		return CommandQuit
	case 'r', 'R':
		return CommandRepair
	case '1':
		return CommandWeapon1
	case '2':
		return CommandWeapon2
	case '3':
		return CommandWeapon3
	case '4':
		return CommandWeapon4
	}
	return CommandNone
}
