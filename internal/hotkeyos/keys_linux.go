//go:build linux

package hotkeyos

import (
	"golang.design/x/hotkey"

	"github.com/dshills/switchkey/internal/accel"
)

// translateModifiers maps canonical modifiers to X11 modifier masks.
// Alt is Mod1 and Super is Mod4 on most X11 setups.
func translateModifiers(m accel.Modifier) []hotkey.Modifier {
	var mods []hotkey.Modifier
	if m.Has(accel.ModCtrl) {
		mods = append(mods, hotkey.ModCtrl)
	}
	if m.Has(accel.ModAlt) {
		mods = append(mods, hotkey.Mod1)
	}
	if m.Has(accel.ModShift) {
		mods = append(mods, hotkey.ModShift)
	}
	if m.Has(accel.ModSuper) {
		mods = append(mods, hotkey.Mod4)
	}
	return mods
}

// keyCodes maps canonical key tokens to X11 keysyms. Tokens absent here
// (numpad keys, navigation beyond arrows) cannot be registered system-wide
// on this platform and surface as ErrUnsupportedKey.
var keyCodes = map[string]hotkey.Key{
	"0": hotkey.Key0,
	"1": hotkey.Key1,
	"2": hotkey.Key2,
	"3": hotkey.Key3,
	"4": hotkey.Key4,
	"5": hotkey.Key5,
	"6": hotkey.Key6,
	"7": hotkey.Key7,
	"8": hotkey.Key8,
	"9": hotkey.Key9,

	"A": hotkey.KeyA,
	"B": hotkey.KeyB,
	"C": hotkey.KeyC,
	"D": hotkey.KeyD,
	"E": hotkey.KeyE,
	"F": hotkey.KeyF,
	"G": hotkey.KeyG,
	"H": hotkey.KeyH,
	"I": hotkey.KeyI,
	"J": hotkey.KeyJ,
	"K": hotkey.KeyK,
	"L": hotkey.KeyL,
	"M": hotkey.KeyM,
	"N": hotkey.KeyN,
	"O": hotkey.KeyO,
	"P": hotkey.KeyP,
	"Q": hotkey.KeyQ,
	"R": hotkey.KeyR,
	"S": hotkey.KeyS,
	"T": hotkey.KeyT,
	"U": hotkey.KeyU,
	"V": hotkey.KeyV,
	"W": hotkey.KeyW,
	"X": hotkey.KeyX,
	"Y": hotkey.KeyY,
	"Z": hotkey.KeyZ,

	"F1":  hotkey.KeyF1,
	"F2":  hotkey.KeyF2,
	"F3":  hotkey.KeyF3,
	"F4":  hotkey.KeyF4,
	"F5":  hotkey.KeyF5,
	"F6":  hotkey.KeyF6,
	"F7":  hotkey.KeyF7,
	"F8":  hotkey.KeyF8,
	"F9":  hotkey.KeyF9,
	"F10": hotkey.KeyF10,
	"F11": hotkey.KeyF11,
	"F12": hotkey.KeyF12,

	"Up":    hotkey.KeyUp,
	"Down":  hotkey.KeyDown,
	"Left":  hotkey.KeyLeft,
	"Right": hotkey.KeyRight,

	"Space":  hotkey.KeySpace,
	"Enter":  hotkey.KeyReturn,
	"Escape": hotkey.KeyEscape,
	"Tab":    hotkey.KeyTab,
	"Delete": hotkey.KeyDelete,
}
