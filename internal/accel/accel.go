package accel

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ErrInvalidFormat is returned when shortcut text is empty after trimming.
// Any other input is accepted; the codec is deliberately permissive.
var ErrInvalidFormat = errors.New("invalid shortcut: empty specification")

// Accelerator is the canonical, order-normalized representation of a key
// combination. It is comparable and safe to use as a map key.
type Accelerator struct {
	// Mods holds the modifier set in canonical form.
	Mods Modifier

	// Key is the canonical key token: an upper-cased character ("A", "1"),
	// a special key name ("F1", "Up", "Num3"), or a lowercase passthrough
	// for unmapped multi-character tokens. Empty for modifier-only combos.
	Key string
}

// specialKeys maps key name tokens (lowercase) to canonical key tokens.
var specialKeys = map[string]string{
	// Arrows
	"up":    "Up",
	"down":  "Down",
	"left":  "Left",
	"right": "Right",

	// Function keys
	"f1":  "F1",
	"f2":  "F2",
	"f3":  "F3",
	"f4":  "F4",
	"f5":  "F5",
	"f6":  "F6",
	"f7":  "F7",
	"f8":  "F8",
	"f9":  "F9",
	"f10": "F10",
	"f11": "F11",
	"f12": "F12",

	// Navigation
	"home":      "Home",
	"end":       "End",
	"pageup":    "PageUp",
	"pgup":      "PageUp",
	"pagedown":  "PageDown",
	"pgdn":      "PageDown",
	"insert":    "Insert",
	"ins":       "Insert",
	"delete":    "Delete",
	"del":       "Delete",
	"escape":    "Escape",
	"esc":       "Escape",
	"enter":     "Enter",
	"return":    "Enter",
	"tab":       "Tab",
	"space":     "Space",
	"backspace": "Backspace",
	"bs":        "Backspace",

	// Numpad
	"num0":    "Num0",
	"num1":    "Num1",
	"num2":    "Num2",
	"num3":    "Num3",
	"num4":    "Num4",
	"num5":    "Num5",
	"num6":    "Num6",
	"num7":    "Num7",
	"num8":    "Num8",
	"num9":    "Num9",
	"numpad0": "Num0",
	"numpad1": "Num1",
	"numpad2": "Num2",
	"numpad3": "Num3",
	"numpad4": "Num4",
	"numpad5": "Num5",
	"numpad6": "Num6",
	"numpad7": "Num7",
	"numpad8": "Num8",
	"numpad9": "Num9",
}

// Encode parses free-form shortcut text like "ctrl + alt + f1" into its
// canonical accelerator. Token order in the input does not affect the result;
// repeated modifiers are deduplicated. The only rejected input is text that
// is empty after trimming.
func Encode(text string) (Accelerator, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Accelerator{}, ErrInvalidFormat
	}

	var a Accelerator
	for _, tok := range strings.Split(text, "+") {
		tok = strings.ToLower(strings.TrimSpace(tok))
		if tok == "" {
			continue
		}

		if mod := ModifierFromName(tok); mod != ModNone {
			a.Mods = a.Mods.With(mod)
			continue
		}

		if name, ok := specialKeys[tok]; ok {
			a.Key = name
			continue
		}

		// Unmapped token: single characters are upper-cased, anything
		// longer passes through unchanged.
		if utf8.RuneCountInString(tok) == 1 {
			a.Key = strings.ToUpper(tok)
		} else {
			a.Key = tok
		}
	}

	return a, nil
}

// MustEncode parses shortcut text and panics on error.
// Use only for known-valid specs in initialization code.
func MustEncode(text string) Accelerator {
	a, err := Encode(text)
	if err != nil {
		panic("invalid shortcut specification: " + text + ": " + err.Error())
	}
	return a
}

// String returns the canonical lowercase form like "ctrl+alt+F1".
// Two inputs differing only in token order or case produce identical strings.
func (a Accelerator) String() string {
	mods := a.Mods.String()
	switch {
	case mods == "":
		return a.Key
	case a.Key == "":
		return mods
	default:
		return mods + "+" + a.Key
	}
}

// Display returns the human-readable label like "Ctrl + Alt + F1".
func (a Accelerator) Display() string {
	parts := a.Mods.labels()
	if a.Key != "" {
		parts = append(parts, titleToken(a.Key))
	}
	return strings.Join(parts, " + ")
}

// IsZero returns true if the accelerator carries neither modifiers nor a key.
func (a Accelerator) IsZero() bool {
	return a.Mods == ModNone && a.Key == ""
}

// Decode returns the display label for an accelerator. It is the inverse of
// Encode up to canonicalization: Decode(Encode(x)) is stable for any x.
func Decode(a Accelerator) string {
	return a.Display()
}

// Normalize parses shortcut text and re-renders it in canonical string form.
func Normalize(text string) (string, error) {
	a, err := Encode(text)
	if err != nil {
		return "", err
	}
	return a.String(), nil
}

// titleToken upper-cases the first rune of a passthrough token. Canonical
// special tokens and single characters are already in display form.
func titleToken(tok string) string {
	r, size := utf8.DecodeRuneInString(tok)
	if r == utf8.RuneError || unicode.IsUpper(r) {
		return tok
	}
	return string(unicode.ToUpper(r)) + tok[size:]
}
