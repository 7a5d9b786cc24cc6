// Package hotkeys binds key chords to preset actions. Chords are parsed
// into ordered, normalized tokens here; OS backends turn them into native
// registrations.
package hotkeys

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrInvalidBinding marks a chord that is empty, malformed, or already bound
// to another preset.
var ErrInvalidBinding = errors.New("invalid hotkey binding")

// modifierOrder fixes the position of modifiers in a normalized chord.
var modifierOrder = []string{"ctrl", "alt", "shift", "super"}

var tokenAliases = map[string]string{
	"control":   "ctrl",
	"ctl":       "ctrl",
	"option":    "alt",
	"win":       "super",
	"cmd":       "super",
	"meta":      "super",
	"return":    "enter",
	"escape":    "esc",
	"del":       "delete",
	"spacebar":  "space",
	"backquote": "`",
	"grave":     "`",
	"pgup":      "page_up",
	"pgdn":      "page_down",
	"pgdown":    "page_down",
	"pageup":    "page_up",
	"pagedown":  "page_down",
}

var namedKeys = map[string]struct{}{
	"space": {}, "tab": {}, "enter": {}, "esc": {}, "backspace": {},
	"delete": {}, "insert": {}, "home": {}, "end": {},
	"page_up": {}, "page_down": {},
	"up": {}, "down": {}, "left": {}, "right": {},
}

const singleKeyChars = "abcdefghijklmnopqrstuvwxyz0123456789`-=[]\\;',./"

// Chord is a normalized hotkey: modifiers in ctrl, alt, shift, super order,
// followed by exactly one key. Build one with ParseChord.
type Chord struct {
	tokens []string
}

// ParseChord normalizes a "+"-joined, case-insensitive chord string such
// as "Alt+F1". Every error wraps ErrInvalidBinding.
func ParseChord(hotkey string) (Chord, error) {
	raw := strings.TrimSpace(hotkey)
	if raw == "" {
		return Chord{}, fmt.Errorf("%w: hotkey cannot be empty", ErrInvalidBinding)
	}

	var mods []string
	var key string
	for part := range strings.SplitSeq(raw, "+") {
		token := NormalizeToken(part)
		if token == "" {
			return Chord{}, fmt.Errorf("%w: empty key in %q", ErrInvalidBinding, raw)
		}
		if IsModifier(token) {
			if !slices.Contains(mods, token) {
				mods = append(mods, token)
			}
			continue
		}
		if !isKnownKey(token) {
			return Chord{}, fmt.Errorf("%w: unknown key %q in %q", ErrInvalidBinding, part, raw)
		}
		if key != "" && key != token {
			return Chord{}, fmt.Errorf("%w: more than one non-modifier key in %q", ErrInvalidBinding, raw)
		}
		key = token
	}
	if key == "" {
		return Chord{}, fmt.Errorf("%w: %q has no non-modifier key", ErrInvalidBinding, raw)
	}

	slices.SortFunc(mods, func(a, b string) int {
		return slices.Index(modifierOrder, a) - slices.Index(modifierOrder, b)
	})
	return Chord{tokens: append(mods, key)}, nil
}

// MustParseChord is ParseChord for literals known to be valid.
func MustParseChord(hotkey string) Chord {
	c, err := ParseChord(hotkey)
	if err != nil {
		panic(err)
	}
	return c
}

// NormalizeToken lowercases a key name and resolves aliases.
func NormalizeToken(token string) string {
	t := strings.ToLower(strings.TrimSpace(token))
	if alias, ok := tokenAliases[t]; ok {
		return alias
	}
	return t
}

// IsModifier reports whether a normalized token is a modifier.
func IsModifier(token string) bool {
	return slices.Contains(modifierOrder, token)
}

func isKnownKey(token string) bool {
	if len(token) == 1 {
		return strings.Contains(singleKeyChars, token)
	}
	if _, ok := namedKeys[token]; ok {
		return true
	}
	_, ok := functionKeyNumber(token)
	return ok
}

// functionKeyNumber returns n for "f<n>", 1 <= n <= 24.
func functionKeyNumber(token string) (int, bool) {
	if len(token) < 2 || token[0] != 'f' {
		return 0, false
	}
	n := 0
	for _, r := range token[1:] {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	return n, n >= 1 && n <= 24
}

// IsZero reports whether c was not built by ParseChord.
func (c Chord) IsZero() bool { return len(c.tokens) == 0 }

// Tokens returns a copy of the normalized tokens.
func (c Chord) Tokens() []string { return slices.Clone(c.tokens) }

// Modifiers returns the modifier tokens.
func (c Chord) Modifiers() []string {
	if c.IsZero() {
		return nil
	}
	return slices.Clone(c.tokens[:len(c.tokens)-1])
}

// Key returns the non-modifier token.
func (c Chord) Key() string {
	if c.IsZero() {
		return ""
	}
	return c.tokens[len(c.tokens)-1]
}

// String returns the canonical "+"-joined form, e.g. "ctrl+alt+f1".
func (c Chord) String() string { return strings.Join(c.tokens, "+") }

// Wrapped returns the listener token form: multi-character tokens in angle
// brackets, single characters bare ("alt+f1" -> "<alt>+<f1>").
func (c Chord) Wrapped() string {
	parts := make([]string, len(c.tokens))
	for i, t := range c.tokens {
		if len(t) >= 2 {
			parts[i] = "<" + t + ">"
		} else {
			parts[i] = t
		}
	}
	return strings.Join(parts, "+")
}

// Equal reports whether both chords name the same keys.
func (c Chord) Equal(other Chord) bool { return slices.Equal(c.tokens, other.tokens) }
