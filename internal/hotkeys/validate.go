package hotkeys

import (
	"fmt"
	"maps"
	"slices"
)

// ValidateAssignment checks that hotkey may be bound to presetID given the
// current bindings (preset id -> chord string). It rejects empty and
// malformed chords and chords already bound to another preset.
func ValidateAssignment(bindings map[string]string, presetID, hotkey string) (Chord, error) {
	chord, err := ParseChord(hotkey)
	if err != nil {
		return Chord{}, err
	}
	for _, id := range slices.Sorted(maps.Keys(bindings)) {
		if id == presetID {
			continue
		}
		other, err := ParseChord(bindings[id])
		if err != nil {
			continue
		}
		if other.Equal(chord) {
			return Chord{}, fmt.Errorf("%w: %s is already bound to preset %s", ErrInvalidBinding, chord, id)
		}
	}
	return chord, nil
}
