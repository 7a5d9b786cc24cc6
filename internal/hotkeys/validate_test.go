package hotkeys

import (
	"errors"
	"testing"
)

func TestValidateAssignment(t *testing.T) {
	bindings := map[string]string{
		"1": "alt+1",
		"2": "alt+2",
		"3": "not a chord",
	}
	tests := []struct {
		name     string
		presetID string
		input    string
		want     string
		wantErr  bool
	}{
		{name: "free chord", presetID: "1", input: "alt+f1", want: "alt+f1"},
		{name: "own chord respelled", presetID: "1", input: "Alt+1", want: "alt+1"},
		{name: "taken by other preset", presetID: "1", input: "ALT+2", wantErr: true},
		{name: "invalid other binding ignored", presetID: "1", input: "alt+3", want: "alt+3"},
		{name: "empty", presetID: "2", input: "", wantErr: true},
		{name: "malformed", presetID: "2", input: "alt+", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := ValidateAssignment(bindings, tt.presetID, tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidBinding) {
					t.Fatalf("ValidateAssignment() error = %v, want ErrInvalidBinding", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ValidateAssignment() error = %v", err)
			}
			if c.String() != tt.want {
				t.Fatalf("ValidateAssignment() = %q, want %q", c.String(), tt.want)
			}
		})
	}
}
