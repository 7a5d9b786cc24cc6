package vcp

import (
	"regexp"
	"strconv"
)

var (
	continuousValuePattern = regexp.MustCompile(`current value\s*=\s*(-?\d+)\s*,\s*max value\s*=\s*(\d+)`)
	highBytePattern        = regexp.MustCompile(`\bsh=0x([0-9A-Fa-f]{1,2})\b`)
)

// Reading is a parsed getvcp readout. Fields whose Has flag is false were
// not present in the text.
type Reading struct {
	Current  int
	Max      int
	HasValue bool

	// HighByte is the currently programmed MSB (sh=0xHH), reported for
	// non-continuous features such as gamma.
	HighByte    int
	HasHighByte bool
}

// ParseReading extracts "current value = N, max value = M" and "sh=0xHH"
// from a readout. A miss leaves the field absent; it is never an error.
func ParseReading(text string) Reading {
	var r Reading
	if m := continuousValuePattern.FindStringSubmatch(text); m != nil {
		cur, curErr := strconv.Atoi(m[1])
		mx, maxErr := strconv.Atoi(m[2])
		if curErr == nil && maxErr == nil {
			r.Current, r.Max, r.HasValue = cur, mx, true
		}
	}
	if m := highBytePattern.FindStringSubmatch(text); m != nil {
		if v, err := strconv.ParseUint(m[1], 16, 8); err == nil {
			r.HighByte, r.HasHighByte = int(v), true
		}
	}
	return r
}

// ParseGammaArg decodes a "0xHH00" setvcp argument back to the gamma level.
func ParseGammaArg(arg string) (int, bool) {
	v, err := strconv.ParseUint(arg, 0, 16)
	if err != nil {
		return 0, false
	}
	return DecodeGammaPayload(uint16(v)), true
}
