// Package vcp translates semantic control requests (display, control kind,
// value) into the argument lists understood by ddcutil and nvibrant, and
// parses ddcutil readouts back into values. Nothing in this package performs
// I/O.
package vcp

import (
	"errors"
	"fmt"
	"strconv"
)

// Code is an MCCS Virtual Control Panel feature code.
type Code uint8

const (
	CodeBrightness Code = 0x10
	CodeContrast   Code = 0x12
	CodeGamma      Code = 0x72
	CodeSaturation Code = 0x8A
)

// String renders the code the way ddcutil expects it on the command line.
func (c Code) String() string {
	return fmt.Sprintf("0x%02X", uint8(c))
}

const (
	GammaMin = 0
	GammaMax = 255

	VendorVibranceMin = -1023
	VendorVibranceMax = 1023

	// DefaultVibranceMax is the saturation upper bound used when the monitor
	// never reported one.
	DefaultVibranceMax = 100

	// DefaultVendorSlots matches one GPU with one HDMI and six DisplayPort
	// outputs as reported by nvibrant.
	DefaultVendorSlots = 7

	DefaultProtocolTool = "ddcutil"
	DefaultVendorTool   = "nvibrant"
)

// ErrDisplayOutOfRange is returned when a display index has no argument
// slot in the vendor tool's positional argument list.
var ErrDisplayOutOfRange = errors.New("display index has no vendor vibrance slot")

// GammaPolicy selects how a gamma level is packed into the 16-bit VCP payload.
type GammaPolicy int

const (
	// GammaMSBOnly writes the level to the high byte and forces the low byte
	// to 0x00. At least one panel (Dell S2716DG) only honors the high byte
	// and fails the DDC checksum verify on a non-zero low byte.
	GammaMSBOnly GammaPolicy = iota
)

// Command is one external tool invocation.
type Command struct {
	Program string
	Args    []string
	// Display is the logical display the command targets. Submitters group
	// detached children by it.
	Display int
}

// Argv returns the full argument vector with the program name at index 0.
func (c Command) Argv() []string {
	argv := make([]string, 0, len(c.Args)+1)
	argv = append(argv, c.Program)
	return append(argv, c.Args...)
}

// Codec builds tool commands. The zero value is not usable; use NewCodec.
type Codec struct {
	protocolTool string
	vendorTool   string
	vendorSlots  int
	gammaPolicy  GammaPolicy
}

// NewCodec returns a codec for the given tool names and vendor slot count.
// Empty names and non-positive slot counts fall back to the defaults.
func NewCodec(protocolTool, vendorTool string, vendorSlots int) *Codec {
	if protocolTool == "" {
		protocolTool = DefaultProtocolTool
	}
	if vendorTool == "" {
		vendorTool = DefaultVendorTool
	}
	if vendorSlots <= 0 {
		vendorSlots = DefaultVendorSlots
	}
	return &Codec{
		protocolTool: protocolTool,
		vendorTool:   vendorTool,
		vendorSlots:  vendorSlots,
		gammaPolicy:  GammaMSBOnly,
	}
}

// ProtocolTool returns the monitor-control tool name.
func (c *Codec) ProtocolTool() string { return c.protocolTool }

// VendorTool returns the vendor vibrance tool name.
func (c *Codec) VendorTool() string { return c.vendorTool }

// VendorSlots returns the number of positional slots after the vendor tool name.
func (c *Codec) VendorSlots() int { return c.vendorSlots }

// MaxVendorDisplay is the highest display index that maps to a vendor slot.
func (c *Codec) MaxVendorDisplay() int { return c.vendorSlots / 2 }

// GammaPayload packs a gamma level into the 16-bit VCP payload under policy.
// GammaMSBOnly is the only policy; any other value falls back to it.
func GammaPayload(_ GammaPolicy, value int) uint16 {
	return uint16(clamp(value, GammaMin, GammaMax)) << 8
}

// DecodeGammaPayload extracts the gamma level from a payload.
func DecodeGammaPayload(payload uint16) int {
	return int(payload >> 8)
}

// Gamma builds `setvcp 0x72 0xHH00` for display.
func (c *Codec) Gamma(display, value int) Command {
	payload := GammaPayload(c.gammaPolicy, value)
	return c.setvcpRaw(display, CodeGamma, fmt.Sprintf("0x%04X", payload))
}

// VendorVibrance builds the positional vendor tool call. Display d writes its
// value at argv[2*d]; every other slot carries "0".
func (c *Codec) VendorVibrance(display, value int) (Command, error) {
	pos := 2 * display
	if display < 1 || pos > c.vendorSlots {
		return Command{}, fmt.Errorf("%w: display %d (slots=%d, max display %d)",
			ErrDisplayOutOfRange, display, c.vendorSlots, c.MaxVendorDisplay())
	}
	argv := make([]string, c.vendorSlots+1)
	argv[0] = c.vendorTool
	for i := 1; i < len(argv); i++ {
		argv[i] = "0"
	}
	argv[pos] = strconv.Itoa(clamp(value, VendorVibranceMin, VendorVibranceMax))
	return Command{Program: argv[0], Args: argv[1:], Display: display}, nil
}

// ProtocolVibrance builds `setvcp 0x8A <value>`. maxValue <= 0 means the
// monitor never reported a maximum.
func (c *Codec) ProtocolVibrance(display, value, maxValue int) Command {
	if maxValue <= 0 {
		maxValue = DefaultVibranceMax
	}
	return c.SetVCP(display, CodeSaturation, clamp(value, 0, maxValue))
}

// SetVCP builds a plain `setvcp <code> <value>` call.
func (c *Codec) SetVCP(display int, code Code, value int) Command {
	return c.setvcpRaw(display, code, strconv.Itoa(value))
}

// GetVCP builds the readout call for code.
func (c *Codec) GetVCP(display int, code Code) Command {
	return Command{
		Program: c.protocolTool,
		Args:    []string{"-d", strconv.Itoa(display), "getvcp", code.String()},
		Display: display,
	}
}

// Detect builds the inventory call.
func (c *Codec) Detect() Command {
	return Command{Program: c.protocolTool, Args: []string{"detect"}}
}

func (c *Codec) setvcpRaw(display int, code Code, value string) Command {
	return Command{
		Program: c.protocolTool,
		Args:    []string{"-d", strconv.Itoa(display), "setvcp", code.String(), value},
		Display: display,
	}
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
