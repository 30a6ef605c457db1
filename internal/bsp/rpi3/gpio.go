package rpi3

import (
	"fmt"

	"github.com/mazboot/rpi3kernel/internal/bsp/rpi3/reg"
)

// GPIO function-select values, matching usbarmory-tamago's GPIOFunction
// constants (gpio.go).
type PinFunction uint32

const (
	PinInput  PinFunction = 0b000
	PinOutput PinFunction = 0b001
	PinAlt0   PinFunction = 0b100
	PinAlt1   PinFunction = 0b101
	PinAlt2   PinFunction = 0b110
	PinAlt3   PinFunction = 0b111
	PinAlt4   PinFunction = 0b011
	PinAlt5   PinFunction = 0b010
)

const (
	gpfsel0Offset = 0x00
	gpset0Offset  = 0x1C
	gpclr0Offset  = 0x28
	gplev0Offset  = 0x34

	pinsPerSelReg = 10 // each GPFSELn packs 10 pins at 3 bits each
	bitsPerPin    = 3
)

// GPIO is a single GPIO line on the BCM2837's 54-pin controller.
type GPIO struct {
	num int
}

// NewGPIO validates num and returns a handle for it — mirrors
// usbarmory-tamago's NewGPIO(num int) (*GPIO, error).
func NewGPIO(num int) (*GPIO, error) {
	if num < 0 || num > 53 {
		return nil, fmt.Errorf("rpi3: invalid GPIO number %d", num)
	}
	return &GPIO{num: num}, nil
}

// SetFunction selects a pin's function (input, output, or one of six
// alternate functions).
func (g *GPIO) SetFunction(fn PinFunction) {
	regIdx := g.num / pinsPerSelReg
	bitPos := (g.num % pinsPerSelReg) * bitsPerPin
	offset := uintptr(gpfsel0Offset) + uintptr(regIdx)*4
	checkRegisterOffset("gpio", GPIOSize, offset)
	reg.SetN(GPIOBase+offset, bitPos, 0x7, uint32(fn))
}

// Set drives the pin high.
func (g *GPIO) Set() {
	regIdx := g.num / 32
	bitPos := g.num % 32
	offset := uintptr(gpset0Offset) + uintptr(regIdx)*4
	checkRegisterOffset("gpio", GPIOSize, offset)
	reg.Set(GPIOBase+offset, bitPos)
}

// Clear drives the pin low.
func (g *GPIO) Clear() {
	regIdx := g.num / 32
	bitPos := g.num % 32
	offset := uintptr(gpclr0Offset) + uintptr(regIdx)*4
	checkRegisterOffset("gpio", GPIOSize, offset)
	reg.Set(GPIOBase+offset, bitPos)
}

// Level reads the pin's current input level.
func (g *GPIO) Level() bool {
	regIdx := g.num / 32
	bitPos := g.num % 32
	offset := uintptr(gplev0Offset) + uintptr(regIdx)*4
	checkRegisterOffset("gpio", GPIOSize, offset)
	return reg.Get(GPIOBase+offset, bitPos, 1) != 0
}
