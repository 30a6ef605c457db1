// Package intc drives the BCM2837's legacy interrupt controller. Despite
// the name, Pi 3 does not have a GICv2-class distributor/CPU-interface
// pair — it predates that core on this SoC — so this is not modeled after
// mazboot's gic_qemu.go register set directly; what it keeps from that
// file is its texture (a flat register-offset const table, one IRQNumber
// type, a per-line enable/disable pair) adapted to the legacy
// controller's three pending/enable/disable register banks.
package intc

import (
	"fmt"

	"github.com/mazboot/rpi3kernel/internal/bsp/rpi3/reg"
)

// Register offsets from InterruptControllerBase.
const (
	irqBasicPendingOffset = 0x00
	irqPending1Offset      = 0x04
	irqPending2Offset      = 0x08
	fiqControlOffset       = 0x0C
	enableIRQs1Offset      = 0x10
	enableIRQs2Offset      = 0x14
	enableBasicIRQsOffset  = 0x18
	disableIRQs1Offset     = 0x1C
	disableIRQs2Offset     = 0x20
	disableBasicIRQsOffset = 0x24
)

// IRQNumber identifies one of the controller's GPU IRQ lines (0-63,
// banked across the two IRQ_PENDING_n/ENABLE_IRQs_n registers) or one of
// the 8 "basic" lines (64-71). Opaque per spec.md §3.
type IRQNumber uint32

const (
	maxGPUIRQ      = 64
	gpuIRQsPerBank = 32 // each IRQ_PENDING_n/ENABLE_IRQs_n register holds 32 lines
)

// Controller is the IRQManager's interrupt-controller side: it knows how
// to enable/disable lines and which lines are pending. The handler
// dispatch and registration table lives one layer up, in package irq —
// this type is deliberately narrow (spec.md §9: "narrow capability sets
// the core depends on; do not model as deep hierarchies").
type Controller struct{ base uintptr }

// New returns a Controller bound to the BCM2837's MMIO registers at base,
// a window windowSize bytes wide (rpi3.InterruptControllerBase and
// rpi3.InterruptControllerSize). Panics if the controller's own register
// layout doesn't fit the window the caller declared for it, the same
// boot-time sanity check package rpi3 runs for its other devices.
func New(base uintptr, windowSize uint32) *Controller {
	if disableBasicIRQsOffset+4 > uintptr(windowSize) {
		panic(fmt.Sprintf("intc: register layout needs window size >= %#x, got %#x", disableBasicIRQsOffset+4, windowSize))
	}
	return &Controller{base: base}
}

// Enable unmasks irq at the controller.
func (c *Controller) Enable(irq IRQNumber) {
	if irq < gpuIRQsPerBank {
		reg.Set(c.base+enableIRQs1Offset, int(irq))
		return
	}
	if irq < maxGPUIRQ {
		reg.Set(c.base+enableIRQs2Offset, int(irq)-gpuIRQsPerBank)
		return
	}
	reg.Set(c.base+enableBasicIRQsOffset, int(irq)-maxGPUIRQ)
}

// Disable masks irq at the controller.
func (c *Controller) Disable(irq IRQNumber) {
	if irq < gpuIRQsPerBank {
		reg.Set(c.base+disableIRQs1Offset, int(irq))
		return
	}
	if irq < maxGPUIRQ {
		reg.Set(c.base+disableIRQs2Offset, int(irq)-gpuIRQsPerBank)
		return
	}
	reg.Set(c.base+disableBasicIRQsOffset, int(irq)-maxGPUIRQ)
}

// Pending reports the first asserted-and-enabled GPU IRQ number, if any.
// The basic-IRQ bank is not scanned: none of the devices this kernel
// drives (UART, timer) are wired to it.
func (c *Controller) Pending() (IRQNumber, bool) {
	if p1 := reg.Read32(c.base + irqPending1Offset); p1 != 0 {
		return IRQNumber(firstSetBit(p1)), true
	}
	if p2 := reg.Read32(c.base + irqPending2Offset); p2 != 0 {
		return IRQNumber(gpuIRQsPerBank + firstSetBit(p2)), true
	}
	return 0, false
}

func firstSetBit(v uint32) int {
	for i := 0; i < 32; i++ {
		if v&(1<<uint(i)) != 0 {
			return i
		}
	}
	return -1
}
