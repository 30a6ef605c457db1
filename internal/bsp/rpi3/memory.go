// Package rpi3 is the Raspberry Pi 3 (BCM2837) board support package: the
// external collaborators spec.md §1 names as out of scope for the core
// (PL011 UART, GPIO, interrupt controller, the architectural timer) but
// composes them the way original_source's kernel/src/bsp/raspberrypi does,
// and the way mazboot's main package pokes the same devices directly.
//
// Peripheral base and per-device offsets are grounded on
// usbarmory-tamago/soc/bcm2835 (bcm2835.go's PeripheralBase,
// gpio.go's gpfsel0/gpset0/gpclr0/gplev0 offsets) and on mazboot's
// uart_qemu.go PL011 register offsets (DR/FR/IBRD/FBRD/LCRH/CR/ICR),
// retargeted from the QEMU virt PL011 at 0x09000000 to the Pi 3's PL011 at
// 0x3F201000.
package rpi3

import "fmt"

// PeripheralBase is the BCM2837's MMIO base address as seen by the ARM
// core on a Raspberry Pi 3 (the "low peripheral" mapping; tamago's
// PeripheralBase plays the same role, set per board at runtime there,
// fixed here since this kernel targets exactly one board).
const PeripheralBase = 0x3F000000

const (
	// PL011 UART0.
	UART0Base = PeripheralBase + 0x201000
	UART0Size = 0x48

	// GPIO controller (pins 14/15 are UART0 TXD0/RXD0 on ALT0).
	GPIOBase = PeripheralBase + 0x200000
	GPIOSize = 0xA0

	// Legacy BCM2837 interrupt controller (not a GIC — see package intc).
	// Size covers through DISABLE_BASIC_IRQS at offset 0x24.
	InterruptControllerBase = PeripheralBase + 0xB200
	InterruptControllerSize = 0x28

	// VideoCore mailbox, property channel 8 (used for the framebuffer
	// allocation request in package splash).
	MailboxBase = PeripheralBase + 0xB880
	MailboxSize = 0x24
)

// checkRegisterOffset panics if offset falls outside device's declared
// MMIO window (size bytes wide, ending at the last byte of the register
// starting at offset). Device code calls this before touching its
// registers (UART0.Init with its highest offset, every GPIO accessor with
// the offset it uses, MailboxCall with the write offset), so a copy-paste
// offset error that would otherwise
// silently alias into the next peripheral's registers is caught at boot
// instead.
func checkRegisterOffset(device string, size uint32, offset uintptr) {
	if offset+4 > uintptr(size) {
		panic(fmt.Sprintf("rpi3: %s register offset %#x exceeds declared window size %#x", device, offset, size))
	}
}
