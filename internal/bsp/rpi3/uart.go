package rpi3

import "github.com/mazboot/rpi3kernel/internal/bsp/rpi3/reg"

// PL011 register offsets, grounded on mazboot's uart_qemu.go QEMU_UART_*
// constants (same PL011 IP block, different base address).
const (
	uartDR   = 0x00
	uartFR   = 0x18
	uartIBRD = 0x24
	uartFBRD = 0x28
	uartLCRH = 0x2C
	uartCR   = 0x30
	uartICR  = 0x44

	uartFRTXFF = 1 << 5 // transmit FIFO full
	uartFRRXFE = 1 << 4 // receive FIFO empty
)

// UART0 is the PL011 driver for the BCM2837's primary UART. It implements
// the narrow ConsoleWrite capability spec.md §6 names
// (write_char/write_str/write_fmt/flush), translated to idiomatic Go as
// io.Writer plus a couple of byte-oriented helpers matching the teacher's
// uartPuts/uartPutHex naming.
type UART0 struct{}

// Init configures GPIO14/15 for UART0 (ALT0) and programs the PL011 for
// 115200 8N1, matching the GPIO mux + baud-rate-divisor sequence every
// bcm2835 UART bring-up in the retrieval pack follows.
func (UART0) Init() {
	checkRegisterOffset("uart0", UART0Size, uartICR)

	txd, _ := NewGPIO(14)
	rxd, _ := NewGPIO(15)
	txd.SetFunction(PinAlt0)
	rxd.SetFunction(PinAlt0)

	reg.Write32(UART0Base+uartCR, 0) // disable UART while configuring

	// UART clock is fixed at 48 MHz on the Pi 3's VideoCore firmware
	// default; 115200 baud -> IBRD=26, FBRD=3 (divisor 26.041666..).
	reg.Write32(UART0Base+uartIBRD, 26)
	reg.Write32(UART0Base+uartFBRD, 3)

	reg.Write32(UART0Base+uartLCRH, 0x70) // 8 bits, FIFOs enabled
	reg.Write32(UART0Base+uartICR, 0x7FF) // clear all pending interrupts

	reg.Write32(UART0Base+uartCR, 0x301) // UARTEN | TXE | RXE
}

// WriteByte transmits a single byte, spinning while the TX FIFO is full.
func (UART0) WriteByte(c byte) error {
	reg.WaitFor(UART0Base+uartFR, func(v uint32) bool { return v&uartFRTXFF == 0 })
	reg.Write32(UART0Base+uartDR, uint32(c))
	return nil
}

// WriteString transmits s byte by byte, translating '\n' to "\r\n" the way
// every UART console in the retrieval pack does.
func (u UART0) WriteString(s string) (int, error) {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			u.WriteByte('\r')
		}
		u.WriteByte(s[i])
	}
	return len(s), nil
}

// Write implements io.Writer.
func (u UART0) Write(p []byte) (int, error) {
	return u.WriteString(string(p))
}

// ReadByte blocks until a byte is available and returns it.
func (UART0) ReadByte() byte {
	reg.WaitFor(UART0Base+uartFR, func(v uint32) bool { return v&uartFRRXFE == 0 })
	return byte(reg.Read32(UART0Base + uartDR))
}

// TryReadByte reports whether a byte is waiting in the RX FIFO and, if so,
// returns it without blocking — the non-blocking counterpart ReadByte's
// IRQ handler needs, since spinning inside an interrupt handler would
// hold off every other line behind it.
func (UART0) TryReadByte() (byte, bool) {
	if reg.Read32(UART0Base+uartFR)&uartFRRXFE != 0 {
		return 0, false
	}
	return byte(reg.Read32(UART0Base + uartDR)), true
}

// Flush is a no-op: every WriteByte already blocks until the FIFO accepts
// the byte, so there is nothing buffered to push out. Present to satisfy
// the ConsoleWrite collaborator contract in spec.md §6.
func (UART0) Flush() {}
