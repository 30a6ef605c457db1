package kernel

import (
	"time"

	"github.com/mazboot/rpi3kernel/internal/bsp/rpi3/timer"
	"github.com/mazboot/rpi3kernel/internal/console"
	"github.com/mazboot/rpi3kernel/internal/cpu/regs"
	"github.com/mazboot/rpi3kernel/internal/kernel/backtrace"
)

// currentFP returns the caller's frame pointer (X29), used only to seed
// the backtrace walk for a panic raised directly from Go code (as
// opposed to one reached via the exception vector, which already has a
// saved FP/LR in its Context).
//
// defined in asm_arm64.s
func currentFP() uintptr

// PanicHandler implements the kernel's single panic path: re-entry
// guarded, prints "Kernel panic!" with uptime, location, message and a
// backtrace, then parks the core. One instance is wired into
// exception.PanicFunc during startup (cmd/kernel's kernelInit), avoiding an exception->kernel import the other direction.
type PanicHandler struct {
	clock   *timer.Timer
	inPanic bool
}

// NewPanicHandler returns a handler that reads uptime from clock.
func NewPanicHandler(clock *timer.Timer) *PanicHandler {
	return &PanicHandler{clock: clock}
}

// Handle is exception.PanicFunc's shape: installed via
// exception.PanicFunc = handler.Handle. location is the file:line exception
// captured at the call site that detected the fault.
func (h *PanicHandler) Handle(msg, location string) {
	if h.inPanic {
		// Second panic while already handling one: don't risk
		// re-entering a possibly-corrupt console/backtrace path.
		for {
			regs.Wfe()
		}
	}
	h.inPanic = true

	var uptime time.Duration
	if h.clock != nil {
		uptime = h.clock.Uptime()
	}

	console.Printf("\nKernel panic!\n\n")
	console.Printf("Uptime: %s\n", uptime)
	console.Printf("Location: %s\n", location)
	console.Printf("Message: %s\n\n", msg)

	console.Printf("Backtrace:\n")
	fp := currentFP()
	for i, frame := range backtrace.Walk(0, fp, 0) {
		console.Printf("  #%d  0x%016x\n", i, frame.PC)
	}
	console.Flush()

	for {
		regs.Wfe()
	}
}
