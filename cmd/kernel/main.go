// Command kernel is the top-level entry point, wired together the way
// mazboot's main/kernel.go splits a KernelMain entry (called from boot
// assembly, never from a hosted runtime's os.Exit-returning main) into
// an early init phase and a later main-loop phase — mirroring
// original_source's kernel_init/kernel_main split one level further.
package main

import (
	"fmt"
	"runtime"
	"unsafe"

	"github.com/mazboot/rpi3kernel/internal/boot"
	"github.com/mazboot/rpi3kernel/internal/bsp/rpi3"
	"github.com/mazboot/rpi3kernel/internal/bsp/rpi3/intc"
	"github.com/mazboot/rpi3kernel/internal/bsp/rpi3/timer"
	"github.com/mazboot/rpi3kernel/internal/console"
	"github.com/mazboot/rpi3kernel/internal/console/splash"
	"github.com/mazboot/rpi3kernel/internal/driver"
	"github.com/mazboot/rpi3kernel/internal/exception"
	"github.com/mazboot/rpi3kernel/internal/heap"
	"github.com/mazboot/rpi3kernel/internal/irq"
	"github.com/mazboot/rpi3kernel/internal/kernel"
	"github.com/mazboot/rpi3kernel/internal/mmu"
	"github.com/mazboot/rpi3kernel/internal/mmu/table"
)

const boardName = "Raspberry Pi 3 (BCM2837)"

// Kernel heap geometry: 4 KiB leaves, 6 levels above the leaf (block sizes
// 4 KiB .. 256 KiB), for a 256 KiB arena. Chosen for visibility in the demo below, not tuned for
// any real workload.
const (
	heapBlockSize uint32 = 4096
	heapNumLevels        = 6
	heapArenaBase        = 0x10000000
)

// Boot-splash framebuffer geometry requested over the mailbox property
// channel; 640x480 is accepted by every HDMI sink the firmware's EDID
// fallback chain supports.
const (
	splashWidth  = 640
	splashHeight = 480
)

// vectorTableAddr is a placeholder for the real link-time symbol the
// boot assembly provides for the vector table's address; out of scope
// for this retrieval pack, same as boot's own _start (see
// internal/boot/asm_stub.go).
var vectorTableAddr uint64

var uart rpi3.UART0

// uart0IRQ is UART0's GPU IRQ line on the BCM2837's legacy interrupt
// controller, the same line number Pi bare-metal projects (e.g. Circle's
// ARM_IRQ_UART) have used for this SoC since the 2835.
const uart0IRQ = 57

// KernelMain is called from the boot assembly once EL1 is reached, BSS
// is zeroed and the stack is live — the Go-side equivalent of
// original_source's kernel_init, generalized one step further into a
// single call matching mazboot's own KernelMain(r0, r1, atags) shape
// (unused arguments kept for signature compatibility with that
// convention; this kernel has no DTB/atags consumer yet).
func KernelMain(r0, r1, atags uint32) {
	if !boot.IsBootCore() {
		boot.ParkNonBootCore()
	}

	kernelInit()
	kernelMainLoop()
}

func kernelInit() {
	uart.Init()
	console.Register(uart)

	clock := timer.New()
	orch := buildOrchestrator(&mmu.KernelTable, clock)

	panicHandler := kernel.NewPanicHandler(clock)
	exception.PanicFunc = panicHandler.Handle

	if err := orch.Run(); err != nil {
		_, file, line, _ := runtime.Caller(0)
		panicHandler.Handle(err.Error(), fmt.Sprintf("%s:%d", file, line))
	}
}

func buildOrchestrator(t *table.Table, clock *timer.Timer) *kernel.Orchestrator {
	ctrl := intc.New(rpi3.InterruptControllerBase, rpi3.InterruptControllerSize)
	irqMgr := irq.NewManager(ctrl)

	drivers := driver.NewManager(irqMgr)
	drivers.RegisterDriver(driver.Descriptor{Device: nameOnly{"gpio"}})
	drivers.RegisterDriver(driver.Descriptor{
		Device:  nameOnly{"pl011-uart"},
		IRQ:     uart0IRQ,
		HasIRQ:  true,
		Handler: handleUART0IRQ,
	})
	drivers.RegisterDriver(driver.Descriptor{Device: nameOnly{"interrupt-controller"}})

	return kernel.NewOrchestrator(vectorTableAddr, t, drivers, irqMgr, clock)
}

// handleUART0IRQ drains every byte currently waiting in the RX FIFO,
// echoing each one back — the IRQ-driven counterpart to kernelMainLoop's
// blocking echo, registered against uart0IRQ once PL011 init has run.
func handleUART0IRQ(exception.IRQContext) {
	for {
		b, ok := uart.TryReadByte()
		if !ok {
			return
		}
		uart.WriteByte(b)
	}
}

// nameOnly satisfies driver.Device for devices whose instantiation is
// handled outside the driver-manager registration call (e.g. rpi3.UART0,
// which is a value type with no constructor error path); the manager
// only needs a name for its debug dump in this minimal wiring.
type nameOnly struct{ name string }

func (n nameOnly) Name() string { return n.name }

func kernelMainLoop() {
	console.Printf("Booting on: %s\n", boardName)
	console.Printf("Architectural timer resolution: %s\n", timer.New().Resolution())
	console.Printf("Drivers loaded:\n")

	// Trigger and survive a data abort, page fault, and breakpoint —
	// the demo sequence the fault-survival policy in
	// internal/exception/fault exists to make safe.
	console.Printf("\nTriggering a data abort at 0xdeadbeef...\n")
	writeVolatile(0xdeadbeef, 42)
	console.Printf("Recovered from a synchronous exception.\n")

	console.Printf("\nReading from address 8 GiB...\n")
	readVolatile(8 * 1024 * 1024 * 1024)
	console.Printf("Recovered.\n")

	console.Printf("\nTriggering a breakpoint...\n")
	brk()
	console.Printf("Recovered.\n")

	h := heap.New(heapBlockSize, heapNumLevels)
	arenaSize := uint64(heapBlockSize) << uint(heapNumLevels)
	bannerLines := []string{fmt.Sprintf("heap arena: %d bytes", arenaSize)}
	if err := h.Init(heapArenaBase, arenaSize); err != nil {
		console.Printf("heap init failed: %v\n", err)
	} else {
		console.Printf("\nKernel heap:\n%s\n", h)

		ptr, err := h.Alloc(4096, 16)
		if err != nil {
			console.Printf("heap alloc failed: %v\n", err)
		} else {
			console.Printf("allocated 4096 bytes at 0x%x\n", ptr)
			console.Printf("Kernel heap:\n%s\n", h)
			bannerLines = append(bannerLines, fmt.Sprintf("allocated 4096 bytes at %#x", ptr))
		}
	}

	if fb, err := splash.Request(splashWidth, splashHeight); err != nil {
		// No HDMI sink, or the firmware declined the mailbox request:
		// fall back to UART-only output, same as the console already
		// wired up above.
		console.Printf("\nsplash: %v\n", err)
	} else {
		splash.Banner(fb, boardName, bannerLines)
	}

	console.Printf("\nEchoing input now\n")
	for {
		uart.WriteByte(uart.ReadByte())
	}
}

// writeVolatile and readVolatile deliberately touch unmapped or
// out-of-range virtual addresses to exercise the synchronous-exception
// survival path; the handler advances ELR past the faulting instruction
// per fault.DefaultPolicy, so these calls return normally instead of
// taking down the kernel.
func writeVolatile(addr uintptr, val uint8) {
	*(*uint8)(unsafe.Pointer(addr)) = val
}

func readVolatile(addr uintptr) uint64 {
	return *(*uint64)(unsafe.Pointer(addr))
}

// brk issues a `brk #0`, surviving via the same fault policy.
//
// defined in asm_arm64.s
func brk()
