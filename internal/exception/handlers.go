package exception

import (
	"fmt"
	"runtime"

	"github.com/mazboot/rpi3kernel/internal/console"
	"github.com/mazboot/rpi3kernel/internal/cpu/regs"
	"github.com/mazboot/rpi3kernel/internal/exception/fault"
)

// PanicFunc is invoked by every Fatal path in this package: the default
// handler for unreachable current-EL0 entries, unclassified synchronous
// exceptions, SError, and every lower-EL entry (none of which this kernel
// expects to take, per spec.md §4.4). The panic/backtrace facility itself
// is named only as an external collaborator in spec.md §1; PanicFunc is
// the seam package kernel uses to wire its own panic handler in without
// exception importing kernel back.
//
// location is the file:line of the call site that detected the fault
// (captured via runtime.Caller by fail, never supplied by the caller),
// the Go-side equivalent of the original's PanicInfo::location().
var PanicFunc func(msg, location string) = func(msg, location string) {
	for {
		regs.Wfe()
	}
}

// fail captures the immediate caller's source location and invokes
// PanicFunc with it. Every fatal path in this file goes through fail
// rather than calling PanicFunc directly, so "where in this package did
// the kernel decide to die" is always reported accurately.
func fail(msg string) {
	PanicFunc(msg, callerLocation(2))
}

func callerLocation(skip int) string {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return "unknown"
	}
	return fmt.Sprintf("%s:%d", file, line)
}

// IRQManager is the collaborator interface spec.md §3 names: it knows the
// pending IRQ number and dispatches registered handlers for it. Defined
// here (not in package irq) so that CurrentELxIRQ can depend on the
// narrow capability it actually needs without importing the concrete
// driver-manager-facing package.
type IRQManager interface {
	HandlePendingIRQs(tok IRQContext)
}

// IRQContext is "a zero-sized proof that we hold the vector's implicit
// critical section" (spec.md §4.4) — constructible only from inside
// CurrentELxIRQ, so an IRQManager implementation cannot be driven from
// anywhere but the vector table.
type IRQContext struct{ _ struct{} }

var irqManager IRQManager

// SetIRQManager installs the IRQManager consulted by CurrentELxIRQ. Called
// once during startup orchestration, after exception.HandlingInit and
// before local IRQs are unmasked (spec.md §4.7).
func SetIRQManager(m IRQManager) { irqManager = m }

// HandlingInit points VBAR_EL1 at the vector table and issues the ISB the
// architecture requires before it takes effect. vectorTableAddr is the
// physical/virtual address of the table built by the boot assembly (its
// symbol is out of scope for this retrieval pack — see internal/boot).
func HandlingInit(vectorTableAddr uint64) {
	regs.WriteVbarEl1(vectorTableAddr)
	regs.Isb()
}

// -- Current, EL0 (SP_EL0) --------------------------------------------------
//
// Reaching any of these is a hard fault: this kernel always runs with
// SP_EL1 selected once past the boot trampoline, per spec.md §4.4.

func CurrentEL0Synchronous(ctx *Context) { fail("use of SP_EL0 in EL1 is not supported") }
func CurrentEL0IRQ(ctx *Context)         { fail("use of SP_EL0 in EL1 is not supported") }
func CurrentEL0SError(ctx *Context)      { fail("use of SP_EL0 in EL1 is not supported") }

// -- Current, ELx (SP_ELx) ---------------------------------------------------

// CurrentELxSynchronous classifies ctx.ESR.EC and either survives the
// fault by advancing ELR, or escalates to PanicFunc, per spec.md §4.4 and
// the pluggable policy in package fault.
func CurrentELxSynchronous(ctx *Context) {
	farValid := ctx.FaultAddressValid()
	var far uint64
	if farValid {
		far = regs.ReadFarEl1()
	}

	outcome := fault.Evaluate(ctx.EC(), farValid, far)
	if !outcome.Survived {
		fail("CPU exception: " + outcome.Reason + "\n" + Format(ctx, far))
		return
	}
	console.Printf("CPU exception survived: %s (ELR_EL1 %#x", outcome.Reason, ctx.ELR)
	if farValid {
		console.Printf(", FAR_EL1 %#x", far)
	}
	console.Printf(")\n")
	ctx.ELR += outcome.AdvanceBytes
}

// CurrentELxIRQ dispatches to the registered IRQManager under the
// vector's implicit critical section token.
func CurrentELxIRQ(ctx *Context) {
	if irqManager == nil {
		fail("IRQ taken before an IRQManager was registered")
		return
	}
	irqManager.HandlePendingIRQs(IRQContext{})
}

func CurrentELxSError(ctx *Context) {
	fail("SError\n" + Format(ctx, regs.ReadFarEl1()))
}

// -- Lower, AArch64 -----------------------------------------------------------
//
// Lower EL is not expected in this kernel (spec.md §1: no userspace); all
// three are the default handler.

func LowerAArch64Synchronous(ctx *Context) { fail("unexpected lower-EL64 sync\n" + Format(ctx, regs.ReadFarEl1())) }
func LowerAArch64IRQ(ctx *Context)         { fail("unexpected lower-EL64 irq\n" + Format(ctx, regs.ReadFarEl1())) }
func LowerAArch64SError(ctx *Context)      { fail("unexpected lower-EL64 serror\n" + Format(ctx, regs.ReadFarEl1())) }

// -- Lower, AArch32 -----------------------------------------------------------

func LowerAArch32Synchronous(ctx *Context) { fail("unexpected lower-EL32 sync\n" + Format(ctx, regs.ReadFarEl1())) }
func LowerAArch32IRQ(ctx *Context)         { fail("unexpected lower-EL32 irq\n" + Format(ctx, regs.ReadFarEl1())) }
func LowerAArch32SError(ctx *Context)      { fail("unexpected lower-EL32 serror\n" + Format(ctx, regs.ReadFarEl1())) }
