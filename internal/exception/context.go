// Package exception implements the 16-entry AArch64 exception vector table
// contract: per-origin/kind dispatch, the on-stack ExceptionContext layout,
// ESR_EL1.EC classification, and fault_address_valid().
//
// The four origin classes (current-EL-SP0, current-EL-SPx, lower-AArch64,
// lower-AArch32) times three kinds (synchronous, IRQ, SError) plus FIQ give
// the vector table's 16 stubs; each stub is implemented in assembly and
// calls one of the Go handlers this package exports by name
// (CurrentELxSynchronous, CurrentELxIRQ, ...), the same split mazboot uses
// in main/exceptions.go (Go functions named current_elx_synchronous etc.,
// called from hand-written vector stubs) and original_source mirrors in
// kernel/src/aarch64/exception.rs. The EC constant table and
// fault_address_valid's seven-EC membership test are grounded directly on
// that file's match arms.
package exception

import (
	"fmt"
	"strings"

	"github.com/mazboot/rpi3kernel/internal/cpu/regs"
)

// ESR_EL1.EC values this kernel classifies. Names follow
// original_source's ESR_EL1::EC::Value enum rather than mazboot's
// EC_DATA_ABORT_ELx-style names, since spec.md's fault_address_valid list
// is phrased in Lower/Current terms.
const (
	ECUnknown            = 0b000000
	ECTrapWFx            = 0b000001
	ECTrapSVEAsimdFP     = 0b000111
	ECIllegalExecution   = 0b001110
	ECSVCAArch64         = 0b010101
	ECInstrAbortLowerEL  = 0b100000
	ECInstrAbortCurrentEL = 0b100001
	ECPCAlignmentFault   = 0b100010
	ECDataAbortLowerEL   = 0b100100
	ECDataAbortCurrentEL = 0b100101
	ECSPAlignmentFault   = 0b100110
	ECBrk64              = 0b111100
	ECWatchpointLowerEL  = 0b110100
	ECWatchpointCurrentEL = 0b110101
)

func ecName(ec uint64) string {
	switch ec {
	case ECUnknown:
		return "Unknown"
	case ECTrapWFx:
		return "TrapWFx"
	case ECTrapSVEAsimdFP:
		return "TrapSVEAsimdFP"
	case ECIllegalExecution:
		return "IllegalExecutionState"
	case ECSVCAArch64:
		return "SVC64"
	case ECInstrAbortLowerEL:
		return "InstrAbortLowerEL"
	case ECInstrAbortCurrentEL:
		return "InstrAbortCurrentEL"
	case ECPCAlignmentFault:
		return "PCAlignmentFault"
	case ECDataAbortLowerEL:
		return "DataAbortLowerEL"
	case ECDataAbortCurrentEL:
		return "DataAbortCurrentEL"
	case ECSPAlignmentFault:
		return "SPAlignmentFault"
	case ECBrk64:
		return "Brk64"
	case ECWatchpointLowerEL:
		return "WatchpointLowerEL"
	case ECWatchpointCurrentEL:
		return "WatchpointCurrentEL"
	default:
		return "N/A"
	}
}

const (
	esrECShift = 26
	esrECMask  = 0x3F
	esrISSMask = 0x1FFFFFF
)

// EsrEL1 is a memory copy of ESR_EL1 as captured at exception entry.
type EsrEL1 uint64

// EC extracts the exception class.
func (e EsrEL1) EC() uint64 { return (uint64(e) >> esrECShift) & esrECMask }

// ISS extracts the instruction-specific syndrome.
func (e EsrEL1) ISS() uint64 { return uint64(e) & esrISSMask }

func (e EsrEL1) String() string {
	return fmt.Sprintf("ESR_EL1: %#010x\n      Exception Class         (EC) : %#x - %s\n      Instr Specific Syndrome (ISS): %#x",
		uint64(e), e.EC(), ecName(e.EC()), e.ISS())
}

// SpsrEL1 is a memory copy of SPSR_EL1 as captured at exception entry.
type SpsrEL1 uint64

const (
	spsrN = 1 << 31
	spsrZ = 1 << 30
	spsrC = 1 << 29
	spsrV = 1 << 28
	spsrD = 1 << 9
	spsrA = 1 << 8
	spsrI = 1 << 7
	spsrF = 1 << 6
	spsrIL = 1 << 20
)

func flagStr(set bool) string {
	if set {
		return "Set"
	}
	return "Not set"
}

func maskStr(set bool) string {
	if set {
		return "Masked"
	}
	return "Unmasked"
}

func (s SpsrEL1) String() string {
	v := uint64(s)
	var b strings.Builder
	fmt.Fprintf(&b, "SPSR_EL1: %#010x\n", v)
	fmt.Fprintf(&b, "      Flags:\n")
	fmt.Fprintf(&b, "            Negative (N): %s\n", flagStr(v&spsrN != 0))
	fmt.Fprintf(&b, "            Zero     (Z): %s\n", flagStr(v&spsrZ != 0))
	fmt.Fprintf(&b, "            Carry    (C): %s\n", flagStr(v&spsrC != 0))
	fmt.Fprintf(&b, "            Overflow (V): %s\n", flagStr(v&spsrV != 0))
	fmt.Fprintf(&b, "      Exception handling state:\n")
	fmt.Fprintf(&b, "            Debug  (D): %s\n", maskStr(v&spsrD != 0))
	fmt.Fprintf(&b, "            SError (A): %s\n", maskStr(v&spsrA != 0))
	fmt.Fprintf(&b, "            IRQ    (I): %s\n", maskStr(v&spsrI != 0))
	fmt.Fprintf(&b, "            FIQ    (F): %s\n", maskStr(v&spsrF != 0))
	fmt.Fprintf(&b, "      Illegal Execution State (IL): %s", flagStr(v&spsrIL != 0))
	return b.String()
}

// Context is the on-stack layout saved by the vector-table assembly
// prologue: 30 general-purpose registers, the link register, ELR_EL1,
// SPSR_EL1 and ESR_EL1. The prologue constructs it, the dispatched handler
// borrows it by pointer, and the epilogue pops it before eret — spec.md's
// "constructed by the vector-table assembly prologue, borrowed by the
// handler, popped by the epilogue".
type Context struct {
	GPR  [30]uint64
	LR   uint64
	ELR  uint64
	SPSR SpsrEL1
	ESR  EsrEL1
}

// EC is a shorthand for ctx.ESR.EC().
func (c *Context) EC() uint64 { return c.ESR.EC() }

// FaultAddressValid reports whether FAR_EL1 holds a meaningful address for
// this context's exception class, per spec.md §4.5's seven-EC list.
func (c *Context) FaultAddressValid() bool {
	switch c.EC() {
	case ECInstrAbortLowerEL, ECInstrAbortCurrentEL, ECPCAlignmentFault,
		ECDataAbortLowerEL, ECDataAbortCurrentEL,
		ECWatchpointLowerEL, ECWatchpointCurrentEL:
		return true
	default:
		return false
	}
}

// SymbolResolver resolves a code address to the nearest preceding symbol
// name, for the ELR line of the diagnostic formatter. spec.md names
// symbol resolution as an external collaborator; NoSymbols is the default
// when none is wired in.
type SymbolResolver interface {
	Lookup(addr uint64) (name string, ok bool)
}

// NoSymbols is a SymbolResolver that never resolves anything.
type noSymbols struct{}

func (noSymbols) Lookup(uint64) (string, bool) { return "", false }

// NoSymbols is the zero-cost default SymbolResolver.
var NoSymbols SymbolResolver = noSymbols{}

// activeResolver is swappable so a kernel image that links a symbol table
// can install one; see SetSymbolResolver.
var activeResolver = NoSymbols

// SetSymbolResolver installs the resolver consulted by Format.
func SetSymbolResolver(r SymbolResolver) {
	if r == nil {
		r = NoSymbols
	}
	activeResolver = r
}

// Format renders ctx the way original_source's Display impl for
// ExceptionContext does: ESR, FAR if valid, SPSR, ELR with symbol lookup,
// then all 30 GPRs two per line, then LR.
func Format(ctx *Context, farEL1 uint64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", ctx.ESR)
	if ctx.FaultAddressValid() {
		fmt.Fprintf(&b, "FAR_EL1: %#018x\n", farEL1)
	}
	fmt.Fprintf(&b, "%s\n", ctx.SPSR)
	fmt.Fprintf(&b, "ELR_EL1: %#018x\n", ctx.ELR)
	name, ok := activeResolver.Lookup(ctx.ELR)
	if !ok {
		name = "Symbol not found"
	}
	fmt.Fprintf(&b, "      Symbol: %s\n\n", name)
	fmt.Fprintf(&b, "General purpose register:\n")
	for i, reg := range ctx.GPR {
		fmt.Fprintf(&b, "      x%-2d: %#018x", i, reg)
		if i%2 == 0 {
			fmt.Fprintf(&b, "   ")
		} else {
			fmt.Fprintf(&b, "\n")
		}
	}
	fmt.Fprintf(&b, "      lr : %#018x", ctx.LR)
	return b.String()
}

// CurrentPrivilegeLevel reports the running exception level for
// diagnostics only (original_source's current_privilege_level()); nothing
// in the fixed init order of spec.md §4.7 depends on it.
func CurrentPrivilegeLevel() regs.ExceptionLevel {
	return regs.CurrentExceptionLevel()
}
