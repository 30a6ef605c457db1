// Package backtrace walks the AArch64 frame-pointer chain the way
// mazboot's PrintTraceback does, producing a bounded list of return
// addresses for the panic handler to print. It does not use
// runtime.Callers: on a freestanding kernel there is no guarantee the Go
// scheduler's stack bookkeeping matches what runtime expects, so this
// reads raw memory through the FP chain directly, exactly as the
// teacher's own traceback does.
package backtrace

import "unsafe"

// maxFrames bounds the walk so a corrupted or cyclic FP chain can't loop
// forever.
const maxFrames = 32

// Frame is one return address on the call stack.
type Frame struct {
	PC uintptr
}

// Walk follows the FP chain starting at fp, collecting return addresses.
// Go's AArch64 frame layout stores the saved link register at [FP+8] and
// the caller's FP at [FP+0]; mazboot's PrintTraceback documents the same
// [FP+8]/[FP+32(via prologue copy)] pair — here we follow the
// conventional Go layout ([FP+0]=prevFP, [FP+8]=savedLR) since this
// kernel does not patch its own prologues the way mazboot's modified
// runtime does.
func Walk(pc, fp, lr uintptr) []Frame {
	frames := make([]Frame, 0, maxFrames)
	if pc != 0 {
		frames = append(frames, Frame{PC: pc})
	}
	if lr != 0 {
		frames = append(frames, Frame{PC: lr})
	}

	current := fp
	for i := 0; i < maxFrames && current != 0; i++ {
		if !looksLikeStackAddr(current) {
			break
		}
		savedLR := readUintptr(current + 8)
		prevFP := readUintptr(current)
		if prevFP == 0 || prevFP == current || savedLR == 0 {
			break
		}
		frames = append(frames, Frame{PC: savedLR})
		current = prevFP
	}
	return frames
}

// looksLikeStackAddr is a best-effort sanity check against an obviously
// corrupt frame pointer; the kernel's own virtual address space is
// small enough (1 GiB, per the translation-table geometry) that any FP
// outside it cannot be real.
func looksLikeStackAddr(addr uintptr) bool {
	return addr != 0 && addr&0x7 == 0 && addr < 1<<30
}

func readUintptr(addr uintptr) uintptr {
	return *(*uintptr)(unsafe.Pointer(addr))
}
