// Package timer wraps the ARMv8 architectural generic timer (CNTPCT_EL0,
// CNTFRQ_EL0, CNTP_TVAL_EL0/CNTP_CTL_EL0) the way usbarmory-tamago's
// arm64.CPU does (Counter/GetTime/SetAlarm), narrowed to the uptime and
// spin-wait operations spec.md §6 assigns to the TimeManager collaborator.
package timer

import (
	"time"

	"github.com/mazboot/rpi3kernel/internal/cpu/regs"
)

const nanosPerSecond = 1_000_000_000

// cntpCtlEnable enables the physical timer (CNTP_CTL_EL0.ENABLE).
const cntpCtlEnable = 1 << 0

// Timer reads the free-running architectural counter. The zero value is
// ready to use; frequency is read from CNTFRQ_EL0 on first use.
type Timer struct {
	freqHz uint64
}

// New returns a Timer bound to the core's architectural counter.
func New() *Timer {
	return &Timer{}
}

func (t *Timer) frequency() uint64 {
	if t.freqHz == 0 {
		t.freqHz = uint64(regs.ReadCntfrq())
	}
	return t.freqHz
}

// Resolution reports the duration of one counter tick.
func (t *Timer) Resolution() time.Duration {
	freq := t.frequency()
	if freq == 0 {
		return 0
	}
	return time.Duration(nanosPerSecond / freq)
}

// Uptime reports elapsed time since the counter was last reset (i.e.
// since core reset, on this single-core kernel).
func (t *Timer) Uptime() time.Duration {
	freq := t.frequency()
	if freq == 0 {
		return 0
	}
	ticks := regs.ReadCntpct()
	return time.Duration(ticks * nanosPerSecond / freq)
}

// SpinFor busy-waits for approximately d, polling CNTPCT_EL0. Used only
// for short boot-time delays; anything that can block the CPU for longer
// belongs on the IRQ-driven physical timer instead (see SetAlarm below).
func (t *Timer) SpinFor(d time.Duration) {
	freq := t.frequency()
	if freq == 0 || d <= 0 {
		return
	}
	ticks := uint64(d) * freq / nanosPerSecond
	start := regs.ReadCntpct()
	for regs.ReadCntpct()-start < ticks {
	}
}

// SetAlarm arms the physical timer (CNTP_TVAL_EL0/CNTP_CTL_EL0) to raise
// the timer IRQ after d elapses. Passing d<=0 disarms it.
func (t *Timer) SetAlarm(d time.Duration) {
	freq := t.frequency()
	if freq == 0 || d <= 0 {
		regs.WriteCntpCtl(0)
		return
	}
	ticks := uint32(uint64(d) * freq / nanosPerSecond)
	regs.WriteCntpTval(ticks)
	regs.WriteCntpCtl(cntpCtlEnable)
}
