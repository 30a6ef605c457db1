package kernel

import (
	"fmt"

	"github.com/mazboot/rpi3kernel/internal/bsp/rpi3/timer"
	"github.com/mazboot/rpi3kernel/internal/driver"
	"github.com/mazboot/rpi3kernel/internal/exception"
	"github.com/mazboot/rpi3kernel/internal/cpu/regs"
	"github.com/mazboot/rpi3kernel/internal/mmu"
	"github.com/mazboot/rpi3kernel/internal/mmu/table"
)

// Orchestrator runs the fixed startup sequence and owns the collaborators
// it wires together. The step order below is load-bearing and must not
// be permuted: vectors before paging, paging before drivers, drivers
// before IRQ unmask, IRQ unmask before the state transition.
type Orchestrator struct {
	VectorTableAddr uint64
	Table           *table.Table
	Drivers         *driver.Manager
	IRQManager      exception.IRQManager
	State           *StateManager
	Clock           *timer.Timer
}

// NewOrchestrator wires a fresh StateManager onto the given
// collaborators; everything else is supplied by the caller (cmd/kernel),
// since each requires board-specific construction this package does not
// know about.
func NewOrchestrator(vectorTableAddr uint64, t *table.Table, drivers *driver.Manager, irqMgr exception.IRQManager, clock *timer.Timer) *Orchestrator {
	return &Orchestrator{
		VectorTableAddr: vectorTableAddr,
		Table:           t,
		Drivers:         drivers,
		IRQManager:      irqMgr,
		State:           NewStateManager(),
		Clock:           clock,
	}
}

// Run executes the fixed startup order (spec.md §4.7, step numbers kept
// in the comments below for traceability against that order):
//  1. exception.HandlingInit
//  2. table.Init + mmu.Enable
//  3/4. driver registration is the caller's job (each device needs
//     board-specific construction); Run only calls InitDriversAndIRQs
//     and installs the IRQManager, matching step 4's "call each driver's
//     post-init, then register its IRQ handler".
//  5. regs.LocalIRQUnmask
//  6. StateManager.TransitionToSingleCoreMain
func (o *Orchestrator) Run() error {
	exception.HandlingInit(o.VectorTableAddr)

	if err := o.Table.Init(); err != nil {
		return fmt.Errorf("kernel: translation table init: %w", err)
	}
	if err := mmu.Enable(o.Table); err != nil {
		return fmt.Errorf("kernel: mmu enable: %w", err)
	}

	if o.Drivers != nil {
		if err := o.Drivers.InitDriversAndIRQs(); err != nil {
			return fmt.Errorf("kernel: driver init: %w", err)
		}
	}
	if o.IRQManager != nil {
		exception.SetIRQManager(o.IRQManager)
	}

	regs.LocalIRQUnmask()

	if err := o.State.TransitionToSingleCoreMain(); err != nil {
		return fmt.Errorf("kernel: state transition: %w", err)
	}
	return nil
}
