// Package irq implements exception.IRQManager against the BCM2837's legacy
// interrupt controller, following the handler-table dispatch pattern
// mazboot's gicHandleInterrupt/registerInterruptHandler use against the
// QEMU virt GIC: a fixed array of handlers indexed by IRQ number, and a
// dispatch entry point that acknowledges, dispatches, and — where the
// controller needs it — ends the interrupt.
package irq

import (
	"fmt"

	"github.com/mazboot/rpi3kernel/internal/bsp/rpi3/intc"
	"github.com/mazboot/rpi3kernel/internal/exception"
)

// maxIRQ bounds the handler table. The BCM2837 legacy controller exposes
// 64 GPU lines plus 8 basic lines; package intc only ever reports GPU
// lines from Pending, so 64 is sufficient.
const maxIRQ = 64

// Handler is invoked with the vector's critical-section token, matching
// CurrentELxIRQ's contract: no other code can construct an IRQContext, so
// a Handler runs only while interrupts are masked at the core.
type Handler func(tok exception.IRQContext)

// Descriptor names a registered handler for logging/enumeration (the
// debug dump spec.md §9 asks the driver manager for).
type Descriptor struct {
	IRQ     intc.IRQNumber
	Name    string
	Handler Handler
}

// Manager dispatches pending interrupts from the legacy controller to
// registered handlers. It implements exception.IRQManager.
type Manager struct {
	ctrl     *intc.Controller
	handlers [maxIRQ]Handler
	names    [maxIRQ]string
}

// NewManager returns a Manager bound to ctrl. Lines are unmasked at the
// controller by Register, not here.
func NewManager(ctrl *intc.Controller) *Manager {
	return &Manager{ctrl: ctrl}
}

// Register installs h for irq, enabling the line at the controller.
func (m *Manager) Register(d Descriptor) error {
	if d.IRQ >= maxIRQ {
		return fmt.Errorf("irq: number %d out of range", d.IRQ)
	}
	if d.Handler == nil {
		return fmt.Errorf("irq: nil handler for %q", d.Name)
	}
	m.handlers[d.IRQ] = d.Handler
	m.names[d.IRQ] = d.Name
	m.ctrl.Enable(d.IRQ)
	return nil
}

// RegisterIRQ is the driver.IRQRegistrar-satisfying form of Register, for
// callers (the driver manager) that only know the IRQ number as a plain
// uint32 rather than intc.IRQNumber. The parameter type is spelled out
// (rather than using Handler) so it matches driver.IRQHandler's alias
// exactly, letting *Manager satisfy driver.IRQRegistrar.
func (m *Manager) RegisterIRQ(irqNum uint32, name string, h func(tok exception.IRQContext)) error {
	return m.Register(Descriptor{IRQ: intc.IRQNumber(irqNum), Name: name, Handler: Handler(h)})
}

// Unregister disables irq at the controller and clears its handler.
func (m *Manager) Unregister(n intc.IRQNumber) {
	if n >= maxIRQ {
		return
	}
	m.ctrl.Disable(n)
	m.handlers[n] = nil
	m.names[n] = ""
}

// HandlePendingIRQs implements exception.IRQManager: it dispatches
// pending, enabled lines to their registered handlers, lowest number
// first, until none is pending. It returns silently at the first pending
// line that has no registered handler, without dispatching any line
// after it.
func (m *Manager) HandlePendingIRQs(tok exception.IRQContext) {
	for {
		n, ok := m.ctrl.Pending()
		if !ok {
			return
		}
		if n >= maxIRQ || m.handlers[n] == nil {
			return
		}
		m.handlers[n](tok)
	}
}

// Enumerate returns the descriptor of every currently registered handler,
// for a debug dump.
func (m *Manager) Enumerate() []Descriptor {
	var out []Descriptor
	for i, h := range m.handlers {
		if h != nil {
			out = append(out, Descriptor{IRQ: intc.IRQNumber(i), Name: m.names[i], Handler: h})
		}
	}
	return out
}
