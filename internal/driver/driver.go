// Package driver is the driver-manager collaborator: a small registry that
// defers device instantiation, post-init wiring (e.g. registering a
// console, registering an IRQ handler), and startup-order bookkeeping to
// one place, the way original_source's generic driver module and
// bsp/raspberrypi/driver.rs split "instantiate" from "driver_<name>" from
// "init()" do. Translated to Go as explicit error returns instead of
// Result<(), &'static str>, and a registration slice instead of a
// MaybeUninit static per device.
package driver

import (
	"fmt"

	"github.com/mazboot/rpi3kernel/internal/exception"
)

// IRQHandler is the shape a driver's interrupt handler must have: the
// vector's critical-section token, nothing else. A plain function type
// alias, not a defined type, so it is identical to irq.Handler's
// underlying type and *irq.Manager's RegisterIRQ method satisfies
// IRQRegistrar below without this package importing package irq (which
// would in turn need intc and eventually the board package — driver
// stays at the bottom of that chain).
type IRQHandler = func(tok exception.IRQContext)

// IRQRegistrar is the narrow capability InitDriversAndIRQs needs to finish
// step 4 of startup ("call each driver's post-init, then register its IRQ
// handler"): a place to install a Descriptor's handler once the driver
// itself has been initialized. Satisfied by *irq.Manager's RegisterIRQ.
type IRQRegistrar interface {
	RegisterIRQ(irq uint32, name string, h IRQHandler) error
}

// Device is the narrow capability every registered device must offer: a
// name for the debug dump, and nothing else — drivers don't share a
// common init/read/write surface on this kernel, each is driven through
// its own concrete type once instantiated.
type Device interface {
	Name() string
}

// PostInit, if non-nil, runs from InitDriversAndIRQs, in registration
// order — the slot original_source uses for things like console.register_console
// or generic_exception.register_irq_manager that must happen exactly
// once, in order, right after the device exists.
type PostInit func() error

// Descriptor pairs a Device with its optional post-init hook and, for
// devices that own an interrupt line, the IRQ number and handler to
// register once the driver is initialized (HasIRQ false and a nil Handler
// for devices with none).
type Descriptor struct {
	Device  Device
	Init    PostInit
	IRQ     uint32
	HasIRQ  bool
	Handler IRQHandler
}

// Manager tracks registered drivers in registration order, runs their
// post-init hooks, and registers each one's IRQ handler once it is
// initialized. There is exactly one Manager per kernel instance,
// installed by internal/kernel's startup orchestration — unlike
// original_source's file-scope singleton accessed via driver_manager(),
// this is an explicit value threaded through kernel.NewOrchestrator,
// matching the
// "accept interfaces, return structs, no package-level mutable globals
// where a passed-in value works" idiom favored by the rest of this
// module.
type Manager struct {
	descriptors []Descriptor
	irqs        IRQRegistrar
	done        bool
}

// NewManager returns an empty Manager. irqs may be nil if none of the
// drivers registered with it own an interrupt line; InitDriversAndIRQs
// then errors if a HasIRQ descriptor is registered anyway.
func NewManager(irqs IRQRegistrar) *Manager {
	return &Manager{irqs: irqs}
}

// RegisterDriver appends d to the registry. Does not run Init or register
// d's IRQ handler; that happens in InitDriversAndIRQs so that every
// driver is instantiated before any post-init hook can observe a
// partially registered set.
func (m *Manager) RegisterDriver(d Descriptor) {
	m.descriptors = append(m.descriptors, d)
}

// InitDriversAndIRQs runs every registered driver's post-init hook, then
// registers its IRQ handler if it has one, in registration order —
// step 4 of startup: "call each driver's post-init, then register its IRQ
// handler". Idempotent: a second call is a no-op error, matching
// original_source's INIT_DONE guard.
func (m *Manager) InitDriversAndIRQs() error {
	if m.done {
		return fmt.Errorf("driver: init already done")
	}
	for _, d := range m.descriptors {
		if d.Init != nil {
			if err := d.Init(); err != nil {
				return fmt.Errorf("driver: init %q: %w", d.Device.Name(), err)
			}
		}
		if !d.HasIRQ {
			continue
		}
		if m.irqs == nil {
			return fmt.Errorf("driver: %q owns irq %d but no IRQRegistrar is wired", d.Device.Name(), d.IRQ)
		}
		if err := m.irqs.RegisterIRQ(d.IRQ, d.Device.Name(), d.Handler); err != nil {
			return fmt.Errorf("driver: register irq for %q: %w", d.Device.Name(), err)
		}
	}
	m.done = true
	return nil
}

// Enumerate returns every registered driver's descriptor (name and IRQ
// ownership), for a debug dump.
func (m *Manager) Enumerate() []Descriptor {
	return m.descriptors
}
