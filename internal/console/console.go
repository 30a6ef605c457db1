// Package console is the ConsoleWrite collaborator spec.md §6 names: a
// narrow, swappable sink for kernel diagnostics. No structured logging
// library is plausible in a freestanding binary with no syscalls, so
// this follows the teacher's and bcm2835's own convention — a thin
// fmt.Fprintf-compatible writer wrapping the PL011 UART directly, rather
// than a hand-rolled formatter.
package console

import "fmt"

// Writer is the capability the rest of the kernel depends on: anything
// that can accept bytes and a trailing flush. rpi3.UART0 satisfies this
// via its WriteString/Write/Flush methods.
type Writer interface {
	WriteString(s string) (int, error)
	Flush()
}

var active Writer = discard{}

// Register installs w as the active console. Called once during startup
// orchestration, after the UART driver is instantiated — mirrors
// original_source's console::register_console.
func Register(w Writer) {
	if w == nil {
		w = discard{}
	}
	active = w
}

// Printf formats and writes to the active console.
func Printf(format string, args ...any) {
	fmt.Fprintf(writerAdapter{}, format, args...)
}

// WriteString writes s to the active console.
func WriteString(s string) {
	active.WriteString(s)
}

// Flush flushes the active console.
func Flush() {
	active.Flush()
}

// writerAdapter lets fmt.Fprintf target the active console without
// requiring Writer itself to satisfy io.Writer (WriteString already
// covers every caller in this kernel).
type writerAdapter struct{}

func (writerAdapter) Write(p []byte) (int, error) {
	return active.WriteString(string(p))
}

// discard is the zero-value console: silently drops everything, so that
// early boot code calling console.Printf before Register runs never
// panics on a nil interface.
type discard struct{}

func (discard) WriteString(s string) (int, error) { return len(s), nil }
func (discard) Flush()                            {}
