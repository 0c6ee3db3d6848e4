// Package klog is the kernel's log sink: an fmt.Printf-shaped wrapper that
// boot can redirect from the host console to the VGA text console once
// internal/console is initialized.
package klog

import (
	"fmt"
	"io"
	"os"
	"sync"
)

var (
	mu  sync.Mutex
	out io.Writer = os.Stdout

	// Debug gates verbose diagnostic output; off by default.
	Debug = false
)

// SetOutput redirects kernel log output to w. Called once during boot
// after the console driver is up.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
}

// Printf writes a formatted message to the current log sink.
func Printf(format string, args ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	fmt.Fprintf(out, format, args...)
}

// Debugf writes a formatted message only when Debug is enabled.
func Debugf(format string, args ...interface{}) {
	if !Debug {
		return
	}
	Printf(format, args...)
}

// Panicf logs a formatted message and then panics with it, for
// unrecoverable kernel invariant violations.
func Panicf(format string, args ...interface{}) {
	s := fmt.Sprintf(format, args...)
	Printf("%s", s)
	panic(s)
}
