package cli

import (
	"fmt"
	"io"
)

// IO bundles the two streams every command writes to.
type IO struct {
	out    io.Writer
	errOut io.Writer
}

// NewIO builds an IO over the given streams.
func NewIO(out, errOut io.Writer) *IO {
	return &IO{out: out, errOut: errOut}
}

// Println writes to stdout.
func (io *IO) Println(a ...any) {
	_, _ = fmt.Fprintln(io.out, a...)
}

// Printf writes formatted output to stdout.
func (io *IO) Printf(format string, a ...any) {
	_, _ = fmt.Fprintf(io.out, format, a...)
}

// ErrPrintln writes to stderr.
func (io *IO) ErrPrintln(a ...any) {
	_, _ = fmt.Fprintln(io.errOut, a...)
}
