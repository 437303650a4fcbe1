// Package cli is a thin stand-in for a future RPC shell: a single
// pflag-based command surface that calls the same
// rename.Engine.Rename(input) → result an RPC shell would, used here for
// manual testing and for driving the boot-recovery pass.
package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	flag "github.com/spf13/pflag"
)

// Command defines one CLI subcommand with unified help generation.
type Command struct {
	Flags *flag.FlagSet
	Usage string
	Short string
	Exec  func(ctx context.Context, io *IO, args []string) error
}

// Name returns the command name (first word of Usage).
func (c *Command) Name() string {
	name, _, _ := strings.Cut(c.Usage, " ")

	return name
}

// HelpLine returns the one-line help entry shown in the top-level usage.
func (c *Command) HelpLine() string {
	return fmt.Sprintf("  %-28s %s", c.Usage, c.Short)
}

// PrintHelp prints "vaultrename <cmd> --help" output.
func (c *Command) PrintHelp(io *IO) {
	io.Println("Usage: vaultrename", c.Usage)
	io.Println()
	io.Println(c.Short)

	if c.Flags != nil && c.Flags.HasFlags() {
		io.Println()
		io.Println("Flags:")

		var buf strings.Builder
		c.Flags.SetOutput(&buf)
		c.Flags.PrintDefaults()
		io.Printf("%s", buf.String())
	}
}

// Run parses flags and executes the command, returning an exit code.
func (c *Command) Run(ctx context.Context, io *IO, args []string) int {
	c.Flags.SetOutput(&strings.Builder{})

	if err := c.Flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			c.PrintHelp(io)

			return 0
		}

		io.ErrPrintln("error:", err)
		c.PrintHelp(io)

		return 1
	}

	if err := c.Exec(ctx, io, c.Flags.Args()); err != nil {
		io.ErrPrintln("error:", err)

		return 1
	}

	return 0
}
