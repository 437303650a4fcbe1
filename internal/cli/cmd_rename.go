package cli

import (
	"context"
	"fmt"

	flag "github.com/spf13/pflag"

	"github.com/shayonpal/lifeos-vault-core/internal/rename"
)

// RenameCmd builds the "rename" subcommand: the CLI's stand-in for the
// single RPC an external shell would expose over rename.Engine.Rename.
func RenameCmd(engine *rename.Engine) *Command {
	flags := flag.NewFlagSet("rename", flag.ContinueOnError)
	updateLinks := flags.Bool("update-links", true, "Rewrite wikilinks that reference the renamed note")
	dryRun := flags.Bool("dry-run", false, "Preview the rename without touching disk")

	return &Command{
		Flags: flags,
		Usage: "rename <old-path> <new-filename>",
		Short: "Rename a note and update every link that points at it",
		Exec: func(ctx context.Context, io *IO, args []string) error {
			if len(args) != 2 {
				return fmt.Errorf("rename: expected exactly 2 positional arguments, got %d", len(args))
			}

			result, preview, err := engine.Rename(ctx, rename.Input{
				Old:         args[0],
				NewFilename: args[1],
				UpdateLinks: *updateLinks,
				DryRun:      *dryRun,
			})
			if err != nil {
				return err
			}

			if preview != nil {
				printPreview(io, preview)

				return nil
			}

			printResult(io, result)

			return nil
		},
	}
}

func printPreview(io *IO, p *rename.Preview) {
	io.Println("dry run:", p.OldPath, "->", p.NewPath)
	io.Printf("  files affected: %d\n", p.FilesAffected)
	io.Printf("  update links:   %v\n", p.WillUpdateLinks)

	if p.LinkUpdates != nil {
		io.Printf("  link updates:   %d references across %d files\n",
			p.LinkUpdates.TotalReferences, p.LinkUpdates.FilesWithLinks)

		for _, path := range p.LinkUpdates.AffectedPaths {
			io.Println("    -", path)
		}
	}

	io.Printf("  estimated time: %d-%dms\n", p.EstimatedTime.MinMS, p.EstimatedTime.MaxMS)
	io.Printf("  phases:         %v\n", p.TransactionPhases)
}

func printResult(io *IO, r *rename.Result) {
	io.Println("renamed:", r.OldPath, "->", r.NewPath)
	io.Printf("  correlation id: %s\n", r.CorrelationID)
	io.Printf("  files affected: %d\n", r.FilesAffected)

	for _, t := range r.PhaseTimings {
		io.Printf("  %-10s %s\n", t.Phase, t.Duration)
	}
}
