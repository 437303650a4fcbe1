package cli

import (
	"context"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/shayonpal/lifeos-vault-core/internal/recovery"
	"github.com/shayonpal/lifeos-vault-core/internal/txn"
)

// RecoverCmd builds the "recover" subcommand: a manual trigger for the
// boot recovery pass, useful for demoing or re-running it without
// restarting the process.
func RecoverCmd(txnMgr *txn.Manager, minAge time.Duration) *Command {
	flags := flag.NewFlagSet("recover", flag.ContinueOnError)

	return &Command{
		Flags: flags,
		Usage: "recover",
		Short: "Roll back any transaction left behind by a crash",
		Exec: func(ctx context.Context, io *IO, args []string) error {
			report := recovery.Run(ctx, txnMgr, minAge, time.Now())

			if len(report.Outcomes) == 0 && len(report.Skipped) == 0 {
				io.Println("recover: nothing to do")

				return nil
			}

			for _, o := range report.Outcomes {
				if o.Status == "succeeded" {
					io.Println("recovered:", o.CorrelationID)

					continue
				}

				io.ErrPrintln("recover:", o.CorrelationID, o.Status, o.Detail)
			}

			for _, p := range report.Skipped {
				io.ErrPrintln("recover: skipped corrupt WAL entry:", p)
			}

			return nil
		},
	}
}
