package cli

import (
	"context"
	"strings"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/shayonpal/lifeos-vault-core/internal/config"
	"github.com/shayonpal/lifeos-vault-core/internal/recovery"
	"github.com/shayonpal/lifeos-vault-core/internal/rename"
	"github.com/shayonpal/lifeos-vault-core/internal/txn"
	"github.com/shayonpal/lifeos-vault-core/pkg/fs"
)

// Run is the CLI's main entry point: parse global flags, load config, run
// boot recovery once (before anything else touches the vault), then
// dispatch to a subcommand. Returns the process exit code.
func Run(out, errOut writer, args []string, env map[string]string) int {
	globalFlags := flag.NewFlagSet("vaultrename", flag.ContinueOnError)
	globalFlags.SetInterspersed(false)
	globalFlags.Usage = func() {}
	globalFlags.SetOutput(&strings.Builder{})

	flagHelp := globalFlags.BoolP("help", "h", false, "Show help")
	flagCwd := globalFlags.StringP("cwd", "C", "", "Run as if started in `dir`")
	flagConfig := globalFlags.StringP("config", "c", "", "Use specified config `file`")
	flagVault := globalFlags.String("vault", "", "Vault root `dir` (overrides config)")
	flagWALDir := globalFlags.String("wal-dir", "", "WAL `dir` (overrides config)")
	flagSkipRecovery := globalFlags.Bool("skip-recovery", false, "Skip the boot recovery pass")

	if err := globalFlags.Parse(args[1:]); err != nil {
		io := NewIO(out, errOut)
		io.ErrPrintln("error:", err)
		printGlobalUsage(io)

		return 1
	}

	cfg, err := config.Load(config.LoadInput{
		WorkDirOverride: *flagCwd,
		ConfigPath:      *flagConfig,
		VaultRootFlag:   *flagVault,
		WALDirFlag:      *flagWALDir,
		Env:             env,
	})
	if err != nil {
		io := NewIO(out, errOut)
		io.ErrPrintln("error:", err)
		printGlobalUsage(io)

		return 1
	}

	txnMgr := txn.NewManager(fs.NewReal(), cfg.WALDir)
	engine := rename.NewEngine(txnMgr, cfg.VaultRoot)

	ctx := context.Background()

	io := NewIO(out, errOut)
	minAge := minAgeOf(cfg)

	if !*flagSkipRecovery {
		report := recovery.Run(ctx, txnMgr, minAge, time.Now())
		printRecoveryReport(io, report)
	}

	commands := allCommands(engine, txnMgr, minAge)

	commandMap := make(map[string]*Command, len(commands))
	for _, cmd := range commands {
		commandMap[cmd.Name()] = cmd
	}

	commandAndArgs := globalFlags.Args()

	if *flagHelp || len(commandAndArgs) == 0 {
		printUsage(io, commands)

		if *flagHelp {
			return 0
		}

		return 1
	}

	cmdName := commandAndArgs[0]

	cmd, ok := commandMap[cmdName]
	if !ok {
		io.ErrPrintln("error: unknown command:", cmdName)
		printUsage(io, commands)

		return 1
	}

	return cmd.Run(ctx, io, commandAndArgs[1:])
}

func minAgeOf(cfg config.Config) time.Duration {
	if cfg.RecoveryMinAgeSeconds <= 0 {
		return recovery.MinAge
	}

	return time.Duration(cfg.RecoveryMinAgeSeconds) * time.Second
}

// writer is the minimal io.Writer alias used so this file doesn't need to
// import "io" just for the parameter types.
type writer = interface {
	Write(p []byte) (n int, err error)
}

func allCommands(engine *rename.Engine, txnMgr *txn.Manager, minAge time.Duration) []*Command {
	return []*Command{
		RenameCmd(engine),
		RecoverCmd(txnMgr, minAge),
	}
}

func printGlobalUsage(io *IO) {
	io.ErrPrintln("Usage: vaultrename [global flags] <command> [args]")
	io.ErrPrintln("Global flags: -C/--cwd, -c/--config, --vault, --wal-dir, --skip-recovery")
}

func printUsage(io *IO, commands []*Command) {
	io.Println("Usage: vaultrename [global flags] <command> [args]")
	io.Println()
	io.Println("Commands:")

	for _, cmd := range commands {
		io.Println(cmd.HelpLine())
	}
}

func printRecoveryReport(io *IO, report recovery.Report) {
	for _, o := range report.Outcomes {
		io.ErrPrintln("recovery:", o.CorrelationID, o.Status, o.Detail)
	}

	for _, p := range report.Skipped {
		io.ErrPrintln("recovery: skipped corrupt WAL entry:", p)
	}
}
