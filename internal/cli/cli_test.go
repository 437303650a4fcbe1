package cli_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shayonpal/lifeos-vault-core/internal/cli"
)

func testEnv(t *testing.T) map[string]string {
	t.Helper()

	return map[string]string{
		"HOME":            t.TempDir(),
		"XDG_CONFIG_HOME": t.TempDir(),
	}
}

func TestRun_NoCommand_PrintsUsageAndFails(t *testing.T) {
	t.Parallel()

	var out, errOut bytes.Buffer

	code := cli.Run(&out, &errOut, []string{"vaultrename", "--vault", t.TempDir()}, testEnv(t))
	require.Equal(t, 1, code)
	require.Contains(t, out.String(), "Usage:")
}

func TestRun_Help_PrintsUsageAndSucceeds(t *testing.T) {
	t.Parallel()

	var out, errOut bytes.Buffer

	code := cli.Run(&out, &errOut, []string{"vaultrename", "--help", "--vault", t.TempDir()}, testEnv(t))
	require.Equal(t, 0, code)
	require.Contains(t, out.String(), "Usage:")
}

func TestRun_MissingVaultRoot_FailsWithConfigError(t *testing.T) {
	t.Parallel()

	var out, errOut bytes.Buffer

	code := cli.Run(&out, &errOut, []string{"vaultrename", "rename", "a.md", "b.md"}, testEnv(t))
	require.Equal(t, 1, code)
	require.Contains(t, errOut.String(), "vault_root is required")
}

func TestRun_RenameCommand_RunsEndToEnd(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "Old.md"), []byte("hi\n"), 0o644))

	var out, errOut bytes.Buffer

	code := cli.Run(&out, &errOut, []string{
		"vaultrename", "--vault", root, "--wal-dir", filepath.Join(t.TempDir(), "wal"),
		"rename", "Old.md", "New.md",
	}, testEnv(t))

	require.Equal(t, 0, code, "stderr: %s", errOut.String())
	require.True(t, strings.Contains(out.String(), "renamed:"))

	_, statErr := os.Stat(filepath.Join(root, "New.md"))
	require.NoError(t, statErr)
}

func TestRun_DryRun_PrintsPreviewAndSkipsDiskChange(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "Old.md"), []byte("hi\n"), 0o644))

	var out, errOut bytes.Buffer

	code := cli.Run(&out, &errOut, []string{
		"vaultrename", "--vault", root, "--wal-dir", filepath.Join(t.TempDir(), "wal"),
		"rename", "--dry-run", "Old.md", "New.md",
	}, testEnv(t))

	require.Equal(t, 0, code, "stderr: %s", errOut.String())
	require.Contains(t, out.String(), "dry run:")

	_, statErr := os.Stat(filepath.Join(root, "New.md"))
	require.True(t, os.IsNotExist(statErr))
}

func TestRun_RecoverCommand_ReportsNothingToDo(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	var out, errOut bytes.Buffer

	code := cli.Run(&out, &errOut, []string{
		"vaultrename", "--vault", root, "--wal-dir", filepath.Join(t.TempDir(), "wal"),
		"--skip-recovery", "recover",
	}, testEnv(t))

	require.Equal(t, 0, code, "stderr: %s", errOut.String())
	require.Contains(t, out.String(), "nothing to do")
}

func TestRun_UnknownCommand_Fails(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	var out, errOut bytes.Buffer

	code := cli.Run(&out, &errOut, []string{
		"vaultrename", "--vault", root, "--wal-dir", filepath.Join(t.TempDir(), "wal"), "bogus",
	}, testEnv(t))
	require.Equal(t, 1, code)
	require.Contains(t, errOut.String(), "unknown command")
}
