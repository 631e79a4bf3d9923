package psicli

import (
	"bytes"
	"flag"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/drand/labeled-psi/psiclient"
)

// withCapturedOutput redirects the package-level output writer for the
// duration of a test and restores the original on cleanup.
func withCapturedOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	prev := output
	buf := &bytes.Buffer{}
	output = buf
	t.Cleanup(func() { output = prev })
	return buf
}

func TestCLIRegistersExpectedCommands(t *testing.T) {
	app := CLI()
	require.Equal(t, "psi", app.Name)

	var names []string
	for _, cmd := range app.Commands {
		names = append(names, cmd.Name)
	}
	require.ElementsMatch(t, []string{"setup", "preprocess", "start", "gen-client-set", "query"}, names)
}

// smallFlagSet builds a flag.FlagSet pre-populated the way urfave/cli does
// for a cli.Command, letting tests invoke Action functions directly
// without going through app.Run's argv parsing.
func smallFlagSet(t *testing.T, folder string, extra map[string]string) *cli.Context {
	t.Helper()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.String(folderFlag.Name, folder, "")
	fs.Int(numHashTablesFlag.Name, 1, "")
	fs.Int(tableSizeFlag.Name, 16, "")
	fs.Int(slotCountFlag.Name, 1<<13, "")
	fs.Int(plaintextModulusFlag.Name, 65537, "")
	fs.Int(degreeFlag.Name, 6, "")
	fs.Int(lowDegreeFlag.Name, 2, "")
	fs.Int(nFlag.Name, 20, "")
	fs.Int(kFlag.Name, 2, "")
	fs.Int(extraFlag.Name, 2, "")
	fs.String(outFlag.Name, filepath.Join(folder, "client-set.bin"), "")
	fs.String(itemsFlag.Name, filepath.Join(folder, "client-set.bin"), "")
	fs.String(addrFlag.Name, "127.0.0.1:0", "")
	fs.Bool(verboseFlag.Name, false, "")
	for name, val := range extra {
		if f := fs.Lookup(name); f != nil {
			require.NoError(t, f.Value.Set(val))
		}
	}
	return cli.NewContext(CLI(), fs, nil)
}

func TestSetupAndPreprocessCmd(t *testing.T) {
	withCapturedOutput(t)

	folder := t.TempDir()
	c := smallFlagSet(t, folder, nil)

	require.NoError(t, setupCmd(c))
	require.NoError(t, preprocessCmd(c))
	require.NoError(t, genClientSetCmd(c))

	items, err := psiclient.LoadItems(c.String(outFlag.Name))
	require.NoError(t, err)
	require.Len(t, items, c.Int(kFlag.Name)+c.Int(extraFlag.Name))
}

func TestStartCmdFailsWithoutSetup(t *testing.T) {
	withCapturedOutput(t)

	folder := t.TempDir()
	c := smallFlagSet(t, folder, nil)
	require.Error(t, startCmd(c))
}

func TestQueryCmdFailsWithoutItems(t *testing.T) {
	withCapturedOutput(t)

	folder := t.TempDir()
	c := smallFlagSet(t, folder, nil)
	require.NoError(t, setupCmd(c))
	require.Error(t, queryCmd(c))
}
