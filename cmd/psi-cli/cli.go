// Package psicli wires the labeled-PSI server and client operations into
// an urfave/cli application exposing setup, preprocessing, daemon and
// query subcommands.
package psicli

import (
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/briandowns/spinner"
	"github.com/urfave/cli/v2"

	"github.com/drand/labeled-psi/core"
	"github.com/drand/labeled-psi/db"
	"github.com/drand/labeled-psi/fhe"
	"github.com/drand/labeled-psi/key"
	"github.com/drand/labeled-psi/log"
	"github.com/drand/labeled-psi/metrics"
	"github.com/drand/labeled-psi/params"
	"github.com/drand/labeled-psi/psiclient"
	"github.com/drand/labeled-psi/wire"
)

// default output, overridable by tests.
var output io.Writer = os.Stdout

// Automatically set through -ldflags.
var (
	version   = "master"
	gitCommit = "none"
	buildDate = "unknown"
)

const defaultListenAddr = "127.0.0.1:6379"
const refreshRate = 100 * time.Millisecond

func banner() {
	fmt.Fprintf(output, "labeled-psi %v (date %v, commit %v)\n", version, buildDate, gitCommit)
}

var folderFlag = &cli.StringFlag{
	Name:  "folder",
	Value: defaultDataFolder(),
	Usage: "folder holding this server's key material, deployment params and dataset",
}

var verboseFlag = &cli.BoolFlag{
	Name:  "verbose",
	Usage: "if set, verbosity is at the debug level",
}

var listenFlag = &cli.StringFlag{
	Name:  "listen",
	Value: defaultListenAddr,
	Usage: "address the server listens for queries on",
}

var metricsFlag = &cli.StringFlag{
	Name:  "metrics",
	Usage: "launch a Prometheus metrics server at the specified (host:)port",
}

var workersFlag = &cli.IntFlag{
	Name:  "workers",
	Value: 4,
	Usage: "number of concurrent segment evaluations per hash table",
}

var numHashTablesFlag = &cli.IntFlag{
	Name:  "num-hash-tables",
	Value: params.Default().NumHashTables,
	Usage: "number of cuckoo hash tables",
}

var tableSizeFlag = &cli.IntFlag{
	Name:  "table-size",
	Value: int(params.Default().TableSize),
	Usage: "rows per cuckoo hash table (power of two)",
}

var slotCountFlag = &cli.IntFlag{
	Name:  "slot-count",
	Value: params.Default().SlotCount,
	Usage: "BFV ciphertext SIMD slot count / ring degree (power of two)",
}

var plaintextModulusFlag = &cli.IntFlag{
	Name:  "plaintext-modulus",
	Value: int(params.Default().PlaintextModulus),
	Usage: "BFV plaintext prime modulus t",
}

var degreeFlag = &cli.IntFlag{
	Name:  "degree",
	Value: params.Default().Degree,
	Usage: "total Paterson-Stockmeyer polynomial degree",
}

var lowDegreeFlag = &cli.IntFlag{
	Name:  "low-degree",
	Value: params.Default().LowDegree,
	Usage: "Paterson-Stockmeyer low-degree split",
}

var nFlag = &cli.IntFlag{
	Name:  "n",
	Value: 1000,
	Usage: "number of random items to generate",
}

var kFlag = &cli.IntFlag{
	Name:  "k",
	Value: 10,
	Usage: "number of true-member items to draw into a client query set",
}

var extraFlag = &cli.IntFlag{
	Name:  "extra",
	Value: 10,
	Usage: "number of random non-member items to add to a client query set",
}

var outFlag = &cli.StringFlag{
	Name:  "out",
	Value: "client-set.bin",
	Usage: "path to write a client item set to",
}

var itemsFlag = &cli.StringFlag{
	Name:  "items",
	Value: "client-set.bin",
	Usage: "path to a client item set produced by gen-client-set",
}

var addrFlag = &cli.StringFlag{
	Name:  "addr",
	Value: defaultListenAddr,
	Usage: "server address to query",
}

func defaultDataFolder() string {
	return filepath.Join(".", "psi-data")
}

func toArray(flags ...cli.Flag) []cli.Flag {
	return flags
}

var appCommands = []*cli.Command{
	{
		Name:  "setup",
		Usage: "generate a fresh BFV key pair and deployment params for a server",
		Flags: toArray(folderFlag, numHashTablesFlag, tableSizeFlag, slotCountFlag,
			plaintextModulusFlag, degreeFlag, lowDegreeFlag, verboseFlag),
		Action: func(c *cli.Context) error {
			banner()
			return setupCmd(c)
		},
	},
	{
		Name:  "preprocess",
		Usage: "insert a random dataset and interpolate every row",
		Flags: toArray(folderFlag, nFlag, verboseFlag),
		Action: func(c *cli.Context) error {
			banner()
			return preprocessCmd(c)
		},
	},
	{
		Name:  "start",
		Usage: "load a server's keys, params and dataset and start answering queries",
		Flags: toArray(folderFlag, listenFlag, metricsFlag, workersFlag, verboseFlag),
		Action: func(c *cli.Context) error {
			banner()
			return startCmd(c)
		},
	},
	{
		Name:  "gen-client-set",
		Usage: "draw a client query set overlapping a server's dataset",
		Flags: toArray(folderFlag, kFlag, extraFlag, outFlag, verboseFlag),
		Action: func(c *cli.Context) error {
			banner()
			return genClientSetCmd(c)
		},
	},
	{
		Name:  "query",
		Usage: "encrypt a client item set, query a running server, and print the results",
		Flags: toArray(addrFlag, folderFlag, itemsFlag, verboseFlag),
		Action: func(c *cli.Context) error {
			banner()
			return queryCmd(c)
		},
	},
}

// CLI builds the labeled-psi command line application.
func CLI() *cli.App {
	app := cli.NewApp()
	app.Name = "psi"
	app.Usage = "labeled private set intersection server and client"
	app.Version = version
	cli.VersionPrinter = func(c *cli.Context) {
		fmt.Fprintf(output, "labeled-psi %v (date %v, commit %v)\n", version, buildDate, gitCommit)
	}
	app.Commands = appCommands
	app.Flags = toArray(verboseFlag, folderFlag)
	app.ExitErrHandler = func(context *cli.Context, err error) {}
	return app
}

func logLevel(c *cli.Context) int {
	if c.Bool(verboseFlag.Name) {
		return log.DebugLevel
	}
	return log.InfoLevel
}

func setupCmd(c *cli.Context) error {
	log.ConfigureDefaultLogger(logLevel(c), false)
	l := log.DefaultLogger()

	folder := c.String(folderFlag.Name)
	p := params.Params{
		NumHashTables:    c.Int(numHashTablesFlag.Name),
		TableSize:        uint32(c.Int(tableSizeFlag.Name)),
		SlotCount:        c.Int(slotCountFlag.Name),
		PlaintextModulus: uint64(c.Int(plaintextModulusFlag.Name)),
		Degree:           c.Int(degreeFlag.Name),
		LowDegree:        c.Int(lowDegreeFlag.Name),
		SourcePowers:     params.Default().SourcePowers,
	}
	if err := p.Validate(); err != nil {
		return err
	}

	store, err := key.Open(l, folder)
	if err != nil {
		return err
	}
	defer store.Close()

	fp, err := fhe.NewParams(p.LogN(), p.PlaintextModulus)
	if err != nil {
		return err
	}

	s := spinner.New(spinner.CharSets[9], refreshRate)
	s.Suffix = "  generating BFV key material..."
	s.Start()
	keys, err := fhe.GenerateKeys(fp, nil)
	s.Stop()
	if err != nil {
		return err
	}

	if err := store.SaveParams(p); err != nil {
		return err
	}
	if err := store.SaveKeys(keys); err != nil {
		return err
	}

	fmt.Fprintf(output, "generated server keys and params in %s\n", folder)
	return nil
}

func preprocessCmd(c *cli.Context) error {
	log.ConfigureDefaultLogger(logLevel(c), false)
	l := log.DefaultLogger()

	folder := c.String(folderFlag.Name)
	store, err := key.Open(l, folder)
	if err != nil {
		return err
	}
	defer store.Close()

	p, err := store.LoadParams()
	if err != nil {
		return fmt.Errorf("run setup before preprocess: %w", err)
	}

	items, err := db.RandomDataset(c.Int(nFlag.Name))
	if err != nil {
		return err
	}

	dataset := db.New(p)
	if _, err := dataset.Insert(items); err != nil {
		return err
	}

	s := spinner.New(spinner.CharSets[9], refreshRate)
	s.Suffix = fmt.Sprintf("  interpolating %d items across %d tables...", len(items), p.NumHashTables)
	s.Start()
	err = dataset.Preprocess()
	s.Stop()
	if err != nil {
		return err
	}

	if len(dataset.Stack()) > 0 {
		fmt.Fprintf(output, "warning: %d items could not be placed, retry with larger table-size\n", len(dataset.Stack()))
	}

	path := filepath.Join(folder, db.DatasetFileName)
	if err := db.SaveDataset(path, items); err != nil {
		return err
	}

	metrics.DatasetSize.Set(float64(len(items)))
	fmt.Fprintf(output, "preprocessed %d items into %s\n", len(items), path)
	return nil
}

func startCmd(c *cli.Context) error {
	log.ConfigureDefaultLogger(logLevel(c), false)
	l := log.DefaultLogger()

	folder := c.String(folderFlag.Name)
	store, err := key.Open(l, folder)
	if err != nil {
		return err
	}
	defer store.Close()

	p, err := store.LoadParams()
	if err != nil {
		return fmt.Errorf("run setup before start: %w", err)
	}
	keys, err := store.LoadKeys()
	if err != nil {
		return fmt.Errorf("run setup before start: %w", err)
	}

	items, err := db.LoadDataset(filepath.Join(folder, db.DatasetFileName))
	if err != nil {
		return fmt.Errorf("run preprocess before start: %w", err)
	}

	dataset := db.New(p)
	if _, err := dataset.Insert(items); err != nil {
		return err
	}
	if err := dataset.Preprocess(); err != nil {
		return err
	}
	metrics.DatasetSize.Set(float64(len(items)))

	fp, err := fhe.NewParams(p.LogN(), p.PlaintextModulus)
	if err != nil {
		return err
	}
	eval := fhe.NewEvaluator(fp, keys.EvaluationKeySet())
	enc := fhe.NewEncoder(fp)

	workers := c.Int(workersFlag.Name)
	srv, err := core.New(p, fp, dataset, eval, enc, workers, l)
	if err != nil {
		return err
	}

	if c.IsSet(metricsFlag.Name) {
		metrics.Start(c.String(metricsFlag.Name))
	}

	addr := c.String(listenFlag.Name)
	if err := srv.Listen(addr); err != nil {
		return err
	}
	fmt.Fprintf(output, "serving %d items across %d tables on %s\n", len(items), p.NumHashTables, srv.Addr())
	return srv.Serve()
}

func genClientSetCmd(c *cli.Context) error {
	folder := c.String(folderFlag.Name)
	items, err := db.LoadDataset(filepath.Join(folder, db.DatasetFileName))
	if err != nil {
		return fmt.Errorf("run preprocess before gen-client-set: %w", err)
	}

	set, err := db.OverlappingQuerySet(items, c.Int(kFlag.Name), c.Int(extraFlag.Name))
	if err != nil {
		return err
	}

	out := c.String(outFlag.Name)
	if err := psiclient.SaveItems(out, set); err != nil {
		return err
	}
	fmt.Fprintf(output, "wrote %d client items (%d members, %d random) to %s\n",
		len(set), c.Int(kFlag.Name), c.Int(extraFlag.Name), out)
	return nil
}

func queryCmd(c *cli.Context) error {
	log.ConfigureDefaultLogger(logLevel(c), false)
	l := log.DefaultLogger()

	folder := c.String(folderFlag.Name)
	store, err := key.Open(l, folder)
	if err != nil {
		return err
	}
	defer store.Close()

	p, err := store.LoadParams()
	if err != nil {
		return fmt.Errorf("a deployment's params (from its setup) are needed to shape the query: %w", err)
	}

	items, err := psiclient.LoadItems(c.String(itemsFlag.Name))
	if err != nil {
		return err
	}

	fp, err := fhe.NewParams(p.LogN(), p.PlaintextModulus)
	if err != nil {
		return err
	}
	keys, err := fhe.GenerateKeys(fp, nil)
	if err != nil {
		return err
	}
	enc := fhe.NewEncoder(fp)
	encryptor := fhe.NewEncryptor(fp, keys.Public)
	seeded := fhe.NewSeededEncryptor(fp, keys.Public)
	decryptor := fhe.NewDecryptor(fp, keys.Secret)

	qs, query, err := psiclient.BuildQuery(p, enc, encryptor, seeded, items)
	if err != nil {
		return err
	}

	conn, err := net.Dial("tcp", c.String(addrFlag.Name))
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := wire.SendQuery(conn, query); err != nil {
		return err
	}
	resp, err := wire.ReceiveResponse(conn)
	if err != nil {
		return err
	}

	labels, err := psiclient.Decode(qs, p, fp, decryptor, enc, resp.Tables)
	if err != nil {
		return err
	}

	for item, candidates := range labels {
		fmt.Fprintf(output, "item %x: %d candidate label(s)\n", item, len(candidates))
	}
	return nil
}
