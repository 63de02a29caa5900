package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/chrissnell/jetcalib/internal/calib"
	"github.com/chrissnell/jetcalib/internal/log"
)

type importOptions struct {
	driver string
	dsn    string
	label  string
	name   string
	dryRun bool
}

func main() {
	var opts importOptions
	flag.StringVar(&opts.dsn, "db", "", "Registry data source: a file path for sqlite, a connection string for postgres/pgx (required)")
	flag.StringVar(&opts.driver, "driver", "sqlite", "Registry driver: sqlite, postgres or pgx")
	flag.StringVar(&opts.label, "label", "", "Label to store the tables under (required)")
	flag.StringVar(&opts.name, "name", "", "Table name; only valid with a single file (default: file name without extension)")
	flag.BoolVar(&opts.dryRun, "dry-run", false, "Parse the tables and show what would be imported")
	debug := flag.Bool("debug", false, "Turn on debugging output")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s -db <calib.db> -label <label> [-name <name>] table.txt ...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	files := flag.Args()
	if opts.dsn == "" || opts.label == "" || len(files) == 0 {
		flag.Usage()
		os.Exit(1)
	}

	if err := log.Init(*debug); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if _, err := runImport(context.Background(), os.Stdout, opts, files, log.GetSugaredLogger()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// runImport parses files and stores them under opts.label. A dry run stops
// after printing the summary and never opens the registry. It returns the
// import batch ID, or "" for a dry run.
func runImport(ctx context.Context, w io.Writer, opts importOptions, files []string, logger *zap.SugaredLogger) (string, error) {
	if opts.name != "" && len(files) != 1 {
		return "", fmt.Errorf("-name needs exactly one table file, got %d", len(files))
	}
	if len(files) == 0 {
		return "", errors.New("no table files given")
	}

	tables := make([]*calib.Table, 0, len(files))
	for _, path := range files {
		t, err := calib.LoadTableFile(path)
		if err != nil {
			return "", err
		}
		if opts.name != "" {
			t.Name = opts.name
		}
		tables = append(tables, t)
	}

	fmt.Fprintf(w, "Importing %d calibration tables under label %s\n", len(tables), opts.label)
	for _, t := range tables {
		fmt.Fprintf(w, "  %-40s level=%-12s formula=%-16s records=%d\n", t.Name, t.Level, t.Formula, len(t.Records))
	}

	if opts.dryRun {
		fmt.Fprintln(w, "DRY RUN complete - nothing imported")
		return "", nil
	}

	reg, err := calib.OpenRegistry(ctx, opts.driver, opts.dsn, logger)
	if err != nil {
		return "", fmt.Errorf("failed to open registry: %w", err)
	}
	defer reg.Close()

	batchID, err := reg.Import(ctx, opts.label, tables...)
	if err != nil {
		return "", fmt.Errorf("failed to import tables: %w", err)
	}

	fmt.Fprintf(w, "Import complete (batch %s)\n", batchID)
	return batchID, nil
}
