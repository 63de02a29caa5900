package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/chrissnell/jetcalib/internal/app"
	"github.com/chrissnell/jetcalib/internal/eventio"
	"github.com/chrissnell/jetcalib/internal/log"
	"github.com/chrissnell/jetcalib/pkg/config"
)

var (
	inPath    string
	outPath   string
	inFormat  string
	outFormat string
	seed      uint64
	logEvery  int
)

var annotateCmd = &cobra.Command{
	Use:   "annotate",
	Short: "Annotate every jet of an event stream",
	Long: `Reads an event stream, runs the jet calibration pipeline over every jet
and writes the annotated events to a new stream with its own run ID.
Use "-" for stdin or stdout.`,
	Args: cobra.NoArgs,
	RunE: runAnnotate,
}

func init() {
	annotateCmd.Flags().StringVar(&inPath, "in", "-", "Input event stream")
	annotateCmd.Flags().StringVar(&outPath, "out", "-", "Output event stream")
	annotateCmd.Flags().StringVar(&inFormat, "in-format", "", "Input format: json or msgpack (default: from file extension)")
	annotateCmd.Flags().StringVar(&outFormat, "out-format", "", "Output format: json or msgpack (default: from file extension)")
	annotateCmd.Flags().Uint64Var(&seed, "seed", 0, "Override the smearing random seed from the configuration")
	annotateCmd.Flags().IntVar(&logEvery, "log-every", 10000, "Log progress every N events (0 disables)")
}

func streamFormat(flag, path string) (eventio.Format, error) {
	if flag != "" {
		return eventio.ParseFormat(flag)
	}
	return eventio.FormatFromPath(path), nil
}

func runAnnotate(cmd *cobra.Command, args []string) error {
	inFmt, err := streamFormat(inFormat, inPath)
	if err != nil {
		return err
	}
	outFmt, err := streamFormat(outFormat, outPath)
	if err != nil {
		return err
	}

	opts := app.Options{LogEvery: logEvery, Producer: "jetannotate " + version}
	if cmd.Flags().Changed("seed") {
		opts.Seed = &seed
	}

	filename, _ := filepath.Abs(cfgFile)
	provider := config.NewYAMLProvider(filename)
	defer provider.Close()

	in, closeIn, err := openInput(inPath)
	if err != nil {
		return err
	}
	defer closeIn()

	out, closeOut, err := openOutput(outPath)
	if err != nil {
		return err
	}

	application := app.New(provider, log.GetSugaredLogger(), opts)
	_, err = application.Run(cmd.Context(), in, inFmt, out, outFmt)
	if cerr := closeOut(); err == nil {
		err = cerr
	}
	if err != nil {
		log.Errorf("Annotation failed: %v", err)
	}
	return err
}

func openInput(path string) (io.Reader, func(), error) {
	if path == "-" {
		return bufio.NewReader(os.Stdin), func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open input: %w", err)
	}
	return bufio.NewReader(f), func() { f.Close() }, nil
}

func openOutput(path string) (io.Writer, func() error, error) {
	if path == "-" {
		bw := bufio.NewWriter(os.Stdout)
		return bw, bw.Flush, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output: %w", err)
	}
	bw := bufio.NewWriter(f)
	return bw, func() error {
		if err := bw.Flush(); err != nil {
			f.Close()
			return fmt.Errorf("failed to flush output: %w", err)
		}
		return f.Close()
	}, nil
}
