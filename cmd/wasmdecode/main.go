package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/wasm-decoder/wasm"
)

func main() {
	var (
		wasmFile    = flag.String("wasm", "", "Path to core module wasm file")
		strict      = flag.Bool("strict", false, "Fail on trailing bytes and unknown section ids")
		rejectDups  = flag.Bool("reject-duplicates", false, "Fail when a section kind appears twice")
		requireV1   = flag.Bool("require-v1", false, "Fail unless the binary format version is 1")
		verify      = flag.Bool("verify", false, "Also compile the module with wazero")
		verbose     = flag.Bool("v", false, "Debug logging")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	if *wasmFile == "" {
		fmt.Fprintln(os.Stderr, "Usage: wasmdecode -wasm <file.wasm> [-strict] [-reject-duplicates] [-require-v1] [-verify] [-v]")
		fmt.Fprintln(os.Stderr, "       wasmdecode -wasm <file.wasm> -i  (interactive mode)")
		os.Exit(1)
	}

	logger, err := newLogger(*verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	opts := wasm.Options{
		Logger:                  logger,
		Strict:                  *strict,
		RejectDuplicateSections: *rejectDups,
		RequireVersion1:         *requireV1,
	}

	if *interactive {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			fmt.Fprintln(os.Stderr, "Error: -i needs a terminal on stdout")
			os.Exit(1)
		}
		if err := runInteractive(*wasmFile, opts); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(os.Stdout, *wasmFile, opts, *verify); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(w io.Writer, wasmFile string, opts wasm.Options, verify bool) error {
	data, err := os.ReadFile(wasmFile)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	m, err := wasm.NewDecoder(opts).Decode(data)
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	writeSummary(w, wasmFile, m)

	if !verify {
		return nil
	}
	if err := compileWithWazero(context.Background(), data); err != nil {
		return fmt.Errorf("wazero: %w", err)
	}
	fmt.Fprintln(w, "\nwazero: module compiles")
	return nil
}

// compileWithWazero cross-checks a module against an independent decoder
// and validator.
func compileWithWazero(ctx context.Context, data []byte) error {
	rt := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfigInterpreter())
	defer rt.Close(ctx)

	compiled, err := rt.CompileModule(ctx, data)
	if err != nil {
		return err
	}
	return compiled.Close(ctx)
}
