package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/wippyai/mediafs/dispatch"
	"github.com/wippyai/mediafs/engine"
	"github.com/wippyai/mediafs/provider"
)

func main() {
	var (
		wasmFile = flag.String("wasm", "", "Path to media-provider guest wasm file")
		oneShot  = flag.String("cmd", "", "Execute a single shell command and exit (e.g. \"open /DCIM/a.jpg 10023\")")
		memPages = flag.Uint("mem", 0, "Guest memory limit in 64KB pages (0 = default)")
		debug    = flag.Bool("debug", false, "Enable debug logging to stderr")
	)
	flag.Parse()

	if *wasmFile == "" {
		fmt.Fprintln(os.Stderr, "Usage: mediafs-shell -wasm <guest.wasm>            (interactive mode)")
		fmt.Fprintln(os.Stderr, "       mediafs-shell -wasm <guest.wasm> -cmd \"open <path> <uid> [w]\"")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Commands: open, create, delete, mkdir, rmdir, opendir, ls, redact, scan")
		os.Exit(1)
	}

	if *debug {
		l, err := zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer l.Sync()
		dispatch.SetLogger(l.Named("dispatch"))
		engine.SetLogger(l.Named("engine"))
		provider.SetLogger(l.Named("provider"))
	}

	if *oneShot != "" {
		if err := runOnce(*wasmFile, uint32(*memPages), *oneShot); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := runInteractive(*wasmFile, uint32(*memPages)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadProvider(wasmFile string, memPages uint32) (*provider.Provider, error) {
	data, err := os.ReadFile(wasmFile)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var opts *provider.Options
	if memPages > 0 {
		opts = &provider.Options{Engine: &engine.Config{MemoryLimitPages: memPages}}
	}
	return provider.New(context.Background(), data, opts)
}

func runOnce(wasmFile string, memPages uint32, command string) error {
	p, err := loadProvider(wasmFile, memPages)
	if err != nil {
		return err
	}
	defer p.Close(context.Background())

	out, err := execCommand(p, strings.Fields(command))
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}
