// argval trains and applies multi-label human value classifiers over an
// annotated argument corpus, one taxonomy level at a time.
//
// Usage:
//
//	argval train   -d <data-dir> -m <model-dir> [-c bso] [-l 1,2,3] [-v] [--force]
//	argval predict -d <data-dir> -m <model-dir> -o <output-dir> [-c bso] [-l 1,2,3]
//	argval history --ledger <path> [--level 2] [--method SVM]
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(os.Stderr, "\nreceived %v, stopping after the current level...\n", sig)
		cancel()
	}()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "argval: %v\n", err)
		os.Exit(2)
	}
}
