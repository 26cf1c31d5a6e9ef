package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/weftworks/weft/pkg/schema"
)

var watchCmd = &cobra.Command{
	Use:   "watch [app.yaml]",
	Short: "Watch an app bundle and revalidate it on every change",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	path := args[0]

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watcher: %w", err)
	}
	defer w.Close()
	if err := w.Add(path); err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}

	fmt.Printf("Watching %s (ctrl+c to stop)\n", path)
	reportValidation(path)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
				reportValidation(path)
			}
		case <-w.Errors:
			// Ignore watcher errors.
		case <-sig:
			return nil
		}
	}
}

// reportValidation prints a one-line validation summary with details
// for every finding.
func reportValidation(path string) {
	ts := time.Now().Format("15:04:05")
	_, errs := schema.ValidateFile(path)
	nErr := countValidationErrors(errs)
	nWarn := len(errs) - nErr
	switch {
	case nErr > 0:
		fmt.Printf("%s  ✗ %d error(s), %d warning(s)\n", ts, nErr, nWarn)
		for _, e := range errs {
			if e.Severity != "warning" {
				fmt.Printf("        [%s] %s\n", e.Phase, e.Message)
			}
		}
	case nWarn > 0:
		fmt.Printf("%s  ⚠ valid with %d warning(s)\n", ts, nWarn)
		for _, e := range errs {
			fmt.Printf("        [%s] %s\n", e.Phase, e.Message)
		}
	default:
		fmt.Printf("%s  ✓ valid\n", ts)
	}
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
