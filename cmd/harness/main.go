package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Renzios/sharerapy-harness/internal/app"
	"github.com/Renzios/sharerapy-harness/internal/config"
	"github.com/Renzios/sharerapy-harness/pkg/logger"
)

var (
	configDir string
	mockMode  bool
	verbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "harness",
	Short: "Run patient, therapist, report, auth and lookup operations against the test harness.",
	Long: `harness calls the same operations the HTTP server exposes and prints the
result as JSON. Every invocation is a separate run with its own identifier
ledger and sessions.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "directory holding config.yaml")
	rootCmd.PersistentFlags().BoolVar(&mockMode, "mock", false, "answer every call locally")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log to stderr")

	rootCmd.AddCommand(
		newEntityCommand(patients),
		newEntityCommand(therapists),
		newEntityCommand(reports),
		newAuthCommand(),
		newLookupsCommand(),
		newEventsCommand(),
	)
}

// open assembles a harness for one command.
func open(ctx context.Context) (*app.App, error) {
	var dirs []string
	if configDir != "" {
		dirs = append(dirs, configDir)
	}
	cfg, err := config.LoadConfig(dirs...)
	if err != nil {
		return nil, err
	}
	if mockMode {
		cfg.Backend.Mode = config.ModeMock
	}

	l := zerolog.Nop()
	if verbose {
		cfg.Log.Output = os.Stderr
		cfg.Log.Format = "console"
		l = logger.New(cfg.Log)
	}
	return app.New(ctx, cfg, l)
}

// run opens a harness, runs fn and prints its result.
func run(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) (interface{}, error)) error {
	ctx := cmd.Context()
	a, err := open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	v, err := fn(ctx, a)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), v)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// readData returns the --data flag, reading stdin when it is "-".
func readData(cmd *cobra.Command, data string) ([]byte, error) {
	if data == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	if data == "" {
		return nil, fmt.Errorf("--data is required")
	}
	return []byte(data), nil
}
