package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	app "github.com/okian/wcalive/internal/app"
	"github.com/okian/wcalive/internal/simulate"
	"github.com/okian/wcalive/pkg/logger"
)

const defaultRunTimeout = 10 * time.Minute

var (
	cfg        = simulate.NewConfig()
	runTimeout time.Duration
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Drive a wcalive server with synthetic competition rounds",
	Long: `Generates rounds with random formats, cutoffs and time limits, submits
plausible attempts for every competitor and checks the stored rankings
against results computed locally.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := logger.Init(); err != nil {
			return fmt.Errorf("initialize logging: %w", err)
		}
		if verbose {
			return logger.SetLevelString("debug")
		}
		return nil
	},
	RunE: run,
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&cfg.BaseURL, "url", cfg.BaseURL, "Base URL of the service")
	f.IntVar(&cfg.Rounds, "rounds", cfg.Rounds, "Number of rounds to generate")
	f.IntVar(&cfg.Competitors, "competitors", cfg.Competitors, "Competitors per round")
	f.IntVarP(&cfg.Workers, "workers", "w", cfg.Workers, "Concurrent requests in flight")
	f.Float64Var(&cfg.Rate, "rate", cfg.Rate, "Requests per second, 0 for unlimited")
	f.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "HTTP request timeout")
	f.DurationVar(&cfg.Settle, "settle", cfg.Settle, "How long to wait for results to be stored")
	f.IntVar(&cfg.TopN, "top", cfg.TopN, "Rows fetched per round when checking order")
	f.IntVar(&cfg.Replays, "replays", cfg.Replays, "Accepted submissions to resend as duplicates")
	f.Int64Var(&cfg.Seed, "seed", cfg.Seed, "Generator seed")
	f.StringVarP(&cfg.OutputFile, "output", "o", "", "Write the generated rounds to this JSON file")
	f.DurationVar(&runTimeout, "run-timeout", defaultRunTimeout, "Overall time allowed for the run")
	f.BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	report, err := simulate.Run(ctx, cfg, app.New(app.WithLogger(logger.Named("evaluator"))))
	if report != nil {
		for _, m := range report.Mismatches {
			cmd.PrintErrln(m.String())
		}
		cmd.Printf("rounds=%d generated=%d accepted=%d duplicate=%d failed=%d replayed=%d verified=%d mismatches=%d duration=%s\n",
			report.Rounds, report.Generated, report.Accepted, report.Duplicate, report.Failed,
			report.Replayed, report.Verified, len(report.Mismatches), report.Duration)
	}
	return err
}
