package cmd

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"orblocal/internal/orb"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// pollCmd continuously polls one dataset and prints each batch.
var pollCmd = &cobra.Command{
	Use:   "poll <dataset>",
	Short: "Continuously poll one dataset for new records",
	Long: `Poll one dataset at a fixed interval, printing each batch of new
records as a JSON line. The same caller id is reused for every cycle, so each
batch contains only records appended since the previous successful cycle.
Failed cycles are logged and skipped; polling continues until interrupted or
--max-iterations is reached.`,
	Args: cobra.ExactArgs(1),
	Run:  runPoll,
}

func init() {
	rootCmd.AddCommand(pollCmd)
	pollCmd.Flags().Duration("interval", 60*time.Second, "Wait between poll cycles")
	pollCmd.Flags().Int("max-iterations", 0, "Stop after this many cycles (0 = poll forever)")
	pollCmd.Flags().StringArray("param", nil, "Extra query parameter as key=value (repeatable)")
}

func runPoll(cmd *cobra.Command, args []string) {
	dataset := args[0]
	interval, _ := cmd.Flags().GetDuration("interval")
	maxIterations, _ := cmd.Flags().GetInt("max-iterations")
	pairs, _ := cmd.Flags().GetStringArray("param")
	params, ok := parseParams(pairs)
	if !ok {
		log.Fatal().Msg("--param values must be key=value")
	}

	client, err := newClient()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid client configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	observer := orb.ObserverFunc(func(_ context.Context, dataset string, batch []orb.Record) {
		log.Info().Str("dataset", dataset).Int("records", len(batch)).Msg("new records")
	})

	batches, err := client.Poll(ctx, orb.PollOptions{
		Dataset:       dataset,
		Interval:      interval,
		MaxIterations: maxIterations,
		Observer:      observer,
		Params:        params,
	})
	if err != nil {
		log.Fatal().Err(err).Str("dataset", dataset).Msg("cannot start polling")
	}

	log.Info().
		Str("dataset", dataset).
		Str("caller_id", client.CallerID()).
		Dur("interval", interval).
		Msg("polling started")

	enc := json.NewEncoder(os.Stdout)
	for batch := range batches {
		if err := enc.Encode(batch); err != nil {
			log.Error().Err(err).Msg("encode batch")
		}
	}
	log.Info().Str("dataset", dataset).Msg("polling stopped")
}
