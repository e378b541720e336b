package cmd

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"orblocal/internal/orb"
	"orblocal/internal/state"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// webCmd runs the poller in the background and serves its status over HTTP.
var webCmd = &cobra.Command{
	Use:   "web",
	Short: "Poll in the background and serve the status over HTTP",
	Long: `Run the poller as a background daemon and expose its status at
/status as JSON. The status reports the dataset, the caller id tracking the
delivery cursor, and batch delivery counters.`,
	Run: runWeb,
}

func init() {
	rootCmd.AddCommand(webCmd)
	webCmd.Flags().String("dataset", "scores_1m", "Dataset to poll")
	webCmd.Flags().Duration("interval", 60*time.Second, "Wait between poll cycles")
	webCmd.Flags().String("listen", ":8080", "HTTP listen address for the status API")

	_ = viper.BindPFlag("dataset", webCmd.Flags().Lookup("dataset"))
	_ = viper.BindPFlag("interval", webCmd.Flags().Lookup("interval"))
	_ = viper.BindPFlag("listen", webCmd.Flags().Lookup("listen"))

	_ = viper.BindEnv("dataset", "ORB_WEB_DATASET")
	_ = viper.BindEnv("interval", "ORB_WEB_INTERVAL")
	_ = viper.BindEnv("listen", "ORB_WEB_LISTEN")
}

func runWeb(cmd *cobra.Command, args []string) {
	_ = viper.BindPFlags(cmd.Flags()) // Re-bind to ensure flag values are correct
	dataset := viper.GetString("dataset")
	interval := viper.GetDuration("interval")
	listen := viper.GetString("listen")

	client, err := newClient()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid client configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	batches, err := client.Poll(ctx, orb.PollOptions{
		Dataset:  dataset,
		Interval: interval,
	})
	if err != nil {
		log.Fatal().Err(err).Str("dataset", dataset).Msg("cannot start polling")
	}

	state.Update(state.Status{
		Dataset:   dataset,
		CallerID:  client.CallerID(),
		StartedAt: time.Now(),
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(state.Get()); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})

	server := &http.Server{Addr: listen, Handler: mux}
	go func() {
		<-ctx.Done()
		_ = server.Close()
	}()
	go func() {
		log.Info().Str("addr", listen).Msg("status API listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("status API server failed")
		}
	}()

	log.Info().
		Str("dataset", dataset).
		Str("caller_id", client.CallerID()).
		Dur("interval", interval).
		Msg("background polling started")

	for batch := range batches {
		state.RecordBatch(len(batch), time.Now())
		if len(batch) > 0 {
			log.Info().Str("dataset", dataset).Int("records", len(batch)).Msg("new records")
		}
	}
	log.Info().Msg("background polling stopped")
}
