package cmd

import (
	"os"
	"strings"
	"time"

	"orblocal/internal/orb"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// rootCmd is the base command; subcommands attach themselves in their init.
var rootCmd = &cobra.Command{
	Use:   "orblocal",
	Short: "Client for the Orb sensor local data API",
	Long: `orblocal fetches network quality datasets (scores, responsiveness,
web responsiveness, speed tests, Wi-Fi link metrics) from an Orb sensor's
local data API. Reusing the same caller id across calls returns only records
appended since the previous call.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		initLogging()
	},
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("host", orb.DefaultHost, "Orb sensor hostname or IP")
	rootCmd.PersistentFlags().Int("port", orb.DefaultPort, "Orb sensor API port")
	rootCmd.PersistentFlags().String("caller-id", "", "Caller id tracking the delivery cursor (default: random per invocation)")
	rootCmd.PersistentFlags().String("client-id", "", "Client id sent as User-Agent (default: orblocal/"+orb.Version+")")
	rootCmd.PersistentFlags().Duration("timeout", orb.DefaultTimeout, "Per-fetch request timeout")
	rootCmd.PersistentFlags().Bool("https", false, "Use HTTPS instead of HTTP")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "console", "Log format: console or json")

	_ = viper.BindPFlag("host", rootCmd.PersistentFlags().Lookup("host"))
	_ = viper.BindPFlag("port", rootCmd.PersistentFlags().Lookup("port"))
	_ = viper.BindPFlag("caller-id", rootCmd.PersistentFlags().Lookup("caller-id"))
	_ = viper.BindPFlag("client-id", rootCmd.PersistentFlags().Lookup("client-id"))
	_ = viper.BindPFlag("timeout", rootCmd.PersistentFlags().Lookup("timeout"))
	_ = viper.BindPFlag("https", rootCmd.PersistentFlags().Lookup("https"))
	_ = viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log-format", rootCmd.PersistentFlags().Lookup("log-format"))

	_ = viper.BindEnv("host", "ORB_HOST")
	_ = viper.BindEnv("port", "ORB_PORT")
	_ = viper.BindEnv("caller-id", "ORB_CALLER_ID")
	_ = viper.BindEnv("client-id", "ORB_CLIENT_ID")
	_ = viper.BindEnv("timeout", "ORB_TIMEOUT")
	_ = viper.BindEnv("https", "ORB_USE_HTTPS")
}

func initLogging() {
	level := zerolog.InfoLevel
	switch strings.ToLower(viper.GetString("log-level")) {
	case "debug":
		level = zerolog.DebugLevel
	case "warn", "warning":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}
	zerolog.SetGlobalLevel(level)

	if strings.ToLower(viper.GetString("log-format")) == "json" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}

// newClient builds a client from the bound flags and environment.
func newClient() (*orb.Client, error) {
	return orb.New(orb.Config{
		Host:     viper.GetString("host"),
		Port:     viper.GetInt("port"),
		CallerID: viper.GetString("caller-id"),
		ClientID: viper.GetString("client-id"),
		Timeout:  viper.GetDuration("timeout"),
		UseHTTPS: viper.GetBool("https"),
	})
}

// parseParams turns repeated key=value flags into a param map.
func parseParams(pairs []string) (map[string]string, bool) {
	if len(pairs) == 0 {
		return nil, true
	}
	params := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, false
		}
		params[k] = v
	}
	return params, true
}
