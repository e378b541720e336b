package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"orblocal/internal/orb"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// fetchCmd performs a single dataset fetch and prints the result.
var fetchCmd = &cobra.Command{
	Use:   "fetch <dataset>",
	Short: "Fetch one dataset from the sensor",
	Long: `Fetch one dataset and print it to stdout. Known datasets:

  ` + strings.Join(orb.DatasetNames(), "\n  ") + `

With --format json (the default) records are validated and printed as a JSON
array; with --format jsonl the newline-delimited response is printed as-is.`,
	Args: cobra.ExactArgs(1),
	Run:  runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)
	fetchCmd.Flags().String("format", "json", "Response format: json or jsonl")
	fetchCmd.Flags().StringArray("param", nil, "Extra query parameter as key=value (repeatable)")
}

func runFetch(cmd *cobra.Command, args []string) {
	dataset := args[0]
	format, _ := cmd.Flags().GetString("format")
	pairs, _ := cmd.Flags().GetStringArray("param")
	params, ok := parseParams(pairs)
	if !ok {
		log.Fatal().Msg("--param values must be key=value")
	}

	client, err := newClient()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid client configuration")
	}

	opts := orb.FetchOptions{Params: params}
	switch format {
	case "json":
		records, err := client.GetDataset(cmd.Context(), dataset, opts)
		if err != nil {
			log.Fatal().Err(err).Str("dataset", dataset).Msg("fetch failed")
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(records); err != nil {
			log.Fatal().Err(err).Msg("encode records")
		}
	case "jsonl":
		text, err := client.GetDatasetJSONL(cmd.Context(), dataset, opts)
		if err != nil {
			log.Fatal().Err(err).Str("dataset", dataset).Msg("fetch failed")
		}
		fmt.Print(text)
	default:
		log.Fatal().Str("format", format).Msg("format must be json or jsonl")
	}
}
