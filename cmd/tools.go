package cmd

import (
	"fmt"

	"orblocal/internal/tools"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Inspect and invoke the agent-facing tools",
}

var toolsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the registered tools",
	Run: func(cmd *cobra.Command, args []string) {
		client, err := newClient()
		if err != nil {
			log.Fatal().Err(err).Msg("invalid client configuration")
		}
		for _, t := range tools.NewRegistry(client).List() {
			fmt.Printf("%s\n  %s\n", t.Name, t.Description)
		}
	},
}

var toolsCallCmd = &cobra.Command{
	Use:   "call <name> [args-json]",
	Short: "Invoke one tool with JSON arguments",
	Args:  cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		client, err := newClient()
		if err != nil {
			log.Fatal().Err(err).Msg("invalid client configuration")
		}
		toolArgs := ""
		if len(args) == 2 {
			toolArgs = args[1]
		}
		result, err := tools.NewRegistry(client).Call(cmd.Context(), args[0], toolArgs)
		if err != nil {
			log.Fatal().Err(err).Str("tool", args[0]).Msg("tool call failed")
		}
		fmt.Println(result)
	},
}

func init() {
	rootCmd.AddCommand(toolsCmd)
	toolsCmd.AddCommand(toolsListCmd)
	toolsCmd.AddCommand(toolsCallCmd)
}
