// Package commands defines all Cobra CLI commands for the adotb binary.
package commands

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/adotb/adotb-go/internal/audit"
	"github.com/adotb/adotb-go/internal/config"
	"github.com/adotb/adotb-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "adotb",
		Short: "adotb: a retrieval-augmented chatbot backend over curated documents",
		Long: `adotb serves a chatbot that answers questions strictly from a curated
document collection. Documents are uploaded with access labels, embedded,
and stored in a vector database; chat sessions run over a websocket and
every answer cites the source documents it was grounded on.

Model provider is selected via the MODEL_PROVIDER environment variable
or a YAML config file (~/.adotb/config.yaml).
See 'adotb --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// A local .env file is optional; absence is not an error.
			_ = godotenv.Load()

			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.adotb/config.yaml)")

	root.AddCommand(
		NewServeCmd(),
		NewIngestCmd(),
		NewLabelsCmd(),
		NewVersionCmd(),
	)

	return root
}
