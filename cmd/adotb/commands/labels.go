package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/adotb/adotb-go/internal/logging"
	"github.com/adotb/adotb-go/internal/pipeline"
)

// NewLabelsCmd constructs the `adotb labels` command, which prints the
// distinct access labels present in the configured vector store.
func NewLabelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "labels",
		Short: "List the access labels present in the vector store",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			// Label inventory does not embed anything, so the store is
			// opened without an embedding provider.
			pipe := pipeline.NewUploadPipeline()
			if err := pipe.SetVectorDB(ctx, vectorDBConfigFromEnv(0)); err != nil {
				return fmt.Errorf("labels: vector store: %w", err)
			}
			defer func() { _ = pipe.Close() }()

			labels, err := pipe.Store().Labels(ctx)
			if err != nil {
				return fmt.Errorf("labels: %w", err)
			}

			if len(labels) == 0 {
				fmt.Println("no labels found")
				return nil
			}
			for _, l := range labels {
				fmt.Println(l)
			}
			return nil
		},
	}
}
