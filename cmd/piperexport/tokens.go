package main

import (
	"fmt"

	"github.com/example/piper-export/internal/tokens"
	"github.com/spf13/cobra"
)

func newTokensCmd() *cobra.Command {
	var sidecarPath string
	var outPath string

	cmd := &cobra.Command{
		Use:   "tokens",
		Short: "Generate tokens.txt from the phoneme_id_map of the JSON sidecar",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			res, err := tokens.Generate(tokens.GenerateOptions{
				SidecarPath: firstNonEmpty(sidecarPath, cfg.Paths.Sidecar),
				OutPath:     firstNonEmpty(outPath, cfg.Paths.Tokens),
				Atomic:      cfg.Output.Atomic,
			})
			if err != nil {
				return fmt.Errorf("token generation failed: %w", err)
			}

			return tokens.PrintSummary(cmd.OutOrStdout(), res)
		},
	}

	cmd.Flags().StringVar(&sidecarPath, "sidecar", "", "Piper JSON sidecar (default: paths.sidecar)")
	cmd.Flags().StringVar(&outPath, "out", "", "Output token table (default: paths.tokens)")

	return cmd
}
