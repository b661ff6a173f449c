package main

import (
	"fmt"

	"github.com/example/piper-export/internal/config"
	"github.com/example/piper-export/internal/metadata"
	"github.com/example/piper-export/internal/sidecar"
	"github.com/spf13/cobra"
)

func newMetadataCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "metadata",
		Short: "Inspect and rewrite the metadata block of an ONNX model",
	}

	cmd.AddCommand(newMetadataFixCmd())
	cmd.AddCommand(newMetadataShowCmd())

	return cmd
}

func newMetadataFixCmd() *cobra.Command {
	var inPath string
	var outPath string
	var sets []string
	var fromSidecar bool

	cmd := &cobra.Command{
		Use:   "fix",
		Short: "Replace the model metadata with the configured key/value table",
		Long: "Replace the model metadata with the configured key/value table.\n\n" +
			"Existing entries are dropped. The input model is left untouched and the\n" +
			"result is written to --out (default: paths.fixed_model).",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			table, err := metadataTable(cfg, sets, fromSidecar)
			if err != nil {
				return err
			}

			res, err := metadata.Rewrite(metadata.RewriteOptions{
				InPath:  firstNonEmpty(inPath, cfg.Paths.Model),
				OutPath: firstNonEmpty(outPath, cfg.Paths.FixedModel),
				Table:   table,
				Atomic:  cfg.Output.Atomic,
			})
			if err != nil {
				return fmt.Errorf("metadata fix failed: %w", err)
			}

			return metadata.PrintResult(cmd.OutOrStdout(), res)
		},
	}

	addMetadataFlags(cmd, &sets, &fromSidecar)
	cmd.Flags().StringVar(&inPath, "in", "", "Input ONNX model (default: paths.model)")
	cmd.Flags().StringVar(&outPath, "out", "", "Output ONNX model (default: paths.fixed_model)")

	return cmd
}

func addMetadataFlags(cmd *cobra.Command, sets *[]string, fromSidecar *bool) {
	cmd.Flags().StringArrayVar(sets, "set", nil, "Override or add a metadata entry (key=value, repeatable)")
	cmd.Flags().BoolVar(fromSidecar, "from-sidecar", false, "Take sample rate, voice, language and inference settings from the JSON sidecar")
}

// metadataTable resolves the table to write: configured entries, then
// sidecar-derived values, then --set overrides.
func metadataTable(cfg config.Config, sets []string, fromSidecar bool) (metadata.Table, error) {
	table := cfg.Metadata.Clone()

	if fromSidecar {
		sc, err := sidecar.LoadSettings(cfg.Paths.Sidecar)
		if err != nil {
			return nil, fmt.Errorf("read sidecar metadata: %w", err)
		}

		table = metadata.FromSidecar(sc, table)
	}

	overrides, err := metadata.ParseAssignments(sets)
	if err != nil {
		return nil, err
	}

	table = table.Merge(overrides)

	return table, table.Validate()
}

func newMetadataShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show [model.onnx]",
		Short: "Print the metadata block of an ONNX model (default: paths.fixed_model)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			path := cfg.Paths.FixedModel
			if len(args) == 1 {
				path = args[0]
			}

			return metadata.Show(cmd.OutOrStdout(), path)
		},
	}

	return cmd
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}

	return ""
}
