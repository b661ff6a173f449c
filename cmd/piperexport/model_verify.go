package main

import (
	"fmt"

	"github.com/example/piper-export/internal/model"
	"github.com/spf13/cobra"
)

func newModelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "model",
		Short: "Check exported models against ONNX Runtime",
	}

	cmd.AddCommand(newModelVerifyCmd())

	return cmd
}

func newModelVerifyCmd() *cobra.Command {
	var ortAPIVersion uint32

	cmd := &cobra.Command{
		Use:   "verify [model.onnx]",
		Short: "Load a model with ONNX Runtime to confirm it is still usable (default: paths.fixed_model)",
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

			rt := cfg.Runtime
			if ortAPIVersion != 0 {
				rt.ORTAPIVersion = ortAPIVersion
			}

			err = model.VerifyLoadable(model.VerifyOptions{
				ModelPath: path,
				Runtime:   rt,
				Stdout:    cmd.OutOrStdout(),
				Stderr:    cmd.ErrOrStderr(),
			})
			if err != nil {
				return fmt.Errorf("model verify failed: %w", err)
			}

			return nil
		},
	}

	cmd.Flags().Uint32Var(&ortAPIVersion, "ort-api-version", 0, "ONNX Runtime C API version (default: runtime.ort_api_version)")

	return cmd
}
