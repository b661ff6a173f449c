package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/example/piper-export/internal/metadata"
	"github.com/example/piper-export/internal/model"
	"github.com/example/piper-export/internal/sidecar"
	"github.com/example/piper-export/internal/tokens"
	"github.com/spf13/cobra"
)

func newPrepareCmd() *cobra.Command {
	var outDir string
	var sets []string
	var fromSidecar bool
	var verify bool

	cmd := &cobra.Command{
		Use:   "prepare",
		Short: "Write the fixed model and tokens.txt into one runtime model directory",
		Long: "Write the fixed model and tokens.txt into one runtime model directory.\n\n" +
			"Runs `metadata fix` and then `tokens`, naming the outputs after\n" +
			"paths.fixed_model and paths.tokens inside --out-dir.",
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

			// The sidecar is read up front so a bad one leaves out-dir untouched.
			sc, err := sidecar.Load(cfg.Paths.Sidecar)
			if err != nil {
				return fmt.Errorf("token generation failed: %w", err)
			}

			err = os.MkdirAll(outDir, 0o755)
			if err != nil {
				return fmt.Errorf("create out dir: %w", err)
			}

			w := cmd.OutOrStdout()
			fixedPath := filepath.Join(outDir, filepath.Base(cfg.Paths.FixedModel))

			mres, err := metadata.Rewrite(metadata.RewriteOptions{
				InPath:  cfg.Paths.Model,
				OutPath: fixedPath,
				Table:   table,
				Atomic:  cfg.Output.Atomic,
			})
			if err != nil {
				return fmt.Errorf("metadata fix failed: %w", err)
			}

			if err := metadata.PrintResult(w, mres); err != nil {
				return err
			}

			tres := tokens.Result{
				OutPath: filepath.Join(outDir, filepath.Base(cfg.Paths.Tokens)),
				Tokens:  tokens.Build(sc),
			}

			err = tokens.Save(tres.OutPath, cfg.Output.Atomic, tres.Tokens)
			if err != nil {
				return fmt.Errorf("token generation failed: %w", err)
			}

			if err := tokens.PrintSummary(w, tres); err != nil {
				return err
			}

			if !verify {
				return nil
			}

			err = model.VerifyLoadable(model.VerifyOptions{
				ModelPath: fixedPath,
				Runtime:   cfg.Runtime,
				Stdout:    w,
				Stderr:    cmd.ErrOrStderr(),
			})
			if err != nil {
				return fmt.Errorf("model verify failed: %w", err)
			}

			return nil
		},
	}

	addMetadataFlags(cmd, &sets, &fromSidecar)
	cmd.Flags().StringVar(&outDir, "out-dir", "exported", "Directory for the runtime model files")
	cmd.Flags().BoolVar(&verify, "verify", false, "Load the fixed model with ONNX Runtime afterwards")

	return cmd
}
