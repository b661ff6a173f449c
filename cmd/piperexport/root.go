package main

import (
	"errors"

	"github.com/example/piper-export/internal/config"
	"github.com/example/piper-export/internal/logging"
	"github.com/spf13/cobra"
)

var (
	cfgFile   string
	activeCfg config.Config
)

func NewRootCmd() *cobra.Command {
	defaults := config.DefaultConfig()

	cmd := &cobra.Command{
		Use:           "piperexport",
		Short:         "Prepare Piper/VITS ONNX exports for on-device TTS runtimes",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := config.Load(config.LoadOptions{
				Cmd:        cmd,
				ConfigFile: cfgFile,
				Defaults:   defaults,
			})
			if err != nil {
				return err
			}

			activeCfg = loaded
			logging.Setup(loaded.LogLevel, cmd.ErrOrStderr())

			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Optional config file (yaml|toml|json)")
	config.RegisterFlags(cmd.PersistentFlags(), defaults)

	cmd.AddCommand(newMetadataCmd())
	cmd.AddCommand(newTokensCmd())
	cmd.AddCommand(newPrepareCmd())
	cmd.AddCommand(newModelCmd())
	cmd.AddCommand(newDoctorCmd())

	return cmd
}

func requireConfig() (config.Config, error) {
	if activeCfg.Paths.Model == "" {
		return config.Config{}, errors.New("configuration not loaded")
	}

	return activeCfg, nil
}
