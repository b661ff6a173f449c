package main

import (
	"fmt"
	"io"
	"os"

	"github.com/example/piper-export/internal/doctor"
	"github.com/example/piper-export/internal/model"
	"github.com/example/piper-export/internal/onnxmeta"
	"github.com/example/piper-export/internal/sidecar"
	"github.com/spf13/cobra"
)

func newDoctorCmd() *cobra.Command {
	var skipRuntime bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check that the export inputs and ONNX Runtime are in place",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			hasEspeak, _ := cfg.Metadata.Get("has_espeak")

			dcfg := doctor.Config{
				ModelPath:      cfg.Paths.Model,
				SidecarPath:    cfg.Paths.Sidecar,
				EspeakDataDir:  cfg.Paths.EspeakData,
				SkipEspeakData: hasEspeak == "0",
			}

			if !skipRuntime {
				dcfg.Runtime = func() (string, string, error) {
					info, err := model.DetectRuntime(cfg.Runtime)
					return info.LibraryPath, info.Version, err
				}
			}

			w := cmd.OutOrStdout()

			result := doctor.Run(dcfg, w)
			checkContents(&result, w, "model contents", cfg.Paths.Model, func(p string) error {
				_, err := onnxmeta.Load(p)
				return err
			})
			checkContents(&result, w, "phoneme_id_map", cfg.Paths.Sidecar, func(p string) error {
				_, err := sidecar.Load(p)
				return err
			})

			if result.Failed() {
				return fmt.Errorf("doctor found %d problem(s)", len(result.Failures()))
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&skipRuntime, "skip-runtime", false, "Skip the ONNX Runtime library check")

	return cmd
}

// checkContents runs parse on path when the file exists. Missing files are
// already reported by doctor.Run.
func checkContents(res *doctor.Result, w io.Writer, label, path string, parse func(string) error) {
	if _, err := os.Stat(path); err != nil {
		return
	}

	err := parse(path)
	if err != nil {
		res.AddFailure(fmt.Sprintf("%s: %v", label, err))
		_, _ = fmt.Fprintf(w, "%s %s: %v\n", doctor.FailMark, label, err)

		return
	}

	_, _ = fmt.Fprintf(w, "%s %s: ok\n", doctor.PassMark, label)
}
