// Command stylistlive runs a live voice and vision conversation with the
// Gemini Live API from a LiveSession manifest.
package main

import (
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/RahulMirji/Cloth-Recommendation-sub001/runtime/logger"
)

// Set by the linker.
var (
	version = "dev"
	commit  = "none"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "stylistlive",
		Short:         "Live voice and camera session with an AI stylist",
		Version:       version + " (" + commit + ")",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			envFile, _ := cmd.Flags().GetString("env-file")
			if err := loadEnvFile(envFile); err != nil {
				return err
			}
			if cmd.Flags().Changed("verbose") {
				verbose, _ := cmd.Flags().GetBool("verbose")
				logger.SetVerbose(verbose)
			}
			return nil
		},
	}
	root.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
	root.PersistentFlags().String("env-file", ".env", "Environment file to load (missing files are ignored)")
	root.PersistentFlags().StringP("config", "c", "live.yaml", "LiveSession manifest")

	root.AddCommand(newRunCmd(), newValidateCmd())
	return root
}

// loadEnvFile loads path without overriding variables already set.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
