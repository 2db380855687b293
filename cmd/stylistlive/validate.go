package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/RahulMirji/Cloth-Recommendation-sub001/pkg/config"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate a LiveSession manifest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("config")
			cfg, err := config.LoadLiveSession(path)
			if err != nil {
				return err
			}
			opts := cfg.Spec.ToOptions()
			if err := opts.Validate(); err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			name := cfg.Metadata.Name
			if name == "" {
				name = path
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is valid (model %s, voice %q, video %t)\n",
				name, opts.Model, opts.Voice, opts.VideoEnabled)
			return nil
		},
	}
}
