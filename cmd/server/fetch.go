package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var fetchModelCmd = &cobra.Command{
	Use:   "fetch-model",
	Short: "Download the model file if it is not present",
	RunE: func(cmd *cobra.Command, args []string) error {
		downloaded, err := ensureModel(cmd.Context(), cfg, newLogger())
		if err != nil {
			return err
		}
		if downloaded {
			fmt.Fprintf(cmd.OutOrStdout(), "downloaded %s\n", cfg.Model.Path)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "%s already present\n", cfg.Model.Path)
		}
		return nil
	},
}
