package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/trustscore/internal/export"
)

var exportOutput string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a one-off JSONL snapshot of the indexed data",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		rt, err := newRuntime(ctx, false)
		if err != nil {
			return err
		}
		defer rt.close()

		if exportOutput == "" || exportOutput == "-" {
			return export.ExportJSONL(ctx, rt.store, os.Stdout)
		}

		f, err := os.Create(exportOutput)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := export.ExportJSONL(ctx, rt.store, f); err != nil {
			return err
		}
		rt.logger.Info("snapshot written", "path", exportOutput)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "-", "output path (- for stdout)")
}
