package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/javieronasis1-eng/administracion-rentas/internal/export"
)

var (
	exportDataset string
	exportFormat  string
	exportOut     string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write ledger data as CSV, YAML or JSON",
	Long: `Export one dataset of the local ledger.

Datasets: units, payments, services, revenue.
Formats:  csv, yaml, json.

Example:
  rentas export --dataset payments --format csv --out pagos.csv
  rentas export --dataset revenue --format yaml`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportDataset, "dataset", "d", string(export.DatasetPayments), "dataset to export")
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", string(export.FormatCSV), "output format")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file (default: stdout)")
}

func runExport(cmd *cobra.Command, args []string) error {
	dataset, err := export.ParseDataset(exportDataset)
	if err != nil {
		return err
	}
	format, err := export.ParseFormat(exportFormat)
	if err != nil {
		return err
	}

	l, err := readLedger(cmd.Context())
	if err != nil {
		return err
	}

	var w io.Writer = cmd.OutOrStdout()
	if exportOut != "" {
		f, err := os.Create(exportOut)
		if err != nil {
			return fmt.Errorf("create %s: %w", exportOut, err)
		}
		defer f.Close()
		w = f
	}

	if err := export.Write(cmd.Context(), w, l, dataset, format); err != nil {
		return err
	}
	if exportOut != "" {
		logger.Info("Export written", "dataset", dataset, "format", format, "path", exportOut)
	}
	return nil
}
