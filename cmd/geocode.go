package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/rotisserie/eris"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/route-geocoder/internal/reconcile"
	"github.com/sells-group/route-geocoder/internal/sheet"
)

var (
	geocodeOut         string
	geocodeFormat      string
	geocodeSheet       string
	geocodeConcurrency int
)

var geocodeCmd = &cobra.Command{
	Use:   "geocode <file>",
	Short: "Geocode and reconcile an address spreadsheet (.xlsx, .csv or .json)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		format, err := resolveFormat(geocodeOut, geocodeFormat)
		if err != nil {
			return err
		}

		inputs, err := sheet.ReadAddresses(args[0], sheet.XLSXOptions{SheetName: geocodeSheet})
		if err != nil {
			return eris.Wrap(err, "read addresses")
		}
		zap.L().Info("addresses loaded", zap.String("file", args[0]), zap.Int("rows", len(inputs)))

		if geocodeConcurrency > 0 {
			cfg.Reconcile.Concurrency = geocodeConcurrency
		}

		var extra []reconcile.Option
		if isatty.IsTerminal(os.Stderr.Fd()) {
			bar := progressbar.NewOptions(len(inputs),
				progressbar.OptionSetDescription("Geocoding"),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionShowCount(),
				progressbar.OptionClearOnFinish(),
			)
			extra = append(extra, reconcile.WithProgress(func() { _ = bar.Add(1) }))
		}

		env, err := initGeocoder(ctx, "geocode", extra...)
		if err != nil {
			return err
		}
		defer env.Close()

		results, runErr := env.Engine.Run(ctx, inputs)
		if err := writeOutput(cmd.OutOrStdout(), geocodeOut, format, results); err != nil {
			return err
		}
		if runErr != nil {
			return eris.Wrapf(runErr, "geocode interrupted after %d of %d rows", len(results), len(inputs))
		}

		zap.L().Info("geocode complete", zap.String("summary", reconcile.Summary(results)))
		return nil
	},
}

func init() {
	geocodeCmd.Flags().StringVarP(&geocodeOut, "out", "o", "", "output file (default stdout)")
	geocodeCmd.Flags().StringVar(&geocodeFormat, "format", "", "output format: json, xlsx or geojson (default from --out extension)")
	geocodeCmd.Flags().StringVar(&geocodeSheet, "sheet", "", "worksheet name for .xlsx input (default first sheet)")
	geocodeCmd.Flags().IntVar(&geocodeConcurrency, "concurrency", 0, "rows reconciled in parallel (default from config)")
	rootCmd.AddCommand(geocodeCmd)
}
