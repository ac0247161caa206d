package main

import (
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/route-geocoder/internal/address"
	"github.com/sells-group/route-geocoder/internal/model"
	"github.com/sells-group/route-geocoder/internal/sheet"
	"github.com/sells-group/route-geocoder/internal/store"
)

var (
	learnSheet string
	learnLimit int
)

var learnCmd = &cobra.Command{
	Use:   "learn",
	Short: "Manage operator-confirmed coordinates",
}

var learnImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Store every row with a valid coordinate as a learned location",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		inputs, err := sheet.ReadAddresses(args[0], sheet.XLSXOptions{SheetName: learnSheet})
		if err != nil {
			return eris.Wrap(err, "read addresses")
		}

		st, err := requireStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		locs, skipped := learnedFromInputs(inputs)
		n, err := st.PutLocations(ctx, locs)
		if err != nil {
			return eris.Wrap(err, "import learned locations")
		}

		zap.L().Info("learned locations imported",
			zap.String("file", args[0]),
			zap.Int64("stored", n),
			zap.Int("skipped", skipped),
		)
		return nil
	},
}

var learnListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the most recently learned locations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, err := requireStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		locs, err := st.ListLocations(cmd.Context(), learnLimit)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(locs)
	},
}

func requireStore(cmd *cobra.Command) (store.Store, error) {
	if err := cfg.Validate("learn"); err != nil {
		return nil, err
	}
	st, err := initStore(cmd.Context(), cfg)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, eris.New("store.driver is required for learned locations (GEOCODER_STORE_DRIVER)")
	}
	return st, nil
}

// learnedFromInputs converts rows carrying a valid operator coordinate.
func learnedFromInputs(inputs []model.AddressInput) ([]model.LearnedLocation, int) {
	locs := make([]model.LearnedLocation, 0, len(inputs))
	skipped := 0
	for _, in := range inputs {
		c, ok := address.ParseCoordinate(string(in.Latitude), string(in.Longitude))
		if !ok || in.RawAddress == "" {
			skipped++
			continue
		}
		locs = append(locs, store.NewLocation(in, c))
	}
	return locs, skipped
}

func init() {
	learnImportCmd.Flags().StringVar(&learnSheet, "sheet", "", "worksheet name for .xlsx input (default first sheet)")
	learnListCmd.Flags().IntVar(&learnLimit, "limit", 100, "maximum number of locations")
	learnCmd.AddCommand(learnImportCmd, learnListCmd)
	rootCmd.AddCommand(learnCmd)
}
