package main

import (
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/route-geocoder/internal/address"
)

var reverseCmd = &cobra.Command{
	Use:   "reverse <lat> <lon>",
	Short: "Print the address at a coordinate",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, ok := address.ParseCoordinate(args[0], args[1])
		if !ok {
			return eris.Errorf("invalid coordinate %q, %q", args[0], args[1])
		}
		if err := cfg.Validate("reverse"); err != nil {
			return err
		}

		cand := buildClient(cfg).Reverse(cmd.Context(), c.Lat, c.Lon)
		if cand == nil || cand.DisplayName == "" {
			return eris.New("no address found for the coordinates")
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"display_name": cand.DisplayName,
			"address":      cand.Components,
			"source":       cand.Source,
		})
	},
}

func init() {
	rootCmd.AddCommand(reverseCmd)
}
