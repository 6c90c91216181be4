package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/proplens/proplens/pkg/geocode"
)

var geocodeCmd = &cobra.Command{
	Use:   "geocode <address>",
	Short: "List geocoding candidates for an address",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cfg)
		if err != nil {
			return err
		}
		candidates, err := env.Geocoder.Search(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if len(candidates) == 0 {
			fmt.Fprintln(os.Stdout, "no matches")
			return nil
		}
		best, _ := geocode.BestMatch(args[0], candidates)
		for i, c := range candidates {
			marker := " "
			if i == best {
				marker = "*"
			}
			fmt.Fprintf(os.Stdout, "%s %d  %s  (%.5f, %.5f)  match %.2f\n",
				marker, i, c.DisplayName, c.Lat, c.Lon, geocode.Similarity(args[0], c.DisplayName))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(geocodeCmd)
}
