package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/erazemk/lofoph/internal/refdata"
)

var citiesCmd = &cobra.Command{
	Use:   "cities [province]",
	Short: "List provinces, or the cities of one province",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d := refdata.Default()
		if len(args) == 0 {
			return listProvinces(cmd.OutOrStdout(), d)
		}
		return listCities(cmd.OutOrStdout(), d, args[0])
	},
}

func init() {
	rootCmd.AddCommand(citiesCmd)
}

func listProvinces(out io.Writer, d *refdata.Dataset) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tPROVINCE\tREGION")
	for _, p := range d.Provinces {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", p.Key, p.Name, p.Region)
	}
	return tw.Flush()
}

func listCities(out io.Writer, d *refdata.Dataset, province string) error {
	if !d.HasProvince(province) {
		return fmt.Errorf("unknown province %q", province)
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tKIND")
	for _, c := range d.CitiesIn(province) {
		kind := "municipality"
		if c.City {
			kind = "city"
		}
		fmt.Fprintf(tw, "%s\t%s\n", c.Name, kind)
	}
	return tw.Flush()
}
