package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/erazemk/lofoph/internal/client"
	"github.com/erazemk/lofoph/internal/config"
	"github.com/erazemk/lofoph/internal/listing"
	"github.com/erazemk/lofoph/internal/model"
)

var browseFlags struct {
	apiURL  string
	pages   int
	size    int
	filters model.Filters
}

var browseCmd = &cobra.Command{
	Use:   "browse <lost|found>",
	Short: "Print item listings from the API",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !model.IsItemType(args[0]) {
			return fmt.Errorf("unknown item type %q, expected lost or found", args[0])
		}
		cfg, err := config.LoadAPI()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("api-url") {
			cfg.URL = strings.TrimRight(browseFlags.apiURL, "/")
		}
		c, err := client.New(cfg.URL, cfg.Timeout)
		if err != nil {
			return err
		}
		ctrl := listing.New(c, args[0], listing.WithPageSize(browseFlags.size), listing.WithLoadMoreDelay(0))
		return browse(cmd.Context(), cmd.OutOrStdout(), ctrl, browseFlags.filters, browseFlags.pages)
	},
}

func init() {
	rootCmd.AddCommand(browseCmd)
	f := browseCmd.Flags()
	f.StringVar(&browseFlags.apiURL, "api-url", config.DefaultAPIURL, "REST API base URL (overrides API_URL)")
	f.IntVarP(&browseFlags.pages, "pages", "p", 1, "number of pages to fetch")
	f.IntVar(&browseFlags.size, "page-size", config.DefaultPageSize, "items per page")
	f.StringVarP(&browseFlags.filters.Search, "search", "s", "", "search term")
	f.StringVar(&browseFlags.filters.Category, "category", "", "category filter")
	f.StringVar(&browseFlags.filters.City, "city", "", "city filter")
	f.StringVar(&browseFlags.filters.Province, "province", "", "province filter")
}

// browse applies the filters, loads up to pages pages and prints the
// accumulated items.
func browse(ctx context.Context, out io.Writer, ctrl *listing.Controller, filters model.Filters, pages int) error {
	if err := ctrl.ApplyFilters(ctx, filters); err != nil {
		return err
	}
	for i := 1; i < pages; i++ {
		err := ctrl.LoadMore(ctx)
		if errors.Is(err, listing.ErrExhausted) {
			break
		}
		if err != nil {
			return err
		}
	}

	snap := ctrl.Snapshot()
	if len(snap.Items) == 0 {
		fmt.Fprintln(out, "No items found.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tLOCATION\tDATE\tREWARD")
	for _, it := range snap.Items {
		reward := "-"
		if it.ShowReward() {
			reward = fmt.Sprintf("%.0f", *it.Reward)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s, %s\t%s\t%s\n",
			it.ID, it.Name, strings.Join(it.Category, ", "), it.City, it.Province,
			it.Date.Format("2006-01-02"), reward)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if !snap.HasMore {
		fmt.Fprintf(out, "\n%d items, end of list.\n", len(snap.Items))
	} else {
		fmt.Fprintf(out, "\n%d items, more available.\n", len(snap.Items))
	}
	return nil
}
