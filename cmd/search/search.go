// Package search implements the one-shot command-line search.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/amt2283/hunterleaf-go/internal/aggregator"
	"github.com/amt2283/hunterleaf-go/internal/app"
	"github.com/amt2283/hunterleaf-go/internal/conf"
	"github.com/amt2283/hunterleaf-go/internal/geo"
	"github.com/amt2283/hunterleaf-go/internal/observation"
)

type options struct {
	address   string
	latitude  float64
	longitude float64
	radiusKm  float64
	group     string
	category  string
	source    string
	order     string
	page      int
	summaries bool
}

// Command creates the search command.
func Command(settings *conf.Settings) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search plant observations around a location",
		Long:  "Searches the configured sources around an address or coordinate pair and prints one result page as JSON.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(settings, opts)
		},
	}

	cmd.Flags().StringVar(&opts.address, "address", "", "Address to geocode as the search center")
	cmd.Flags().Float64Var(&opts.latitude, "lat", 0, "Latitude of the search center")
	cmd.Flags().Float64Var(&opts.longitude, "lng", 0, "Longitude of the search center")
	cmd.Flags().Float64Var(&opts.radiusKm, "radius", 10, "Search radius in kilometers")
	cmd.Flags().StringVar(&opts.group, "group", "", "Interest group whose genera are queried")
	cmd.Flags().StringVar(&opts.category, "category", "", "Taxonomic category to filter by (angiosperma, helecho, ...)")
	cmd.Flags().StringVar(&opts.source, "source", "", "Restrict the search to a single source")
	cmd.Flags().StringVar(&opts.order, "order", "identifications", "Sort order: identifications, date_asc or date_desc")
	cmd.Flags().IntVar(&opts.page, "page", 1, "Result page to print")
	cmd.Flags().BoolVar(&opts.summaries, "summaries", false, "Include encyclopedia summaries")

	return cmd
}

func run(settings *conf.Settings, opts *options) error {
	application, err := app.New(settings)
	if err != nil {
		return err
	}
	defer application.Close()

	ctx := context.Background()

	lat, lng := opts.latitude, opts.longitude
	if opts.address != "" {
		lat, lng, err = application.Geocoder.Geocode(ctx, opts.address)
		if err != nil {
			return err
		}
	}

	var terms []string
	if opts.group != "" {
		terms, err = application.Groups.Genera(opts.group)
		if err != nil {
			return err
		}
	}

	order := aggregator.OrderByIdentifications
	switch opts.order {
	case "date_asc":
		order = aggregator.OrderByDateAsc
	case "date_desc":
		order = aggregator.OrderByDateDesc
	case "identifications":
	default:
		return fmt.Errorf("unknown order %q", opts.order)
	}

	page, err := application.Aggregator.Search(ctx, aggregator.Request{
		Area:         geo.PointQuery(lat, lng, opts.radiusKm),
		Terms:        terms,
		Category:     opts.category,
		SourceFilter: sourceFilter(opts.source),
		OrderBy:      order,
		Page:         opts.page,
		Summaries:    opts.summaries,
	})
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(page)
}

// sourceFilter maps the flag value to a source name, tolerating case
// differences on the iNaturalist spelling.
func sourceFilter(name string) observation.Source {
	switch strings.ToLower(name) {
	case "":
		return ""
	case "inaturalist":
		return observation.SourceINaturalist
	case "gbif":
		return observation.SourceGBIF
	case "trefle":
		return observation.SourceTrefle
	case "plantnet":
		return observation.SourcePlantNet
	default:
		return observation.Source(name)
	}
}
