package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dpup/saferoute/server/internal/cache"
	"github.com/dpup/saferoute/server/internal/cameras"
	"github.com/dpup/saferoute/server/internal/clients/nominatim"
	"github.com/dpup/saferoute/server/internal/lib/advisory"
	"github.com/dpup/saferoute/server/internal/planner"
	"github.com/dpup/saferoute/server/internal/services"
)

type planOptions struct {
	from         string
	to           string
	alternatives int
	output       string
	advisory     bool
}

func newPlanCmd(root *rootOptions) *cobra.Command {
	opts := &planOptions{}

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Plan a trip and print the scored routes",
		Example: `  routeplan plan --from "Salt Lake City, UT" --to "Park City, UT"
  routeplan plan --from -111.891,40.7608 --to -111.498,40.6461 --output kml > trip.kml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.output != "json" && opts.output != "kml" {
				return fmt.Errorf("unknown output format %q", opts.output)
			}
			return runPlan(cmd, root, opts)
		},
	}

	cmd.Flags().StringVar(&opts.from, "from", "", "origin as \"lon,lat\" or a place name")
	cmd.Flags().StringVar(&opts.to, "to", "", "destination as \"lon,lat\" or a place name")
	cmd.Flags().IntVar(&opts.alternatives, "alternatives", 0, "number of candidate routes (0 uses the configured default)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "json", "output format: json or kml")
	cmd.Flags().BoolVar(&opts.advisory, "advisory", false, "attach a generated trip advisory")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}

func runPlan(cmd *cobra.Command, root *rootOptions, opts *planOptions) error {
	ctx := cmd.Context()

	cfg, err := root.load()
	if err != nil {
		return err
	}

	source, closeSource, err := services.NewCameraSource(ctx, cfg.Cameras)
	if err != nil {
		return err
	}
	defer closeSource()

	store := cameras.NewStore(source)
	if _, err := store.Refresh(ctx); err != nil {
		return err
	}

	cacheInstance := cache.NewCache()
	geocoder := services.NewCachedGeocoder(
		nominatim.NewClient(cfg.Geocoding.BaseURL, cfg.Server.UserAgent, cfg.Geocoding.RequestsPerSecond),
		cacheInstance,
		cfg.Geocoding.CacheTTL,
	)

	var advisor advisory.Advisor
	if opts.advisory && cfg.Advisory.Enabled {
		advisor = advisory.NewAdvisor(cfg.Advisory.APIKey, cfg.Advisory.Model, cfg.Advisory.BaseURL)
	}

	svc := services.NewPlanningService(
		services.NewPlanner(cfg, geocoder, services.NewRouteSource(cfg), store),
		store, advisor, cfg.Planning.ResponseOptions(), cfg.Server.RequestTimeout)

	req := services.PlanRequest{
		Origin:       opts.from,
		Destination:  opts.to,
		Alternatives: opts.alternatives,
		Advisory:     opts.advisory,
	}
	return writePlan(ctx, cmd.OutOrStdout(), svc, req, opts.output)
}

type planWriter interface {
	Plan(ctx context.Context, req services.PlanRequest) (planner.Response, error)
	ExportKML(ctx context.Context, req services.PlanRequest) ([]byte, error)
}

func writePlan(ctx context.Context, w io.Writer, svc planWriter, req services.PlanRequest, output string) error {
	if output == "kml" {
		data, err := svc.ExportKML(ctx, req)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	}

	resp, err := svc.Plan(ctx, req)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}
