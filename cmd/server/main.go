package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/dpup/prefab"
	"github.com/joho/godotenv"

	"github.com/dpup/saferoute/server/internal/cache"
	"github.com/dpup/saferoute/server/internal/cameras"
	"github.com/dpup/saferoute/server/internal/clients/nominatim"
	"github.com/dpup/saferoute/server/internal/config"
	"github.com/dpup/saferoute/server/internal/lib/advisory"
	"github.com/dpup/saferoute/server/internal/metrics"
	"github.com/dpup/saferoute/server/internal/services"
)

func main() {
	// .env is optional; real environment variables win
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("Failed to load .env: %v", err)
	}

	// Load configuration using Prefab's config system
	appConfig := loadConfig()
	ctx := context.Background()

	metrics.RegisterDefault()

	cacheInstance := cache.NewCache()
	cacheInstance.StartPeriodicCleanup(ctx, 10*time.Minute)

	source, closeSource, err := services.NewCameraSource(ctx, appConfig.Cameras)
	if err != nil {
		log.Fatalf("Failed to open camera source: %v", err)
	}
	defer closeSource()
	store := cameras.NewStore(source)

	geocoder := services.NewCachedGeocoder(
		nominatim.NewClient(appConfig.Geocoding.BaseURL, appConfig.Server.UserAgent, appConfig.Geocoding.RequestsPerSecond),
		cacheInstance,
		appConfig.Geocoding.CacheTTL,
	)
	routePlanner := services.NewPlanner(appConfig, geocoder, services.NewRouteSource(appConfig), store)

	var advisor advisory.Advisor
	if appConfig.Advisory.Enabled {
		advisor = advisory.NewCachedAdvisor(
			advisory.NewAdvisor(appConfig.Advisory.APIKey, appConfig.Advisory.Model, appConfig.Advisory.BaseURL),
			cacheInstance,
			appConfig.Advisory.CacheTTL,
		)
		log.Printf("Trip advisories enabled with content-based caching (model: %s)", appConfig.Advisory.Model)
	}

	planningService := services.NewPlanningService(routePlanner, store, advisor,
		appConfig.Planning.ResponseOptions(), appConfig.Server.RequestTimeout)

	// Plans fail with 503 until the first snapshot loads
	refresher := services.NewPeriodicRefreshService(store, appConfig.Cameras.RefreshInterval)
	if err := refresher.RefreshOnce(ctx); err != nil {
		log.Printf("Initial camera snapshot load failed: %v", err)
	}
	if err := refresher.StartPeriodicRefresh(ctx); err != nil {
		log.Printf("Failed to start periodic refresh: %v", err)
	}
	defer refresher.Stop()

	log.Printf("SafeRoute API server starting")
	log.Printf("Routing provider: %s, camera source: %s", appConfig.Routing.Provider, store.SourceName())

	handler := planningService.Handler()

	// Server configuration (port, etc.) will be loaded from prefab.yaml/env vars
	server := prefab.New(
		prefab.WithGRPCReflection(),
		prefab.WithHTTPHandlerFunc("/v1/", handler.ServeHTTP),
		prefab.WithHTTPHandlerFunc("/healthz", handler.ServeHTTP),
		prefab.WithHTTPHandlerFunc("/metrics", handler.ServeHTTP),
		prefab.WithHTTPHandlerFunc("/", homepageHandler),
	)

	services.RegisterPlanningServer(server.ServiceRegistrar(), services.NewGRPCServer(planningService))

	// Start the server (blocks until shutdown)
	if err := server.Start(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

// loadConfig overlays prefab.yaml and PF__ environment variables on the
// defaults, one section at a time
func loadConfig() *config.Config {
	appConfig := config.DefaultConfig()

	sections := map[string]any{
		"server":    &appConfig.Server,
		"planning":  &appConfig.Planning,
		"routing":   &appConfig.Routing,
		"geocoding": &appConfig.Geocoding,
		"cameras":   &appConfig.Cameras,
		"advisory":  &appConfig.Advisory,
	}
	for name, target := range sections {
		if err := prefab.Config.Unmarshal(name, target); err != nil {
			log.Fatalf("Failed to unmarshal %s section: %v", name, err)
		}
	}

	if err := appConfig.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	return appConfig
}

// homepageHandler serves a simple HTML homepage at the server root
func homepageHandler(w http.ResponseWriter, r *http.Request) {
	// Only handle the root path
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	html := `<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <title>SafeRoute</title>
    <style>
        body {
            font-family: 'Courier New', Consolas, monospace;
            background: #000;
            color: #0f0;
            padding: 20px;
            line-height: 1.4;
        }
        a { color: #0ff; text-decoration: none; }
        a:hover { text-decoration: underline; }
        pre { margin: 0; }
        .header { color: #ff0; }
    </style>
</head>
<body>
<pre>
<span class="header">SafeRoute</span>

Hazard-aware route planning. Candidate routes are scored against the latest
road-condition classifications from roadside cameras along each route.

<span class="header">API Endpoints:</span>

Planning:
  POST /v1/routes/plan                  - Plan a trip: {"origin", "destination", "alternatives"}
  GET  /v1/routes/plan?origin=&destination=&alternatives=
  GET  /v1/routes/plan.kml?origin=&destination=  - Same plan as KML

Conditions:
  <a href="/v1/conditions">GET /v1/conditions</a>                 - Every camera with stats
  <a href="/v1/stats">GET /v1/stats</a>                      - Stats and hazardous cameras
  GET /v1/cameras/{id}                 - One camera

Operations:
  <a href="/healthz">GET /healthz</a>
  <a href="/metrics">GET /metrics</a>

gRPC: saferoute.v1.PlanningService (PlanRoute, ExportPlanKML)

<span class="header">Example Usage:</span>
  curl '/v1/routes/plan?origin=Salt+Lake+City,+UT&amp;destination=-111.498,40.6461'
</pre>
</body>
</html>`

	if _, err := fmt.Fprint(w, html); err != nil {
		slog.Error("Failed to write homepage HTML", "error", err)
	}
}
