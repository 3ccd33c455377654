// Package httpcontroller exposes the search pipeline over HTTP: a minimal
// search form, a JSON area-search API, and prometheus metrics.
package httpcontroller

import (
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/amt2283/hunterleaf-go/internal/aggregator"
	"github.com/amt2283/hunterleaf-go/internal/geo"
	"github.com/amt2283/hunterleaf-go/internal/geocoder"
	"github.com/amt2283/hunterleaf-go/internal/groupstore"
	"github.com/amt2283/hunterleaf-go/internal/logging"
	"github.com/amt2283/hunterleaf-go/internal/observability"
	"github.com/amt2283/hunterleaf-go/internal/observation"
)

// Server wires the echo router to the aggregation pipeline.
type Server struct {
	echo       *echo.Echo
	aggregator *aggregator.Aggregator
	geocoder   *geocoder.Client
	groups     *groupstore.Store
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// New creates the HTTP server and registers all routes.
func New(agg *aggregator.Aggregator, geocoderClient *geocoder.Client, groups *groupstore.Store, metrics *observability.Metrics) *Server {
	s := &Server{
		echo:       echo.New(),
		aggregator: agg,
		geocoder:   geocoderClient,
		groups:     groups,
		metrics:    metrics,
		logger:     logging.ForService("httpcontroller"),
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	s.echo.HideBanner = true
	s.echo.Use(middleware.Recover())
	s.echo.Use(s.requestLogger())

	s.echo.GET("/", s.handleHome)
	s.echo.POST("/search", s.handleSearch)
	s.echo.GET("/api/v1/area", s.handleArea)
	s.echo.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	return s
}

// Start begins serving on the given address and blocks.
func (s *Server) Start(address string) error {
	s.logger.Info("HTTP server starting", "address", address)
	return s.echo.Start(address)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) requestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			s.logger.Info("request handled",
				"method", c.Request().Method,
				"path", c.Request().URL.Path,
				"status", c.Response().Status)
			return err
		}
	}
}

// handleHome renders the search form with the configured categories.
func (s *Server) handleHome(c echo.Context) error {
	categories, err := s.groups.Categories()
	if err != nil {
		s.logger.Error("failed to load categories", "error", err.Error())
		categories = nil
	}
	return homeTemplate.Execute(c.Response(), map[string]any{
		"Categories": categories,
	})
}

// handleSearch handles the form flow: geocode the address when given,
// otherwise use explicit coordinates, then run a point+radius search.
func (s *Server) handleSearch(c echo.Context) error {
	ctx := c.Request().Context()

	address := strings.TrimSpace(c.FormValue("address"))
	group := strings.TrimSpace(c.FormValue("group"))
	category := strings.TrimSpace(c.FormValue("category"))

	var lat, lng float64
	var err error
	if address != "" {
		lat, lng, err = s.geocoder.Geocode(ctx, address)
		if err != nil {
			return c.HTML(http.StatusBadRequest,
				"<p>No coordinates found for the given address.</p>")
		}
	} else {
		lat, err = strconv.ParseFloat(c.FormValue("latitude"), 64)
		if err != nil {
			return c.HTML(http.StatusBadRequest, "<p>Invalid latitude.</p>")
		}
		lng, err = strconv.ParseFloat(c.FormValue("longitude"), 64)
		if err != nil {
			return c.HTML(http.StatusBadRequest, "<p>Invalid longitude.</p>")
		}
	}

	radiusKm := 10.0
	if v := c.FormValue("radius_km"); v != "" {
		radiusKm, err = strconv.ParseFloat(v, 64)
		if err != nil || radiusKm <= 0 {
			return c.HTML(http.StatusBadRequest, "<p>Invalid radius.</p>")
		}
	}

	var terms []string
	if group != "" {
		terms, err = s.groups.Genera(group)
		if err != nil {
			s.logger.Error("failed to load genera for group",
				"group", group,
				"error", err.Error())
		}
	}

	page, err := s.aggregator.Search(ctx, aggregator.Request{
		Area:      geo.PointQuery(lat, lng, radiusKm),
		Terms:     terms,
		Category:  category,
		OrderBy:   aggregator.OrderByDateDesc,
		Page:      1,
		Summaries: true,
	})
	if err != nil {
		return c.HTML(http.StatusBadRequest, fmt.Sprintf("<p>Invalid search: %s</p>", template.HTMLEscapeString(err.Error())))
	}

	return resultsTemplate.Execute(c.Response(), map[string]any{
		"Latitude":  lat,
		"Longitude": lng,
		"Page":      page,
	})
}

// handleArea serves the JSON area-search API over a bounding box.
func (s *Server) handleArea(c echo.Context) error {
	ctx := c.Request().Context()

	swLat, err1 := strconv.ParseFloat(c.QueryParam("swlat"), 64)
	swLng, err2 := strconv.ParseFloat(c.QueryParam("swlng"), 64)
	neLat, err3 := strconv.ParseFloat(c.QueryParam("nelat"), 64)
	neLng, err4 := strconv.ParseFloat(c.QueryParam("nelng"), 64)
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "swlat, swlng, nelat and nelng must be numeric")
	}

	pageNumber := 1
	if v := c.QueryParam("page"); v != "" {
		pageNumber, err1 = strconv.Atoi(v)
		if err1 != nil || pageNumber < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "page must be a positive integer")
		}
	}

	order := aggregator.OrderByIdentifications
	switch c.QueryParam("order") {
	case "date_asc":
		order = aggregator.OrderByDateAsc
	case "date_desc":
		order = aggregator.OrderByDateDesc
	case "", "identifications":
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "order must be identifications, date_asc or date_desc")
	}

	var terms []string
	if group := c.QueryParam("group"); group != "" {
		var err error
		terms, err = s.groups.Genera(group)
		if err != nil {
			s.logger.Error("failed to load genera for group",
				"group", group,
				"error", err.Error())
		}
	}

	page, err := s.aggregator.Search(ctx, aggregator.Request{
		Area:         geo.BoxQuery(swLat, swLng, neLat, neLng),
		Terms:        terms,
		Category:     c.QueryParam("category"),
		SourceFilter: observation.Source(c.QueryParam("source")),
		OrderBy:      order,
		Page:         pageNumber,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	return c.JSON(http.StatusOK, page)
}
