// Package serve implements the HTTP server command.
package serve

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/amt2283/hunterleaf-go/internal/app"
	"github.com/amt2283/hunterleaf-go/internal/conf"
	"github.com/amt2283/hunterleaf-go/internal/httpcontroller"
	"github.com/amt2283/hunterleaf-go/internal/logging"
)

// Command creates the serve command.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(settings)
		},
	}

	cmd.Flags().StringVar(&settings.Web.Address, "address", settings.Web.Address, "Listen address for the HTTP server")

	return cmd
}

func run(settings *conf.Settings) error {
	application, err := app.New(settings)
	if err != nil {
		return err
	}
	defer application.Close()

	server := httpcontroller.New(application.Aggregator, application.Geocoder, application.Groups, application.Metrics)

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(settings.Web.Address); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logging.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}
