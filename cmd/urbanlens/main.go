package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/urbanlens/internal/auth"
	"github.com/ukydev/urbanlens/internal/config"
	"github.com/ukydev/urbanlens/internal/diagnostics"
	"github.com/ukydev/urbanlens/internal/location"
	"github.com/ukydev/urbanlens/internal/logging"
	"github.com/ukydev/urbanlens/internal/metrics"
	"github.com/ukydev/urbanlens/internal/models"
	"github.com/ukydev/urbanlens/internal/places"
)

// output is what the command prints on stdout.
type output struct {
	Coordinates models.Coordinates `json:"coordinates"`
	Source      location.Source    `json:"source"`
	Centre      string             `json:"centre"`
	Identity    *models.Identity   `json:"identity,omitempty"`
	Places      []models.Place     `json:"places"`
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		log.WithField("url", url).Info("Open this address to sign in")
		return nil
	}
	return cmd.Process.Release()
}

func newGeolocator(cfg *config.Config) location.Geolocator {
	switch cfg.Location.Provider {
	case config.ProviderStatic:
		return location.StaticGeolocator{Position: models.Coordinates{
			Latitude:  cfg.Device.Lat,
			Longitude: cfg.Device.Lng,
		}}
	case config.ProviderIP:
		return location.NewIPGeolocator(cfg.Location.IPEndpoint, cfg.Location.Timeout)
	default:
		return nil
	}
}

func newReporter(cfg *config.Config) (*diagnostics.Reporter, func()) {
	if cfg.MQTT.Broker == "" {
		return diagnostics.NewReporter(nil, nil), func() {}
	}

	publisher, err := diagnostics.NewMQTTPublisher(cfg.MQTT.Broker, cfg.MQTT.ClientID, cfg.MQTT.Topic)
	if err != nil {
		log.WithError(err).WithField("broker", cfg.MQTT.Broker).Warn("Diagnostic events will only be logged")
		return diagnostics.NewReporter(nil, nil), func() {}
	}
	return diagnostics.NewReporter(nil, publisher), publisher.Close
}

// identityToken returns the configured token or signs the user in.
func identityToken(ctx context.Context, cfg *config.Config, reporter *diagnostics.Reporter, open auth.BrowserOpener) (string, error) {
	if cfg.Auth.IDToken != "" {
		return cfg.Auth.IDToken, nil
	}

	client := auth.NewOAuthClient(auth.OAuthConfig{
		ClientSecret: cfg.Auth.ClientSecret,
		AuthURL:      cfg.Auth.AuthURL,
		TokenURL:     cfg.Auth.TokenURL,
		Scopes:       cfg.Auth.Scopes,
		RedirectPort: cfg.Auth.RedirectPort,
	}, open)
	defer client.Close()

	signInCtx, cancel := context.WithTimeout(ctx, cfg.Auth.SignInTimeout)
	defer cancel()

	authenticator := auth.NewAuthenticator(signInCtx, client, cfg.Auth.ClientID, reporter)
	return authenticator.SignIn(signInCtx)
}

func run(ctx context.Context, cfg *config.Config, out io.Writer, open auth.BrowserOpener) error {
	reporter, closeReporter := newReporter(cfg)
	defer closeReporter()

	resolver := location.NewResolver(newGeolocator(cfg), cfg.Location.Timeout, reporter)
	resolution := resolver.Resolve(ctx)

	token, err := identityToken(ctx, cfg, reporter, open)
	if err != nil {
		return err
	}

	var identity *models.Identity
	if id, err := auth.NewService(cfg.Auth.ClientID).ParseIdentity(token); err != nil {
		log.WithError(err).Warn("Could not read identity token claims")
	} else {
		identity = id
		log.WithFields(log.Fields{
			"subject": id.Subject,
			"email":   id.Email,
		}).Info("Identity token accepted")
	}

	client, err := places.NewClient(places.SearchParams{
		BaseURL:  cfg.Places.BaseURL,
		Location: cfg.Places.Location,
		Radius:   cfg.Places.Radius,
		APIKey:   cfg.Places.APIKey,
		Type:     cfg.Places.Type,
	}, cfg.Places.Timeout, reporter)
	if err != nil {
		return err
	}

	centre := cfg.Places.Location
	var results []models.Place
	if cfg.Places.UseResolved {
		centre = resolution.Coordinates.String()
		results = client.FetchNearbyPlacesAt(ctx, token, resolution.Coordinates)
	} else {
		results = client.FetchNearbyPlaces(ctx, token)
	}

	for _, p := range results {
		summary, err := p.Summary()
		if err != nil {
			continue
		}
		log.WithFields(log.Fields{
			"place_id": summary.PlaceID,
			"name":     summary.Name,
		}).Debug("Place")
	}
	log.WithFields(log.Fields{
		"centre": centre,
		"count":  len(results),
		"source": resolution.Source,
	}).Info("Fetched nearby places")

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(output{
		Coordinates: resolution.Coordinates,
		Source:      resolution.Source,
		Centre:      centre,
		Identity:    identity,
		Places:      results,
	}); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	if err := metrics.Push(ctx, cfg.Metrics.PushURL, cfg.Metrics.Job); err != nil {
		log.WithError(err).Warn("Failed to push metrics")
	}
	return nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logging.Setup(os.Stderr, cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, os.Stdout, openBrowser); err != nil {
		if errors.Is(err, auth.ErrAuthenticationIncomplete) {
			log.WithError(err).Error("Sign-in did not complete")
		} else {
			log.WithError(err).Error("urbanlens failed")
		}
		stop()
		os.Exit(1)
	}
}
