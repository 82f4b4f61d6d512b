package app

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/rs/zerolog"

	"cheaphours/internal/config"
	"cheaphours/internal/fetcher"
	"cheaphours/internal/messaging"
	"cheaphours/internal/metrics"
	"cheaphours/internal/service"
	"cheaphours/internal/storage"
	"cheaphours/internal/version"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config  *config.Config
	Logger  zerolog.Logger
	Metrics *metrics.Metrics
	// Out receives tables and reports.
	Out io.Writer

	now func() time.Time
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{
		Config: cfg,
		Logger: logger.With().Str("component", "app").Logger(),
		Out:    os.Stdout,
		now:    time.Now,
	}
}

// openStore loads the record file. A missing file yields an empty store so
// the first run can create it.
func (a *App) openStore() (*storage.Store, error) {
	store := storage.NewStore()
	err := store.LoadFile(a.Config.Storage.File)
	if errors.Is(err, fs.ErrNotExist) {
		a.Logger.Warn().Str("file", a.Config.Storage.File).Msg("record file not found; starting empty")
		return store, nil
	}
	if err != nil {
		return nil, err
	}
	a.Logger.Debug().Str("file", a.Config.Storage.File).Int("records", store.Len()).Msg("records loaded")
	return store, nil
}

func (a *App) saveStore(store *storage.Store) error {
	if err := store.SaveFile(a.Config.Storage.File); err != nil {
		return err
	}
	a.Logger.Debug().Str("file", a.Config.Storage.File).Int("records", store.Len()).Msg("records saved")
	return nil
}

func (a *App) newService(store *storage.Store) *service.Service {
	return service.New(store, a.Metrics, a.Logger)
}

// newSources builds the registry of enabled sources. The returned closer
// releases the PostgreSQL pool when one was opened.
func (a *App) newSources(ctx context.Context) (*fetcher.Registry, func(), error) {
	cfg := a.Config.Sources
	registry, err := fetcher.NewRegistry()
	if err != nil {
		return nil, nil, err
	}
	closer := func() {}

	if cfg.SpotHinta.Enabled {
		userAgent := cfg.SpotHinta.UserAgent
		if userAgent == "" {
			userAgent = version.UserAgent()
		}
		if err := registry.Register(fetcher.NewSpotHinta(fetcher.SpotHintaOptions{
			URL:        cfg.SpotHinta.URL,
			PriceField: cfg.SpotHinta.PriceField,
			Timeout:    cfg.SpotHinta.Timeout,
			UserAgent:  userAgent,
		}, a.Logger)); err != nil {
			return nil, nil, err
		}
	}
	if cfg.Datahub.Enabled {
		if err := registry.Register(fetcher.NewDatahub(cfg.Datahub.File, a.Logger)); err != nil {
			return nil, nil, err
		}
	}
	if cfg.JSON.Enabled {
		if err := registry.Register(fetcher.NewJSONFile(cfg.JSON.File, a.Logger)); err != nil {
			return nil, nil, err
		}
	}
	if cfg.Postgres.Enabled {
		pool, err := storage.NewPool(ctx, cfg.Postgres)
		if err != nil {
			return nil, nil, err
		}
		src := fetcher.NewPostgres(pool, fetcher.PostgresOptions{
			Lookback: cfg.Postgres.Lookback,
			Timeout:  cfg.Postgres.Timeout,
		}, a.Logger)
		if err := registry.Register(src); err != nil {
			src.Close()
			return nil, nil, err
		}
		closer = src.Close
	}

	if len(registry.Names()) == 0 {
		a.Logger.Warn().Msg("no sources enabled")
	}
	return registry, closer, nil
}

// newTargets registers every target that has enough configuration to run.
func (a *App) newTargets() (*messaging.Registry, error) {
	loc := a.Config.Location()
	shellyLoc, err := time.LoadLocation(a.Config.Shelly.Timezone)
	if err != nil {
		shellyLoc = loc
	}

	registry, err := messaging.NewRegistry()
	if err != nil {
		return nil, err
	}

	shelly := a.Config.Shelly
	if shelly.Host != "" {
		if err := registry.Register(messaging.NewShelly(messaging.ShellyOptions{
			Host:     shelly.Host,
			Relays:   shelly.Relays,
			Shift:    shelly.Shift,
			Location: shellyLoc,
			Timeout:  shelly.Timeout,
		}, a.Logger)); err != nil {
			return nil, err
		}
	}
	if shelly.MQTT.Broker != "" {
		if err := registry.Register(messaging.NewShellyMQTT(messaging.ShellyMQTTOptions{
			Broker:   shelly.MQTT.Broker,
			Topic:    shelly.MQTT.Topic,
			ClientID: shelly.MQTT.ClientID,
			Username: shelly.MQTT.Username,
			Password: shelly.MQTT.Password,
			Relays:   shelly.Relays,
			Shift:    shelly.Shift,
			Location: shellyLoc,
			Timeout:  shelly.Timeout,
		}, a.Logger)); err != nil {
			return nil, err
		}
	}
	if tg := a.Config.Telegram; tg.Enabled {
		if err := registry.Register(messaging.NewTelegram(tg.BotToken, tg.ChatID, tg.APIBase, loc, 10*time.Second, a.Logger)); err != nil {
			return nil, err
		}
	}
	if cal := a.Config.Calendar; cal.ID != "" {
		if err := registry.Register(messaging.NewCalendar(messaging.CalendarOptions{
			CalendarID: cal.ID,
			Token:      cal.Token,
			APIBase:    cal.APIBase,
			Summary:    cal.Summary,
			Location:   loc,
		}, a.Logger)); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// Update fetches every enabled source once and saves the store.
func (a *App) Update(ctx context.Context) error {
	store, err := a.openStore()
	if err != nil {
		return err
	}
	sources, closeSources, err := a.newSources(ctx)
	if err != nil {
		return err
	}
	defer closeSources()

	return a.refresh(ctx, a.newService(store), sources)
}

// refresh ingests and saves. Records from healthy sources are saved even
// when another source failed.
func (a *App) refresh(ctx context.Context, svc *service.Service, sources *fetcher.Registry) error {
	results, ingestErr := svc.Ingest(ctx, sources.All()...)
	for _, res := range results {
		a.Logger.Debug().Str("source", res.Source).Int("records", res.Records).Msg("refresh result")
	}
	if err := a.saveStore(svc.Store()); err != nil {
		return errors.Join(ingestErr, err)
	}
	return ingestErr
}

// ExportOptions hold parameters for exporting records.
type ExportOptions struct {
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	// Cheapest marks that many cheapest hours.
	Cheapest int
	// PickFrom and PickTo mark a manually chosen range.
	PickFrom *time.Time
	PickTo   *time.Time
	All      bool
}

// CheapestOptions configure the cheapest command.
type CheapestOptions struct {
	Hours   int
	Order   string
	Targets []string
}

// ScheduleOptions configure a manual send.
type ScheduleOptions struct {
	From    time.Time
	To      time.Time
	Targets []string
}

// StatsOptions bound the statistics window.
type StatsOptions struct {
	From *time.Time
	To   *time.Time
}
