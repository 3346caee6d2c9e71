package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/FuncStore/FuncBot/internal/api"
	"github.com/FuncStore/FuncBot/internal/browser"
	"github.com/FuncStore/FuncBot/internal/flow"
	"github.com/FuncStore/FuncBot/internal/flows"
	"github.com/FuncStore/FuncBot/internal/lockfile"
	"github.com/FuncStore/FuncBot/internal/messaging"
	"github.com/FuncStore/FuncBot/internal/models"
	"github.com/FuncStore/FuncBot/internal/providers"
	"github.com/FuncStore/FuncBot/internal/recovery"
	"github.com/FuncStore/FuncBot/internal/scheduler"
	"github.com/FuncStore/FuncBot/internal/store"
	"github.com/FuncStore/FuncBot/internal/task"
	"github.com/FuncStore/FuncBot/internal/twiliowhatsapp"
	"github.com/FuncStore/FuncBot/internal/util"
	"github.com/FuncStore/FuncBot/internal/webapi"
	"github.com/FuncStore/FuncBot/internal/whatsapp"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for FuncBot state data
	DefaultStateDir = "/var/lib/funcbot"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "funcbot.db"
	// sweepCron runs the abandoned-conversation sweep every five minutes
	sweepCron = "*/5 * * * *"
)

// busyStates are the states that mean an operation is in flight. They feed
// both startup recovery and the sweeper's skip list.
var busyStates = []models.StateType{
	models.StateWeatherBusy,
	models.StateFindImageBusy,
	models.StateFindVideoBusy,
	models.StateMoviesBusy,
	models.StateProxiesBusy,
	models.StateIPInfoBusy,
	models.StateGenImageBusy,
	models.StateDescribeBusy,
	models.StateGenVideoProgress,
	models.StateGenVideoCancelling,
}

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	if err := run(config, flags); err != nil {
		slog.Error("FuncBot failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("FuncBot exited successfully")
}

// Config holds environment configuration
type Config struct {
	Transport   string
	DBDSN       string
	StateDir    string
	APIAddr     string
	FileBaseURL string

	OpenWeatherKey string
	WebshareKey    string
	IPAPIKey       string
	KinopoiskKey   string
	OpenAIKey      string
	NeuroimgKey    string
	ImaggaKey      string
}

// Flags holds command line flag values
type Flags struct {
	qrOutput *string
	numeric  *bool
	stateDir *string
	dbDSN    *string
	apiAddr  *string
	headless *bool
	idleTTL  *time.Duration
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		Transport:      os.Getenv("TRANSPORT"),
		DBDSN:          os.Getenv("DATABASE_URL"),
		StateDir:       os.Getenv("FUNCBOT_STATE_DIR"),
		APIAddr:        os.Getenv("API_ADDR"),
		FileBaseURL:    os.Getenv("FILE_BASE_URL"),
		OpenWeatherKey: os.Getenv("OPENWEATHERMAP_API_KEY"),
		WebshareKey:    os.Getenv("WEBSHARE_API_KEY"),
		IPAPIKey:       os.Getenv("IPAPI_API_KEY"),
		KinopoiskKey:   os.Getenv("KINOPOISK_API_KEY"),
		OpenAIKey:      os.Getenv("OPENAI_API_KEY"),
		NeuroimgKey:    os.Getenv("NEUROIMG_API_KEY"),
		ImaggaKey:      os.Getenv("IMAGGA_API_KEY"),
	}

	if config.Transport == "" {
		config.Transport = "whatsapp"
	}
	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No FUNCBOT_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}
	if config.DBDSN == "" {
		config.DBDSN = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DBDSN)
	}

	slog.Debug("environment variables loaded",
		"TRANSPORT", config.Transport,
		"DATABASE_URL_SET", config.DBDSN != "",
		"FUNCBOT_STATE_DIR", config.StateDir,
		"API_ADDR", config.APIAddr,
		"OPENWEATHERMAP_API_KEY_SET", config.OpenWeatherKey != "",
		"WEBSHARE_API_KEY_SET", config.WebshareKey != "",
		"IPAPI_API_KEY_SET", config.IPAPIKey != "",
		"KINOPOISK_API_KEY_SET", config.KinopoiskKey != "",
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"NEUROIMG_API_KEY_SET", config.NeuroimgKey != "",
		"IMAGGA_API_KEY_SET", config.ImaggaKey != "")

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		qrOutput: flag.String("qr-output", "", "path to write login QR code"),
		numeric:  flag.Bool("numeric-code", false, "use numeric login code instead of QR code"),
		stateDir: flag.String("state-dir", config.StateDir, "state directory for FuncBot data (overrides $FUNCBOT_STATE_DIR)"),
		dbDSN:    flag.String("db-dsn", config.DBDSN, "database DSN for the conversation store (overrides $DATABASE_URL)"),
		apiAddr:  flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		headless: flag.Bool("headless", util.ParseBoolEnv("BROWSER_HEADLESS", true), "run the automation browser headless"),
		idleTTL:  flag.Duration("idle-ttl", scheduler.DefaultIdleTTL, "how long an abandoned conversation may sit mid-flow"),
	}

	flag.Parse()

	// Follow the state directory when the DSN was only defaulted from it.
	if *flags.dbDSN == config.DBDSN && config.DBDSN == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "new_state_dir", *flags.stateDir)
	}

	return flags
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	if store.DetectDSNType(*flags.dbDSN) == "sqlite" {
		if err := os.MkdirAll(filepath.Dir(*flags.dbDSN), 0o755); err != nil {
			return err
		}
	}
	return os.MkdirAll(dataDir(flags), 0o755)
}

// dataDir is where per-conversation working files live.
func dataDir(flags Flags) string {
	return filepath.Join(*flags.stateDir, "data")
}

// buildStore selects the conversation store backend by DSN.
func buildStore(flags Flags) (store.Store, error) {
	dsn := *flags.dbDSN
	if store.DetectDSNType(dsn) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store")
		return store.NewPostgresStore(store.WithDSN(dsn))
	}
	slog.Debug("Detected SQLite DSN, configuring SQLite store", "db_path", dsn)
	return store.NewSQLiteStore(store.WithDSN(dsn))
}

// buildTransport creates the configured messaging service.
func buildTransport(config Config, flags Flags) (messaging.Service, error) {
	switch config.Transport {
	case "twilio":
		client, err := twiliowhatsapp.NewClient(
			twiliowhatsapp.WithFileServer(config.FileBaseURL, dataDir(flags)),
		)
		if err != nil {
			return nil, err
		}
		return messaging.NewTwilioService(client), nil
	default:
		var waOpts []whatsapp.Option
		waOpts = append(waOpts, whatsapp.WithDBDSN(filepath.Join(*flags.stateDir, "whatsmeow.db")))
		if *flags.qrOutput != "" {
			waOpts = append(waOpts, whatsapp.WithQRCodeOutput(*flags.qrOutput))
		}
		if *flags.numeric {
			waOpts = append(waOpts, whatsapp.WithNumericCode())
		}
		client, err := whatsapp.NewClient(waOpts...)
		if err != nil {
			return nil, err
		}
		return messaging.NewWhatsAppService(client), nil
	}
}

func run(config Config, flags Flags) error {
	lock, err := lockfile.AcquireLock(*flags.stateDir)
	if err != nil {
		return err
	}
	defer lock.Release()

	st, err := buildStore(flags)
	if err != nil {
		return err
	}
	defer st.Close()

	service, err := buildTransport(config, flags)
	if err != nil {
		return err
	}

	states := flow.NewStoreBasedStateManager(st)
	dispatcher := flow.NewDispatcher(states, service)
	coordinator := task.NewCoordinator(states, service)

	apiClient := webapi.NewClient(nil)
	imageGen := providers.NewImageGenClient(apiClient, config.OpenAIKey, config.NeuroimgKey)
	video := browser.NewVideoGenerator(browser.VideoConfig{Headless: *flags.headless}, imageGen.Describe)

	flows.Register(flows.Deps{
		Dispatcher:  dispatcher,
		States:      states,
		Render:      service,
		Coordinator: coordinator,
		Weather:     providers.NewWeatherClient(apiClient, config.OpenWeatherKey),
		Images:      providers.NewImageClient(apiClient),
		Movies:      providers.NewMovieClient(apiClient, config.KinopoiskKey),
		Proxies:     providers.NewProxyClient(apiClient, config.WebshareKey),
		IPInfo:      providers.NewIPInfoClient(apiClient, config.IPAPIKey),
		ImageGen:    imageGen,
		Video:       video,
		Tagger:      providers.NewImaggaClient(apiClient, config.ImaggaKey),
		DataDir:     dataDir(flags),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Conversations stranded in a busy state by the previous run are reset
	// before any new traffic is accepted.
	recoveryManager := recovery.NewManager(st, service)
	recoveryManager.MarkBusy(busyStates...)
	if err := recoveryManager.RecoverAll(ctx); err != nil {
		return err
	}

	sched := scheduler.NewScheduler()
	defer sched.Stop()
	sweeper := scheduler.NewSweeper(st, *flags.idleTTL)
	sweeper.Skip(busyStates...)
	if err := sched.AddJob(sweepCron, sweeper.Sweep); err != nil {
		return err
	}

	processor := messaging.NewProcessor(service, dispatcher)
	if err := processor.Start(ctx); err != nil {
		return err
	}
	defer service.Stop()

	apiOpts := []api.Option{api.WithFileDir(dataDir(flags))}
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	if twilio, ok := service.(*messaging.TwilioService); ok {
		apiOpts = append(apiOpts, api.WithTwilioWebhook(twilio))
	}
	server := api.NewServer(apiOpts...)

	errc := make(chan error, 1)
	go func() {
		errc <- server.Start()
	}()

	slog.Info("FuncBot running", "transport", config.Transport, "api_addr", *flags.apiAddr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
