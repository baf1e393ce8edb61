package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/bookline/bookline/internal/api"
	"github.com/bookline/bookline/internal/escalation"
	"github.com/bookline/bookline/internal/flow"
	"github.com/bookline/bookline/internal/genai"
	"github.com/bookline/bookline/internal/messaging"
	"github.com/bookline/bookline/internal/notify"
	"github.com/bookline/bookline/internal/rag"
	"github.com/bookline/bookline/internal/store"
	"github.com/bookline/bookline/internal/twiliosms"
	"github.com/bookline/bookline/internal/whatsapp"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for Bookline state data
	DefaultStateDir = "/var/lib/bookline"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "bookline.db"
	// DefaultWhatsmeowDBFileName is the default whatsmeow session database filename
	DefaultWhatsmeowDBFileName = "whatsmeow.db"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	if err := os.MkdirAll(*flags.stateDir, 0755); err != nil {
		slog.Error("Failed to create state directory", "error", err, "dir", *flags.stateDir)
		os.Exit(1)
	}

	slog.Info("Bootstrapping Bookline with configured modules")
	if err := run(flags); err != nil {
		slog.Error("Bookline failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("Bookline exited successfully")
}

// Config holds environment configuration
type Config struct {
	DatabaseURL string
	WhatsAppDSN string
	StateDir    string
	OpenAIKey   string
	APIAddr     string
	SMTPHost    string
	SMTPPort    string
	SMTPFrom    string
	SMTPUser    string
	SMTPPass    string
}

// Flags holds command line flag values
type Flags struct {
	qrOutput  *string
	numeric   *bool
	stateDir  *string
	dbDSN     *string
	waDSN     *string
	openaiKey *string
	apiAddr   *string
	smtpHost  *string
	smtpPort  *string
	smtpFrom  *string
	smtpUser  *string
	smtpPass  *string
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
		DatabaseURL: os.Getenv("DATABASE_URL"),
		WhatsAppDSN: os.Getenv("WHATSAPP_DB_DSN"),
		StateDir:    os.Getenv("BOOKLINE_STATE_DIR"),
		OpenAIKey:   os.Getenv("OPENAI_API_KEY"),
		APIAddr:     os.Getenv("API_ADDR"),
		SMTPHost:    os.Getenv("SMTP_HOST"),
		SMTPPort:    os.Getenv("SMTP_PORT"),
		SMTPFrom:    os.Getenv("SMTP_FROM"),
		SMTPUser:    os.Getenv("SMTP_USERNAME"),
		SMTPPass:    os.Getenv("SMTP_PASSWORD"),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No BOOKLINE_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}
	if config.WhatsAppDSN == "" {
		config.WhatsAppDSN = filepath.Join(config.StateDir, DefaultWhatsmeowDBFileName)
	}
	if config.SMTPPort == "" {
		config.SMTPPort = "587"
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"WHATSAPP_DB_DSN_SET", config.WhatsAppDSN != "",
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"API_ADDR", config.APIAddr)
	return config
}

// parseCommandLineFlags defines flags with environment values as defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		qrOutput:  flag.String("qr-output", "", "Path to write WhatsApp login QR code"),
		numeric:   flag.Bool("numeric-code", false, "Use numeric login code instead of QR code"),
		stateDir:  flag.String("state-dir", config.StateDir, "Directory for state data"),
		dbDSN:     flag.String("db-dsn", config.DatabaseURL, "Database connection string"),
		waDSN:     flag.String("whatsapp-db-dsn", config.WhatsAppDSN, "WhatsApp session database connection string"),
		openaiKey: flag.String("openai-key", config.OpenAIKey, "OpenAI API key"),
		apiAddr:   flag.String("addr", config.APIAddr, "API listen address"),
		smtpHost:  flag.String("smtp-host", config.SMTPHost, "SMTP host for email notifications"),
		smtpPort:  flag.String("smtp-port", config.SMTPPort, "SMTP port"),
		smtpFrom:  flag.String("smtp-from", config.SMTPFrom, "From address for email notifications"),
		smtpUser:  flag.String("smtp-user", config.SMTPUser, "SMTP username"),
		smtpPass:  flag.String("smtp-pass", config.SMTPPass, "SMTP password"),
	}
	flag.Parse()
	return flags
}

// run assembles every module and serves the API until shutdown.
func run(flags Flags) error {
	// Storage. Postgres serves both the conversation store and the
	// business catalog; SQLite keeps the conversation store only and the
	// catalog stays in memory for development.
	var st store.Store
	var data store.DataStore
	if store.DetectDSNType(*flags.dbDSN) == "postgres" {
		pg, err := store.NewPostgresStore(store.WithPostgresDSN(*flags.dbDSN))
		if err != nil {
			return err
		}
		defer pg.Close()
		st, data = pg, pg
	} else {
		sqlite, err := store.NewSQLiteStore(store.WithSQLiteDSN(*flags.dbDSN))
		if err != nil {
			return err
		}
		defer sqlite.Close()
		st = sqlite
		data = store.NewInMemoryStore()
		slog.Warn("SQLite DSN in use; business catalog reads are in-memory and start empty")
	}

	genAI, err := genai.NewClient(genai.WithAPIKey(*flags.openaiKey))
	if err != nil {
		return err
	}
	// Retrieval classification runs on the cheaper model; embeddings are
	// model-independent, so the retrieval engine gets its own client.
	classifierAI, err := genai.NewClient(genai.WithAPIKey(*flags.openaiKey), genai.WithModel(genai.ClassifierModel))
	if err != nil {
		return err
	}

	waOpts := []whatsapp.Option{whatsapp.WithDBDSN(*flags.waDSN)}
	if *flags.qrOutput != "" {
		waOpts = append(waOpts, whatsapp.WithQRCodeOutput(*flags.qrOutput))
	}
	if *flags.numeric {
		waOpts = append(waOpts, whatsapp.WithNumericCode())
	}
	waClient, err := whatsapp.NewClient(waOpts...)
	if err != nil {
		return err
	}

	dispatcher := notify.NewDispatcher(st, data)
	dispatcher.Register(notify.NewWhatsAppProvider(waClient))
	if smsClient, err := twiliosms.NewClient(); err != nil {
		slog.Warn("Twilio SMS provider unavailable", "error", err)
	} else {
		dispatcher.Register(notify.NewSMSProvider(smsClient))
	}
	if *flags.smtpHost != "" && *flags.smtpFrom != "" {
		dispatcher.Register(notify.NewEmailProvider(*flags.smtpHost, *flags.smtpPort, *flags.smtpFrom, *flags.smtpUser, *flags.smtpPass))
	} else {
		slog.Warn("Email provider unavailable; SMTP_HOST or SMTP_FROM not set")
	}

	proxies := escalation.NewManager(st)
	processor := messaging.NewProcessor(
		escalation.NewRouter(proxies, waClient),
		flow.NewAggregator(data),
		flow.NewEngine(genAI),
		flow.NewGoalManager(st),
		escalation.NewAnalyzer(genAI),
		proxies,
		dispatcher,
		rag.NewEngine(classifierAI, data),
		genAI,
		data,
		waClient,
	)

	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	server := api.NewServer(processor, dispatcher, apiOpts...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return server.Run(ctx)
}
