package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/shelfsync/shelfsync/internal/db"
	"github.com/shelfsync/shelfsync/internal/server"
	"github.com/shelfsync/shelfsync/internal/server/housekeeping"
	"github.com/shelfsync/shelfsync/internal/server/syncer"
	"github.com/shelfsync/shelfsync/internal/utils"
	"github.com/shelfsync/shelfsync/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
)

const envPrefix = "SHELFSYNC"

var (
	home, _         = os.UserHomeDir()
	defaultDataDir  = filepath.Join(home, ".shelfsync")
	defaultDBPath   = filepath.Join(defaultDataDir, "shelfsync.db")
	defaultLockFile = filepath.Join(defaultDataDir, "purge.lock")
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "shelfsync",
		Short:         "ShelfSync sync server",
		Version:       version.Detailed(),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			closeLog, err := setupLogger(&cfg.Log)
			if err != nil {
				return err
			}
			defer closeLog()

			srv, err := server.New(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer slog.Info("Bye!")
			return srv.Start(cmd.Context())
		},
	}

	flags := cmd.PersistentFlags()
	flags.SortFlags = false
	flags.StringP("config", "c", "", "Config file (yaml, json or toml)")
	flags.StringP("bind", "b", server.DefaultAddr, "Address to bind the server")
	flags.String("cert", "", "Path to the TLS certificate file")
	flags.String("key", "", "Path to the TLS key file")
	flags.String("db-driver", db.DriverSqlite, "Database driver (sqlite or postgres)")
	flags.String("db-path", defaultDBPath, "SQLite database file")
	flags.String("db-dsn", "", "Postgres connection string")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.String("log-file", "", "Also write JSON logs to this rotated file")

	cmd.AddCommand(newMigrateCmd())
	cmd.AddCommand(newPurgeCmd())
	cmd.AddCommand(newTokenCmd())
	return cmd
}

func main() {
	// a .env next to the binary is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		slog.Error("shelfsync", "error", err)
		stop()
		os.Exit(1)
	}
}

// flagKeys maps persistent flags onto config keys.
var flagKeys = map[string]string{
	"bind":      "http.addr",
	"cert":      "http.cert_file",
	"key":       "http.key_file",
	"db-driver": "database.driver",
	"db-path":   "database.path",
	"db-dsn":    "database.dsn",
	"log-level": "log.level",
	"log-file":  "log.file",
}

func setDefaults(v *viper.Viper) {
	sync := syncer.DefaultConfig()

	v.SetDefault("http.addr", server.DefaultAddr)
	v.SetDefault("http.cert_file", "")
	v.SetDefault("http.key_file", "")
	v.SetDefault("http.rate_limit", server.DefaultRateLimit)

	v.SetDefault("database.driver", db.DriverSqlite)
	v.SetDefault("database.path", defaultDBPath)
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", 0)

	v.SetDefault("auth.enabled", true)
	v.SetDefault("auth.token_issuer", "https://shelfsync.local")
	v.SetDefault("auth.access_token_secret", "")
	v.SetDefault("auth.access_token_expiry", "24h")

	v.SetDefault("sync.max_batch_size", sync.MaxBatchSize)
	v.SetDefault("sync.tombstone_retention", sync.TombstoneRetention)
	v.SetDefault("sync.owner_cache_size", sync.OwnerCacheSize)
	v.SetDefault("sync.owner_cache_ttl", sync.OwnerCacheTTL)

	v.SetDefault("storage.bucket_name", "")
	v.SetDefault("storage.region", "")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.access_key", "")
	v.SetDefault("storage.secret_key", "")
	v.SetDefault("storage.bucket_url", "")

	v.SetDefault("housekeeping.enabled", true)
	v.SetDefault("housekeeping.interval", housekeeping.DefaultInterval)
	v.SetDefault("housekeeping.lock_file", defaultLockFile)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
}

// loadConfig layers defaults, the config file, SHELFSYNC_* env vars and
// explicitly set flags, in that order of precedence (lowest first).
func loadConfig(cmd *cobra.Command) (*server.Config, error) {
	v := viper.New()
	setDefaults(v)

	if path, _ := cmd.Flags().GetString("config"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath(defaultDataDir)
		v.SetConfigName("config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config read '%s': %w", v.ConfigFileUsed(), err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if key, ok := flagKeys[f.Name]; ok && f.Changed {
			bindErr = errors.Join(bindErr, v.BindPFlag(key, f))
		}
	})
	if bindErr != nil {
		return nil, bindErr
	}

	var cfg server.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config decode: %w", err)
	}

	if cfg.Database.Driver == db.DriverSqlite {
		path, err := utils.ResolvePath(cfg.Database.Path)
		if err != nil {
			return nil, fmt.Errorf("database path: %w", err)
		}
		cfg.Database.Path = path
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setupLogger installs a colored console handler and, when configured, a
// rotated JSON file handler. The returned func closes the file.
func setupLogger(cfg *server.LogConfig) (func(), error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}

	console := tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	})

	if cfg.File == "" {
		slog.SetDefault(slog.New(console))
		return func() {}, nil
	}

	if err := utils.EnsureParent(cfg.File); err != nil {
		return nil, fmt.Errorf("log dir: %w", err)
	}
	rotated := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    100, // megabytes
		MaxBackups: 5,
		MaxAge:     30, // days
		Compress:   true,
	}
	file := slog.NewJSONHandler(rotated, &slog.HandlerOptions{Level: level})

	slog.SetDefault(slog.New(utils.NewMultiLogHandler(console, file)))
	return func() { _ = rotated.Close() }, nil
}
