// Package cli provides the command-line interface and HTTP server lifecycle
// for the vitalog auth service: configuration loading, dependency wiring,
// server startup, and graceful shutdown.
//
// Architecture overview:
//
//	CLI → Configuration → Directory/Sink/Codec → Echo server → API routes
//
// The server follows 12-factor conventions: configuration comes from files,
// environment variables (VITALOG_ prefix), and flags, with flags winning.
package cli

import (
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"vitalog.app/api"
	"vitalog.app/auth"
	"vitalog.app/common"
	"vitalog.app/config"
	"vitalog.app/db"
	"vitalog.app/db/bolt"
	vhttp "vitalog.app/http"
	"vitalog.app/version"
)

var cfgFile string

// RootCmd is the service entry point; running it without a subcommand starts
// the HTTP server.
var RootCmd = &cobra.Command{
	Use:   "vitalog-auth",
	Short: "authentication and access-control service for the vitalog health tracker",
	Long: `Vitalog Auth Service

The authentication and role-based access control core of the vitalog health
tracker:
- Credential verification with PBKDF2 password hashing
- Failed-login tracking with automatic account lockout
- Stateless signed session tokens delivered in an httpOnly cookie
- Route-protection policy evaluated on every request without database access
- Append-only audit trail of security-relevant events

The user directory runs on PostgreSQL or an embedded bbolt file; the audit
trail goes to a Redis stream or, without Redis, to the structured log.`,
	RunE: runServer,
}

// Execute runs the root command.
func Execute() error {
	return RootCmd.Execute()
}

func init() {
	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default searches ./config.yaml, ~/.vitalog, /etc/vitalog)")

	RootCmd.PersistentFlags().Int("port", 0, "server port")
	RootCmd.PersistentFlags().String("database-driver", "", "user directory backend (postgres or bolt)")
	RootCmd.PersistentFlags().String("database-dsn", "", "postgres connection string")
	RootCmd.PersistentFlags().String("database-path", "", "bbolt database file")
	RootCmd.PersistentFlags().String("redis-addr", "", "redis address for the audit stream")
	RootCmd.PersistentFlags().String("signing-key", "", "session token signing key")

	cobra.CheckErr(viper.BindPFlag("server.port", RootCmd.PersistentFlags().Lookup("port")))
	cobra.CheckErr(viper.BindPFlag("database.driver", RootCmd.PersistentFlags().Lookup("database-driver")))
	cobra.CheckErr(viper.BindPFlag("database.dsn", RootCmd.PersistentFlags().Lookup("database-dsn")))
	cobra.CheckErr(viper.BindPFlag("database.path", RootCmd.PersistentFlags().Lookup("database-path")))
	cobra.CheckErr(viper.BindPFlag("redis.addr", RootCmd.PersistentFlags().Lookup("redis-addr")))
	cobra.CheckErr(viper.BindPFlag("security.signing_key", RootCmd.PersistentFlags().Lookup("signing-key")))

	RootCmd.AddCommand(createUserCmd)
}

// loadConfig loads the service configuration and overlays bound flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig("VITALOG", cfgFile)
	if err != nil {
		return nil, err
	}

	// Flags bound to the global viper override file and env values.
	if port := viper.GetInt("server.port"); port != 0 {
		cfg.Server.Port = port
	}
	if driver := viper.GetString("database.driver"); driver != "" {
		cfg.Database.Driver = driver
	}
	if dsn := viper.GetString("database.dsn"); dsn != "" {
		cfg.Database.DSN = dsn
	}
	if path := viper.GetString("database.path"); path != "" {
		cfg.Database.Path = path
	}
	if addr := viper.GetString("redis.addr"); addr != "" {
		cfg.Redis.Addr = addr
	}
	if key := viper.GetString("security.signing_key"); key != "" {
		cfg.Security.SigningKey = key
	}

	return cfg, config.ValidateConfig(cfg)
}

// securityPolicy maps the config section onto the explicit policy struct the
// core constructors take.
func securityPolicy(cfg *config.Config) *auth.SecurityPolicy {
	policy := auth.DefaultSecurityPolicy()
	policy.SigningKey = cfg.Security.SigningKey
	if cfg.Security.PBKDF2Iterations > 0 {
		policy.PBKDF2Iterations = cfg.Security.PBKDF2Iterations
	}
	if cfg.Security.MaxFailedAttempts > 0 {
		policy.MaxFailedAttempts = cfg.Security.MaxFailedAttempts
	}
	if cfg.Security.LockoutDuration > 0 {
		policy.LockoutDuration = cfg.Security.LockoutDuration
	}
	if cfg.Security.SessionMaxAge > 0 {
		policy.SessionMaxAge = cfg.Security.SessionMaxAge
	}
	if cfg.Security.SessionRefreshAfter > 0 {
		policy.SessionRefreshAfter = cfg.Security.SessionRefreshAfter
	}
	if cfg.Security.CookieName != "" {
		policy.CookieName = cfg.Security.CookieName
	}
	policy.CookieSecure = cfg.Security.CookieSecure
	if cfg.Security.LoginPath != "" {
		policy.LoginPath = cfg.Security.LoginPath
	}
	if cfg.Security.HomePath != "" {
		policy.HomePath = cfg.Security.HomePath
	}
	if cfg.Security.PendingPath != "" {
		policy.PendingPath = cfg.Security.PendingPath
	}
	return policy
}

// openDirectory opens the configured user directory backend.
func openDirectory(cfg *config.Config) (auth.UserDirectory, func(), error) {
	switch cfg.Database.Driver {
	case "postgres":
		gdb, err := db.OpenPostgres(db.DefaultPostgresConfig(cfg.Database.DSN))
		if err != nil {
			return nil, nil, err
		}
		directory, err := auth.NewPostgresDirectory(gdb)
		if err != nil {
			return nil, nil, err
		}
		cleanup := func() {
			if sqlDB, err := gdb.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}
		return directory, cleanup, nil
	default:
		bdb, err := bolt.Open(cfg.Database.Path)
		if err != nil {
			return nil, nil, err
		}
		directory, err := auth.NewBoltDirectory(bdb)
		if err != nil {
			_ = bdb.Close()
			return nil, nil, err
		}
		return directory, func() { _ = bdb.Close() }, nil
	}
}

// openAuditSink opens the redis stream sink, or the log sink when no redis
// address is configured.
func openAuditSink(cfg *config.Config, logger *logrus.Logger) (auth.AuditSink, func(), error) {
	if cfg.Redis.Addr == "" {
		return auth.NewLogAuditSink(logger), func() {}, nil
	}

	client, err := db.OpenRedis(db.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return nil, nil, err
	}
	return auth.NewRedisAuditSink(client, cfg.Redis.Stream), func() { _ = client.Close() }, nil
}

func newLogger(cfg *config.Config) *logrus.Logger {
	return common.NewLogger(common.LoggerConfig{
		Level:   common.LogLevel(cfg.Logging.Level),
		Format:  cfg.Logging.Format,
		Service: cfg.Service.Name,
		Version: version.Get(),
	})
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := newLogger(cfg)
	policy := securityPolicy(cfg)

	directory, closeDirectory, err := openDirectory(cfg)
	if err != nil {
		return err
	}
	defer closeDirectory()

	sink, closeSink, err := openAuditSink(cfg, logger)
	if err != nil {
		return err
	}
	defer closeSink()

	codec, err := auth.NewSessionCodec(policy)
	if err != nil {
		return err
	}

	handlers := &api.Handlers{
		Authenticator: auth.NewAuthenticator(policy, directory, sink, logger),
		Codec:         codec,
		Directory:     directory,
		Policy:        policy,
		Logger:        logger,
	}

	serverConfig := vhttp.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		Debug:           cfg.Server.Debug,
		BodyLimit:       "1M",
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		AllowedOrigins:  cfg.Server.AllowedOrigins,
		RateLimit:       cfg.Server.RateLimit,
	}

	e := vhttp.NewEchoServer(serverConfig)
	api.SetupRoutes(e, handlers, auth.NewRoutePolicy(policy), cfg.Server.LoginRateLimit)

	go func() {
		logger.WithFields(logrus.Fields{
			"host":   cfg.Server.Host,
			"port":   cfg.Server.Port,
			"driver": cfg.Database.Driver,
		}).Info("starting auth service")
		if err := vhttp.StartServer(e, serverConfig); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	return vhttp.GracefulShutdown(e, serverConfig.ShutdownTimeout)
}
