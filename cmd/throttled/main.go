// Command throttled serves the demo sign-in API protected by goThrottle: a per-client rate
// limit on forgot-password and signup, an escalating lockout on signin, and admin resets.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	goThrottle "github.com/MrEthical07/goThrottle"
	"github.com/MrEthical07/goThrottle/jwt"
	"github.com/MrEthical07/goThrottle/password"
)

const adminTokenTTL = 15 * time.Minute

func newRootCmd() *cobra.Command {
	var runCfg Config

	rootCmd := &cobra.Command{
		Use:           "throttled",
		Short:         "Rate-limited sign-in API backed by Redis",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return cmdRun(ctx, runCfg)
		},
	}
	runCfg.bind(runCmd.Flags())

	var secret string
	tokenCmd := &cobra.Command{
		Use:   "admin-token <operator>",
		Short: "Print a short-lived admin token for the reset endpoints",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tokens, err := adminTokens(secret)
			if err != nil {
				return err
			}
			if tokens == nil {
				return ConfigError.New("--admin-jwt-secret is required")
			}
			token, err := tokens.Issue(args[0], jwt.ScopeReset)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	tokenCmd.Flags().StringVar(&secret, "admin-jwt-secret", envString("ADMIN_JWT_SECRET", ""), "HS256 secret (ADMIN_JWT_SECRET)")

	rootCmd.AddCommand(runCmd, tokenCmd)
	return rootCmd
}

func cmdRun(ctx context.Context, cfg Config) error {
	log, err := newLogger(cfg.LogLevel, cfg.LogDev)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	throttleCfg, err := cfg.throttleConfig()
	if err != nil {
		return err
	}

	client, closeRedis, err := openRedis(cfg, log)
	if err != nil {
		return err
	}
	defer closeRedis()

	builder := goThrottle.New().
		WithConfig(throttleCfg).
		WithRedis(client).
		WithLogger(log)
	if cfg.AuditLog {
		builder = builder.WithAuditSink(goThrottle.NewJSONWriterSink(os.Stderr))
	}
	engine, err := builder.Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	if err := engine.Ping(ctx); err != nil {
		log.Warn("redis not reachable at startup", zap.Error(err))
	}

	users, err := seedDirectory(cfg)
	if err != nil {
		return err
	}
	tokens, err := adminTokens(cfg.AdminSecret)
	if err != nil {
		return err
	}
	if tokens == nil {
		log.Warn("admin endpoints are unauthenticated; set ADMIN_JWT_SECRET")
	}

	srv := &server{engine: engine, users: users, tokens: tokens, log: log, now: time.Now}
	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.routes(cfg.CORSOrigins),
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Info("starting throttled",
		zap.String("addr", cfg.ListenAddr),
		zap.Int("max_requests", throttleCfg.RateLimit.DefaultMaxRequests),
		zap.Duration("window", throttleCfg.RateLimit.DefaultWindow),
		zap.Int("failures_per_block", throttleCfg.Login.FailuresPerBlock),
		zap.Bool("fail_open", throttleCfg.Store.FailOpen),
	)

	// if the listener fails, the context is canceled so shutdown does not hang.
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func openRedis(cfg Config, log *zap.Logger) (redis.UniversalClient, func(), error) {
	if cfg.Memory {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, nil, err
		}
		log.Info("using in-process miniredis", zap.String("addr", mr.Addr()))
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		return client, func() {
			_ = client.Close()
			mr.Close()
		}, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURI)
	if err != nil {
		return nil, nil, ConfigError.New("redis uri: %v", err)
	}
	client := redis.NewClient(opts)
	return client, func() { _ = client.Close() }, nil
}

func seedDirectory(cfg Config) (*password.Directory, error) {
	accounts, err := cfg.seedAccounts()
	if err != nil {
		return nil, err
	}
	hasher, err := password.NewHasher(password.DefaultConfig())
	if err != nil {
		return nil, err
	}

	users := password.NewDirectory(hasher)
	for _, acct := range accounts {
		if err := users.Add(acct[0], acct[1], true); err != nil {
			return nil, ConfigError.Wrap(err)
		}
	}
	return users, nil
}

// adminTokens returns nil when secret is empty.
func adminTokens(secret string) (*jwt.Manager, error) {
	if secret == "" {
		return nil, nil
	}
	tokens, err := jwt.NewManager(jwt.Config{
		TTL:           adminTokenTTL,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    []byte(secret),
		Issuer:        "throttled",
		Leeway:        30 * time.Second,
	})
	if err != nil {
		return nil, ConfigError.Wrap(err)
	}
	return tokens, nil
}

func main() {
	// .env is optional; real environment variables take precedence.
	_ = godotenv.Load()

	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
