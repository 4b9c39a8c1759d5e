package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	_ "github.com/joho/godotenv/autoload"
	"github.com/layer-3/sessionkit"
	"github.com/layer-3/sessionkit/adapters/diagnostics"
	"github.com/layer-3/sessionkit/adapters/didkey"
	"github.com/layer-3/sessionkit/adapters/events"
	"github.com/layer-3/sessionkit/adapters/store"
	"github.com/layer-3/sessionkit/internal/config"
	"github.com/layer-3/sessionkit/internal/jwks"
	"github.com/layer-3/sessionkit/ports"
	transport "github.com/layer-3/sessionkit/transport/http"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
)

var Version = "dev"

func main() {
	defaults := config.Default()

	app := &cli.App{
		Name:  "sessionkit",
		Usage: "Session keys and capability delegation for Sign-In with Ethereum",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "env",
				Value:   defaults.Env,
				EnvVars: []string{"SESSIONKIT_ENV"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   defaults.LogLevel,
				EnvVars: []string{"SESSIONKIT_LOG_LEVEL"},
			},
		},
		Commands: []*cli.Command{
			serve,
			keygen,
			signEth,
			sign,
		},
		ErrWriter: os.Stdout,
		Version:   Version,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var serve = &cli.Command{
	Name:  "serve",
	Usage: "Serve the session manager over HTTP",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "addr",
			Value:   config.Default().Addr,
			EnvVars: []string{"SESSIONKIT_ADDR"},
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "Persist keys and publish events through Redis",
			EnvVars: []string{"SESSIONKIT_REDIS_URL"},
		},
		&cli.StringFlag{
			Name:    "key-jwk",
			Usage:   "JWK JSON or base64 JWK imported as the default key",
			EnvVars: []string{"SESSIONKIT_KEY_JWK"},
		},
		&cli.StringFlag{
			Name:    "auth-token",
			Usage:   "Bearer token required by every request",
			EnvVars: []string{"SESSIONKIT_AUTH_TOKEN"},
		},
		&cli.DurationFlag{
			Name:    "invocation-ttl",
			Value:   config.Default().InvocationTTL,
			EnvVars: []string{"SESSIONKIT_INVOCATION_TTL"},
		},
		&cli.IntFlag{
			Name:    "resolver-cache",
			Value:   config.Default().ResolverCacheSize,
			EnvVars: []string{"SESSIONKIT_RESOLVER_CACHE"},
		},
	},
	Action: func(cmd *cli.Context) error {
		cfg := config.Config{
			Addr:              cmd.String("addr"),
			RedisURL:          cmd.String("redis-url"),
			KeyJWK:            cmd.String("key-jwk"),
			AuthToken:         cmd.String("auth-token"),
			Env:               cmd.String("env"),
			LogLevel:          cmd.String("log-level"),
			InvocationTTL:     cmd.Duration("invocation-ttl"),
			ResolverCacheSize: cmd.Int("resolver-cache"),
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		return run(cmd.Context, cfg)
	},
}

func run(ctx context.Context, cfg config.Config) error {
	logger := newLogger(cfg)
	wmLogger := watermill.NewStdLogger(false, false)

	var (
		publisher message.Publisher
		vault     ports.KeyVault
	)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		redisClient := redis.NewClient(opts)
		defer redisClient.Close()

		publisher, err = redisstream.NewPublisher(
			redisstream.PublisherConfig{
				Client: redisClient,
			},
			wmLogger,
		)
		if err != nil {
			return fmt.Errorf("failed to create Redis publisher: %w", err)
		}
		vault = store.NewRedisStore(redisClient)
	} else {
		publisher = gochannel.NewGoChannel(gochannel.Config{}, wmLogger)
		vault = store.NewMemoryStore()
	}
	defer publisher.Close()

	manager, err := sessionkit.New(
		sessionkit.WithDiagnosticSink(diagnostics.NewZerologSink(logger, "session_manager")),
		sessionkit.WithEventPublisher(events.NewWatermillPublisher(publisher)),
		sessionkit.WithKeyVault(vault),
		sessionkit.WithIdentityDeriver(didkey.NewResolver(didkey.NewDeriver(), cfg.ResolverCacheSize, didkey.DefaultCacheTTL)),
		sessionkit.WithInvocationTTL(cfg.InvocationTTL),
	)
	if err != nil {
		return fmt.Errorf("failed to create session manager: %w", err)
	}

	if cfg.KeyJWK != "" {
		if _, err := manager.ImportKeyFromEnvValue(ctx, cfg.KeyJWK, nil, true); err != nil {
			return fmt.Errorf("failed to import SESSIONKIT_KEY_JWK: %w", err)
		}
	}

	did, err := manager.GetDID(ctx, nil)
	if err != nil {
		return err
	}
	logger.Info().Str("did", did).Msg("default session key ready")

	server := &http.Server{
		Addr:    cfg.Addr,
		Handler: transport.SetupRouter(manager, cfg.AuthToken, logger),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Addr).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server stopped: %w", err)
	case <-stop:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info().Msg("shutting down")
	return server.Shutdown(shutdownCtx)
}

var keygen = &cli.Command{
	Name:  "keygen",
	Usage: "Generate an Ed25519 session key as a JWK",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "seed",
			Usage: "Hex seed for deterministic derivation",
		},
		&cli.StringFlag{
			Name:  "label",
			Value: "default",
			Usage: "Derivation label, one key per label",
		},
		&cli.BoolFlag{
			Name:  "base64",
			Usage: "Print the JWK base64-encoded",
		},
	},
	Action: func(cmd *cli.Context) error {
		key, err := didkey.NewEd25519Generator().Generate()
		if seed := cmd.String("seed"); seed != "" {
			raw, decodeErr := hex.DecodeString(seed)
			if decodeErr != nil {
				return fmt.Errorf("invalid seed: %w", decodeErr)
			}
			key, err = didkey.DeriveEd25519(raw, cmd.String("label"))
		}
		if err != nil {
			return err
		}

		did, err := didkey.NewDeriver().DID(key)
		if err != nil {
			return err
		}

		var out string
		if cmd.Bool("base64") {
			out, err = jwks.EncodeBase64(key)
		} else {
			out, err = jwks.Encode(key)
		}
		if err != nil {
			return err
		}

		fmt.Fprintln(os.Stderr, did)
		fmt.Println(out)
		return nil
	},
}

func signingKeyFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "key",
		Usage:    "Hex secp256k1 private key",
		Required: true,
		EnvVars:  []string{"SESSIONKIT_SIGNING_KEY"},
	}
}

var signEth = &cli.Command{
	Name:      "sign-eth",
	Usage:     "Sign a message with the Ethereum personal-message prefix",
	ArgsUsage: "<message>",
	Flags:     []cli.Flag{signingKeyFlag()},
	Action: func(cmd *cli.Context) error {
		if cmd.NArg() != 1 {
			return fmt.Errorf("expected exactly one message argument")
		}

		sig, err := sessionkit.SignEthereumMessage(cmd.Args().First(), cmd.String("key"))
		if err != nil {
			return err
		}
		fmt.Println(sig)
		return nil
	},
}

var sign = &cli.Command{
	Name:      "sign",
	Usage:     "Sign the SHA-256 digest of a message, printing r || s as hex",
	ArgsUsage: "<message>",
	Flags:     []cli.Flag{signingKeyFlag()},
	Action: func(cmd *cli.Context) error {
		if cmd.NArg() != 1 {
			return fmt.Errorf("expected exactly one message argument")
		}

		sig, err := sessionkit.SignSecp256k1([]byte(cmd.Args().First()), cmd.String("key"))
		if err != nil {
			return err
		}
		fmt.Println(hex.EncodeToString(sig))
		return nil
	},
}

func newLogger(cfg config.Config) zerolog.Logger {
	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(cfg.Level()).With().Timestamp().Str("service", "sessionkit").Logger()
}
