// Package cmd wires the whats-send binary: a gateway serving the dispatch
// HTTP API and a worker hosting messaging sessions, both over shared Redis
// coordination state.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	whatssend "github.com/ortizmas/whats-send"
	"github.com/ortizmas/whats-send/backoff"
)

var (
	cfgFile   string
	logLevel  string
	logFormat string

	appVersion string
	appCommit  string
)

var rootCmd = &cobra.Command{
	Use:   "whats-send",
	Short: "Dispatch and session-affinity layer for pools of messaging workers",
	Long: `whats-send routes session jobs across a pool of stateful messaging
workers. The gateway accepts HTTP requests and resolves a target worker by
pin, random pick, or hash placement; workers consume their queues, host the
actual sessions, and report outcomes back through a shared cache.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		return initConfig()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion injects build-time version info.
func SetVersion(version, commit string) {
	appVersion = version
	appCommit = commit
	rootCmd.Version = fmt.Sprintf("%s (%s)", version, commit)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default: whats-send.yaml in the working directory)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text",
		"log format (text, json)")
	rootCmd.PersistentFlags().String("redis-addr", "localhost:6379",
		"address of the Redis instance holding coordination state")
	rootCmd.PersistentFlags().String("broker-addr", "",
		"address of the Redis instance carrying queues (default: redis-addr)")

	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
	_ = viper.BindPFlag("redis.addr", rootCmd.PersistentFlags().Lookup("redis-addr"))
	_ = viper.BindPFlag("broker.addr", rootCmd.PersistentFlags().Lookup("broker-addr"))

	viper.SetDefault("heartbeat.interval", 15*time.Second)
	viper.SetDefault("worker.ttl", 45*time.Second)
	viper.SetDefault("ownership.ttl", 24*time.Hour)
	viper.SetDefault("outcome.ttl", 300*time.Second)
	viper.SetDefault("connect.backoff", 3*time.Second)
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("whats-send")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/whats-send")
	}

	viper.SetEnvPrefix("WHATSSEND")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// timingConfig builds the shared timing parameters from config keys, so a
// deployment can tune cadences without rebuilding. ConnectAttempts differs
// per role and is set by the caller.
func timingConfig() whatssend.Config {
	cfg := whatssend.DefaultConfig()
	cfg.HeartbeatInterval = viper.GetDuration("heartbeat.interval")
	cfg.WorkerTTL = viper.GetDuration("worker.ttl")
	cfg.OwnershipTTL = viper.GetDuration("ownership.ttl")
	cfg.OutcomeTTL = viper.GetDuration("outcome.ttl")
	cfg.ConnectBackoff = viper.GetDuration("connect.backoff")
	return cfg
}

func newLogger() *slog.Logger {
	var level slog.Level
	switch strings.ToLower(viper.GetString("log.level")) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.ToLower(viper.GetString("log.format")) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// brokerAddr resolves the queue transport address, defaulting to the
// coordination store's address.
func brokerAddr() string {
	if addr := viper.GetString("broker.addr"); addr != "" {
		return addr
	}
	return viper.GetString("redis.addr")
}

// dialRedis connects a coordination-state client with the same bounded
// retry discipline the broker uses. Exhausting the attempts is terminal.
func dialRedis(ctx context.Context, addr string, attempts int, strategy backoff.Strategy) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{Addr: addr})

	err := backoff.Retry(ctx, attempts, strategy, func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", addr, err)
	}
	return client, nil
}
