package cmd

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ortizmas/whats-send/api"
	"github.com/ortizmas/whats-send/backoff"
	brokerredis "github.com/ortizmas/whats-send/broker/redis"
	"github.com/ortizmas/whats-send/gateway"
	storeredis "github.com/ortizmas/whats-send/store/redis"
)

// gatewayConnectAttempts bounds the startup connection loop. The gateway
// fronts callers, so it gets the longer budget.
const gatewayConnectAttempts = 10

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Run the dispatch gateway and its HTTP API",
	Long: `Run the dispatch gateway. It serves the HTTP API, resolves a target
worker for every submitted job, and drains the response queue into the
retrievable outcome cache.`,
	RunE: runGateway,
}

func init() {
	rootCmd.AddCommand(gatewayCmd)

	gatewayCmd.Flags().String("http-addr", ":8080", "HTTP listen address")
	_ = viper.BindPFlag("http.addr", gatewayCmd.Flags().Lookup("http-addr"))
}

func runGateway(cmd *cobra.Command, _ []string) error {
	logger := newLogger()
	cfg := timingConfig()
	cfg.ConnectAttempts = gatewayConnectAttempts

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	retry := backoff.NewConstant(cfg.ConnectBackoff)

	client, err := dialRedis(ctx, viper.GetString("redis.addr"), cfg.ConnectAttempts, retry)
	if err != nil {
		return err
	}
	defer client.Close()
	st := storeredis.New(client, storeredis.WithLogger(logger))

	br, err := brokerredis.Dial(ctx, brokerAddr(), cfg.ConnectAttempts, retry,
		brokerredis.WithLogger(logger))
	if err != nil {
		return err
	}
	defer br.Close()

	gw := gateway.New(st, br, cfg, gateway.WithLogger(logger))

	go func() {
		if err := gw.ConsumeResponses(ctx); err != nil && ctx.Err() == nil {
			logger.Error("response consumer stopped", slog.String("error", err.Error()))
			stop()
		}
	}()

	srv := api.New(gw, api.WithLogger(logger))
	logger.Info("gateway starting",
		slog.String("version", appVersion),
		slog.String("http", viper.GetString("http.addr")),
	)
	if err := srv.ListenAndServe(ctx, viper.GetString("http.addr")); err != nil {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}
