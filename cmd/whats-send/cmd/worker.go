package cmd

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ortizmas/whats-send/backoff"
	"github.com/ortizmas/whats-send/broker"
	brokerredis "github.com/ortizmas/whats-send/broker/redis"
	"github.com/ortizmas/whats-send/engine"
	"github.com/ortizmas/whats-send/id"
	"github.com/ortizmas/whats-send/queue"
	storeredis "github.com/ortizmas/whats-send/store/redis"
	"github.com/ortizmas/whats-send/worker"
)

// workerConnectAttempts bounds the startup connection loop. Workers
// restart cheaply under an orchestrator, so they give up sooner than the
// gateway does.
const workerConnectAttempts = 5

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run a session-hosting worker",
	Long: `Run one worker process. It heartbeats its liveness record, consumes
the shared queue and its own dedicated queue, hosts messaging sessions, and
reports every outcome on the response queue.`,
	RunE: runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)

	workerCmd.Flags().String("worker-id", "", "stable worker identity (default: hostname)")
	workerCmd.Flags().Int("max-concurrency", 0, "max in-flight jobs per queue, 0 for unbounded")
	_ = viper.BindPFlag("worker.id", workerCmd.Flags().Lookup("worker-id"))
	_ = viper.BindPFlag("worker.max_concurrency", workerCmd.Flags().Lookup("max-concurrency"))
}

func runWorker(cmd *cobra.Command, _ []string) error {
	logger := newLogger()
	cfg := timingConfig()
	cfg.ConnectAttempts = workerConnectAttempts

	workerID := viper.GetString("worker.id")
	if workerID == "" {
		workerID = id.FromHost()
	}
	logger = logger.With(slog.String("worker", workerID))

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

	opts := []worker.Option{worker.WithLogger(logger)}
	if n := viper.GetInt("worker.max_concurrency"); n > 0 {
		opts = append(opts, worker.WithQueueManager(queue.NewManager(
			queue.Config{Name: broker.SharedQueue, MaxConcurrency: n},
			queue.Config{Name: broker.DedicatedQueue(workerID), MaxConcurrency: n},
		)))
	}

	rt := worker.New(workerID, st, br, engine.NewLoopback(logger), cfg, opts...)

	logger.Info("worker starting", slog.String("version", appVersion))
	if err := rt.Run(ctx); err != nil && err != context.Canceled {
		return err
	}
	return nil
}
