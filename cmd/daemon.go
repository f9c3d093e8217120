package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/hire-responder/internal/logger"
	"github.com/spigell/hire-responder/internal/pipeline"
	"github.com/spigell/hire-responder/internal/scheduler"
	"github.com/spigell/hire-responder/internal/status"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the pipeline on an interval and serve its status over HTTP",
	RunE:  runDaemon,
}

func init() {
	rootCmd.AddCommand(daemonCmd)

	daemonCmd.Flags().Duration("interval", 15*time.Minute, "time between pipeline runs")
	daemonCmd.Flags().String("status-addr", ":8080", "listen address of the status server, empty disables it")
	daemonCmd.Flags().Bool("run-immediately", true, "start the first run without waiting for the interval")
	daemonCmd.Flags().Bool("dry-run", false, "log the messages that would be sent without sending them")
	daemonCmd.Flags().Bool("mock", false, "use the offline marketplace, oracle and an in-memory store")
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	config, err := getConfig()
	if err != nil {
		log.Error("failed to parse config", zap.Error(err))
		return err
	}

	interval, _ := cmd.Flags().GetDuration("interval")
	addr, _ := cmd.Flags().GetString("status-addr")
	immediately, _ := cmd.Flags().GetBool("run-immediately")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	useMock, _ := cmd.Flags().GetBool("mock")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := newServices(ctx, config, useMock, log)
	if err != nil {
		log.Error("failed to initialize", zap.Error(err))
		return err
	}
	defer svc.Close()

	for _, st := range svc.outreach.Describe() {
		fields := []zap.Field{zap.String("pass", st.Name), zap.Bool("enabled", st.Enabled)}
		for k, v := range st.Details {
			fields = append(fields, zap.String(k, v))
		}
		log.Info("outreach pass", fields...)
	}

	publisher, err := newPublisher(config.Notify, log)
	if err != nil {
		log.Error("failed to connect publisher", zap.Error(err))
		return err
	}
	defer publisher.Close()

	sched, err := scheduler.New(scheduler.Config{
		Interval:       interval,
		RunImmediately: immediately,
		Options: pipeline.Options{
			Fetch:       true,
			Analyze:     true,
			Communicate: true,
			DryRun:      dryRun,
		},
	}, svc.pipeline, publisher, logger.Component(log, "scheduler"))
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return sched.Run(gctx)
	})

	if addr != "" {
		server := status.New(addr, version, svc.pipeline, sched, logger.Component(log, "status"))
		g.Go(func() error {
			return server.Start(gctx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("daemon stopped with error", zap.Error(err))
		return err
	}

	log.Info("daemon stopped")
	return nil
}
