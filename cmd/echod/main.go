package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/momentics/hioload-echo/internal/logging"
	"github.com/momentics/hioload-echo/internal/transport"
	"github.com/momentics/hioload-echo/server"
)

var version = "dev"

func main() {
	if err := newCommand().Execute(); err != nil {
		logrus.Fatal(err)
	}
}

func newCommand() *cobra.Command {
	f := new(flags)

	command := &cobra.Command{
		Use:     "echod",
		Short:   "epoll reactor echo server with a bounded worker pool",
		Version: version,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, f)
		},
		SilenceUsage: true,
	}
	bindFlags(command, f)
	return command
}

func bindFlags(command *cobra.Command, f *flags) {
	defaults := server.DefaultConfig()
	command.Flags().StringVarP(&f.Listen, "listen", "l", defaults.ListenAddr, "Set the listen address.")
	command.Flags().IntVarP(&f.Workers, "workers", "w", defaults.Workers, "Set the number of worker goroutines.")
	command.Flags().IntVarP(&f.QueueDepth, "queue-depth", "q", defaults.QueueDepth, "Set the task queue capacity.")
	command.Flags().StringVar(&f.Policy, "policy", defaults.SubmitPolicy.String(), "Full queue behaviour: block or reject.")
	command.Flags().IntVar(&f.BufferSize, "buffer-size", defaults.BufferSize, "Set the per-connection buffer size.")
	command.Flags().IntVar(&f.MaxConns, "max-conns", defaults.MaxConnections, "Refuse connections beyond this count (0 = unlimited).")
	command.Flags().DurationVar(&f.WaitTimeout, "wait-timeout", defaults.WaitTimeout, "Set the upper bound of one readiness wait.")
	command.Flags().StringVar(&f.Shutdown, "shutdown", defaults.ShutdownMode.String(), "Shutdown mode: graceful or forced.")
	command.Flags().BoolVar(&f.PinWorkers, "pin-workers", defaults.PinWorkers, "Pin each worker to a CPU.")
	command.Flags().StringVar(&f.LogLevel, "log-level", defaults.LogLevel, "Set the log level.")
	command.Flags().StringVarP(&f.ConfigFile, "config", "c", "", "Use a configuration file.")
}

func run(cmd *cobra.Command, f *flags) error {
	cfg, err := buildConfig(cmd, f)
	if err != nil {
		return err
	}
	if err := logging.Setup(cfg.LogLevel, os.Stderr); err != nil {
		return err
	}
	log := logging.NewLogger("echod")

	lfd, err := transport.Listen(cfg.ListenAddr, 0)
	if err != nil {
		return err
	}
	defer transport.CloseFD(lfd)

	s, err := server.New(lfd, cfg, server.WithLogger(logging.NewLogger("server")))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	if err := s.Run(ctx); err != nil {
		return err
	}
	log.WithFields(logrus.Fields(s.Stats())).
		WithField("uptime", time.Since(start).Round(time.Millisecond).String()).
		Info("shutdown complete")
	return nil
}
