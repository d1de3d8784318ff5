package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/slok/goaccept"
	"github.com/slok/goaccept/accept"
	"github.com/slok/goaccept/backpressure"
	"github.com/slok/goaccept/log"
	"github.com/slok/goaccept/metrics"
)

var (
	cfgFile string
	flagCfg = defaultConfig()
)

var rootCmd = &cobra.Command{
	Use:   "goaccept-echo",
	Short: "Line echo server with connection backpressure",
	Long: `goaccept-echo echoes back every line it receives.

The number of connections handled at the same time is limited, the clients
over the limit wait in the kernel backlog until a connection is closed.
Transient accept errors (e.g. running out of file descriptors) are retried
with backoff instead of stopping the server.`,
	SilenceUsage: true,
	RunE:         run,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().StringVarP(&cfgFile, "config", "c", "", "YAML config file, flags override its values")
	registerFlags(rootCmd.Flags(), &flagCfg)
}

func run(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfigFile(cfgFile)
	if err != nil {
		return err
	}
	mergeFlags(cmd.Flags(), flagCfg, &cfg)

	lvl, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	ll := logrus.New()
	ll.SetLevel(lvl)
	logger := log.NewLogrus(logrus.NewEntry(ll)).WithKV(log.KV{"app": "goaccept-echo"})

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.NewPrometheusRecorder(reg)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	lim, err := backpressure.New(backpressure.Config{
		MaxConnections:  cfg.MaxConnections,
		ID:              "echo",
		Logger:          logger,
		MetricsRecorder: recorder,
	})
	if err != nil {
		return err
	}

	acceptMW, err := accept.NewMiddleware(accept.ListenerConfig{
		MinDelay:        cfg.MinDelay,
		MaxDelay:        cfg.MaxDelay,
		RateLimit:       cfg.AcceptRate,
		ID:              "echo",
		Logger:          logger,
		MetricsRecorder: recorder,
	})
	if err != nil {
		return err
	}

	raw, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return fmt.Errorf("could not listen on %s: %w", cfg.Listen, err)
	}
	l := goaccept.ListenerChain(raw, backpressure.NewMiddleware(lim), acceptMW)

	if cfg.MetricsListen != "" {
		srv := &http.Server{
			Addr:              cfg.MetricsListen,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Infof("serving metrics on %s", cfg.MetricsListen)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Errorf("metrics server: %s", err)
			}
		}()
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()
	}

	logger.Infof("listening on %s with a limit of %d connections", raw.Addr(), cfg.MaxConnections)
	err = goaccept.Serve(ctx, l, echoHandler(logger, lim))
	logger.Infof("stopped, %s", lim)
	return err
}

func echoHandler(logger log.Logger, lim *backpressure.Limiter) goaccept.Handler {
	return func(ctx context.Context, conn net.Conn) {
		logger := logger.WithKV(log.KV{"conn": uuid.NewString(), "remote": conn.RemoteAddr().String()})
		logger.Infof("connected, %s", lim)
		defer logger.Infof("disconnected")

		// Unblock the read when stopping.
		stop := context.AfterFunc(ctx, func() { _ = conn.SetReadDeadline(time.Now()) })
		defer stop()

		r := bufio.NewReader(conn)
		for {
			line, err := r.ReadBytes('\n')
			if len(line) > 0 {
				if _, werr := conn.Write(line); werr != nil {
					logger.Warningf("write error: %s", werr)
					return
				}
			}
			if err != nil {
				return
			}
		}
	}
}
