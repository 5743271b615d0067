package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/orc2626-tech/botwatch/internal/connection"
	"github.com/orc2626-tech/botwatch/internal/heartbeat"
	"github.com/orc2626-tech/botwatch/internal/state"
)

func init() {
	rootCmd.AddCommand(watchCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow live bot state",
	Long: "Subscribe to the shared stream connection and print state updates as they " +
		"arrive. Falls back to REST polling while the stream is down and keeps the " +
		"dead-man's-switch heartbeat alive for the whole session.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := newLogger()

		client := newAPIClient(cfg, logger)

		streamURL, err := connection.StreamURL(cfg.Server.BaseURL, cfg.Server.AdminToken)
		if err != nil {
			return fmt.Errorf("derive stream url: %w", err)
		}

		hub := connection.NewHub(connection.HubConfig{
			URL:                streamURL,
			PingInterval:       cfg.Stream.PingInterval,
			HandshakeTimeout:   cfg.Stream.HandshakeTimeout,
			WriteTimeout:       cfg.Stream.WriteTimeout,
			ReconnectBaseDelay: cfg.Stream.ReconnectBaseDelay,
			ReconnectMaxDelay:  cfg.Stream.ReconnectMaxDelay,
			BufferSize:         cfg.Stream.BufferSize,
		}, logger)

		accessor := state.New(hub, client, cfg.Poller.Interval, logger)

		emitter := heartbeat.New(heartbeat.Config{
			Interval: cfg.Heartbeat.Interval,
			Timeout:  cfg.Server.Timeout,
		}, client, logger)

		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		g, ctx := errgroup.WithContext(ctx)

		if err := emitter.Start(ctx); err != nil {
			return fmt.Errorf("start heartbeat: %w", err)
		}
		g.Go(func() error {
			<-ctx.Done()
			stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer stopCancel()
			return emitter.Stop(stopCtx)
		})

		var lastVersion atomic.Int64
		lastVersion.Store(-1)
		unsubscribe := accessor.Subscribe(func() {
			v := accessor.View()
			switch {
			case v.Loading:
				fmt.Fprintln(os.Stdout, "waiting for first state...")
			case v.State != nil && v.State.StateVersion != lastVersion.Load():
				lastVersion.Store(v.State.StateVersion)
				fmt.Fprintf(os.Stdout, "[%s] v%d via %s (%d bytes)\n",
					statusLabel(v.Connected), v.State.StateVersion, v.State.Source, len(v.State.Payload))
			}
			if v.Err != nil {
				logger.Warn("sync error", "error", v.Err)
			}
		})
		defer unsubscribe()

		logger.Info("watching bot state",
			"server", cfg.Server.BaseURL,
			"session_id", emitter.SessionID(),
		)

		g.Go(func() error {
			<-ctx.Done()
			return nil
		})

		return g.Wait()
	},
}

func statusLabel(connected bool) string {
	if connected {
		return "live"
	}
	return "poll"
}
