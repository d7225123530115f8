package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/heartmarshall/safety-pulse/pkg/syncclient"
)

func watchCommand() *cobra.Command {
	var (
		session  syncclient.Session
		area     syncclient.Area
		pollOnly bool
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the pulse map of an area on a running server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			level := slog.LevelInfo
			if globalFlags.debug {
				level = slog.LevelDebug
			}
			session.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

			agent := syncclient.NewAgent(session, syncclient.Options{PollInterval: interval})
			changes, cancel := agent.Subscribe(64)
			defer cancel()

			if err := agent.Start(ctx, area, !pollOnly); err != nil {
				return err
			}
			defer agent.Stop()

			out := cmd.OutOrStdout()
			for {
				select {
				case <-ctx.Done():
					return nil
				case c, ok := <-changes:
					if !ok {
						return nil
					}
					fmt.Fprintf(out, "%s state=%s stale=%t version=%d tiles=%d changed=%d removed=%d spike=%t\n",
						time.Now().UTC().Format(time.RFC3339), c.State, c.Stale, c.Version,
						len(agent.Tiles()), len(c.ChangedTiles), len(c.RemovedTiles), agent.SpikeActive())
					if c.Alert != nil {
						fmt.Fprintf(out, "  alert level=%s risk=%.2f nearby=%d\n", c.Alert.AlertLevel, c.Alert.RiskScore, c.Alert.NearbySignals)
					}
				}
			}
		},
	}

	f := cmd.Flags()
	f.StringVar(&session.BaseURL, "server", "http://localhost:8080", "server base URL")
	f.StringVar(&session.DeviceHash, "device", "", "device hash sent as X-Device-Hash")
	f.StringVar(&session.Token, "token", "", "bearer token")
	f.Float64Var(&area.Lat, "lat", 0, "area centre latitude")
	f.Float64Var(&area.Lng, "lng", 0, "area centre longitude")
	f.Float64Var(&area.RadiusKm, "radius", 0, "area radius in km (0 follows the whole map)")
	f.BoolVar(&pollOnly, "poll", false, "poll only, never open a push connection")
	f.DurationVar(&interval, "poll-interval", syncclient.DefaultPollInterval, "pause between polls")
	return cmd
}
