package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

func monitorCmd() *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Poll session states and print changes",
		Long:  "Polls the admin API at --interval and prints a line for every session whose state or logged-on flag changes, until interrupted (Ctrl+C).",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return runMonitor(ctx, interval)
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "polling interval")
	return cmd
}

type sessionKey struct {
	begin, sender, target string
}

func keyOf(s sessionView) sessionKey {
	return sessionKey{begin: s.BeginString, sender: s.SenderCompID, target: s.TargetCompID}
}

func runMonitor(ctx context.Context, interval time.Duration) error {
	last := make(map[sessionKey]sessionView)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	poll := func() error {
		sessions, err := client.listSessions()
		if err != nil {
			return fmt.Errorf("list sessions: %w", err)
		}

		for _, s := range sessions {
			key := keyOf(s)
			prev, seen := last[key]
			if !seen || prev.ConnectionState != s.ConnectionState || prev.LoggedOn != s.LoggedOn {
				fmt.Printf("[%s] %s->%s  state=%s  logged_on=%t\n",
					time.Now().Format(time.RFC3339), s.SenderCompID, s.TargetCompID, s.ConnectionState, s.LoggedOn)
			}
			last[key] = s
		}
		return nil
	}

	if err := poll(); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := poll(); err != nil {
				return err
			}
		}
	}
}
