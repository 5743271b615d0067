package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(pauseCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(killCmd)
	rootCmd.AddCommand(accountModeCmd)
	rootCmd.AddCommand(flagCmd)
	rootCmd.AddCommand(stateCmd)
}

// runCommand loads config and invokes a single control command.
func runCommand(name string, fn func(ctx context.Context, c commandClient) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger()
	client := newAPIClient(cfg, logger)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.Timeout)
	defer cancel()

	if err := fn(ctx, client); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	fmt.Printf("%s: ok\n", name)
	return nil
}

// commandClient is the slice of the API client the control commands use.
type commandClient interface {
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	Kill(ctx context.Context) error
	SetAccountMode(ctx context.Context, mode string) error
	SetFlag(ctx context.Context, name string, enabled bool) error
}

var pauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Pause trading",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCommand("pause", func(ctx context.Context, c commandClient) error {
			return c.Pause(ctx)
		})
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume trading after a pause",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCommand("resume", func(ctx context.Context, c commandClient) error {
			return c.Resume(ctx)
		})
	},
}

var killCmd = &cobra.Command{
	Use:   "kill",
	Short: "Stop the bot entirely",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCommand("kill", func(ctx context.Context, c commandClient) error {
			return c.Kill(ctx)
		})
	},
}

var accountModeCmd = &cobra.Command{
	Use:   "account-mode <mode>",
	Short: "Switch the bot account mode (e.g. paper, live)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCommand("account-mode", func(ctx context.Context, c commandClient) error {
			return c.SetAccountMode(ctx, args[0])
		})
	},
}

var flagCmd = &cobra.Command{
	Use:   "flag <name> <on|off>",
	Short: "Toggle a feature flag on the running bot",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var enabled bool
		switch args[1] {
		case "on":
			enabled = true
		case "off":
			enabled = false
		default:
			return fmt.Errorf("flag value must be on or off, got %q", args[1])
		}
		return runCommand("flag "+args[0], func(ctx context.Context, c commandClient) error {
			return c.SetFlag(ctx, args[0], enabled)
		})
	},
}

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Fetch the current state snapshot once and print it",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := newLogger()
		client := newAPIClient(cfg, logger)

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.Timeout)
		defer cancel()

		snap, err := client.GetState(ctx)
		if err != nil {
			return fmt.Errorf("fetch state: %w", err)
		}

		fmt.Fprintf(os.Stderr, "state_version=%d timestamp=%d\n", snap.StateVersion, snap.Timestamp)
		os.Stdout.Write(snap.Payload)
		fmt.Println()
		return nil
	},
}
