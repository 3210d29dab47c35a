package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	inats "github.com/aiox-platform/governor/internal/nats"
)

var retentionUser string

var retentionCmd = &cobra.Command{
	Use:   "retention",
	Short: "Conversation retention operations",
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run auto-delete once for every opted-in user (or one user with --user)",
	Long:  "Runs a single retention pass and exits. Intended for cron-style schedulers.",
	RunE:  runSweep,
}

func init() {
	sweepCmd.Flags().StringVar(&retentionUser, "user", "", "only process this user id")
	retentionCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	natsClient, err := inats.NewClient(ctx, cfg.NATS)
	if err != nil {
		slog.Warn("nats unavailable, retention notifications disabled", "error", err)
		natsClient = nil
	} else {
		defer natsClient.Close()
	}

	svcs := buildServices(deps.pool, cfg, natsClient)
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")

	if retentionUser != "" {
		userID, err := uuid.Parse(retentionUser)
		if err != nil {
			return fmt.Errorf("invalid --user: %w", err)
		}
		res, err := svcs.retention.DeleteOldConversations(ctx, userID)
		if err != nil {
			return err
		}
		return enc.Encode(res)
	}

	batch, err := svcs.retention.RunAutoDeleteForAllUsers(ctx)
	if err != nil {
		return err
	}
	return enc.Encode(batch)
}
