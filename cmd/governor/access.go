package main

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var accessType string

var accessCmd = &cobra.Command{
	Use:   "access",
	Short: "Access decision operations",
}

var accessCheckCmd = &cobra.Command{
	Use:   "check <user-id>",
	Short: "Print the access decision for a user and request type",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid user id: %w", err)
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		deps, err := connect(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer deps.Close()

		svcs := buildServices(deps.pool, cfg, nil)
		d := svcs.access.DecideAccess(cmd.Context(), userID, accessType)

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(d)
	},
}

func init() {
	accessCheckCmd.Flags().StringVar(&accessType, "type", "chat", "request type")
	accessCmd.AddCommand(accessCheckCmd)
}
