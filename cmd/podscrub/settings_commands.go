package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"podscrub/internal/api"
	"podscrub/internal/command"
	"podscrub/internal/store"
)

func newSettingsCommand(ctx *commandContext) *cobra.Command {
	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "Manage application settings",
	}

	settingsCmd.AddCommand(newSettingsListCommand(ctx))
	settingsCmd.AddCommand(newSettingsGetCommand(ctx))
	settingsCmd.AddCommand(newSettingsSetCommand(ctx))
	settingsCmd.AddCommand(newSettingsUnsetCommand(ctx))

	return settingsCmd
}

func newSettingsListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withReadStore(func(st *store.Store) error {
				rows, err := st.ListSettings(cmd.Context())
				if err != nil {
					return err
				}
				settings := api.FromSettings(rows)
				if len(settings) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No settings stored")
					return nil
				}
				renderTable(cmd.OutOrStdout(),
					[]string{"Key", "Value", "Updated"},
					buildSettingRows(settings),
					[]columnAlignment{alignLeft, alignLeft, alignLeft})
				return nil
			})
		},
	}
}

func newSettingsGetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print one setting value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := strings.TrimSpace(args[0])
			return ctx.withReadStore(func(st *store.Store) error {
				value, found, err := st.GetSetting(cmd.Context(), key)
				if err != nil {
					return err
				}
				if !found {
					return fmt.Errorf("setting %s not found", key)
				}
				fmt.Fprintln(cmd.OutOrStdout(), value)
				return nil
			})
		},
	}
}

func newSettingsSetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Create or update a setting",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := strings.TrimSpace(args[0])
			if key == "" {
				return errors.New("setting key is required")
			}
			if _, err := ctx.submit(cmd.Context(), command.TypeCreate, "setting",
				map[string]any{"key": key, "value": args[1]}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Setting %s saved\n", key)
			return nil
		},
	}
}

func newSettingsUnsetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "unset <key>",
		Short: "Remove a setting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := strings.TrimSpace(args[0])
			if _, err := ctx.submit(cmd.Context(), command.TypeDelete, "setting",
				map[string]any{"id": key}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Setting %s removed\n", key)
			return nil
		},
	}
}
