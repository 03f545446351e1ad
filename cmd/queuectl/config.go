package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newConfigCmd(a *app) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage queue configuration",
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the current configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, _, err := a.open()
			if err != nil {
				return err
			}
			cfg, err := st.LoadConfig(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("max-retries:       %d\n", cfg.MaxRetries)
			fmt.Printf("backoff-base:      %g\n", cfg.BackoffBase)
			fmt.Printf("backoff-max-delay: %ds\n", cfg.BackoffMaxDelay)
			return nil
		},
	}

	setCmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value (max-retries, backoff-base, backoff-max-delay)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, _, err := a.open()
			if err != nil {
				return err
			}
			cfg, err := st.LoadConfig(cmd.Context())
			if err != nil {
				return err
			}

			key, value := args[0], args[1]
			switch key {
			case "max-retries":
				n, err := strconv.Atoi(value)
				if err != nil {
					return fmt.Errorf("invalid value for max-retries: %q", value)
				}
				cfg.MaxRetries = n
			case "backoff-base":
				f, err := strconv.ParseFloat(value, 64)
				if err != nil {
					return fmt.Errorf("invalid value for backoff-base: %q", value)
				}
				cfg.BackoffBase = f
			case "backoff-max-delay":
				n, err := strconv.Atoi(value)
				if err != nil {
					return fmt.Errorf("invalid value for backoff-max-delay: %q", value)
				}
				cfg.BackoffMaxDelay = n
			default:
				return fmt.Errorf("unknown config key: %s", key)
			}

			if err := st.SaveConfig(cmd.Context(), cfg); err != nil {
				return err
			}
			fmt.Printf("%s = %s\n", key, value)
			return nil
		},
	}

	configCmd.AddCommand(showCmd, setCmd)
	return configCmd
}
