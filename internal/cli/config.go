package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Paintersrp/warden/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Work with warden configuration files",
	}
	cmd.AddCommand(newConfigLintCmd())
	return cmd
}

func newConfigLintCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lint file",
		Short: "Validate a warden configuration file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(args[0])
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), err)
				return err
			}
			cfg.ApplyDefaults()
			if err := cfg.Validate(); err != nil {
				err = fmt.Errorf("%s: %w", args[0], err)
				fmt.Fprintln(cmd.ErrOrStderr(), err)
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", args[0])
			return nil
		},
	}
	return cmd
}
