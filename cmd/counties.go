package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var countiesCmd = &cobra.Command{
	Use:   "counties",
	Short: "List the counties available for a state",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("counties"); err != nil {
			return err
		}
		state, _ := cmd.Flags().GetString("state")
		if state == "" {
			return eris.New("--state is required")
		}

		env, err := initExplorer(ctx, cfg, 0)
		if err != nil {
			return err
		}
		defer env.Close()

		counties, err := env.Explorer.Counties(ctx, state)
		if err != nil {
			return eris.Wrapf(err, "counties: %s", state)
		}
		if len(counties) == 0 {
			fmt.Fprintf(cmd.ErrOrStderr(), "No counties found for %s.\n", state)
			return nil
		}
		for _, c := range counties {
			fmt.Fprintln(cmd.OutOrStdout(), c)
		}
		return nil
	},
}

func init() {
	countiesCmd.Flags().String("state", "", "state name, e.g. California")
	rootCmd.AddCommand(countiesCmd)
}
