package main

import (
	"errors"
	"fmt"

	"github.com/caffeineduck/scriptexec/dispatch"
	"github.com/caffeineduck/scriptexec/validate"
	"github.com/spf13/cobra"
)

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [file]",
		Short: "Validate a script without running it",
		Long: `Parse a script and screen it for denylisted calls and loads.

Prints "ok" when the script would be accepted. Otherwise prints the
rejection and exits non-zero.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCheck,
	}
	cmd.Flags().StringP("code", "c", "", "Code to check")
	return cmd
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := configFromFlags(cmd)
	if err != nil {
		return err
	}

	src, err := readScript(cmd, args)
	if errors.Is(err, errNoInput) {
		return cmd.Help()
	}
	if err != nil {
		return err
	}

	v := validate.New(
		validate.WithFunctionMessage(cfg.functionMessage),
		validate.WithModuleMessage(cfg.moduleMessage),
	)
	if _, err := v.Validate(dispatch.Filename, src); err != nil {
		var rejected *validate.RejectedError
		if errors.As(err, &rejected) {
			return fmt.Errorf("%s: %s (%s)", rejected.Reason, rejected.Name, err)
		}
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), "ok")
	return nil
}
