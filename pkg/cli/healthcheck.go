package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// ErrUnhealthy is returned by the healthcheck command when any check fails.
var ErrUnhealthy = errors.New("dependencies are not healthy")

func (a *app) newHealthcheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "healthcheck",
		Short: "Check connectivity to the record store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := a.loadConfigAndLogger(cmd.Flags())
			if err != nil {
				return err
			}
			backend, err := a.opts.Backend(cfg, log, nil)
			if err != nil {
				return err
			}
			defer func() { _ = backend.Close(cmd.Context()) }()

			result := healthRegistry(backend, cfg).Check(cmd.Context())
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "status: %s\n", result.Status)
			for _, check := range result.Checks {
				line := fmt.Sprintf("  %s: %s (%s)", check.Name, check.Status, check.Duration.Round(time.Microsecond))
				if check.Error != "" {
					line += " " + check.Error
				}
				fmt.Fprintln(out, line)
			}
			if !result.IsHealthy() {
				return ErrUnhealthy
			}
			return nil
		},
	}
}
