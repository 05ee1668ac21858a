package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/emergingrobotics/go-nvme-lm/internal/config"
)

func newRunCommand(a *app) *cobra.Command {
	var profile string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the operations of a TOML profile in order",
		Long: `Run the [[operation]] steps of a TOML profile against one device.

The profile's device, timeout_ms and log_level apply unless the matching
flag is given. Controller data queues created by the profile stay mapped
until a delete-cdq step or the end of the run, which deletes the rest.
The first failing step stops the run.`,
		Example: `nvme-lm run --profile migrate.toml`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := config.Load(profile)
			if err != nil {
				return err
			}

			t := target{device: p.Device, timeout: p.Timeout, logLevel: p.LogLevel}
			if cmd.Flag("device").Changed {
				t.device = a.devicePath
			}
			if cmd.Flag("timeout").Changed {
				t.timeout = a.timeout
			}

			return a.withSession(cmd, t, false, func(ctx context.Context, s *session) error {
				for i, step := range p.Steps {
					if err := s.run(ctx, step); err != nil {
						return fmt.Errorf("operation[%d] (%s): %w", i, step.Kind, err)
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&profile, "profile", "p", "", "TOML operation profile")
	_ = cmd.MarkFlagRequired("profile")
	return cmd
}
