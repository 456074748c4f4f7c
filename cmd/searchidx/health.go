package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/searchidx/internal/usecase/health"
)

var errUnhealthy = errors.New("index is not healthy")

func newHealthCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the service answers and the index is usable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			exists := false
			svc := health.New(
				health.CheckerFunc(func(ctx context.Context) (err error) {
					exists, err = c.Exists(ctx)
					return err
				}),
				health.CheckerFunc(func(ctx context.Context) error {
					if !exists {
						return fmt.Errorf("index %s does not exist", c.Index())
					}
					_, err := c.Count(ctx)
					return err
				}),
			)
			report := svc.Check(cmd.Context())
			if err := printJSON(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			if report.Status != health.Healthy {
				return errUnhealthy
			}
			return nil
		},
	}
}
