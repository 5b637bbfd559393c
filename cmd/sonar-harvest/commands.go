package main

import (
	"context"
	"fmt"

	"github.com/Sternrassler/sonar-harvest/internal/config"
	"github.com/Sternrassler/sonar-harvest/internal/harvest"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newRulesCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "Retrieve every Java rule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPhases(cmd, v, func(ctx context.Context, h *harvest.Harvester, report *harvest.Report) error {
				res, err := h.Rules(ctx)
				report.Add(res)
				return err
			})
		},
	}
}

func newProjectsCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "projects",
		Short: "Retrieve the Java project list, with links when --links is set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPhases(cmd, v, func(ctx context.Context, h *harvest.Harvester, report *harvest.Report) error {
				projects, res, err := h.Projects(ctx)
				report.Add(res)
				if err != nil || !v.GetBool(config.KeyLinks) {
					return err
				}
				_, res, err = h.Links(ctx, projects)
				report.Add(res)
				return err
			})
		},
	}
}

func newLinksCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "links",
		Short: "Attach project links to the stored project list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPhases(cmd, v, func(ctx context.Context, h *harvest.Harvester, report *harvest.Report) error {
				projects, err := h.StoredProjects(ctx, report)
				if err != nil {
					return err
				}
				_, res, err := h.Links(ctx, projects)
				report.Add(res)
				return err
			})
		},
	}
}

func newViolationsCmd(v *viper.Viper) *cobra.Command {
	var kind string

	cmd := &cobra.Command{
		Use:   "violations",
		Short: "Retrieve the issues of every project",
		Long: `Retrieve the issues of every stored project and write one file per
project and kind: fixed/, open-issues/ and wont-fix-false-positive/.
The project list is retrieved first when none is stored.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			kinds := harvest.AllKinds
			if kind != "all" {
				k, err := harvest.ParseKind(kind)
				if err != nil {
					return fmt.Errorf("%w: %w", errConfig, err)
				}
				kinds = []harvest.ViolationsKind{k}
			}

			return runPhases(cmd, v, func(ctx context.Context, h *harvest.Harvester, report *harvest.Report) error {
				projects, err := h.StoredProjects(ctx, report)
				if err != nil {
					return err
				}
				for _, k := range kinds {
					res, err := h.Violations(ctx, k, projects)
					report.Add(res)
					if err != nil {
						return err
					}
				}
				return ctx.Err()
			})
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "all", "fixed, open, wontfix-fp or all")
	return cmd
}

func newMetricsCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "metrics",
		Short: "Retrieve the Java files and metrics of every project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPhases(cmd, v, func(ctx context.Context, h *harvest.Harvester, report *harvest.Report) error {
				projects, err := h.StoredProjects(ctx, report)
				if err != nil {
					return err
				}
				res, err := h.Files(ctx, projects)
				report.Add(res)
				return err
			})
		},
	}
}

func newAllCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "all",
		Short: "Run every phase: rules, projects, links, violations and metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPhases(cmd, v, func(ctx context.Context, h *harvest.Harvester, report *harvest.Report) error {
				r, err := h.Run(ctx)
				report.Phases = append(report.Phases, r.Phases...)
				return err
			})
		},
	}
}
