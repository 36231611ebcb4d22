package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"rainy/internal/version"
)

func newHealthCommand(ctx *commandContext) *cobra.Command {
	var detailed bool
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check the Rainy API health",
		RunE: func(cmd *cobra.Command, args []string) error {
			account, err := ctx.ensureAccount(cmd)
			if err != nil {
				return err
			}
			health := account.Health
			if detailed {
				health = account.DetailedHealth
			}
			h, err := health(cmd.Context())
			if err != nil {
				return err
			}
			if ctx.flags.json {
				return writeJSON(cmd, h)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Status: %s\n", h.Status)
			fmt.Fprintf(out, "Uptime: %.0fs\n", h.Uptime)
			if s := h.Services; s != nil {
				fmt.Fprintf(out, "Database: %s\n", yesNo(s.Database))
				fmt.Fprintf(out, "Redis: %s\n", yesNo(s.Redis))
				fmt.Fprintf(out, "Providers: %s\n", yesNo(s.Providers))
			}
			if !h.Healthy() {
				return fmt.Errorf("API reports status %q", h.Status)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&detailed, "detailed", false, "Include the status of the API's dependencies")
	return cmd
}

func newModelsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the models of every configured provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.ensureClient(cmd)
			if err != nil {
				return err
			}
			resp, err := client.ListModels(cmd.Context())
			if err != nil {
				return err
			}
			if ctx.flags.json {
				return writeJSON(cmd, resp)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "MODEL\tOWNER")
			for _, m := range resp.Data {
				fmt.Fprintf(tw, "%s\t%s\n", m.ID, m.OwnedBy)
			}
			return tw.Flush()
		},
	}
}

func newCapabilitiesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "capabilities",
		Short: "Show the tier, models and features of the API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			account, err := ctx.ensureAccount(cmd)
			if err != nil {
				return err
			}
			caps, err := account.Capabilities(cmd.Context())
			if err != nil {
				if caps == nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: showing offline capabilities: %v\n", err)
			}
			if ctx.flags.json {
				return writeJSON(cmd, caps)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Tier: %s\n", caps.Tier)
			fmt.Fprintf(out, "Valid: %s\n", yesNo(caps.IsValid))
			fmt.Fprintf(out, "Models: %s\n", strings.Join(caps.Models, ", "))
			fmt.Fprintf(out, "Web research: %s\n", yesNo(caps.Features.WebResearch))
			fmt.Fprintf(out, "Document export: %s\n", yesNo(caps.Features.DocumentExport))
			fmt.Fprintf(out, "Image analysis: %s\n", yesNo(caps.Features.ImageAnalysis))
			if remaining, limited := caps.Limits.RemainingTasks(); limited {
				fmt.Fprintf(out, "Tasks remaining today: %d\n", remaining)
			}
			return nil
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), version.Info())
			return nil
		},
	}
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
