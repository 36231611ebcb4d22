package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	flags := &globalFlags{}
	ctx := newCommandContext(flags)

	rootCmd := &cobra.Command{
		Use:           "rainy",
		Short:         "Chat completions through the Rainy API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return ctx.close(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.config, "config", "c", "", "Configuration file path")
	pf.StringVarP(&flags.provider, "provider", "p", "", "Provider to route to (rainy, openai, gemini, groq, cerebras)")
	pf.StringVarP(&flags.model, "model", "m", "", "Model ID, optionally prefixed with a provider")
	pf.BoolVar(&flags.metrics, "metrics", false, "Print Prometheus metrics to stderr when the command finishes")
	pf.BoolVar(&flags.json, "json", false, "Print JSON instead of text")

	rootCmd.AddCommand(newChatCommand(ctx))
	rootCmd.AddCommand(newStreamCommand(ctx))
	rootCmd.AddCommand(newHealthCommand(ctx))
	rootCmd.AddCommand(newModelsCommand(ctx))
	rootCmd.AddCommand(newCapabilitiesCommand(ctx))
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}
