package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"rainy"
)

type chatFlags struct {
	system      string
	maxTokens   int
	temperature float64
}

func (f *chatFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.system, "system", "s", "", "System prompt")
	cmd.Flags().IntVar(&f.maxTokens, "max-tokens", 0, "Maximum tokens to generate (0 uses the model default)")
	cmd.Flags().Float64VarP(&f.temperature, "temperature", "t", -1, "Sampling temperature between 0 and 2 (unset uses the model default)")
}

func (c *commandContext) chatRequest(f *chatFlags, args []string) (*rainy.ChatRequest, error) {
	prompt := strings.TrimSpace(strings.Join(args, " "))
	if prompt == "" {
		return nil, errors.New("a prompt is required")
	}
	req := &rainy.ChatRequest{
		Model:    c.model(),
		Provider: c.flags.provider,
	}
	if f.system != "" {
		req.Messages = append(req.Messages, rainy.SystemMessage(f.system))
	}
	req.Messages = append(req.Messages, rainy.UserMessage(prompt))
	if f.maxTokens > 0 {
		req.MaxTokens = &f.maxTokens
	}
	if f.temperature >= 0 {
		req.Temperature = &f.temperature
	}
	return req, nil
}

func newChatCommand(ctx *commandContext) *cobra.Command {
	flags := &chatFlags{}
	cmd := &cobra.Command{
		Use:   "chat <prompt>",
		Short: "Send a chat completion and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.ensureClient(cmd)
			if err != nil {
				return err
			}
			req, err := ctx.chatRequest(flags, args)
			if err != nil {
				return err
			}
			resp, meta, err := client.ChatCompletion(cmd.Context(), req)
			if err != nil {
				return err
			}
			if ctx.flags.json {
				return writeJSON(cmd, struct {
					Response *rainy.ChatResponse     `json:"response"`
					Metadata *rainy.ResponseMetadata `json:"metadata"`
				}{resp, meta})
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.Content())
			printMetadata(cmd, meta)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

// printMetadata writes a one-line summary of the call to stderr
func printMetadata(cmd *cobra.Command, meta *rainy.ResponseMetadata) {
	if meta == nil {
		return
	}
	parts := []string{
		"provider=" + meta.Provider,
		fmt.Sprintf("attempts=%d", meta.Attempts),
		"latency=" + meta.Latency.Round(1e6).String(),
	}
	if meta.RequestID != "" {
		parts = append(parts, "request_id="+meta.RequestID)
	}
	if meta.TokensUsed != nil {
		parts = append(parts, fmt.Sprintf("tokens=%d", *meta.TokensUsed))
	}
	if meta.CreditsRemaining != nil {
		parts = append(parts, fmt.Sprintf("credits_remaining=%.2f", *meta.CreditsRemaining))
	}
	fmt.Fprintln(cmd.ErrOrStderr(), strings.Join(parts, " "))
}
