package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"rainy"
	"rainy/internal/core"
)

func newStreamCommand(ctx *commandContext) *cobra.Command {
	flags := &chatFlags{}
	cmd := &cobra.Command{
		Use:   "stream <prompt>",
		Short: "Stream a chat completion as it is generated",
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
			stream, err := client.StreamChatCompletion(cmd.Context(), req)
			if err != nil {
				return err
			}
			defer stream.Close()

			out := cmd.OutOrStdout()
			var acc rainy.Accumulator
			for frame, err := range stream.All(cmd.Context()) {
				if err != nil {
					return err
				}
				switch frame.Kind {
				case core.FrameData:
					acc.Add(frame.Chunk)
					if ctx.flags.json {
						if err := writeJSON(cmd, frame.Chunk); err != nil {
							return err
						}
						continue
					}
					for _, choice := range frame.Chunk.Choices {
						fmt.Fprint(out, choice.Delta.Content)
					}
				case core.FrameParseError:
					fmt.Fprintf(cmd.ErrOrStderr(), "skipped malformed frame: %v\n", frame.Err)
				}
			}
			if !ctx.flags.json {
				fmt.Fprintln(out)
			}
			if resp := acc.Response(); resp.Usage != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "tokens=%d\n", resp.Usage.TotalTokens)
			}
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}
