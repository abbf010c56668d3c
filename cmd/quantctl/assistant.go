package main

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ashureev/quantdesk/internal/assistant"
	"github.com/ashureev/quantdesk/internal/store"
)

func newHistoryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show or clear the assistant chat history",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "Print the stored messages, oldest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withBase(func(base store.Store) error {
				entries, err := assistant.NewManager(base, assistant.Options{Logger: a.logger}).
					Widget(a.profile).History().Entries(a.context(cmd))
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				for _, e := range entries {
					fmt.Fprintf(tw, "%s\t%s\n", e.Timestamp.Format(time.RFC3339), e.Text)
				}
				return tw.Flush()
			})
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every stored message",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withBase(func(base store.Store) error {
				err := assistant.NewManager(base, assistant.Options{Logger: a.logger}).
					Widget(a.profile).History().Clear(a.context(cmd))
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "history cleared")
				return nil
			})
		},
	}

	cmd.AddCommand(list, clearCmd)
	return cmd
}

func newAskCmd(a *app) *cobra.Command {
	var fresh bool
	cmd := &cobra.Command{
		Use:   "ask <text>",
		Short: "Record a message in the assistant history",
		Long: "Records a message the way the widget does. No chat frame is attached to the\n" +
			"terminal, so the message is stored but not relayed.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			return a.withBase(func(base store.Store) error {
				w := assistant.NewManager(base, assistant.Options{Logger: a.logger}).Widget(a.profile)
				send := w.Send
				if fresh {
					send = w.QuickQuestion
				}
				res, err := send(a.context(cmd), text)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "stored, %d message(s) in history (relay: %s)\n", len(res.Entries), res.Relay.Reason)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&fresh, "fresh", false, "clear the history first, like a quick question")
	return cmd
}

func newKeysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "List the persisted keys of a profile",
		RunE: func(cmd *cobra.Command, _ []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tOWNER\tSHAPE")
			for _, k := range store.Keys() {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", k.Name, k.Owner, k.Shape)
			}
			return tw.Flush()
		},
	}
}
