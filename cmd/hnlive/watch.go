package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/abelbrown/hnlive/internal/feed"
	"github.com/abelbrown/hnlive/internal/hn"
)

func newWatchCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Poll for new items and print them as they arrive",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), v, func(ctx context.Context, s *session) error {
				events := s.engine.Subscribe()
				defer s.engine.Unsubscribe(events)

				s.engine.Run(ctx)
				defer s.engine.Wait()

				fmt.Fprintf(cmd.ErrOrStderr(), "watching %s every %s (ctrl+c to stop)\n",
					s.cfg.Filter, s.cfg.PollInterval)
				watch(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr(), events)
				return nil
			})
		},
	}
}

// watch prints live updates to out and cycle failures to errw until ctx is
// done or events is closed.
func watch(ctx context.Context, out, errw io.Writer, events <-chan feed.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			switch ev := ev.(type) {
			case feed.LiveUpdateAppended:
				for _, it := range ev.Items {
					writeItem(out, it)
				}
			case feed.CycleFailed:
				retry := ""
				if ev.Stream == feed.StreamPoll && hn.IsTransient(ev.Err) {
					retry = " (retrying next tick)"
				}
				fmt.Fprintf(errw, "%s cycle failed: %v%s\n", ev.Stream, ev.Err, retry)
			}
		}
	}
}
