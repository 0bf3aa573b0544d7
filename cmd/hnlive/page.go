package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/abelbrown/hnlive/internal/feed"
	"github.com/abelbrown/hnlive/internal/hn"
	"github.com/abelbrown/hnlive/internal/ui"
)

// pager is the slice of the engine the page command drives.
type pager interface {
	NextPage(ctx context.Context) (feed.Page, error)
	Expand(ctx context.Context, itemID int) ([]feed.Comment, error)
}

func newPageCmd(v *viper.Viper) *cobra.Command {
	var pages int
	var comments bool

	cmd := &cobra.Command{
		Use:   "page",
		Short: "Print the newest pages of the feed and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			if pages < 1 {
				return fmt.Errorf("--pages must be at least 1, got %d", pages)
			}
			return withSession(cmd.Context(), v, func(ctx context.Context, s *session) error {
				return printPages(ctx, cmd.OutOrStdout(), s.engine, pages, comments)
			})
		},
	}
	cmd.Flags().IntVar(&pages, "pages", 1, "Number of pages to print")
	cmd.Flags().BoolVar(&comments, "comments", false, "Print each item's comment tree")
	return cmd
}

// printPages fetches up to n pages and writes them to w. It stops early when
// the feed runs out.
func printPages(ctx context.Context, w io.Writer, p pager, n int, withComments bool) error {
	for range n {
		page, err := p.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("page %d: %w", page.Number+1, err)
		}
		if len(page.Items) > 0 {
			fmt.Fprintf(w, "── %s · page %d ──\n", page.Filter, page.Number+1)
		}
		for _, it := range page.Items {
			writeItem(w, it)
			if !withComments || it.CommentCount() == 0 {
				continue
			}
			tree, err := p.Expand(ctx, it.ID)
			if err != nil && !errors.Is(err, feed.ErrInFlight) {
				return fmt.Errorf("comments for %d: %w", it.ID, err)
			}
			for _, c := range tree {
				writeComment(w, c)
			}
		}
		if page.Done {
			fmt.Fprintln(w, "(end of feed)")
			return nil
		}
	}
	return nil
}

func writeItem(w io.Writer, it *hn.Item) {
	fmt.Fprintf(w, "%-9d %s\n", it.ID, it.DisplayTitle())
	meta := []string{string(it.Kind), it.Author()}
	if it.Kind == hn.KindStory || it.Kind == hn.KindPoll {
		meta = append(meta, fmt.Sprintf("%d points", it.Score), fmt.Sprintf("%d comments", it.CommentCount()))
	}
	if it.URL != "" {
		meta = append(meta, it.URL)
	} else {
		meta = append(meta, it.DiscussionURL())
	}
	fmt.Fprintf(w, "          %s\n", strings.Join(meta, " · "))
}

func writeComment(w io.Writer, c feed.Comment) {
	indent := strings.Repeat("  ", c.Depth+5)
	fmt.Fprintf(w, "%s%s:\n", indent, c.Item.Author())
	for _, line := range strings.Split(ui.PlainText(c.Item.Text), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			fmt.Fprintf(w, "%s  %s\n", indent, line)
		}
	}
}
