package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/dictpress/pkg/types"
)

func newSearchCommand(opts *rootOptions) *cobra.Command {
	var (
		q       types.SearchQuery
		admin   bool
		asJSON  bool
		noCache bool
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the dictionary",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), opts, cmd.ErrOrStderr(), appOptions{withCache: !noCache})
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			q.Query = strings.Join(args, " ")
			if !admin {
				q.Status = ""
			}
			res, err := a.searcher.Search(cmd.Context(), q, admin)
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			return printResults(cmd.OutOrStdout(), res)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&q.FromLang, "from", "english", "language of the headwords")
	flags.StringVar(&q.ToLang, "to", "*", "language of related entries (* for all)")
	flags.StringSliceVar(&q.Types, "type", nil, "relation types to include")
	flags.StringSliceVar(&q.Tags, "tag", nil, "relation tags to include")
	flags.StringVar(&q.Status, "status", "", "entry status (admin only)")
	flags.IntVar(&q.Page, "page", 1, "page number")
	flags.IntVar(&q.PerPage, "per-page", 0, "results per page")
	flags.IntVar(&q.MaxRelations, "max-relations", 0, "relations per type per entry (0 for the configured limit)")
	flags.IntVar(&q.MaxContentItems, "max-content-items", 0, "content items per related entry (0 for the configured limit)")
	flags.BoolVar(&admin, "admin", false, "bypass the cache and show internal ids")
	flags.BoolVar(&asJSON, "json", false, "print results as JSON")
	flags.BoolVar(&noCache, "no-cache", false, "do not open the result cache")
	return cmd
}

func newSuggestCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "suggest <lang> <prefix>",
		Short: "Complete a partial word",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), opts, cmd.ErrOrStderr(), appOptions{withSuggestions: true})
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			suggestions, err := a.searcher.Suggestions(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			for _, s := range suggestions {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), strings.Join(s.Content, ", ")); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printResults writes one block per entry with its relations indented
func printResults(w io.Writer, res *types.SearchResults) error {
	var b strings.Builder
	for _, e := range res.Entries {
		fmt.Fprintf(&b, "%s [%s]", strings.Join(e.Content, ", "), e.Lang)
		if e.ID != 0 {
			fmt.Fprintf(&b, " #%d", e.ID)
		}
		b.WriteByte('\n')
		for _, r := range e.Relations {
			fmt.Fprintf(&b, "  %-10s %s (%s)\n", strings.Join(r.Types, "/"), strings.Join(r.Entry.Content, ", "), r.Entry.Lang)
		}
		if len(e.Relations) < e.TotalRelations {
			fmt.Fprintf(&b, "  ... %d of %d relations\n", len(e.Relations), e.TotalRelations)
		}
	}
	fmt.Fprintf(&b, "page %d/%d, %d results\n", res.Page, res.TotalPages, res.Total)
	_, err := io.WriteString(w, b.String())
	return err
}
