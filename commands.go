package main

import (
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"library-catalog/forms"
)

func parseID(kind, raw string) (int64, error) {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, errors.Errorf("invalid %s ID: %q", kind, raw)
	}
	return n, nil
}

func newAddBookCmd() *cobra.Command {
	var isbn string
	cmd := &cobra.Command{
		Use:   "add-book <title> <author>",
		Short: "Register a book",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := forms.BookInput{Title: args[0], Author: args[1], ISBN: isbn}
			return addBook(cmd.Context(), cmd.OutOrStdout(), mgr, in)
		},
	}
	cmd.Flags().StringVar(&isbn, "isbn", "", "ISBN (optional, must be unique)")
	return cmd
}

func newAddMemberCmd() *cobra.Command {
	var number string
	cmd := &cobra.Command{
		Use:   "add-member <name> <email>",
		Short: "Register a member",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := forms.MemberInput{Name: args[0], Email: args[1], MemberNumber: number}
			return addMember(cmd.Context(), cmd.OutOrStdout(), mgr, in)
		},
	}
	cmd.Flags().StringVar(&number, "number", "", "Member number (generated from the name when empty)")
	return cmd
}

func newSearchBooksCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "search-books [term]",
		Short: "Search books by title or author",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return searchBooks(cmd.Context(), cmd.OutOrStdout(), mgr, firstArg(args), asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func newSearchMembersCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "search-members [term]",
		Short: "Search members by name or email",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return searchMembers(cmd.Context(), cmd.OutOrStdout(), mgr, firstArg(args), asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func newLendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lend <book-id> <member-id>",
		Short: "Lend an available book to a member",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			bookID, err := parseID("book", args[0])
			if err != nil {
				return err
			}
			memberID, err := parseID("member", args[1])
			if err != nil {
				return err
			}
			return lend(cmd.Context(), cmd.OutOrStdout(), mgr, bookID, memberID)
		},
	}
}

func newReturnCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "return <book-id>",
		Short: "Return a book that is on loan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bookID, err := parseID("book", args[0])
			if err != nil {
				return err
			}
			return returnBook(cmd.Context(), cmd.OutOrStdout(), mgr, bookID)
		},
	}
}

func newLoansCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "loans",
		Short: "List books on loan and who holds them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listLoans(cmd.Context(), cmd.OutOrStdout(), mgr, asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func newStatsCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show catalog totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showStats(cmd.Context(), cmd.OutOrStdout(), mgr, asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
