package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	jsoniter "github.com/json-iterator/go"

	"library-catalog/library"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	headStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle = lipgloss.NewStyle().Padding(0, 1)
)

// ok prints a green success line.
func ok(w io.Writer, format string, a ...any) {
	fmt.Fprintln(w, color.GreenString("✓"), fmt.Sprintf(format, a...))
}

// warn prints a yellow warning line.
func warn(w io.Writer, format string, a ...any) {
	fmt.Fprintln(w, color.YellowString("!"), fmt.Sprintf(format, a...))
}

// fail prints a red error line. It does not exit.
func fail(w io.Writer, format string, a ...any) {
	fmt.Fprintln(w, color.RedString("✗"), fmt.Sprintf(format, a...))
}

// header prints a cyan section heading.
func header(w io.Writer, format string, a ...any) {
	fmt.Fprintln(w, color.CyanString(fmt.Sprintf(format, a...)))
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("8"))).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headStyle
			}
			return cellStyle
		})
}

func id(n int64) string { return strconv.FormatInt(n, 10) }

func renderBooks(w io.Writer, books []library.Book) {
	if len(books) == 0 {
		fmt.Fprintln(w, "No books found.")
		return
	}
	t := newTable("ID", "Title", "Author", "ISBN", "Status", "Borrower")
	for _, b := range books {
		borrower := "-"
		if b.BorrowerID != nil {
			borrower = id(*b.BorrowerID)
		}
		t.Row(id(b.ID), b.Title, b.Author, b.ISBNOrEmpty(), string(b.Status), borrower)
	}
	fmt.Fprintln(w, t.Render())
}

func renderMembers(w io.Writer, members []library.Member) {
	if len(members) == 0 {
		fmt.Fprintln(w, "No members found.")
		return
	}
	t := newTable("ID", "Name", "Email", "Member number")
	for _, m := range members {
		t.Row(id(m.ID), m.Name, m.Email, m.MemberNumber)
	}
	fmt.Fprintln(w, t.Render())
}

func renderLoans(w io.Writer, loans []library.Loan) {
	if len(loans) == 0 {
		fmt.Fprintln(w, "No books on loan.")
		return
	}
	t := newTable("Book", "Title", "Member", "Name", "Member number")
	for _, l := range loans {
		t.Row(id(l.Book.ID), l.Book.Title, id(l.Borrower.ID), l.Borrower.Name, l.Borrower.MemberNumber)
	}
	fmt.Fprintln(w, t.Render())
}

func renderStats(w io.Writer, s library.Stats) {
	header(w, "Catalog")
	fmt.Fprintf(w, "  Books:    %s\n", humanize.Comma(s.Books))
	fmt.Fprintf(w, "  Members:  %s\n", humanize.Comma(s.Members))
	fmt.Fprintf(w, "  On loan:  %s\n", humanize.Comma(s.OnLoan))
}

func renderJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
