package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/pkg/errors"

	"library-catalog/forms"
	"library-catalog/library"
)

var menuItems = []struct {
	key, name, help string
}{
	{"1", "add book", "register a book"},
	{"2", "add member", "register a member"},
	{"3", "search books", "search titles and authors"},
	{"4", "search members", "search names and emails"},
	{"5", "lend", "lend a book to a member"},
	{"6", "return", "return a book"},
	{"7", "loans", "list books on loan"},
	{"8", "stats", "catalog totals"},
	{"9", "help", "show this menu"},
	{"0", "exit", "leave"},
}

// session is one run of the interactive menu.
type session struct {
	in     *bufio.Scanner
	out    io.Writer
	mgr    *library.LibraryManager
	prompt bool
}

func newSession(in io.Reader, out io.Writer, mgr *library.LibraryManager, interactive bool) *session {
	return &session{in: bufio.NewScanner(in), out: out, mgr: mgr, prompt: interactive}
}

// run reads commands until "exit" or end of input. Errors from a command are
// printed and the menu continues.
func (s *session) run(ctx context.Context) {
	if s.prompt {
		header(s.out, "Library catalog")
	}
	s.printMenu()

	for {
		if s.prompt {
			fmt.Fprint(s.out, "\n> ")
		}
		if !s.in.Scan() {
			return
		}
		cmd := strings.ToLower(strings.TrimSpace(s.in.Text()))
		if cmd == "" {
			continue
		}

		var err error
		switch cmd {
		case "1", "add book":
			err = s.handleAddBook(ctx)
		case "2", "add member":
			err = s.handleAddMember(ctx)
		case "3", "search books", "search book":
			err = s.handleSearchBooks(ctx)
		case "4", "search members":
			err = s.handleSearchMembers(ctx)
		case "5", "lend", "checkout":
			err = s.handleLend(ctx)
		case "6", "return":
			err = s.handleReturn(ctx)
		case "7", "loans":
			err = listLoans(ctx, s.out, s.mgr, false)
		case "8", "stats":
			err = showStats(ctx, s.out, s.mgr, false)
		case "9", "help", "?":
			s.printMenu()
		case "0", "exit", "quit":
			fmt.Fprintln(s.out, "Goodbye!")
			return
		default:
			warn(s.out, "Unknown command %q. Type 'help' for the menu.", cmd)
		}
		if err != nil && !errors.Is(err, errRefused) {
			fail(s.out, "%v", err)
		}
	}
}

func (s *session) printMenu() {
	fmt.Fprintln(s.out, "Commands:")
	for _, it := range menuItems {
		fmt.Fprintf(s.out, "  %s  %-15s %s\n", color.CyanString(it.key), it.name, it.help)
	}
}

// ask prints label (when prompting) and reads one trimmed line.
func (s *session) ask(label string) (string, error) {
	if s.prompt {
		fmt.Fprint(s.out, label+": ")
	}
	if !s.in.Scan() {
		if err := s.in.Err(); err != nil {
			return "", err
		}
		return "", io.ErrUnexpectedEOF
	}
	return strings.TrimSpace(s.in.Text()), nil
}

func (s *session) askID(label string) (int64, error) {
	raw, err := s.ask(label)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, errors.Errorf("invalid %s: %q", strings.ToLower(label), raw)
	}
	return n, nil
}

func (s *session) handleAddBook(ctx context.Context) error {
	var in forms.BookInput
	var err error
	if in.Title, err = s.ask("Title"); err != nil {
		return err
	}
	if in.Author, err = s.ask("Author"); err != nil {
		return err
	}
	if in.ISBN, err = s.ask("ISBN (optional)"); err != nil {
		return err
	}
	return addBook(ctx, s.out, s.mgr, in)
}

func (s *session) handleAddMember(ctx context.Context) error {
	var in forms.MemberInput
	var err error
	if in.Name, err = s.ask("Name"); err != nil {
		return err
	}
	if in.Email, err = s.ask("Email"); err != nil {
		return err
	}
	if in.MemberNumber, err = s.ask("Member number (blank to generate)"); err != nil {
		return err
	}
	return addMember(ctx, s.out, s.mgr, in)
}

func (s *session) handleSearchBooks(ctx context.Context) error {
	term, err := s.ask("Search")
	if err != nil {
		return err
	}
	return searchBooks(ctx, s.out, s.mgr, term, false)
}

func (s *session) handleSearchMembers(ctx context.Context) error {
	term, err := s.ask("Search")
	if err != nil {
		return err
	}
	return searchMembers(ctx, s.out, s.mgr, term, false)
}

func (s *session) handleLend(ctx context.Context) error {
	bookID, err := s.askID("Book ID")
	if err != nil {
		return err
	}
	memberID, err := s.askID("Member ID")
	if err != nil {
		return err
	}
	return lend(ctx, s.out, s.mgr, bookID, memberID)
}

func (s *session) handleReturn(ctx context.Context) error {
	bookID, err := s.askID("Book ID")
	if err != nil {
		return err
	}
	return returnBook(ctx, s.out, s.mgr, bookID)
}
