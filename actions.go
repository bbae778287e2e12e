package main

import (
	"context"
	"io"

	"github.com/pkg/errors"

	"library-catalog/forms"
	"library-catalog/library"
)

// errRefused marks a request the catalog turned down after the reason was
// already printed. The menu ignores it; one-shot commands exit non-zero.
var errRefused = errors.New("request refused")

func addBook(ctx context.Context, w io.Writer, mgr *library.LibraryManager, in forms.BookInput) error {
	in.Normalize()
	if err := forms.Validate(in); err != nil {
		return err
	}
	bookID, err := mgr.RegisterBook(ctx, in.Title, in.Author, in.ISBN)
	if library.IsIntegrityViolation(err) {
		fail(w, "A book with ISBN %s is already registered.", in.ISBN)
		return errRefused
	}
	if err != nil {
		return errors.Wrap(err, "adding book")
	}
	ok(w, "Added book %q with ID %d", in.Title, bookID)
	return nil
}

func addMember(ctx context.Context, w io.Writer, mgr *library.LibraryManager, in forms.MemberInput) error {
	in.Normalize()
	if err := forms.Validate(in); err != nil {
		return err
	}
	memberID, err := mgr.RegisterMember(ctx, in.Name, in.Email, in.MemberNumber)
	if library.IsIntegrityViolation(err) {
		fail(w, "Member number %s is already in use.", in.MemberNumber)
		return errRefused
	}
	if err != nil {
		return errors.Wrap(err, "adding member")
	}
	ok(w, "Added member %q with ID %d (member number %s)", in.Name, memberID, in.MemberNumber)
	return nil
}

func searchBooks(ctx context.Context, w io.Writer, mgr *library.LibraryManager, term string, asJSON bool) error {
	books, err := mgr.SearchBooks(ctx, term)
	if err != nil {
		return errors.Wrap(err, "searching books")
	}
	if asJSON {
		return renderJSON(w, books)
	}
	renderBooks(w, books)
	return nil
}

func searchMembers(ctx context.Context, w io.Writer, mgr *library.LibraryManager, term string, asJSON bool) error {
	members, err := mgr.SearchMembers(ctx, term)
	if err != nil {
		return errors.Wrap(err, "searching members")
	}
	if asJSON {
		return renderJSON(w, members)
	}
	renderMembers(w, members)
	return nil
}

func lend(ctx context.Context, w io.Writer, mgr *library.LibraryManager, bookID, memberID int64) error {
	lent, err := mgr.Lend(ctx, bookID, memberID)
	if err != nil {
		return errors.Wrap(err, "lending book")
	}
	if lent {
		ok(w, "Book %d lent to member %d", bookID, memberID)
		return nil
	}
	warn(w, "Could not lend book %d: %s.", bookID, lendRefusal(ctx, mgr, bookID, memberID))
	return errRefused
}

// lendRefusal looks up why a lend changed nothing. Lookups run after the
// update, so the answer can be stale under concurrent writers.
func lendRefusal(ctx context.Context, mgr *library.LibraryManager, bookID, memberID int64) string {
	book, err := mgr.GetBook(ctx, bookID)
	if errors.Is(err, library.ErrNotFound) {
		return "no such book"
	}
	if err == nil && !book.Available() {
		return "it is already on loan"
	}
	if _, err := mgr.GetMember(ctx, memberID); errors.Is(err, library.ErrNotFound) {
		return "no member with ID " + id(memberID)
	}
	return "the catalog refused the loan"
}

func returnBook(ctx context.Context, w io.Writer, mgr *library.LibraryManager, bookID int64) error {
	returned, err := mgr.ReturnBook(ctx, bookID)
	if err != nil {
		return errors.Wrap(err, "returning book")
	}
	if returned {
		ok(w, "Book %d returned", bookID)
		return nil
	}
	reason := "it is not on loan"
	if _, err := mgr.GetBook(ctx, bookID); errors.Is(err, library.ErrNotFound) {
		reason = "no such book"
	}
	warn(w, "Could not return book %d: %s.", bookID, reason)
	return errRefused
}

func listLoans(ctx context.Context, w io.Writer, mgr *library.LibraryManager, asJSON bool) error {
	loans, err := mgr.Loans(ctx)
	if err != nil {
		return errors.Wrap(err, "listing loans")
	}
	if asJSON {
		return renderJSON(w, loans)
	}
	renderLoans(w, loans)
	return nil
}

func showStats(ctx context.Context, w io.Writer, mgr *library.LibraryManager, asJSON bool) error {
	stats, err := mgr.Stats(ctx)
	if err != nil {
		return errors.Wrap(err, "reading stats")
	}
	if asJSON {
		return renderJSON(w, stats)
	}
	renderStats(w, stats)
	return nil
}
