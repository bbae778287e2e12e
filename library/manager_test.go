package library_test

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"library-catalog/library"
)

func newManager(t *testing.T) *library.LibraryManager {
	t.Helper()
	lm, err := library.Open(context.Background(), library.Options{Path: library.MemoryPath}, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { lm.Close() })
	return lm
}

func TestRegisterBookRoundTrip(t *testing.T) {
	tests := []struct {
		name, title, author, isbn, term string
	}{
		{name: "full", title: "The Pragmatic Programmer", author: "Hunt", isbn: "020161622X", term: "Pragmatic"},
		{name: "no isbn", title: "Refactoring", author: "Fowler", isbn: "", term: "factor"},
		{name: "lower case term", title: "Domain-Driven Design", author: "Evans", isbn: "0321125215", term: "domain"},
		{name: "prefix", title: "Sult", author: "Knut Hamsun", isbn: "8205", term: "Sul"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			lm := newManager(t)

			id, err := lm.RegisterBook(ctx, tt.title, tt.author, tt.isbn)
			require.NoError(t, err)
			require.NotZero(t, id)

			books, err := lm.SearchBooks(ctx, tt.term)
			require.NoError(t, err)
			require.Len(t, books, 1)

			b := books[0]
			require.Equal(t, id, b.ID)
			require.Equal(t, tt.title, b.Title)
			require.Equal(t, tt.author, b.Author)
			require.Equal(t, tt.isbn, b.ISBNOrEmpty())
			require.Equal(t, library.StatusAvailable, b.Status)
			require.Nil(t, b.BorrowerID)
		})
	}
}

func TestRegisterMemberRoundTrip(t *testing.T) {
	ctx := context.Background()
	lm := newManager(t)

	id, err := lm.RegisterMember(ctx, "Kari Nordmann", "kari@example.no", "K01")
	require.NoError(t, err)

	for _, term := range []string{"kari@", "example.no", "Nordmann"} {
		members, err := lm.SearchMembers(ctx, term)
		require.NoError(t, err)
		require.Len(t, members, 1, "term %q", term)
		require.Equal(t, id, members[0].ID)
		require.Equal(t, "kari@example.no", members[0].Email)
		require.Equal(t, "K01", members[0].MemberNumber)
	}
}

func TestLendReturnCycle(t *testing.T) {
	ctx := context.Background()
	lm := newManager(t)

	bookID, err := lm.RegisterBook(ctx, "Clean Code", "Uncle Bob", "999")
	require.NoError(t, err)
	memberID, err := lm.RegisterMember(ctx, "Per", "per@test.no", "P01")
	require.NoError(t, err)

	ok, err := lm.Lend(ctx, bookID, memberID)
	require.NoError(t, err)
	require.True(t, ok)

	books, err := lm.SearchBooks(ctx, "Clean")
	require.NoError(t, err)
	require.Len(t, books, 1)
	require.Equal(t, library.StatusUnavailable, books[0].Status)
	require.NotNil(t, books[0].BorrowerID)
	require.Equal(t, memberID, *books[0].BorrowerID)

	ok, err = lm.Lend(ctx, bookID, memberID)
	require.NoError(t, err)
	require.False(t, ok, "second lend must be rejected")

	ok, err = lm.ReturnBook(ctx, bookID)
	require.NoError(t, err)
	require.True(t, ok)

	books, err = lm.SearchBooks(ctx, "Clean")
	require.NoError(t, err)
	require.Equal(t, library.StatusAvailable, books[0].Status)
	require.Nil(t, books[0].BorrowerID)

	// the book cycles indefinitely
	ok, err = lm.Lend(ctx, bookID, memberID)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestUnknownIDs(t *testing.T) {
	ctx := context.Background()
	lm := newManager(t)

	bookID, err := lm.RegisterBook(ctx, "Book", "Author", "")
	require.NoError(t, err)
	memberID, err := lm.RegisterMember(ctx, "Member", "m@example.com", "M01")
	require.NoError(t, err)

	ok, err := lm.Lend(ctx, bookID+100, memberID)
	require.NoError(t, err)
	require.False(t, ok, "unknown book")

	ok, err = lm.Lend(ctx, bookID, memberID+100)
	require.NoError(t, err)
	require.False(t, ok, "unknown member")

	ok, err = lm.ReturnBook(ctx, bookID+100)
	require.NoError(t, err)
	require.False(t, ok, "unknown book on return")

	b, err := lm.GetBook(ctx, bookID)
	require.NoError(t, err)
	require.True(t, b.Available(), "failed lend must not touch the book")
}

func TestReturnAvailableBookIsNoop(t *testing.T) {
	ctx := context.Background()
	lm := newManager(t)

	bookID, err := lm.RegisterBook(ctx, "Book", "Author", "111")
	require.NoError(t, err)
	before, err := lm.GetBook(ctx, bookID)
	require.NoError(t, err)

	ok, err := lm.ReturnBook(ctx, bookID)
	require.NoError(t, err)
	require.False(t, ok)

	after, err := lm.GetBook(ctx, bookID)
	require.NoError(t, err)
	require.Equal(t, before, after)
}

func TestDuplicateISBN(t *testing.T) {
	ctx := context.Background()
	lm := newManager(t)

	firstID, err := lm.RegisterBook(ctx, "Clean Code", "Uncle Bob", "999")
	require.NoError(t, err)

	_, err = lm.RegisterBook(ctx, "Impostor", "Nobody", "999")
	require.ErrorIs(t, err, library.ErrIntegrityViolation)

	books, err := lm.ListBooks(ctx)
	require.NoError(t, err)
	require.Len(t, books, 1)
	require.Equal(t, firstID, books[0].ID)
	require.Equal(t, "Clean Code", books[0].Title)
	require.Equal(t, "Uncle Bob", books[0].Author)
}

func TestBlankISBNsDoNotCollide(t *testing.T) {
	ctx := context.Background()
	lm := newManager(t)

	_, err := lm.RegisterBook(ctx, "One", "A", "")
	require.NoError(t, err)
	_, err = lm.RegisterBook(ctx, "Two", "B", "  ")
	require.NoError(t, err)
}

func TestDuplicateMemberNumber(t *testing.T) {
	ctx := context.Background()
	lm := newManager(t)

	_, err := lm.RegisterMember(ctx, "Per", "per@test.no", "P01")
	require.NoError(t, err)
	_, err = lm.RegisterMember(ctx, "Pål", "pal@test.no", "P01")
	require.ErrorIs(t, err, library.ErrIntegrityViolation)

	members, err := lm.ListMembers(ctx)
	require.NoError(t, err)
	require.Len(t, members, 1)
	require.Equal(t, "Per", members[0].Name)
}

func TestSearchMatchesLiterally(t *testing.T) {
	ctx := context.Background()
	lm := newManager(t)

	for _, title := range []string{"100% Go", "1000 Go", "snake_case", "snakeXcase"} {
		_, err := lm.RegisterBook(ctx, title, "Author", "")
		require.NoError(t, err)
	}

	books, err := lm.SearchBooks(ctx, "0%")
	require.NoError(t, err)
	require.Len(t, books, 1)
	require.Equal(t, "100% Go", books[0].Title)

	books, err = lm.SearchBooks(ctx, "_")
	require.NoError(t, err)
	require.Len(t, books, 1)
	require.Equal(t, "snake_case", books[0].Title)

	books, err = lm.SearchBooks(ctx, "author")
	require.NoError(t, err)
	require.Len(t, books, 4, "author match is case-insensitive")

	books, err = lm.SearchBooks(ctx, "")
	require.NoError(t, err)
	require.Len(t, books, 4, "empty term matches everything")
}

func TestLoansAndBorrowedBy(t *testing.T) {
	ctx := context.Background()
	lm := newManager(t)

	b1, _ := lm.RegisterBook(ctx, "Book One", "A", "")
	b2, _ := lm.RegisterBook(ctx, "Book Two", "B", "")
	_, _ = lm.RegisterBook(ctx, "Book Three", "C", "")
	alice, _ := lm.RegisterMember(ctx, "Alice", "alice@example.com", "A01")
	bob, _ := lm.RegisterMember(ctx, "Bob", "bob@example.com", "B01")

	ok, err := lm.Lend(ctx, b1, alice)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = lm.Lend(ctx, b2, bob)
	require.NoError(t, err)
	require.True(t, ok)

	loans, err := lm.Loans(ctx)
	require.NoError(t, err)
	require.Len(t, loans, 2)
	require.Equal(t, b1, loans[0].Book.ID)
	require.Equal(t, alice, loans[0].Borrower.ID)
	require.Equal(t, "Alice", loans[0].Borrower.Name)
	require.Equal(t, "B01", loans[1].Borrower.MemberNumber)

	books, err := lm.BooksBorrowedBy(ctx, bob)
	require.NoError(t, err)
	require.Len(t, books, 1)
	require.Equal(t, "Book Two", books[0].Title)

	stats, err := lm.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, library.Stats{Books: 3, Members: 2, OnLoan: 2}, stats)
}

func TestGetNotFound(t *testing.T) {
	ctx := context.Background()
	lm := newManager(t)

	_, err := lm.GetBook(ctx, 42)
	require.ErrorIs(t, err, library.ErrNotFound)
	_, err = lm.GetMember(ctx, 42)
	require.ErrorIs(t, err, library.ErrNotFound)
}

func TestFileBackedStateSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "lib.db")
	opts := library.Options{Path: path}

	lm, err := library.Open(ctx, opts, zaptest.NewLogger(t))
	require.NoError(t, err)
	bookID, err := lm.RegisterBook(ctx, "Persistent", "Author", "")
	require.NoError(t, err)
	memberID, err := lm.RegisterMember(ctx, "Member", "m@example.com", "M01")
	require.NoError(t, err)
	ok, err := lm.Lend(ctx, bookID, memberID)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, lm.Close())

	lm, err = library.Open(ctx, opts, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer lm.Close()

	b, err := lm.GetBook(ctx, bookID)
	require.NoError(t, err)
	require.Equal(t, library.StatusUnavailable, b.Status)
	require.Equal(t, memberID, *b.BorrowerID)
}

func TestOperationsAfterClose(t *testing.T) {
	ctx := context.Background()
	lm := newManager(t)
	require.NoError(t, lm.Close())

	_, err := lm.Lend(ctx, 1, 1)
	require.ErrorIs(t, err, library.ErrStoreClosed)
	require.ErrorIs(t, err, library.ErrStorageFailure)

	_, err = lm.SearchBooks(ctx, "x")
	require.ErrorIs(t, err, library.ErrStoreClosed)
}

func TestConcurrentLendAndReturnHaveOneWinner(t *testing.T) {
	ctx := context.Background()
	lm, err := library.Open(ctx, library.Options{Path: filepath.Join(t.TempDir(), "lib.db")}, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { lm.Close() })

	bookID, err := lm.RegisterBook(ctx, "Clean Code", "Uncle Bob", "999")
	require.NoError(t, err)

	const borrowers = 8
	memberIDs := make([]int64, borrowers)
	for i := range memberIDs {
		memberIDs[i], err = lm.RegisterMember(ctx, fmt.Sprintf("Member %d", i), fmt.Sprintf("m%d@example.com", i), fmt.Sprintf("M%02d", i))
		require.NoError(t, err)
	}

	race := func(op func(memberID int64) (bool, error)) int32 {
		var (
			wins int32
			wg   sync.WaitGroup
		)
		errs := make(chan error, borrowers)
		for _, memberID := range memberIDs {
			wg.Add(1)
			go func(memberID int64) {
				defer wg.Done()
				ok, err := op(memberID)
				if err != nil {
					errs <- err
					return
				}
				if ok {
					atomic.AddInt32(&wins, 1)
				}
			}(memberID)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}
		return wins
	}

	lent := race(func(memberID int64) (bool, error) { return lm.Lend(ctx, bookID, memberID) })
	require.EqualValues(t, 1, lent)

	book, err := lm.GetBook(ctx, bookID)
	require.NoError(t, err)
	require.False(t, book.Available())
	require.NotNil(t, book.BorrowerID)
	require.Contains(t, memberIDs, *book.BorrowerID)

	holders := 0
	for _, memberID := range memberIDs {
		books, err := lm.BooksBorrowedBy(ctx, memberID)
		require.NoError(t, err)
		holders += len(books)
	}
	require.Equal(t, 1, holders)

	returned := race(func(int64) (bool, error) { return lm.ReturnBook(ctx, bookID) })
	require.EqualValues(t, 1, returned)

	book, err = lm.GetBook(ctx, bookID)
	require.NoError(t, err)
	require.True(t, book.Available())
	require.Nil(t, book.BorrowerID)
}

func TestRoutineOperationsLogBelowInfo(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zapcore.InfoLevel)
	lm, err := library.Open(ctx, library.Options{Path: library.MemoryPath}, zap.New(core))
	require.NoError(t, err)
	t.Cleanup(func() { lm.Close() })

	bookID, err := lm.RegisterBook(ctx, "Clean Code", "Uncle Bob", "999")
	require.NoError(t, err)
	_, err = lm.RegisterBook(ctx, "Impostor", "Nobody", "999")
	require.ErrorIs(t, err, library.ErrIntegrityViolation)
	memberID, err := lm.RegisterMember(ctx, "Per", "per@test.no", "P01")
	require.NoError(t, err)

	ok, err := lm.Lend(ctx, bookID, memberID)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = lm.Lend(ctx, bookID, memberID)
	require.NoError(t, err)
	require.False(t, ok)
	ok, err = lm.ReturnBook(ctx, bookID)
	require.NoError(t, err)
	require.True(t, ok)

	require.Zero(t, logs.Len(), "unexpected log entries: %v", logs.All())
}
