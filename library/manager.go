package library

import (
	"context"
	"io"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	booksTable   = "books"
	membersTable = "members"
)

var (
	qb = sq.StatementBuilder.PlaceholderFormat(sq.Question)

	bookColumns   = []string{"id", "title", "author", "isbn", "status", "borrower_id"}
	memberColumns = []string{"id", "name", "email", "member_number"}

	likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
)

// LibraryManager enforces the lending rules on top of a Catalog. It is the
// only component that mutates books and members.
type LibraryManager struct {
	db     Catalog
	log    *zap.Logger
	closer io.Closer
}

// NewLibraryManager wraps an existing catalog. The caller keeps ownership of db.
func NewLibraryManager(db Catalog, log *zap.Logger) *LibraryManager {
	if log == nil {
		log = zap.NewNop()
	}
	return &LibraryManager{db: db, log: log.Named("lending")}
}

// Open creates the Database described by opts and a manager that owns it.
func Open(ctx context.Context, opts Options, log *zap.Logger) (*LibraryManager, error) {
	db, err := NewDatabase(ctx, opts, log)
	if err != nil {
		return nil, err
	}
	lm := NewLibraryManager(db, log)
	lm.closer = db
	return lm, nil
}

// Close closes the underlying database when the manager owns it.
func (lm *LibraryManager) Close() error {
	if lm.closer == nil {
		return nil
	}
	return lm.closer.Close()
}

// ------------------ Registration ------------------

// RegisterBook adds an available book with no borrower. Title and author must
// be non-empty; that is the caller's job. A blank isbn is stored as NULL.
func (lm *LibraryManager) RegisterBook(ctx context.Context, title, author, isbn string) (int64, error) {
	query, args, err := qb.Insert(booksTable).
		Columns("title", "author", "isbn").
		Values(title, author, nullable(isbn)).
		ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "build insert book")
	}
	res, err := lm.db.Exec(ctx, query, args)
	if err != nil {
		return 0, err
	}
	lm.log.Debug("book registered", zap.Int64("book_id", res.LastInsertID), zap.String("title", title))
	return res.LastInsertID, nil
}

// RegisterMember adds a member. Duplicate member numbers are rejected by the
// store with ErrIntegrityViolation.
func (lm *LibraryManager) RegisterMember(ctx context.Context, name, email, memberNumber string) (int64, error) {
	query, args, err := qb.Insert(membersTable).
		Columns("name", "email", "member_number").
		Values(name, email, memberNumber).
		ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "build insert member")
	}
	res, err := lm.db.Exec(ctx, query, args)
	if err != nil {
		return 0, err
	}
	lm.log.Debug("member registered", zap.Int64("member_id", res.LastInsertID), zap.String("member_number", memberNumber))
	return res.LastInsertID, nil
}

// ------------------ Search ------------------

// SearchBooks returns books whose title or author contains term.
func (lm *LibraryManager) SearchBooks(ctx context.Context, term string) ([]Book, error) {
	rows, err := lm.fetch(ctx, qb.Select(bookColumns...).
		From(booksTable).
		Where(containsAny(term, "title", "author")).
		OrderBy("id"))
	if err != nil {
		return nil, err
	}
	return decodeRows[Book](rows)
}

// SearchMembers returns members whose name or email contains term.
func (lm *LibraryManager) SearchMembers(ctx context.Context, term string) ([]Member, error) {
	rows, err := lm.fetch(ctx, qb.Select(memberColumns...).
		From(membersTable).
		Where(containsAny(term, "name", "email")).
		OrderBy("id"))
	if err != nil {
		return nil, err
	}
	return decodeRows[Member](rows)
}

// ------------------ Circulation ------------------

// Lend hands an available book to an existing member. It returns false when
// the book does not exist, is already out, or the member does not exist.
// The checks and the update are one conditional statement.
func (lm *LibraryManager) Lend(ctx context.Context, bookID, memberID int64) (bool, error) {
	query, args, err := qb.Update(booksTable).
		Set("status", string(StatusUnavailable)).
		Set("borrower_id", memberID).
		Where(sq.Eq{"id": bookID, "status": string(StatusAvailable)}).
		Where(sq.Expr("EXISTS (SELECT 1 FROM members WHERE members.id = ?)", memberID)).
		ToSql()
	if err != nil {
		return false, errors.Wrap(err, "build lend")
	}
	res, err := lm.db.Exec(ctx, query, args)
	if err != nil {
		return false, err
	}
	if res.RowsAffected == 0 {
		lm.log.Debug("lend rejected", zap.Int64("book_id", bookID), zap.Int64("member_id", memberID))
		return false, nil
	}
	lm.log.Debug("book lent", zap.Int64("book_id", bookID), zap.Int64("member_id", memberID))
	return true, nil
}

// ReturnBook makes a lent book available again and clears its borrower. It
// returns false when the book does not exist or is not out.
func (lm *LibraryManager) ReturnBook(ctx context.Context, bookID int64) (bool, error) {
	query, args, err := qb.Update(booksTable).
		Set("status", string(StatusAvailable)).
		Set("borrower_id", nil).
		Where(sq.Eq{"id": bookID, "status": string(StatusUnavailable)}).
		ToSql()
	if err != nil {
		return false, errors.Wrap(err, "build return")
	}
	res, err := lm.db.Exec(ctx, query, args)
	if err != nil {
		return false, err
	}
	if res.RowsAffected == 0 {
		lm.log.Debug("return rejected", zap.Int64("book_id", bookID))
		return false, nil
	}
	lm.log.Debug("book returned", zap.Int64("book_id", bookID))
	return true, nil
}

// ------------------ Lookups ------------------

// GetBook fetches a single book or ErrNotFound.
func (lm *LibraryManager) GetBook(ctx context.Context, id int64) (Book, error) {
	books, err := lm.books(ctx, sq.Eq{"id": id})
	if err != nil {
		return Book{}, err
	}
	if len(books) == 0 {
		return Book{}, errors.Wrapf(ErrNotFound, "book %d", id)
	}
	return books[0], nil
}

// GetMember fetches a single member or ErrNotFound.
func (lm *LibraryManager) GetMember(ctx context.Context, id int64) (Member, error) {
	rows, err := lm.fetch(ctx, qb.Select(memberColumns...).From(membersTable).Where(sq.Eq{"id": id}))
	if err != nil {
		return Member{}, err
	}
	members, err := decodeRows[Member](rows)
	if err != nil {
		return Member{}, err
	}
	if len(members) == 0 {
		return Member{}, errors.Wrapf(ErrNotFound, "member %d", id)
	}
	return members[0], nil
}

// ListBooks returns every book ordered by id.
func (lm *LibraryManager) ListBooks(ctx context.Context) ([]Book, error) {
	return lm.books(ctx, nil)
}

// ListMembers returns every member ordered by id.
func (lm *LibraryManager) ListMembers(ctx context.Context) ([]Member, error) {
	rows, err := lm.fetch(ctx, qb.Select(memberColumns...).From(membersTable).OrderBy("id"))
	if err != nil {
		return nil, err
	}
	return decodeRows[Member](rows)
}

// BooksBorrowedBy returns the books currently lent to memberID.
func (lm *LibraryManager) BooksBorrowedBy(ctx context.Context, memberID int64) ([]Book, error) {
	return lm.books(ctx, sq.Eq{"borrower_id": memberID})
}

type borrowerColumns struct {
	Name         string `db:"member_name"`
	Email        string `db:"member_email"`
	MemberNumber string `db:"member_number"`
}

// Loans lists every book that is out together with its borrower.
func (lm *LibraryManager) Loans(ctx context.Context) ([]Loan, error) {
	rows, err := lm.fetch(ctx, qb.Select(
		"b.id AS id", "b.title AS title", "b.author AS author", "b.isbn AS isbn",
		"b.status AS status", "b.borrower_id AS borrower_id",
		"m.name AS member_name", "m.email AS member_email", "m.member_number AS member_number").
		From(booksTable+" b").
		Join(membersTable+" m ON m.id = b.borrower_id").
		Where(sq.Eq{"b.status": string(StatusUnavailable)}).
		OrderBy("b.id"))
	if err != nil {
		return nil, err
	}

	loans := make([]Loan, 0, len(rows))
	for _, r := range rows {
		var (
			b Book
			m borrowerColumns
		)
		if err := r.Decode(&b); err != nil {
			return nil, err
		}
		if err := r.Decode(&m); err != nil {
			return nil, err
		}
		loan := Loan{Book: b, Borrower: Member{Name: m.Name, Email: m.Email, MemberNumber: m.MemberNumber}}
		if b.BorrowerID != nil {
			loan.Borrower.ID = *b.BorrowerID
		}
		loans = append(loans, loan)
	}
	return loans, nil
}

// Stats counts books, members and books on loan.
func (lm *LibraryManager) Stats(ctx context.Context) (Stats, error) {
	rows, err := lm.fetch(ctx, qb.Select().
		Column("(SELECT COUNT(*) FROM "+booksTable+") AS books").
		Column("(SELECT COUNT(*) FROM "+membersTable+") AS members").
		Column(sq.Expr("(SELECT COUNT(*) FROM "+booksTable+" WHERE status = ?) AS on_loan", string(StatusUnavailable))))
	if err != nil {
		return Stats{}, err
	}
	var s Stats
	if len(rows) > 0 {
		if err := rows[0].Decode(&s); err != nil {
			return Stats{}, err
		}
	}
	return s, nil
}

// ------------------ helpers ------------------

func (lm *LibraryManager) books(ctx context.Context, where sq.Sqlizer) ([]Book, error) {
	q := qb.Select(bookColumns...).From(booksTable).OrderBy("id")
	if where != nil {
		q = q.Where(where)
	}
	rows, err := lm.fetch(ctx, q)
	if err != nil {
		return nil, err
	}
	return decodeRows[Book](rows)
}

func (lm *LibraryManager) fetch(ctx context.Context, b sq.Sqlizer) ([]Row, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "build select")
	}
	return lm.db.FetchAll(ctx, query, args)
}

// containsAny matches rows where any of cols contains term literally.
func containsAny(term string, cols ...string) sq.Or {
	pattern := "%" + likeEscaper.Replace(term) + "%"
	or := make(sq.Or, 0, len(cols))
	for _, c := range cols {
		or = append(or, sq.Expr(c+` LIKE ? ESCAPE '\'`, pattern))
	}
	return or
}

func nullable(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}
