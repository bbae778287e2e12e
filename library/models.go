package library

// Status is the lending state of a book.
type Status string

const (
	StatusAvailable   Status = "available"
	StatusUnavailable Status = "unavailable"
)

// Book represents a catalog entry and its current loan state.
// BorrowerID is non-nil exactly when Status is StatusUnavailable.
type Book struct {
	ID         int64   `db:"id" json:"id"`
	Title      string  `db:"title" json:"title"`
	Author     string  `db:"author" json:"author"`
	ISBN       *string `db:"isbn" json:"isbn,omitempty"`
	Status     Status  `db:"status" json:"status"`
	BorrowerID *int64  `db:"borrower_id" json:"borrower_id,omitempty"`
}

// Available reports whether the book can be lent.
func (b Book) Available() bool { return b.Status == StatusAvailable }

// ISBNOrEmpty returns the ISBN, or "" when none was registered.
func (b Book) ISBNOrEmpty() string {
	if b.ISBN == nil {
		return ""
	}
	return *b.ISBN
}

// Member represents a registered library member.
type Member struct {
	ID           int64  `db:"id" json:"id"`
	Name         string `db:"name" json:"name"`
	Email        string `db:"email" json:"email"`
	MemberNumber string `db:"member_number" json:"member_number"`
}

// Loan pairs a book that is out with the member holding it.
type Loan struct {
	Book     Book   `json:"book"`
	Borrower Member `json:"borrower"`
}

// Stats summarizes the catalog.
type Stats struct {
	Books   int64 `db:"books" json:"books"`
	Members int64 `db:"members" json:"members"`
	OnLoan  int64 `db:"on_loan" json:"on_loan"`
}
