package catalog

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Author is reference data; id is caller-supplied.
type Author struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Bio  string `json:"bio"`
}

// Book belongs to exactly one author. Availability is mutated by the
// circulation engine, not by catalog callers.
type Book struct {
	ID               int64      `json:"id"`
	Title            string     `json:"title"`
	ISBN             string     `json:"isbn"`
	AuthorID         int64      `json:"author_id"`
	PublishedDate    Date       `json:"published_date"`
	Available        bool       `json:"available"`
	LastBorrowedDate *time.Time `json:"last_borrowed_date"`
}

// AuthorUpdate applies only the fields the caller supplied.
type AuthorUpdate struct {
	Name *string `json:"name"`
	Bio  *string `json:"bio"`
}

// BookUpdate applies only the fields the caller supplied.
type BookUpdate struct {
	Title            *string    `json:"title"`
	ISBN             *string    `json:"isbn"`
	AuthorID         *int64     `json:"author_id"`
	PublishedDate    *Date      `json:"published_date"`
	Available        *bool      `json:"available"`
	LastBorrowedDate *time.Time `json:"last_borrowed_date"`
}

// BookFilter narrows ListBooks results; zero-valued fields are ignored.
type BookFilter struct {
	Title     string
	AuthorID  *int64
	Available *bool
	ISBN      string
}

var (
	ErrAuthorExists   = errors.New("author with this id already exists")
	ErrAuthorNotFound = errors.New("author not found")
	ErrAuthorMissing  = errors.New("author with this id does not exist")
	ErrBookExists     = errors.New("book with this id already exists")
	ErrISBNExists     = errors.New("book with this ISBN already exists")
	ErrBookNotFound   = errors.New("book not found")
	ErrInvalidISBN    = errors.New("ISBN must be a 10 or 13 digit number (hyphens allowed)")
)

const dateLayout = "2006-01-02"

// Date is a calendar day serialized as "YYYY-MM-DD" in JSON and stored in a
// DATE column. The zero value means "not set" and maps to SQL NULL.
type Date struct {
	time.Time
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.Format(dateLayout) + `"`), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(data), `"`)
	if raw == "null" || raw == "" {
		d.Time = time.Time{}
		return nil
	}
	parsed, err := time.Parse(dateLayout, raw)
	if err != nil {
		return fmt.Errorf("invalid date %q: %w", raw, err)
	}
	d.Time = parsed
	return nil
}

func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.Time, nil
}

func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		d.Time = time.Time{}
		return nil
	case time.Time:
		d.Time = v
		return nil
	default:
		return fmt.Errorf("cannot scan %T into Date", src)
	}
}
