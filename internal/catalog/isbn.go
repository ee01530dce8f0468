package catalog

import "strings"

// ValidateISBN strips hyphens and requires exactly 10 or 13 ASCII digits.
// The stored ISBN keeps its hyphens; only the shape is checked.
func ValidateISBN(isbn string) error {
	stripped := strings.ReplaceAll(isbn, "-", "")
	if len(stripped) != 10 && len(stripped) != 13 {
		return ErrInvalidISBN
	}
	for _, c := range stripped {
		if c < '0' || c > '9' {
			return ErrInvalidISBN
		}
	}
	return nil
}
