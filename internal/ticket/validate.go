package ticket

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/harrylevesque/qrticket/internal/models"
)

const (
	maxFieldLen = 256

	// DefaultCitizenIDPattern accepts a 13-digit national identifier.
	DefaultCitizenIDPattern = `^[0-9]{13}$`

	birthDateLayout = "2006-01-02"
)

var ErrValidation = errors.New("invalid ticket field")

var emailPattern = regexp.MustCompile(`^[A-Za-z0-9._%+\-]+@[A-Za-z0-9](?:[A-Za-z0-9\-]*[A-Za-z0-9])?(?:\.[A-Za-z0-9](?:[A-Za-z0-9\-]*[A-Za-z0-9])?)+$`)

// ValidationError names the first field that failed validation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// trimFields returns f with surrounding whitespace removed from every value.
func trimFields(f models.TicketFields) models.TicketFields {
	return models.TicketFields{
		FullName:  strings.TrimSpace(f.FullName),
		Email:     strings.TrimSpace(f.Email),
		CitizenID: strings.TrimSpace(f.CitizenID),
		BirthDate: strings.TrimSpace(f.BirthDate),
		Gender:    strings.TrimSpace(f.Gender),
		District:  strings.TrimSpace(f.District),
		City:      strings.TrimSpace(f.City),
	}
}

// validate checks already-trimmed fields in declaration order.
func validate(f models.TicketFields, citizenID *regexp.Regexp, now time.Time) error {
	named := []struct {
		name, value string
	}{
		{"full_name", f.FullName},
		{"email", f.Email},
		{"citizen_id", f.CitizenID},
		{"birth_date", f.BirthDate},
		{"gender", f.Gender},
		{"district", f.District},
		{"city", f.City},
	}
	for _, n := range named {
		switch {
		case n.value == "":
			return invalid(n.name, "required")
		case len(n.value) > maxFieldLen:
			return invalid(n.name, fmt.Sprintf("longer than %d bytes", maxFieldLen))
		case !utf8.ValidString(n.value):
			return invalid(n.name, "not valid utf-8")
		case strings.IndexFunc(n.value, unicode.IsControl) >= 0:
			return invalid(n.name, "contains control characters")
		}

		switch n.name {
		case "email":
			if !emailPattern.MatchString(n.value) {
				return invalid(n.name, "not an email address")
			}
		case "citizen_id":
			if !citizenID.MatchString(n.value) {
				return invalid(n.name, "does not match the citizen id format")
			}
		case "birth_date":
			d, err := time.Parse(birthDateLayout, n.value)
			if err != nil {
				return invalid(n.name, "must be a real date in YYYY-MM-DD form")
			}
			y, m, day := now.UTC().Date()
			if d.After(time.Date(y, m, day, 0, 0, 0, 0, time.UTC)) {
				return invalid(n.name, "in the future")
			}
		}
	}
	return nil
}
