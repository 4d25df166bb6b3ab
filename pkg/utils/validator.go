package utils

import (
	"fmt"
	"regexp"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// ValidateEmail validates an email address
func ValidateEmail(email string) error {
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format: %s", email)
	}
	return nil
}

// ValidateEmails validates every address, naming the field on failure
func ValidateEmails(field string, emails []string) error {
	for _, e := range emails {
		if err := ValidateEmail(e); err != nil {
			return fmt.Errorf("%s: %w", field, err)
		}
	}
	return nil
}
