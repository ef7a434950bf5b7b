package services

import (
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"

	passwordSymbols = "@$!%*?&#"
)

var (
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{3,50}$`)
	validate        = validator.New()
)

func cleanInput(s string) string {
	return strings.TrimSpace(s)
}

func isValidEmail(email string) bool {
	return validate.Var(email, "required,email,max=255") == nil
}

func isValidUsername(username string) bool {
	return usernamePattern.MatchString(username)
}

// validatePassword returns an empty string for a strong password, otherwise
// a message listing every missing requirement.
func validatePassword(password string) string {
	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case strings.ContainsRune(passwordSymbols, r):
			hasSymbol = true
		}
	}

	var missing []string
	if len(password) < 8 {
		missing = append(missing, "at least 8 characters")
	}
	if !hasUpper {
		missing = append(missing, "an uppercase letter")
	}
	if !hasLower {
		missing = append(missing, "a lowercase letter")
	}
	if !hasDigit {
		missing = append(missing, "a number")
	}
	if !hasSymbol {
		missing = append(missing, "a special character ("+passwordSymbols+")")
	}

	if len(missing) == 0 {
		return ""
	}
	return "Password must contain " + strings.Join(missing, ", ")
}

func parseDate(s string) (time.Time, error) {
	return time.ParseInLocation(dateLayout, strings.TrimSpace(s), time.Local)
}

// normalizeClock accepts HH:MM or HH:MM:SS and returns HH:MM.
func normalizeClock(s string) (string, error) {
	s = strings.TrimSpace(s)
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, err = time.Parse("15:04:05", s)
		if err != nil {
			return "", err
		}
	}
	return t.Format(timeLayout), nil
}
