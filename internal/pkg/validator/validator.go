package validator

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	aliasRegex = regexp.MustCompile(`^[\p{L}0-9 _-]{3,30}$`)
	nameRegex  = regexp.MustCompile(`^[\p{L}\s\-'\.]{2,50}$`)
	linkRegex  = regexp.MustCompile(`(?i)(https?://|www\.)\S+|\b[a-z0-9-]+\.(com|net|org|io|me|ly|gg|app)\b`)
)

var genders = map[string]bool{
	"male":      true,
	"female":    true,
	"nonbinary": true,
}

const (
	MinAge = 18
	MaxAge = 99

	MaxBioLength      = 300
	MaxInterests      = 10
	MaxInterestLength = 30
)

// IsValidAlias checks the placeholder identity shown before any unlock
func IsValidAlias(alias string) bool {
	return aliasRegex.MatchString(strings.TrimSpace(alias))
}

// IsValidName checks if the name contains only letters, spaces, and common punctuation
func IsValidName(name string) bool {
	return nameRegex.MatchString(strings.TrimSpace(name))
}

// IsValidAge checks if the age is within the allowed range for matching
func IsValidAge(age int) bool {
	return age >= MinAge && age <= MaxAge
}

// IsValidGender checks against the supported gender values
func IsValidGender(gender string) bool {
	return genders[strings.ToLower(strings.TrimSpace(gender))]
}

// IsValidBio checks bio length in characters
func IsValidBio(bio string) bool {
	return utf8.RuneCountInString(bio) <= MaxBioLength
}

// AreValidInterests checks interest count and length
func AreValidInterests(interests []string) bool {
	if len(interests) > MaxInterests {
		return false
	}
	for _, i := range interests {
		n := utf8.RuneCountInString(strings.TrimSpace(i))
		if n == 0 || n > MaxInterestLength {
			return false
		}
	}
	return true
}

// ContainsLink reports whether text looks like it carries a URL or domain
func ContainsLink(text string) bool {
	return linkRegex.MatchString(text)
}
