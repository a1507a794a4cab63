package busnum

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"busmate/internal/domain"
)

// Shape patterns in match order; the first pattern that matches wins and
// no further patterns are tried.
var (
	reGeneral = regexp.MustCompile(`^\d{1,4}(-\d{1,4})?$`)       // 742, 1234-5678
	reVillage = regexp.MustCompile(`^[가-힣]{1,4}\d{1,4}$`)        // 강남1
	reAirport = regexp.MustCompile(`^[A-Z]\d{1,4}$`)             // A1
	reBranch  = regexp.MustCompile(`^[가-힣]{1,4}\d{1,4}-\d{1,4}$`) // 강남1-1234
)

var reDigits = regexp.MustCompile(`\d+`)

// Route number validity windows per category.
const (
	trunkMin, trunkMax     = 100, 999
	branchMin, branchMax   = 2000, 3999
	villageMin, villageMax = 1, 999
	airportMin, airportMax = 1, 9999
)

// Normalize strips whitespace, mid-dots, and bullet characters from raw
// recognized text.
func Normalize(raw string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '·' || r == '•' {
			return -1
		}
		return r
	}, raw)
}

// MatchesShape reports whether the normalized text matches any known
// bus-number shape.
func MatchesShape(raw string) bool {
	text := Normalize(raw)
	return reGeneral.MatchString(text) ||
		reVillage.MatchString(text) ||
		reAirport.MatchString(text) ||
		reBranch.MatchString(text)
}

// Classify parses raw recognized text into a normalized bus-number token
// and assigns a route category with a validity window. Pure function.
func Classify(raw string) domain.BusNumberCandidate {
	text := Normalize(raw)
	if text == "" {
		return invalid(text, domain.RouteUnknown, "empty input")
	}

	switch {
	case reGeneral.MatchString(text):
		return classifyNumeric(text)
	case reVillage.MatchString(text):
		return classifyWindow(text, domain.RouteVillage, villageMin, villageMax)
	case reAirport.MatchString(text):
		return classifyWindow(text, domain.RouteAirport, airportMin, airportMax)
	case reBranch.MatchString(text):
		return classifyWindow(text, domain.RouteBranch, branchMin, branchMax)
	}

	return invalid(text, domain.RouteUnknown,
		fmt.Sprintf("%q does not match any bus number shape", text))
}

// classifyNumeric assigns a category to a pure-digit number by range.
// Branch is checked before trunk, trunk before village, so 999 lands in
// the trunk window.
func classifyNumeric(text string) domain.BusNumberCandidate {
	n, err := numericPart(text)
	if err != nil {
		return invalid(text, domain.RouteUnknown, "numeric part is not parsable")
	}

	switch {
	case n >= branchMin && n <= branchMax:
		return valid(text, domain.RouteBranch)
	case n >= trunkMin && n <= trunkMax:
		return valid(text, domain.RouteTrunk)
	case n >= villageMin && n <= villageMax:
		return valid(text, domain.RouteVillage)
	}

	return invalid(text, domain.RouteUnknown, fmt.Sprintf(
		"%d is outside every route window (trunk %d-%d, branch %d-%d, village %d-%d)",
		n, trunkMin, trunkMax, branchMin, branchMax, villageMin, villageMax))
}

func classifyWindow(text string, cat domain.RouteCategory, min, max int) domain.BusNumberCandidate {
	n, err := numericPart(text)
	if err != nil {
		return invalid(text, domain.RouteUnknown, "numeric part is not parsable")
	}
	if n < min || n > max {
		return invalid(text, cat, fmt.Sprintf(
			"%d is outside the %s route window (%d-%d)", n, cat, min, max))
	}
	return valid(text, cat)
}

// numericPart extracts the first digit run, so "1234-5678" is windowed
// by 1234.
func numericPart(text string) (int, error) {
	digits := reDigits.FindString(text)
	if digits == "" {
		return 0, fmt.Errorf("no digits in %q", text)
	}
	return strconv.Atoi(digits)
}

func valid(number string, cat domain.RouteCategory) domain.BusNumberCandidate {
	return domain.BusNumberCandidate{Number: number, Category: cat, Valid: true}
}

func invalid(number string, cat domain.RouteCategory, reason string) domain.BusNumberCandidate {
	return domain.BusNumberCandidate{Number: number, Category: cat, Reason: reason}
}
