package importer

// convert.go parses the loosely formatted values users put in spreadsheets:
//   - dates in ISO, US and long forms, with two-digit years pivoted
//   - prices with currency symbols and thousands separators

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/assetinventory/internal/inventory"
)

var (
	errInvalidDate  = errors.New("invalid date")
	errInvalidPrice = errors.New("invalid number")
)

// priceRegex matches a plain non-negative decimal after cleanup.
var priceRegex = regexp.MustCompile(`^(\d+(\.\d*)?|\.\d+)$`)

// TwoDigitYearPivot bounds how far into the future a two-digit year may
// land before it is moved back a century.
var TwoDigitYearPivot = 20

var (
	fourDigitYearLayouts = []string{
		"2006-01-02", "2006/01/02", "2006.01.02",
		"1/2/2006", "01/02/2006", "1-2-2006", "01-02-2006",
		"Jan 2, 2006", "January 2, 2006", "2 Jan 2006", "2 January 2006",
		time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05",
	}
	twoDigitYearLayouts = []string{
		"1/2/06", "01/02/06", "1-2-06",
	}
)

// ParseDate parses s as a calendar date and returns it in
// inventory.DateLayout form.
func ParseDate(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", errInvalidDate
	}

	for _, layout := range fourDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(inventory.DateLayout), nil
		}
	}

	pivot := time.Now().Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() > pivot {
				t = t.AddDate(-100, 0, 0)
			}
			return t.Format(inventory.DateLayout), nil
		}
	}
	return "", errInvalidDate
}

// ParsePrice parses a non-negative decimal. A leading currency symbol and
// thousands separators are accepted; signs, exponents and trailing text are
// not.
func ParsePrice(s string) (float64, error) {
	s = strings.TrimSpace(s)
	for _, sym := range []string{"$", "€", "£"} {
		s = strings.TrimPrefix(s, sym)
	}
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")

	if !priceRegex.MatchString(s) {
		return 0, errInvalidPrice
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, errInvalidPrice
	}
	return v, nil
}
