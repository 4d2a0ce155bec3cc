package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	nonDigits       = regexp.MustCompile(`[^0-9]`)
	innerWhitespace = regexp.MustCompile(`\s{2,}`)
	leadingInt      = regexp.MustCompile(`^[+-]?\d+`)
)

// ParseScore extracts a numeric field. "-" and "" are "no value"; otherwise
// every digit is kept, so "12,345pts" reads as 12345. Text without digits is
// also "no value".
func ParseScore(text string) *int {
	text = strings.TrimSpace(text)
	if text == "-" || text == "" {
		return nil
	}
	return digitsOnly(text)
}

func digitsOnly(text string) *int {
	digits := nonDigits.ReplaceAllString(text, "")
	if digits == "" {
		return nil
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return nil
	}
	return &n
}

// parseLevel reads the leading integer of a level cell. Missing, non-positive or
// non-numeric levels are absent.
func parseLevel(text string) *int {
	m := leadingInt.FindString(strings.TrimSpace(text))
	if m == "" {
		return nil
	}
	n, err := strconv.Atoi(m)
	if err != nil || n <= 0 {
		return nil
	}
	return &n
}

// leadingIntOrZero reads a tally cell, defaulting to 0.
func leadingIntOrZero(text string) int {
	m := leadingInt.FindString(strings.TrimSpace(text))
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0
	}
	return n
}

func trimmedText(sel *goquery.Selection) string {
	return strings.TrimSpace(sel.Text())
}

func collapseSpaces(s string) string {
	return strings.TrimSpace(innerWhitespace.ReplaceAllString(s, " "))
}
