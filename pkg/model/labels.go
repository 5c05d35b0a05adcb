package model

import (
	"regexp"
	"strings"
)

var labelSeparators = regexp.MustCompile(`[_\-\s]+`)

// DefaultLabeler turns a field name such as "birthDate" or "unit_price" into
// "Birth Date" or "Unit Price".
func DefaultLabeler(name string) string {
	var words []string
	for _, part := range labelSeparators.Split(name, -1) {
		for _, word := range splitCamelCase(part) {
			words = append(words, capitalise(word))
		}
	}
	return strings.Join(words, " ")
}

func splitCamelCase(input string) []string {
	if input == "" {
		return nil
	}
	var (
		words []string
		start int
	)
	for i := 1; i < len(input); i++ {
		prev, cur := input[i-1], input[i]
		if (isLower(prev) && isUpper(cur)) || (isLetter(prev) && isDigit(cur)) || (isDigit(prev) && isLetter(cur)) {
			words = append(words, input[start:i])
			start = i
		}
	}
	return append(words, input[start:])
}

func capitalise(word string) string {
	lower := strings.ToLower(word)
	return strings.ToUpper(lower[:1]) + lower[1:]
}

func isUpper(b byte) bool  { return b >= 'A' && b <= 'Z' }
func isLower(b byte) bool  { return b >= 'a' && b <= 'z' }
func isDigit(b byte) bool  { return b >= '0' && b <= '9' }
func isLetter(b byte) bool { return isUpper(b) || isLower(b) }
