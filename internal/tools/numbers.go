package tools

import (
	"fmt"
	"strconv"
	"strings"
)

// The Graph API returns all numbers as strings; bad or missing values
// collapse to zero rather than failing the whole report.

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

func parseInt(s string) int64 {
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v
	}
	return int64(parseFloat(s))
}

// groupThousands renders n with a separator every three digits.
func groupThousands(n int64, sep string) string {
	s := strconv.FormatInt(n, 10)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var parts []string
	for len(s) > 3 {
		parts = append([]string{s[len(s)-3:]}, parts...)
		s = s[:len(s)-3]
	}
	parts = append([]string{s}, parts...)
	out := strings.Join(parts, sep)
	if neg {
		out = "-" + out
	}
	return out
}

// brl formats a monetary value in Brazilian convention: thousands separated
// by dots, decimals by comma.
func brl(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	intPart, decPart, _ := strings.Cut(s, ".")
	neg := strings.HasPrefix(intPart, "-")
	if neg {
		intPart = intPart[1:]
	}
	n, _ := strconv.ParseInt(intPart, 10, 64)
	out := "R$ " + groupThousands(n, ".") + "," + decPart
	if neg {
		out = "R$ -" + groupThousands(n, ".") + "," + decPart
	}
	return out
}
