package common

import (
	"fmt"
	"strings"
)

// FormatMoney formats a dollar value with comma grouping, e.g. "$1,234.56".
func FormatMoney(v float64) string {
	neg := v < 0
	if neg {
		v = -v
	}
	s := fmt.Sprintf("%.2f", v)

	parts := strings.SplitN(s, ".", 2)
	whole := parts[0]

	var grouped strings.Builder
	for i, d := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			grouped.WriteByte(',')
		}
		grouped.WriteRune(d)
	}

	sign := ""
	if neg {
		sign = "-"
	}
	return fmt.Sprintf("%s$%s.%s", sign, grouped.String(), parts[1])
}

// FormatSignedMoney formats a dollar value with an explicit sign,
// e.g. "+$1,234.56".
func FormatSignedMoney(v float64) string {
	if v >= 0 {
		return "+" + FormatMoney(v)
	}
	return FormatMoney(v)
}

// FormatSignedPct formats a percentage with an explicit sign, e.g. "+5.00%".
func FormatSignedPct(v float64) string {
	return fmt.Sprintf("%+.2f%%", v)
}
