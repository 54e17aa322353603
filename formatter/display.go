package formatter

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var phoneDigits = regexp.MustCompile(`\D`)

// applyDisplayFormat renders value according to a domain field's
// display_format: currency, percentage, phone, or date. Formats
// it doesn't recognize, or values it can't coerce, pass through as a
// plain string.
func applyDisplayFormat(format string, value any) string {
	switch format {
	case "currency":
		return formatCurrency(value)
	case "percentage":
		return formatPercentage(value)
	case "phone":
		return formatPhone(value)
	case "date":
		return formatDate(value)
	default:
		return fmt.Sprintf("%v", value)
	}
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func formatCurrency(value any) string {
	f, ok := toFloat(value)
	if !ok {
		return fmt.Sprintf("%v", value)
	}
	return fmt.Sprintf("$%.2f", f)
}

func formatPercentage(value any) string {
	f, ok := toFloat(value)
	if !ok {
		return fmt.Sprintf("%v", value)
	}
	return fmt.Sprintf("%.1f%%", f*100)
}

func formatPhone(value any) string {
	s := fmt.Sprintf("%v", value)
	digits := phoneDigits.ReplaceAllString(s, "")
	switch len(digits) {
	case 10:
		return fmt.Sprintf("(%s) %s-%s", digits[0:3], digits[3:6], digits[6:10])
	case 11:
		return fmt.Sprintf("+%s (%s) %s-%s", digits[0:1], digits[1:4], digits[4:7], digits[7:11])
	default:
		return s
	}
}

var dateLayouts = []string{time.RFC3339, "2006-01-02", "2006-01-02 15:04:05"}

func formatDate(value any) string {
	if t, ok := value.(time.Time); ok {
		return t.Format("2006-01-02")
	}
	s := fmt.Sprintf("%v", value)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return strings.TrimSpace(s)
}
