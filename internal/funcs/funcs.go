package funcs

import (
	"strings"
	"text/template"
	"time"
	"unicode"

	"golang.org/x/exp/constraints"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.MustParse("en-IN"))

var TemplateFuncs = template.FuncMap{
	"formatMoney": FormatMoney,
	"formatInt":   formatInt[int64],
	"formatTime":  formatTime,
	"capitalize":  Capitalize,
	"uppercase":   strings.ToUpper,
	"lowercase":   strings.ToLower,
}

// FormatMoney renders an amount held in minor units (paise) as rupees with
// Indian digit grouping, e.g. 12345678 -> "₹1,23,456.78".
func FormatMoney(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}

	return sign + printer.Sprintf("₹%d.%02d", minor/100, minor%100)
}

func formatInt[T constraints.Integer](n T) string {
	return printer.Sprintf("%d", n)
}

func formatTime(format string, t time.Time) string {
	return t.Format(format)
}

func Capitalize(s string) string {
	for i, r := range s {
		return string(unicode.ToTitle(r)) + s[i+len(string(r)):]
	}

	return ""
}
