package summarize

import "strings"

var weekdays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// BoldWeekdays wraps every exact, case-sensitive "<Weekday>:" in Markdown bold.
// There is no word-boundary check, so "on Friday: storms" is bolded too.
func BoldWeekdays(s string) string {
	for _, day := range weekdays {
		s = strings.ReplaceAll(s, day+":", "*"+day+":*")
	}
	return s
}
