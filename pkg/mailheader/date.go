// Package mailheader interprets the Date and address headers of a message
// the same way for every message source.
package mailheader

import (
	"regexp"
	"strings"
	"time"
	"unicode"
)

var zoneOffset = regexp.MustCompile(`^[+-]\d{4}$`)

// dateRule rewrites a Date header before the layouts are tried. Rules run in
// order and each sees the output of the previous one.
type dateRule struct {
	name  string
	match func(s string) bool
	apply func(s string) string
}

var dateRules = []dateRule{
	{
		name:  "non-breaking space",
		match: func(s string) bool { return strings.HasPrefix(s, "\u00a0") },
		apply: func(s string) string { return strings.ReplaceAll(s, "\u00a0", "") },
	},
	{
		// "Mon, Tue, 01 Feb 2022 ..." keeps only the last two comma separated parts
		name:  "repeated comma",
		match: func(s string) bool { return strings.Count(s, ",") >= 2 },
		apply: func(s string) string {
			parts := strings.Split(s, ", ")
			if len(parts) < 2 {
				return s
			}
			return strings.Join(parts[len(parts)-2:], ", ")
		},
	},
	{
		// "(UTC)", "(CEST)", "(MSK)a" and similar trailing zone names
		name:  "zone name",
		match: func(s string) bool { return runeFromEnd(s, 3, unicode.IsLetter) },
		apply: dropLastField,
	},
	{
		name:  "stray letter",
		match: func(s string) bool { return runeFromEnd(s, 1, unicode.IsLetter) },
		apply: func(s string) string {
			r := []rune(s)
			return string(r[:len(r)-1])
		},
	},
	{
		// "24 Jan 2022, 08:32:02 +0000" and ", 11 Feb 2022 18:08:46"
		name: "comma without weekday",
		match: func(s string) bool {
			return strings.Count(s, ",") == 1 && !hasWeekday(s)
		},
		apply: func(s string) string {
			return strings.TrimSpace(strings.Replace(s, ",", "", 1))
		},
	},
	{
		// sub-second suffix, together with anything glued to it
		name:  "fraction",
		match: func(s string) bool { return strings.Contains(s, ".") },
		apply: func(s string) string { return s[:strings.Index(s, ".")] },
	},
	{
		// a sixth token that is not a numeric offset
		name: "stray token",
		match: func(s string) bool {
			if strings.Count(s, " ") != 5 {
				return false
			}
			fields := strings.Fields(s)
			return len(fields) > 0 && !zoneOffset.MatchString(fields[len(fields)-1])
		},
		apply: dropLastField,
	},
}

// dateLayouts are tried in order after the rules ran; the first match wins.
var dateLayouts = []string{
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05",
	"2 Jan 2006 15:04:05 -0700",
	"2 Jan 2006 15:04:05",
	"2-1-2006",
}

// ParseDate converts a Date header into a timestamp. It is a best effort
// heuristic for the irregular values seen in real mailboxes and returns nil
// for empty or unparseable input. Values without a zone are read as UTC.
func ParseDate(value string) *time.Time {
	s := value
	if s == "" {
		return nil
	}
	for _, rule := range dateRules {
		if s != "" && rule.match(s) {
			s = rule.apply(s)
		}
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

func hasWeekday(s string) bool {
	r := []rune(s)
	if len(r) < 3 {
		return false
	}
	for _, c := range r[:3] {
		if !unicode.IsLetter(c) {
			return false
		}
	}
	return true
}

// runeFromEnd applies pred to the n-th rune counted from the end (1 = last).
func runeFromEnd(s string, n int, pred func(rune) bool) bool {
	r := []rune(s)
	if len(r) < n {
		return false
	}
	return pred(r[len(r)-n])
}

func dropLastField(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return s
	}
	return strings.Join(fields[:len(fields)-1], " ")
}
