package core

// search.go implements the accent- and case-insensitive matching used by the
// staff listings and the read-only view. Staff type "joao" and expect to
// find "João"; withdrawn-by values are typed by hand and vary in case.

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/JonMunkholm/labtrack/internal/records"
)

// Fold lowercases s and strips combining marks, so "São João" becomes
// "sao joao".
func Fold(s string) string {
	// Chains hold state and are not safe for concurrent use.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.TrimSpace(out))
}

// Matches reports whether needle occurs in haystack after folding both. An
// empty needle matches everything.
func Matches(haystack, needle string) bool {
	needle = Fold(needle)
	if needle == "" {
		return true
	}
	return strings.Contains(Fold(haystack), needle)
}

// FilterExams keeps exams matching every non-empty field of q, in order.
func FilterExams(list []records.Exam, q ExamQuery) []records.Exam {
	if strings.TrimSpace(q.Patient) == "" && strings.TrimSpace(q.WithdrawnBy) == "" {
		return list
	}
	out := make([]records.Exam, 0, len(list))
	for _, e := range list {
		if Matches(e.PatientName, q.Patient) && Matches(e.WithdrawnBy, q.WithdrawnBy) {
			out = append(out, e)
		}
	}
	return out
}

// FilterRecoletas keeps recoletas whose patient or UBS matches q.
func FilterRecoletas(list []records.Recoleta, q string) []records.Recoleta {
	if strings.TrimSpace(q) == "" {
		return list
	}
	out := make([]records.Recoleta, 0, len(list))
	for _, r := range list {
		if Matches(r.PatientName, q) || Matches(r.UBS, q) {
			out = append(out, r)
		}
	}
	return out
}
