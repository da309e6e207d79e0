package core

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/JonMunkholm/labtrack/internal/records"
	"github.com/JonMunkholm/labtrack/internal/sheetstore"
)

// AllDestinations is the withdrawn-by filter value meaning "any".
const AllDestinations = "todos"

// SelectReport filters exams for a report and sorts them by received date,
// newest first. Exams without a received date are excluded whenever a date
// bound is set and otherwise sort last. The date range is inclusive of both
// days.
func SelectReport(list []records.Exam, f ReportFilter) []records.Exam {
	dest := strings.TrimSpace(f.WithdrawnBy)
	anyDest := dest == "" || strings.EqualFold(dest, AllDestinations)

	var from, to time.Time
	if !f.From.IsZero() {
		from = records.DateOnly(f.From)
	}
	if !f.To.IsZero() {
		to = records.DateOnly(f.To)
	}

	out := make([]records.Exam, 0, len(list))
	for _, e := range list {
		if !anyDest && !strings.EqualFold(strings.TrimSpace(e.WithdrawnBy), dest) {
			continue
		}
		if !from.IsZero() || !to.IsZero() {
			if e.ReceivedDate == nil {
				continue
			}
			d := records.DateOnly(e.ReceivedDate.In(dateLocation(from, to)))
			if !from.IsZero() && d.Before(from) {
				continue
			}
			if !to.IsZero() && d.After(to) {
				continue
			}
		}
		out = append(out, e)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].ReceivedDate, out[j].ReceivedDate
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})
	return out
}

func dateLocation(from, to time.Time) *time.Location {
	if !from.IsZero() {
		return from.Location()
	}
	return to.Location()
}

// reportHeader is the CSV header row.
var reportHeader = []string{"Paciente", "Data Recebida", "Retirado Por", "OBS", "PDFs"}

// WriteReportCSV renders exams as CSV with one row per exam. Attachment
// names are joined with "; ".
func WriteReportCSV(w io.Writer, list []records.Exam) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(reportHeader); err != nil {
		return fmt.Errorf("write report header: %w", err)
	}
	for _, e := range list {
		date := ""
		if e.ReceivedDate != nil {
			date = e.ReceivedDate.Format(sheetstore.DateLayout)
		}
		names := make([]string, 0, len(e.Attachments))
		for _, a := range e.Attachments {
			names = append(names, a.Name)
		}
		if err := cw.Write([]string{e.PatientName, date, e.WithdrawnBy, e.Observations, strings.Join(names, "; ")}); err != nil {
			return fmt.Errorf("write report row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
