// Package export flattens users and their questionnaire responses into a
// spreadsheet and writes it as CSV or XLSX.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"recruitment-portal/internal/domain"

	"github.com/xuri/excelize/v2"
)

// Fixed leading columns.
const (
	ColUserID   = "User ID"
	ColName     = "Name"
	ColEmail    = "Email"
	ColDomains  = "Selected Domains"
	ColLogin    = "Last Login"
	anonymous   = "Anonymous"
	loginLayout = "2006-01-02 15:04:05"
	sheetName   = "Responses"
)

// Format is an output file type.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat validates a format name; empty means CSV.
func ParseFormat(raw string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(raw))) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXLSX, "excel":
		return FormatXLSX, nil
	}
	return "", domain.ErrUnsupportedFormat
}

// ContentType is the MIME type served for the format.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// FileName is the download name for the format.
func (f Format) FileName() string {
	return "user_responses." + string(f)
}

// FileNameFor is the download name of a single user's export.
func (f Format) FileNameFor(uid string) string {
	if uid == "" {
		return f.FileName()
	}
	return "user_responses_" + uid + "." + string(f)
}

// Table is a header row plus data rows of equal width.
type Table struct {
	Headers []string
	Rows    [][]string
}

// ResponseColumn names the column holding answer n (1-based) for d.
func ResponseColumn(d domain.Domain, n int) string {
	return fmt.Sprintf("%s - Q%d", d, n)
}

// BuildTable produces one row per user, ordered by uid. Answers are included
// only for domains the user selected. Headers are the union of every row's
// columns in first-seen order.
func BuildTable(users []domain.UserProfile, responses []domain.QuizResponse) Table {
	byUser := make(map[string]map[domain.Domain]domain.QuizResponse)
	for _, r := range responses {
		if byUser[r.UserID] == nil {
			byUser[r.UserID] = make(map[domain.Domain]domain.QuizResponse)
		}
		byUser[r.UserID][r.Domain] = r
	}

	sorted := append([]domain.UserProfile(nil), users...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].UID < sorted[j].UID })

	headers := []string{ColUserID, ColName, ColEmail, ColDomains, ColLogin}
	seen := make(map[string]bool, len(headers))
	for _, h := range headers {
		seen[h] = true
	}

	records := make([]map[string]string, 0, len(sorted))
	for _, u := range sorted {
		rec := map[string]string{
			ColUserID:  u.UID,
			ColName:    u.DisplayName,
			ColEmail:   u.Email,
			ColDomains: joinDomains(u.SelectedDomains),
			ColLogin:   formatLogin(u.LastLogin),
		}
		if rec[ColName] == "" {
			rec[ColName] = anonymous
		}
		for _, d := range u.SelectedDomains {
			resp, ok := byUser[u.UID][d]
			if !ok {
				continue
			}
			for _, key := range sortedAnswerKeys(resp.Responses) {
				idx, _ := domain.ParseAnswerKey(key)
				col := ResponseColumn(d, idx+1)
				rec[col] = resp.Responses[key]
				if !seen[col] {
					seen[col] = true
					headers = append(headers, col)
				}
			}
		}
		records = append(records, rec)
	}

	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		row := make([]string, len(headers))
		for i, h := range headers {
			row[i] = rec[h]
		}
		rows = append(rows, row)
	}
	return Table{Headers: headers, Rows: rows}
}

func joinDomains(ds []domain.Domain) string {
	parts := make([]string, len(ds))
	for i, d := range ds {
		parts[i] = string(d)
	}
	return strings.Join(parts, ", ")
}

func formatLogin(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(loginLayout)
}

// sortedAnswerKeys returns valid qN keys in question order.
func sortedAnswerKeys(responses map[string]string) []string {
	keys := make([]string, 0, len(responses))
	for k := range responses {
		if _, ok := domain.ParseAnswerKey(k); ok {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		a, _ := domain.ParseAnswerKey(keys[i])
		b, _ := domain.ParseAnswerKey(keys[j])
		return a < b
	})
	return keys
}

// Write encodes t in format f.
func Write(w io.Writer, f Format, t Table) error {
	switch f {
	case FormatCSV:
		return WriteCSV(w, t)
	case FormatXLSX:
		return WriteXLSX(w, t)
	}
	return domain.ErrUnsupportedFormat
}

// WriteCSV writes t as RFC 4180 CSV.
func WriteCSV(w io.Writer, t Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Headers); err != nil {
		return err
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

// WriteXLSX writes t as a single-sheet workbook.
func WriteXLSX(w io.Writer, t Table) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := setRow(f, 1, t.Headers); err != nil {
		return err
	}
	for i, row := range t.Rows {
		if err := setRow(f, i+2, row); err != nil {
			return err
		}
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, n int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, n)
	if err != nil {
		return err
	}
	row := make([]interface{}, len(values))
	for i, v := range values {
		row[i] = v
	}
	if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
		return fmt.Errorf("set row %d: %w", n, err)
	}
	return nil
}
