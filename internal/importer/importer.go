// Package importer turns an uploaded students CSV into store-ready rows.
//
// The file must be comma separated with a header row.  Every data row is
// classified as valid or rejected; valid rows are de-duplicated by rfid so
// that the last occurrence wins while keeping the position of the first.
package importer

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"

	"github.com/iliyamo/school-rfid-admin/internal/model"
)

// Column names recognised in the header row.
const (
	ColRFID            = "rfid"
	ColName            = "name"
	ColAdmissionNumber = "admissionNumber"
	ColParentPhone     = "parentPhone"
	ColParentPhone2    = "parentPhone2"
)

// RequiredColumns must all be present and non-empty for a row to be valid.
var RequiredColumns = []string{ColRFID, ColName, ColAdmissionNumber, ColParentPhone}

// maxParseErrors caps how many malformed rows are reported back.
const maxParseErrors = 50

const utf8BOM = "\uFEFF"

// Row is the outcome of reading one data row: either ValidRow or
// RejectedRow.
type Row interface {
	isRow()
}

// ValidRow carries a student built from a complete row.
type ValidRow struct {
	Line    int
	Student model.Student
}

// RejectedRow records why a row was not imported.
type RejectedRow struct {
	Line   int    `json:"row"`
	Reason string `json:"reason"`
}

func (ValidRow) isRow()    {}
func (RejectedRow) isRow() {}

// ParseError describes a malformed CSV row.
type ParseError struct {
	Line    int    `json:"row"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Result is everything Parse learned from a file.
type Result struct {
	Headers    []string
	Students   []model.Student // valid rows after de-duplication
	Rejected   []RejectedRow
	Duplicates int // valid rows superseded by a later row with the same rfid
	Errors     []ParseError
}

// Header maps column names to their position in a record.
type Header map[string]int

// NewHeader trims the header names (dropping a UTF-8 BOM) and indexes
// them.  When a name repeats the last column wins.
func NewHeader(names []string) ([]string, Header) {
	cleaned := make([]string, len(names))
	idx := make(Header, len(names))
	for i, n := range names {
		if i == 0 {
			n = strings.TrimPrefix(n, utf8BOM)
		}
		n = strings.TrimSpace(n)
		cleaned[i] = n
		idx[n] = i
	}
	return cleaned, idx
}

func (h Header) value(rec []string, col string) string {
	i, ok := h[col]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

// ParseRow projects a record onto a student of schoolID.  The school always
// comes from the caller, never from the file.
func ParseRow(h Header, rec []string, line int, schoolID string) Row {
	var missing []string
	for _, col := range RequiredColumns {
		if h.value(rec, col) == "" {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return RejectedRow{Line: line, Reason: "missing " + strings.Join(missing, ", ")}
	}
	st := model.Student{
		SchoolID:        schoolID,
		RFID:            h.value(rec, ColRFID),
		Name:            h.value(rec, ColName),
		AdmissionNumber: h.value(rec, ColAdmissionNumber),
		ParentPhone:     h.value(rec, ColParentPhone),
	}
	if p2 := h.value(rec, ColParentPhone2); p2 != "" {
		st.ParentPhone2 = &p2
	}
	return ValidRow{Line: line, Student: st}
}

// Parse reads the whole CSV from r.  Malformed rows are collected in
// Result.Errors rather than aborting; the returned error is reserved for
// read failures of r itself.
//
// Quotes are only special at the start of a field: a quote inside an
// unquoted cell is kept as text.  A quoted field that never closes is
// reported as MissingQuotes.
func Parse(r io.Reader, schoolID string) (Result, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Result{}, errors.Wrap(err, "read csv")
	}

	var res Result
	if line, ok := unterminatedQuote(data); ok {
		res.Errors = append(res.Errors, ParseError{Line: line, Code: "MissingQuotes", Message: "Quoted field unterminated"})
		return res, nil
	}

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	head, err := cr.Read()
	if err == io.EOF {
		return res, nil
	}
	if err != nil {
		var pe *csv.ParseError
		if !errors.As(err, &pe) {
			return res, errors.Wrap(err, "read csv header")
		}
		res.Errors = append(res.Errors, parseError(pe))
		return res, nil
	}
	var header Header
	res.Headers, header = NewHeader(head)

	byRFID := make(map[string]int)
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if !errors.As(err, &pe) {
				return res, errors.Wrap(err, "read csv")
			}
			if len(res.Errors) < maxParseErrors {
				res.Errors = append(res.Errors, parseError(pe))
			}
			continue
		}
		line, _ := cr.FieldPos(0)
		if blank(rec) {
			continue
		}
		if len(rec) != len(res.Headers) {
			if len(res.Errors) < maxParseErrors {
				res.Errors = append(res.Errors, fieldCountError(line, len(res.Headers), len(rec)))
			}
			continue
		}

		switch row := ParseRow(header, rec, line, schoolID).(type) {
		case ValidRow:
			if i, seen := byRFID[row.Student.RFID]; seen {
				res.Students[i] = row.Student
				res.Duplicates++
				continue
			}
			byRFID[row.Student.RFID] = len(res.Students)
			res.Students = append(res.Students, row.Student)
		case RejectedRow:
			res.Rejected = append(res.Rejected, row)
		}
	}
	return res, nil
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func parseError(pe *csv.ParseError) ParseError {
	code := "InvalidQuotes"
	if errors.Is(pe.Err, csv.ErrFieldCount) {
		code = "FieldCount"
	}
	return ParseError{Line: pe.Line, Code: code, Message: pe.Err.Error()}
}

func fieldCountError(line, want, got int) ParseError {
	if got < want {
		return ParseError{Line: line, Code: "TooFewFields", Message: fmt.Sprintf("Too few fields: expected %d fields but parsed %d", want, got)}
	}
	return ParseError{Line: line, Code: "TooManyFields", Message: fmt.Sprintf("Too many fields: expected %d fields but parsed %d", want, got)}
}

// unterminatedQuote scans data the way the reader splits fields and
// reports the line of a quoted field still open at end of input.  Inside
// a quoted field "" is an escaped quote, and a quote not followed by a
// separator is kept as text.
func unterminatedQuote(data []byte) (int, bool) {
	data = bytes.TrimPrefix(data, []byte(utf8BOM))
	line, start := 1, true
	for i := 0; i < len(data); i++ {
		c := data[i]
		if !start || c != '"' {
			switch c {
			case '\n':
				line++
				start = true
			case ',':
				start = true
			default:
				start = false
			}
			continue
		}

		open, closed := line, false
		for i++; i < len(data) && !closed; i++ {
			switch data[i] {
			case '\n':
				line++
			case '"':
				next := byte('\n')
				if i+1 < len(data) {
					next = data[i+1]
				}
				switch next {
				case '"':
					i++
				case ',', '\n', '\r':
					closed = true
				}
			}
		}
		if !closed {
			return open, true
		}
		// i is one past the closing quote; the outer loop must see the
		// separator there.
		i--
		start = false
	}
	return 0, false
}
