package importer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_validRows(t *testing.T) {
	in := "\uFEFF rfid , name,admissionNumber,parentPhone,parentPhone2\n" +
		"A1,Ann,100,0700,\n" +
		"\n" +
		"B2, Ben ,101,0701,0702\n"

	res, err := Parse(strings.NewReader(in), "S1")
	require.NoError(t, err)
	assert.Empty(t, res.Errors)
	assert.Equal(t, []string{"rfid", "name", "admissionNumber", "parentPhone", "parentPhone2"}, res.Headers)
	require.Len(t, res.Students, 2)

	a := res.Students[0]
	assert.Equal(t, "S1", a.SchoolID)
	assert.Equal(t, "A1", a.RFID)
	assert.Nil(t, a.ParentPhone2)

	b := res.Students[1]
	assert.Equal(t, "Ben", b.Name)
	require.NotNil(t, b.ParentPhone2)
	assert.Equal(t, "0702", *b.ParentPhone2)
}

func TestParse_lastOccurrenceWins(t *testing.T) {
	in := "rfid,name,admissionNumber,parentPhone\n" +
		"A1,Ann,100,0700\n" +
		"B2,Ben,101,0701\n" +
		"A1,Annie,100,0799\n"

	res, err := Parse(strings.NewReader(in), "S1")
	require.NoError(t, err)
	require.Len(t, res.Students, 2)
	assert.Equal(t, 1, res.Duplicates)
	assert.Equal(t, "A1", res.Students[0].RFID, "first occurrence keeps its position")
	assert.Equal(t, "Annie", res.Students[0].Name)
	assert.Equal(t, "0799", res.Students[0].ParentPhone)
	assert.Equal(t, "B2", res.Students[1].RFID)
}

func TestParse_rejectsIncompleteRows(t *testing.T) {
	in := "rfid,name,admissionNumber,parentPhone\n" +
		"A1,Ann,100,0700\n" +
		",Ben,101,0701\n" +
		"C3,,,0702\n"

	res, err := Parse(strings.NewReader(in), "S1")
	require.NoError(t, err)
	require.Len(t, res.Students, 1)
	assert.Equal(t, []RejectedRow{
		{Line: 3, Reason: "missing rfid"},
		{Line: 4, Reason: "missing name, admissionNumber"},
	}, res.Rejected)
}

func TestParse_wrongHeaders(t *testing.T) {
	in := "tag;fullname;adm;phone\nA1;Ann;100;0700\n"

	res, err := Parse(strings.NewReader(in), "S1")
	require.NoError(t, err)
	assert.Empty(t, res.Errors)
	assert.Empty(t, res.Students)
	assert.Len(t, res.Rejected, 1)
	assert.Equal(t, []string{"tag;fullname;adm;phone"}, res.Headers)
}

func TestParse_malformed(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		wantCode string
	}{
		{"too few fields", "rfid,name,admissionNumber,parentPhone\nA1,Ann\n", "TooFewFields"},
		{"too many fields", "rfid,name,admissionNumber,parentPhone\nA1,Ann,1,2,3\n", "TooManyFields"},
		{"unterminated quote", "rfid,name,admissionNumber,parentPhone\nA1,\"Ann,1,2\n", "MissingQuotes"},
		{"text after closing quote", "rfid,name,admissionNumber,parentPhone\nA1,\"Ann\"x,1,2\n", "MissingQuotes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Parse(strings.NewReader(tt.in), "S1")
			require.NoError(t, err)
			require.Len(t, res.Errors, 1)
			assert.Equal(t, tt.wantCode, res.Errors[0].Code)
			assert.Equal(t, 2, res.Errors[0].Line)
			assert.Empty(t, res.Students)
		})
	}
}

func TestParse_quotes(t *testing.T) {
	in := "rfid,name,admissionNumber,parentPhone\r\n" +
		"A1,Ann \"Jr\" Smith,1,0700\r\n" +
		"B2,\"Doe, \"\"Bee\"\"\",2,0701\r\n" +
		"C3,\"Multi\nLine\",3,0702\r\n" +
		"D4,Dee,4,\"0703\""

	res, err := Parse(strings.NewReader(in), "S1")
	require.NoError(t, err)
	assert.Empty(t, res.Errors)
	require.Len(t, res.Students, 4)
	assert.Equal(t, `Ann "Jr" Smith`, res.Students[0].Name)
	assert.Equal(t, `Doe, "Bee"`, res.Students[1].Name)
	assert.Equal(t, "Multi\nLine", res.Students[2].Name)
	assert.Equal(t, "0703", res.Students[3].ParentPhone)
}

func TestUnterminatedQuote(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		wantLine int
		wantOK   bool
	}{
		{"none", "a,b\n1,2\n", 0, false},
		{"bare quote in cell", "a,b\n1,x\"y\n", 0, false},
		{"closed at eof", "a,b\n1,\"y\"", 0, false},
		{"escaped quote", "a,b\n1,\"say \"\"hi\"\"\"\n", 0, false},
		{"open at eof", "a,b\n1,2\n\"3,4\n5,6\n", 3, true},
		{"quoted header", "\uFEFF\"a,b\n1,2\n", 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line, ok := unterminatedQuote([]byte(tt.in))
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantLine, line)
		})
	}
}

func TestParse_empty(t *testing.T) {
	res, err := Parse(strings.NewReader(""), "S1")
	require.NoError(t, err)
	assert.Empty(t, res.Headers)
	assert.Empty(t, res.Students)
}

func TestParseRow(t *testing.T) {
	_, h := NewHeader([]string{"rfid", "name", "admissionNumber", "parentPhone"})

	switch row := ParseRow(h, []string{"A1", "Ann", "1", "0700"}, 2, "S9").(type) {
	case ValidRow:
		assert.Equal(t, "S9", row.Student.SchoolID)
		assert.Equal(t, 2, row.Line)
	default:
		t.Fatalf("want ValidRow, got %T", row)
	}

	row := ParseRow(h, []string{"A1", " ", "1", "0700"}, 3, "S9")
	assert.Equal(t, RejectedRow{Line: 3, Reason: "missing name"}, row)
}
