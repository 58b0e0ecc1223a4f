package resume

import (
	"bytes"
	"errors"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestBuildWorkbookRows(t *testing.T) {
	profiles := []Profile{
		{
			Filename: "jane.pdf",
			Name:     "Jane Doe",
			Email:    "jane@example.com",
			Phone:    "555-0134",
			Summary:  "Backend engineer with 6 years of Go experience.",
			Skills:   []string{"Go", "Redis", "PostgreSQL"},
			Experience: []Experience{
				{Title: "Senior Engineer", Company: "Acme", Duration: "2020 - Present"},
				{Title: "Engineer", Company: "Initech", Duration: "2017 - 2020"},
			},
			Education: []Education{
				{Degree: "BSc Computer Science", Institution: "State University"},
			},
		},
		ErrorProfile("broken.docx", errors.New("no text could be extracted from broken.docx")),
	}

	data, err := BuildWorkbook(profiles)
	if err != nil {
		t.Fatalf("BuildWorkbook returned error: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("workbook is not readable: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	if err != nil {
		t.Fatalf("GetRows returned error: %v", err)
	}
	if len(rows) != len(profiles)+1 {
		t.Fatalf("got %d rows, want %d (header + one per profile)", len(rows), len(profiles)+1)
	}
	if rows[0][0] != "Filename" || rows[0][1] != "Name" {
		t.Fatalf("unexpected header row: %#v", rows[0])
	}
	if rows[1][1] != "Jane Doe" {
		t.Fatalf("unexpected name cell: %q", rows[1][1])
	}
	if rows[1][5] != "Go, Redis, PostgreSQL" {
		t.Fatalf("unexpected skills cell: %q", rows[1][5])
	}
	if rows[1][6] != "Senior Engineer at Acme (2020 - Present)" {
		t.Fatalf("unexpected experience cell: %q", rows[1][6])
	}
	if rows[2][1] != "Error processing broken.docx" {
		t.Fatalf("placeholder row missing: %#v", rows[2])
	}
}

func TestBuildWorkbookEmptyFieldsDefaultToNA(t *testing.T) {
	profiles := []Profile{
		{
			Filename:   "sparse.pdf",
			Name:       "John",
			Experience: []Experience{{Title: "Engineer"}},
		},
	}

	data, err := BuildWorkbook(profiles)
	if err != nil {
		t.Fatalf("BuildWorkbook returned error: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("workbook is not readable: %v", err)
	}
	defer f.Close()

	cell, err := f.GetCellValue(sheetName, "G2")
	if err != nil {
		t.Fatalf("GetCellValue returned error: %v", err)
	}
	if cell != "Engineer at N/A (N/A)" {
		t.Fatalf("unexpected experience cell: %q", cell)
	}
}
