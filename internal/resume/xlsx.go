package resume

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Candidates"

const maxColumnWidth = 60

var workbookHeaders = []string{
	"Filename", "Name", "Email", "Phone", "Summary", "Skills", "Recent Experience", "Education",
}

// BuildWorkbook はプロフィール一覧からXLSXワークブックを生成し、バイト列で返します。
// 1ファイルにつき1行で、処理に失敗したファイルのプレースホルダー行も含まれます。
func BuildWorkbook(profiles []Profile) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, err
	}

	write := func(col, row int, v any) {
		cell, _ := excelize.CoordinatesToCellName(col, row)
		_ = f.SetCellValue(sheetName, cell, v)
	}

	for i, h := range workbookHeaders {
		write(i+1, 1, h)
	}
	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		last, _ := excelize.CoordinatesToCellName(len(workbookHeaders), 1)
		_ = f.SetCellStyle(sheetName, "A1", last, headerStyle)
	}

	widths := make([]int, len(workbookHeaders))
	for i, h := range workbookHeaders {
		widths[i] = len(h)
	}

	for i, p := range profiles {
		row := i + 2
		values := []string{
			p.Filename,
			p.Name,
			p.Email,
			p.Phone,
			p.Summary,
			strings.Join(p.Skills, ", "),
			recentExperience(p.Experience),
			firstEducation(p.Education),
		}
		for col, v := range values {
			write(col+1, row, v)
			if len(v) > widths[col] {
				widths[col] = len(v)
			}
		}
	}

	for i := range workbookHeaders {
		name, _ := excelize.ColumnNumberToName(i + 1)
		width := widths[i] + 2
		if width > maxColumnWidth {
			width = maxColumnWidth
		}
		_ = f.SetColWidth(sheetName, name, name, float64(width))
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

// recentExperience は直近の職歴1件を1セル用に平坦化します。
func recentExperience(exp []Experience) string {
	if len(exp) == 0 {
		return ""
	}
	first := exp[0]
	return fmt.Sprintf("%s at %s (%s)", orNA(first.Title), orNA(first.Company), orNA(first.Duration))
}

func firstEducation(edu []Education) string {
	if len(edu) == 0 {
		return ""
	}
	first := edu[0]
	return fmt.Sprintf("%s, %s", orNA(first.Degree), orNA(first.Institution))
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
