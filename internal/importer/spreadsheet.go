package importer

import (
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/Simplici0/tradedesk/internal/apperr"
)

var allowedExtensions = []string{".xlsx", ".xls"}

// ValidateFileName rejects uploads that are not spreadsheets.
func ValidateFileName(name string) error {
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range allowedExtensions {
		if ext == allowed {
			return nil
		}
	}
	return apperr.Newf(apperr.TypeInput, "unsupported file type %q: upload an .xlsx or .xls spreadsheet", ext)
}

// ParseSpreadsheet reads the first sheet of a workbook. The first non-empty
// row is the header; every following non-blank row becomes an ImportRow
// numbered from 1.
func ParseSpreadsheet(r io.Reader) ([]ImportRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, apperr.Wrap(apperr.TypeParsing, "open workbook", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	records, err := f.GetRows(sheet)
	if err != nil {
		return nil, apperr.Wrap(apperr.TypeParsing, "read sheet "+sheet, err)
	}

	var header []string
	rows := make([]ImportRow, 0, len(records))
	for _, record := range records {
		if isBlank(record) {
			continue
		}
		if header == nil {
			header = normalizeHeader(record)
			continue
		}

		fields := make(map[string]string, len(header))
		for i, name := range header {
			if name == "" {
				continue
			}
			if i < len(record) {
				fields[name] = strings.TrimSpace(record[i])
			} else {
				fields[name] = ""
			}
		}
		rows = append(rows, ImportRow{
			Number:  len(rows) + 1,
			Fields:  fields,
			Errors:  []string{},
			IsValid: true,
		})
	}

	if header == nil {
		return nil, apperr.New(apperr.TypeParsing, "spreadsheet is empty")
	}
	if len(rows) == 0 {
		return nil, apperr.New(apperr.TypeParsing, "spreadsheet has a header but no data rows")
	}
	return rows, nil
}

func normalizeHeader(record []string) []string {
	out := make([]string, len(record))
	for i, name := range record {
		out[i] = NormalizeColumn(name)
	}
	return out
}

// NormalizeColumn lower-cases a header and joins words with underscores.
func NormalizeColumn(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), "_")
}

func isBlank(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
