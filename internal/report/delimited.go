package report

import (
	"encoding/csv"
	"fmt"
	"io"
)

// utf8BOM lets spreadsheet tools detect the encoding of the delimited export.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// WriteDelimited writes a UTF-8 CSV with a byte-order mark, a header row and
// one row per record.
func WriteDelimited(w io.Writer, columns []string, rows [][]string) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return fmt.Errorf("write bom: %w", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	return nil
}
