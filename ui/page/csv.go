package page

import (
	"bytes"
	"strconv"
	"strings"
)

// CSVContentType is the MIME type of exported files.
const CSVContentType = "text/csv; charset=utf-8"

// Cell is one exported CSV field. Text cells are always double-quoted
// with inner quotes doubled; number cells are written bare.
type Cell struct {
	text   string
	number bool
}

// Text returns a quoted cell.
func Text(s string) Cell { return Cell{text: s} }

// Number returns an unquoted numeric cell in its shortest form.
func Number(f float64) Cell {
	return Cell{text: strconv.FormatFloat(f, 'f', -1, 64), number: true}
}

// EncodeCSV writes header and rows, one record per line separated by "\n".
// encoding/csv only quotes fields that need it, which would change the
// export format.
func EncodeCSV(header []string, rows [][]Cell) []byte {
	var buf bytes.Buffer
	if len(header) > 0 {
		cells := make([]Cell, len(header))
		for i, h := range header {
			cells[i] = Text(h)
		}
		writeRecord(&buf, cells)
	}
	for i, row := range rows {
		if i > 0 || len(header) > 0 {
			buf.WriteByte('\n')
		}
		writeRecord(&buf, row)
	}
	return buf.Bytes()
}

func writeRecord(buf *bytes.Buffer, cells []Cell) {
	for i, c := range cells {
		if i > 0 {
			buf.WriteByte(',')
		}
		if c.number {
			buf.WriteString(c.text)
			continue
		}
		buf.WriteByte('"')
		buf.WriteString(strings.ReplaceAll(c.text, `"`, `""`))
		buf.WriteByte('"')
	}
}
