package sheet

import (
	"bufio"
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

// ReadCSV reads all records from r. Spreadsheets saved with a Brazilian
// locale use ';' as the field separator; it is detected from the header line.
func ReadCSV(r io.Reader) ([][]string, error) {
	br := bufio.NewReader(r)
	// Peek reports io.EOF together with the bytes of inputs shorter than the buffer.
	first, err := br.Peek(br.Size())
	if err != nil && err != io.EOF {
		return nil, eris.Wrap(err, "csv: peek header")
	}

	reader := csv.NewReader(br)
	reader.Comma = detectDelimiter(string(first))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, eris.Wrap(err, "csv: read row")
		}
		for i, field := range record {
			record[i] = strings.TrimSpace(field)
		}
		rows = append(rows, record)
	}
}

func detectDelimiter(sample string) rune {
	line, _, _ := strings.Cut(sample, "\n")
	if strings.Count(line, ";") > strings.Count(line, ",") {
		return ';'
	}
	return ','
}
