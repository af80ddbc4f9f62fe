package source

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/frame"
)

// ReadHTMLTable loads the index'th <table> of an HTML document as
// string columns. A leading all-<th> row supplies the column names;
// without one the columns are named positionally like a headerless
// CSV. Cell text is whitespace-trimmed and empty cells load as nil.
func ReadHTMLTable(r io.Reader, index int) (*frame.Frame, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("html: parse document: %w", err)
	}
	tables := doc.Find("table")
	if index < 0 || index >= tables.Length() {
		return nil, fmt.Errorf("html: table index %d out of range, document has %d tables", index, tables.Length())
	}

	var names []string
	var rows [][]string
	tables.Eq(index).Find("tr").Each(func(_ int, tr *goquery.Selection) {
		cells := cellTexts(tr.Find("th, td"))
		if len(cells) == 0 {
			return
		}
		if names == nil && len(rows) == 0 && tr.Find("th").Length() == len(cells) {
			names = cells
			return
		}
		rows = append(rows, cells)
	})

	if names == nil {
		if len(rows) == 0 {
			return frame.New()
		}
		names = make([]string, len(rows[0]))
	}
	for i := range names {
		if names[i] == "" {
			names[i] = fmt.Sprintf("_c%d", i)
		}
	}

	cells := make([][]any, len(names))
	for _, rec := range rows {
		appendRecord(cells, rec)
	}
	return stringColumns(names, cells)
}

func cellTexts(sel *goquery.Selection) []string {
	out := make([]string, 0, sel.Length())
	sel.Each(func(_ int, cell *goquery.Selection) {
		out = append(out, strings.TrimSpace(cell.Text()))
	})
	return out
}
