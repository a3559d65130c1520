package scraper

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jgoulah/punchsync/pkg/models"
)

// ParseTable extracts header and rows from the punches table markup. Rows
// with no cells (spacers, "no records" placeholders spanning the table) are
// skipped.
func ParseTable(html string) (models.Table, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return models.Table{}, fmt.Errorf("parsing punches html: %w", err)
	}

	table := doc.Find("#tblPunches")
	if table.Length() == 0 {
		table = doc.Find("table").First()
	}
	if table.Length() == 0 {
		return models.Table{}, ErrNoTable
	}

	var out models.Table
	table.Find("thead tr th").Each(func(_ int, th *goquery.Selection) {
		out.Header = append(out.Header, cellText(th))
	})

	table.Find("tbody tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Find("td")
		if cells.Length() == 0 || (cells.Length() == 1 && len(out.Header) > 1) {
			return
		}
		row := make([]string, 0, cells.Length())
		cells.Each(func(_ int, td *goquery.Selection) {
			row = append(row, cellText(td))
		})
		out.Rows = append(out.Rows, row)
	})

	return out, nil
}

func cellText(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}
