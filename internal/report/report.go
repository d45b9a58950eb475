// Package report exports a ledger as an XLSX workbook.
package report

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/pubtracker/ackscan/internal/corpus"
	"github.com/pubtracker/ackscan/pkg/model"
)

const (
	LedgerSheet  = "Ledger"
	SummarySheet = "Summary"

	// PreviewRunes bounds the passage preview taken from each sidecar.
	PreviewRunes = 200
)

var ledgerHeaders = []string{"File", "Format", "Acknowledged", "Suspected", "Fulltext", "Passage"}

// Counts are the figures on the Summary sheet.
type Counts struct {
	Rows            int
	Acknowledged    int
	NotAcknowledged int
	Undecided       int
	XML             int
	PDF             int
	NoFulltext      int
}

// Count tallies entries.
func Count(entries []model.Entry) Counts {
	var c Counts
	for _, e := range entries {
		c.Rows++
		switch e.Acknowledged {
		case model.FlagTrue:
			c.Acknowledged++
		case model.FlagFalse:
			c.NotAcknowledged++
		default:
			c.Undecided++
		}
		switch e.Format() {
		case model.FormatXML:
			c.XML++
		case model.FormatPDF:
			c.PDF++
		default:
			c.NoFulltext++
		}
	}
	return c
}

// WriteXLSX writes the Ledger and Summary sheets for entries to w. Passage
// previews are read from the acknowledgment sidecars in c.
func WriteXLSX(c *corpus.Corpus, entries []model.Entry, w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", LedgerSheet); err != nil {
		return fmt.Errorf("xlsx sheet: %w", err)
	}
	for i, h := range ledgerHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(LedgerSheet, cell, h)
	}

	for i, e := range entries {
		row := i + 2
		rec := model.NewRecord(e, c.Root)
		write := func(col int, v string) {
			if v == "" {
				return
			}
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(LedgerSheet, cell, v)
		}
		write(1, e.FileName)
		write(2, rec.Format.String())
		write(3, e.Acknowledged.String())
		write(4, e.Suspected.String())
		write(5, rec.FulltextPath)
		write(6, preview(c.SidecarPath(rec.Stem())))
	}

	_ = f.SetColWidth(LedgerSheet, "A", "A", 32)
	_ = f.SetColWidth(LedgerSheet, "B", "D", 14)
	_ = f.SetColWidth(LedgerSheet, "E", "E", 48)
	_ = f.SetColWidth(LedgerSheet, "F", "F", 80)
	_ = f.SetPanes(LedgerSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	if _, err := f.NewSheet(SummarySheet); err != nil {
		return fmt.Errorf("xlsx sheet: %w", err)
	}
	counts := Count(entries)
	summary := [][2]any{
		{"Rows", counts.Rows},
		{"Acknowledged", counts.Acknowledged},
		{"Not acknowledged", counts.NotAcknowledged},
		{"Undecided", counts.Undecided},
		{"XML fulltext", counts.XML},
		{"PDF fulltext", counts.PDF},
		{"No fulltext", counts.NoFulltext},
	}
	for i, kv := range summary {
		_ = f.SetCellValue(SummarySheet, fmt.Sprintf("A%d", i+1), kv[0])
		_ = f.SetCellValue(SummarySheet, fmt.Sprintf("B%d", i+1), kv[1])
	}
	_ = f.SetColWidth(SummarySheet, "A", "A", 20)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return nil
}

// preview returns the start of a sidecar with whitespace collapsed, or ""
// when the sidecar does not exist.
func preview(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	text := strings.Join(strings.Fields(string(data)), " ")
	runes := []rune(text)
	if len(runes) <= PreviewRunes {
		return text
	}
	return string(runes[:PreviewRunes-1]) + "…"
}
