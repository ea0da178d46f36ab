package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pengxu9-rgb/Pivota-catalog-intelligence/internal/parser"
	"github.com/pengxu9-rgb/Pivota-catalog-intelligence/internal/store"
)

// exportColumns is the header of an export file, in order.
var exportColumns = []string{
	"row_index",
	"brand",
	"product_name",
	"market",
	"status",
	"confidence",
	"source_type",
	"source_ref",
	"raw_ingredient_text",
	"inci_list",
	"error",
}

// WriteCSV streams rows out as CSV. The inci_list column is computed on the
// fly by running the normalizer over whatever raw text the row holds, so an
// export always reflects the current dictionary.
func WriteCSV(w io.Writer, rows []store.Row, engine *parser.Engine) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportColumns); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, row := range rows {
		inciList := ""
		if engine != nil && strings.TrimSpace(row.RawIngredientText) != "" {
			inciList = engine.Parse(row.RawIngredientText).INCIList
		}
		record := []string{
			strconv.Itoa(row.RowIndex),
			row.Brand,
			row.ProductName,
			row.Market,
			row.Status,
			strconv.FormatFloat(row.Confidence, 'f', -1, 64),
			row.SourceType,
			row.SourceRef,
			row.RawIngredientText,
			inciList,
			row.Error,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write csv record: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportFilename names the download for an import.
func ExportFilename(importID string) string {
	return fmt.Sprintf("ingredient_harvest_%s.csv", importID)
}
