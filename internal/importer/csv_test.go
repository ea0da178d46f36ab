package importer

import (
	"errors"
	"strings"
	"testing"

	"github.com/pengxu9-rgb/Pivota-catalog-intelligence/internal/store"
)

func TestParseCSVResolvesAliasHeaders(t *testing.T) {
	input := strings.Join([]string{
		"Brand,Product Title,Product URL,Ingredients",
		`The Ordinary,Niacinamide 10% + Zinc 1%,https://theordinary.com/en-us/niacinamide.html,"Aqua, Niacinamide, Zinc PCA"`,
		"CeraVe,Foaming Cleanser,https://www.cerave.com/cleanser,",
	}, "\n")

	rows, summary, err := ParseCSV(strings.NewReader(input), "imp-1")
	if err != nil {
		t.Fatalf("ParseCSV() error = %v", err)
	}
	if summary.Rows != 2 || summary.SkippedExisting != 1 {
		t.Fatalf("summary = %+v, want 2 rows with 1 skipped", summary)
	}

	first := rows[0]
	if first.ImportID != "imp-1" || first.RowIndex != 0 {
		t.Errorf("first row identity = %q/%d", first.ImportID, first.RowIndex)
	}
	if first.Brand != "The Ordinary" || first.ProductName != "Niacinamide 10% + Zinc 1%" {
		t.Errorf("first row fields = %q / %q", first.Brand, first.ProductName)
	}
	if first.Market != "US" {
		t.Errorf("first row market = %q, want US from /en-us/ path", first.Market)
	}
	if first.Status != store.RowStatusSkipped || first.Confidence != 1.0 {
		t.Errorf("prefilled row status = %q conf %v, want SKIPPED/1.0", first.Status, first.Confidence)
	}

	second := rows[1]
	if second.Status != store.RowStatusEmpty || second.Confidence != 0 {
		t.Errorf("empty row status = %q conf %v, want EMPTY/0", second.Status, second.Confidence)
	}
	if second.Market != "GLOBAL" {
		t.Errorf("second row market = %q, want GLOBAL for plain .com", second.Market)
	}
	if second.RowID == "" || second.RowID == first.RowID {
		t.Errorf("row ids must be unique and non-empty, got %q and %q", first.RowID, second.RowID)
	}
}

func TestParseCSVChineseHeaders(t *testing.T) {
	input := strings.Join([]string{
		"品牌,产品名称,市场,全成分",
		"薇诺娜,舒敏保湿特护霜,CN,水、甘油、烟酰胺",
	}, "\n")

	rows, _, err := ParseCSV(strings.NewReader(input), "imp-zh")
	if err != nil {
		t.Fatalf("ParseCSV() error = %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	row := rows[0]
	if row.Brand != "薇诺娜" || row.ProductName != "舒敏保湿特护霜" {
		t.Errorf("row fields = %q / %q", row.Brand, row.ProductName)
	}
	if row.Market != "CN" {
		t.Errorf("market = %q, want CN", row.Market)
	}
	if row.RawIngredientText != "水、甘油、烟酰胺" {
		t.Errorf("raw text = %q", row.RawIngredientText)
	}
}

func TestParseCSVSkipsRowsMissingBrandOrProduct(t *testing.T) {
	input := strings.Join([]string{
		"brand,product_name",
		"Acme,Toner",
		",Orphan Product",
		"Acme,",
		"Acme,Serum",
	}, "\n")

	rows, summary, err := ParseCSV(strings.NewReader(input), "imp-2")
	if err != nil {
		t.Fatalf("ParseCSV() error = %v", err)
	}
	if summary.Rows != 2 {
		t.Fatalf("summary.Rows = %d, want 2", summary.Rows)
	}
	// Dropped rows still consume their index so exports line up with the
	// source spreadsheet.
	if rows[0].RowIndex != 0 || rows[1].RowIndex != 3 {
		t.Errorf("row indexes = %d, %d, want 0 and 3", rows[0].RowIndex, rows[1].RowIndex)
	}
}

func TestParseCSVPlaceholderCellsAreEmpty(t *testing.T) {
	input := strings.Join([]string{
		"brand,product_name,market,ingredients",
		"Acme,Serum,NaN,null",
	}, "\n")

	rows, summary, err := ParseCSV(strings.NewReader(input), "imp-3")
	if err != nil {
		t.Fatalf("ParseCSV() error = %v", err)
	}
	if summary.SkippedExisting != 0 {
		t.Errorf("placeholder ingredient text counted as existing")
	}
	if rows[0].Market != "GLOBAL" {
		t.Errorf("market = %q, want GLOBAL when the cell is a placeholder", rows[0].Market)
	}
	if rows[0].RawIngredientText != "" {
		t.Errorf("raw text = %q, want empty", rows[0].RawIngredientText)
	}
}

func TestParseCSVLoneURLInMarketColumn(t *testing.T) {
	input := strings.Join([]string{
		"brand,product_name,market",
		"The Ordinary,Squalane Cleanser,theordinary.com/en-gb/squalane-cleanser.html",
	}, "\n")

	rows, _, err := ParseCSV(strings.NewReader(input), "imp-4")
	if err != nil {
		t.Fatalf("ParseCSV() error = %v", err)
	}
	row := rows[0]
	if row.SourceRef != "https://theordinary.com/en-gb/squalane-cleanser.html" {
		t.Errorf("source_ref = %q, want the relocated URL", row.SourceRef)
	}
	if row.Market != "UK" {
		t.Errorf("market = %q, want UK inferred from the relocated URL", row.Market)
	}
}

func TestParseCSVMarketUppercasedAndCut(t *testing.T) {
	input := strings.Join([]string{
		"brand,product_name,market",
		"Acme,Serum,cn",
		"Acme,Toner,greater-china-and-apac-region",
	}, "\n")

	rows, _, err := ParseCSV(strings.NewReader(input), "imp-5")
	if err != nil {
		t.Fatalf("ParseCSV() error = %v", err)
	}
	if rows[0].Market != "CN" {
		t.Errorf("market = %q, want CN", rows[0].Market)
	}
	if rows[1].Market != "GREATER-CHINA-AN" {
		t.Errorf("market = %q, want 16-rune cut", rows[1].Market)
	}
}

func TestParseCSVToleratesShortRecords(t *testing.T) {
	input := strings.Join([]string{
		"brand,product_name,market,product_url",
		"Acme,Serum",
	}, "\n")

	rows, _, err := ParseCSV(strings.NewReader(input), "imp-6")
	if err != nil {
		t.Fatalf("ParseCSV() error = %v", err)
	}
	if len(rows) != 1 || rows[0].Market != "GLOBAL" || rows[0].SourceRef != "" {
		t.Fatalf("short record row = %+v", rows[0])
	}
}

func TestParseCSVMissingRequiredColumns(t *testing.T) {
	input := "sku,price\nA1,10\n"
	_, _, err := ParseCSV(strings.NewReader(input), "imp-7")
	if !errors.Is(err, ErrMissingColumns) {
		t.Fatalf("err = %v, want ErrMissingColumns", err)
	}
}

func TestCleanCell(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  Water ", "Water"},
		{"nan", ""},
		{"NaN", ""},
		{"None", ""},
		{"NULL", ""},
		{"n/a", ""},
		{"NA", ""},
		{"", ""},
		{"Navy Blue", "Navy Blue"},
	}
	for _, tt := range tests {
		if got := CleanCell(tt.in); got != tt.want {
			t.Errorf("CleanCell(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeHTTPURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"absolute https", "https://example.com/p", "https://example.com/p"},
		{"absolute http", "http://example.com/p", "http://example.com/p"},
		{"scheme relative", "//cdn.example.com/p", "https://cdn.example.com/p"},
		{"bare domain with path", "theordinary.com/p/some-product", "https://theordinary.com/p/some-product"},
		{"bare domain", "example.com", "https://example.com"},
		{"free text", "see store shelf", ""},
		{"empty", "   ", ""},
		{"other scheme", "ftp://example.com/p", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeHTTPURL(tt.in); got != tt.want {
				t.Errorf("NormalizeHTTPURL(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestInferMarketFromURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"locale path us", "https://theordinary.com/en-us/niacinamide.html", "US"},
		{"locale path gb maps to uk", "https://example.com/en-gb/product", "UK"},
		{"locale underscore", "https://example.com/en_jp/product", "JP"},
		{"cn host", "https://shop.example.cn/product", "CN"},
		{"zh-cn path", "https://example.com/zh-cn/product", "CN"},
		{"de tld", "https://douglas.de/product", "DE"},
		{"plain com", "https://www.cerave.com/cleanser", "GLOBAL"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := InferMarketFromURL(tt.in); got != tt.want {
				t.Errorf("InferMarketFromURL(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
