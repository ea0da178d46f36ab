// Package importer turns arbitrary retail CSV exports into candidate rows
// and writes harvest results back out as CSV.
package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/pengxu9-rgb/Pivota-catalog-intelligence/internal/store"
)

// ErrMissingColumns is returned when no brand or product column can be
// resolved from the header row.
var ErrMissingColumns = errors.New("csv must contain columns for brand and product name")

// Header aliases per field, matched case-insensitively after column-name
// normalization. First match wins.
var (
	brandAliases   = []string{"brand", "brand_name", "brand_en", "brand_zh", "vendor", "品牌"}
	productAliases = []string{"product_name", "product", "product_name_en", "product_name_zh", "product_title", "title", "name", "产品名称", "产品"}
	marketAliases  = []string{"market", "country", "region", "market_code", "locale", "市场"}
	urlAliases     = []string{"product_url", "product_link", "url", "link", "deep_link", "source_ref", "source_url", "链接"}
	rawTextAliases = []string{"raw_ingredient_text", "ingredients", "ingredient_text", "ingredient_list", "inci", "inci_list", "全成分", "成分"}
)

var (
	colNameSanitizer = regexp.MustCompile(`[^a-z0-9\p{Han}]+`)
	localePathRe     = regexp.MustCompile(`/([a-z]{2})[-_]([a-z]{2})(?:/|$)`)
)

var placeholderCells = map[string]bool{
	"nan": true, "none": true, "null": true, "n/a": true, "na": true,
}

var tldMarkets = []struct {
	suffix string
	market string
}{
	{".us", "US"},
	{".ca", "CA"},
	{".uk", "UK"},
	{".jp", "JP"},
	{".kr", "KR"},
	{".fr", "FR"},
	{".de", "DE"},
	{".it", "IT"},
	{".es", "ES"},
	{".au", "AU"},
}

// Summary reports what an import produced.
type Summary struct {
	Rows            int `json:"rows"`
	SkippedExisting int `json:"skipped_existing"`
}

// ParseCSV reads a spreadsheet and builds candidate rows for importID.
// Rows without both a brand and a product name are dropped; row indexes
// still count them so exported indexes line up with the source file. Rows
// arriving with ingredient text import as SKIPPED with confidence 1.0.
func ParseCSV(r io.Reader, importID string) ([]store.Row, Summary, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, Summary{}, fmt.Errorf("failed to read csv header: %w", err)
	}

	brandCol := firstMatchingCol(header, brandAliases)
	productCol := firstMatchingCol(header, productAliases)
	marketCol := firstMatchingCol(header, marketAliases)
	urlCol := firstMatchingCol(header, urlAliases)
	rawTextCol := firstMatchingCol(header, rawTextAliases)

	if brandCol < 0 || productCol < 0 {
		return nil, Summary{}, ErrMissingColumns
	}

	var (
		rows     []store.Row
		summary  Summary
		rowIndex = -1
	)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, Summary{}, fmt.Errorf("failed to read csv record: %w", err)
		}
		rowIndex++

		cell := func(col int) string {
			if col < 0 || col >= len(record) {
				return ""
			}
			return CleanCell(record[col])
		}

		brand := cell(brandCol)
		productName := cell(productCol)
		if brand == "" || productName == "" {
			continue
		}

		existing := cell(rawTextCol)
		sourceRef := NormalizeHTTPURL(cell(urlCol))
		market := cell(marketCol)

		// Messy spreadsheets sometimes carry the product link in the
		// market column.
		if market != "" && looksLikeURL(market) && sourceRef == "" {
			sourceRef = NormalizeHTTPURL(market)
			market = ""
		}
		if market == "" {
			if sourceRef != "" {
				market = InferMarketFromURL(sourceRef)
			} else {
				market = "GLOBAL"
			}
		}
		market = upperCut(market, 16)
		if market == "" {
			market = "GLOBAL"
		}

		row := store.Row{
			RowID:             uuid.NewString(),
			ImportID:          importID,
			RowIndex:          rowIndex,
			Brand:             brand,
			ProductName:       productName,
			Market:            market,
			RawIngredientText: existing,
			SourceRef:         sourceRef,
			Status:            store.RowStatusEmpty,
		}
		if existing != "" {
			row.Status = store.RowStatusSkipped
			row.Confidence = 1.0
			summary.SkippedExisting++
		}
		rows = append(rows, row)
		summary.Rows++
	}

	return rows, summary, nil
}

// CleanCell trims a cell and blanks out spreadsheet placeholder values.
func CleanCell(value string) string {
	text := strings.TrimSpace(value)
	if text == "" {
		return ""
	}
	if placeholderCells[strings.ToLower(text)] {
		return ""
	}
	return text
}

// NormalizeHTTPURL coerces a cell into an absolute http(s) URL, or returns
// empty when the value cannot be one.
func NormalizeHTTPURL(raw string) string {
	text := strings.TrimSpace(raw)
	if text == "" {
		return ""
	}
	if strings.HasPrefix(text, "//") {
		return "https:" + text
	}
	u, err := url.Parse(text)
	if err != nil {
		return ""
	}
	if (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" {
		return text
	}
	if u.Scheme == "" && u.Host != "" {
		return "https://" + text
	}
	if u.Scheme == "" && u.Path != "" && strings.Contains(u.Path, ".") && !strings.Contains(u.Path, " ") {
		return "https://" + u.Path
	}
	return ""
}

// InferMarketFromURL guesses a market code from a product URL: an explicit
// locale path segment wins, then a .cn host, then a small ccTLD map, else
// GLOBAL. Empty input stays empty.
func InferMarketFromURL(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "GLOBAL"
	}
	host := strings.ToLower(u.Host)
	path := strings.ToLower(u.Path)

	if m := localePathRe.FindStringSubmatch(path); m != nil {
		region := strings.ToUpper(m[2])
		if region == "GB" {
			return "UK"
		}
		return region
	}

	if strings.HasSuffix(host, ".cn") || strings.Contains(path, "/zh-cn/") {
		return "CN"
	}

	for _, entry := range tldMarkets {
		if strings.HasSuffix(host, entry.suffix) {
			return entry.market
		}
	}
	return "GLOBAL"
}

func firstMatchingCol(header []string, aliases []string) int {
	normalizedToIndex := make(map[string]int, len(header))
	for i, name := range header {
		key := normalizeColName(name)
		if key == "" {
			continue
		}
		if _, ok := normalizedToIndex[key]; !ok {
			normalizedToIndex[key] = i
		}
	}
	for _, alias := range aliases {
		if idx, ok := normalizedToIndex[normalizeColName(alias)]; ok {
			return idx
		}
	}
	return -1
}

func normalizeColName(name string) string {
	key := strings.ToLower(strings.TrimSpace(name))
	key = colNameSanitizer.ReplaceAllString(key, "_")
	return strings.Trim(key, "_")
}

func looksLikeURL(cell string) bool {
	lower := strings.ToLower(cell)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") || strings.HasPrefix(lower, "www.") {
		return true
	}
	return strings.Contains(lower, ".") && strings.Contains(lower, "/")
}

func upperCut(s string, limit int) string {
	s = strings.ToUpper(s)
	runes := []rune(s)
	if len(runes) > limit {
		return string(runes[:limit])
	}
	return s
}
