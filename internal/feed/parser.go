// Package feed fetches and parses the supplier's product feed.
package feed

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/jonnyallum/blmotorcyclesltd/internal/domain/models"
	"github.com/jonnyallum/blmotorcyclesltd/internal/errs"
	"github.com/jonnyallum/blmotorcyclesltd/internal/pricing"
)

// Column aliases, checked in order against the header row. Supplier
// uploads are inconsistent about naming; the first exact match wins.
var (
	skuAliases         = []string{"SKU", "sku", "Product Code"}
	nameAliases        = []string{"Name", "name", "Product Name"}
	descriptionAliases = []string{"Description", "description"}
	categoryAliases    = []string{"Category", "category"}
	priceAliases       = []string{"Price", "price", "Cost"}
	stockAliases       = []string{"Stock", "stock", "Quantity"}
	imageAliases       = []string{"Image", "image", "Image URL"}
)

// Parser converts raw feed text into product records.
type Parser struct {
	pricing pricing.Rule
}

// NewParser returns a parser applying the given pricing rule.
func NewParser(rule pricing.Rule) *Parser {
	return &Parser{pricing: rule}
}

// columns holds the resolved header index per field, -1 when absent.
type columns struct {
	sku, name, description, category, price, stock, image int
}

func resolveColumn(header []string, aliases []string) int {
	for _, alias := range aliases {
		for i, h := range header {
			if h == alias {
				return i
			}
		}
	}
	return -1
}

func field(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// Parse converts the feed text into a materialized slice of product
// records. Rows missing a SKU or name are dropped silently; numeric
// oddities default to zero. A malformed header or broken CSV structure
// is a ParseError.
func (p *Parser) Parse(text string) ([]models.ProductRecord, error) {
	reader := csv.NewReader(strings.NewReader(text))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, errs.NewParseError("reading feed header", err)
	}

	cols := columns{
		sku:         resolveColumn(header, skuAliases),
		name:        resolveColumn(header, nameAliases),
		description: resolveColumn(header, descriptionAliases),
		category:    resolveColumn(header, categoryAliases),
		price:       resolveColumn(header, priceAliases),
		stock:       resolveColumn(header, stockAliases),
		image:       resolveColumn(header, imageAliases),
	}

	var records []models.ProductRecord
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errs.NewParseError("reading feed row", err)
		}

		sku := field(row, cols.sku)
		name := field(row, cols.name)
		if sku == "" || name == "" {
			continue
		}

		costPrice := parsePrice(field(row, cols.price))
		stockQuantity := parseQuantity(field(row, cols.stock))

		records = append(records, models.ProductRecord{
			SKU:           sku,
			Name:          name,
			Description:   field(row, cols.description),
			Category:      Categorize(field(row, cols.category)),
			CostPrice:     costPrice,
			SellingPrice:  p.pricing.SellingPrice(costPrice, p.pricing.DeliveryCost),
			DeliveryCost:  p.pricing.DeliveryCost,
			StockQuantity: stockQuantity,
			InStock:       stockQuantity > 0,
			ImageURL:      field(row, cols.image),
			Supplier:      models.SupplierBikeIt,
		})
	}

	return records, nil
}

// parsePrice leniently coerces a price cell: currency symbols and
// thousands separators are stripped, anything unparseable becomes 0.
func parsePrice(s string) float64 {
	s = strings.NewReplacer("£", "", "$", "", ",", "").Replace(s)
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

// parseQuantity coerces a stock cell, accepting decimal notation the
// way some uploads format whole numbers ("25.0").
func parseQuantity(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0
	}
	return int(v)
}
