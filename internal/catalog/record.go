// Package catalog imports product catalogues from gzipped JSON-lines files
// stored locally or in S3.
package catalog

import (
	"bufio"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"storefront/internal/model"

	"github.com/shopspring/decimal"
)

// Loader reads a catalogue file and returns its products.
type Loader interface {
	Load(ctx context.Context, path string) ([]model.Product, error)
}

// Record is one line of a catalogue file. Prices are decimal strings in
// major currency units, e.g. "1299.00".
type Record struct {
	Slug          string          `json:"slug"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	Category      string          `json:"category"`
	Price         string          `json:"price"`
	DiscountPrice string          `json:"discountPrice,omitempty"`
	Stock         int             `json:"stock"`
	Variants      []VariantRecord `json:"variants,omitempty"`
}

// VariantRecord is a variant line inside a Record.
type VariantRecord struct {
	Size       string `json:"size"`
	Color      string `json:"color"`
	Stock      int    `json:"stock"`
	PriceDelta string `json:"priceDelta,omitempty"`
}

var hundred = decimal.NewFromInt(100)

// ToMinorUnits converts a decimal amount to minor units. Amounts with more
// than two decimal places are rejected rather than rounded.
func ToMinorUnits(amount string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	minor := d.Mul(hundred)
	if !minor.Equal(minor.Truncate(0)) {
		return 0, fmt.Errorf("invalid amount %q: more than two decimal places", amount)
	}
	return minor.IntPart(), nil
}

// Product validates the record and converts it into a model.Product.
func (r Record) Product() (*model.Product, error) {
	if r.Slug == "" || r.Name == "" {
		return nil, fmt.Errorf("slug and name are required")
	}
	if r.Stock < 0 {
		return nil, fmt.Errorf("product %s: negative stock", r.Slug)
	}

	price, err := ToMinorUnits(r.Price)
	if err != nil {
		return nil, fmt.Errorf("product %s: %w", r.Slug, err)
	}
	if price <= 0 {
		return nil, fmt.Errorf("product %s: price must be positive", r.Slug)
	}

	p := &model.Product{
		Slug:        r.Slug,
		Name:        r.Name,
		Description: r.Description,
		Category:    r.Category,
		Price:       price,
		Stock:       r.Stock,
	}

	if r.DiscountPrice != "" {
		discount, err := ToMinorUnits(r.DiscountPrice)
		if err != nil {
			return nil, fmt.Errorf("product %s: %w", r.Slug, err)
		}
		if discount <= 0 || discount > price {
			return nil, fmt.Errorf("product %s: discount price must be between 0 and the list price", r.Slug)
		}
		p.DiscountPrice = &discount
	}

	seen := make(map[model.VariantSelector]bool, len(r.Variants))
	for _, v := range r.Variants {
		sel := model.VariantSelector{Size: v.Size, Color: v.Color}
		if sel.IsZero() || seen[sel] {
			return nil, fmt.Errorf("product %s: invalid or duplicate variant %s/%s", r.Slug, v.Size, v.Color)
		}
		seen[sel] = true
		if v.Stock < 0 {
			return nil, fmt.Errorf("product %s: negative variant stock", r.Slug)
		}

		variant := model.Variant{Size: v.Size, Color: v.Color, Stock: v.Stock}
		if v.PriceDelta != "" {
			if variant.PriceDelta, err = ToMinorUnits(v.PriceDelta); err != nil {
				return nil, fmt.Errorf("product %s: %w", r.Slug, err)
			}
		}
		p.Variants = append(p.Variants, variant)
	}

	return p, nil
}

// decode reads gzipped JSON lines from r. Blank lines are skipped; the first
// malformed line fails the whole file.
func decode(ctx context.Context, r io.Reader, source string) ([]model.Product, error) {
	gzipReader, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader for %s: %w", source, err)
	}
	defer gzipReader.Close()

	scanner := bufio.NewScanner(gzipReader)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var products []model.Product
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if lineNo%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var rec Record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return nil, fmt.Errorf("%s line %d: %w", source, lineNo, err)
		}
		p, err := rec.Product()
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", source, lineNo, err)
		}
		products = append(products, *p)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading catalogue %s: %w", source, err)
	}

	return products, nil
}
