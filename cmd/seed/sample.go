package main

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"storefront/internal/catalog"
)

// sampleCatalog is a small catalogue for local development. saree-a has a
// single unit so concurrent checkouts can be tried by hand.
var sampleCatalog = []catalog.Record{
	{
		Slug: "saree-a", Name: "Saree A", Category: "sarees",
		Description: "Handwoven silk saree, one of a kind.",
		Price:       "2499.00", Stock: 1,
	},
	{
		Slug: "banarasi-silk-saree", Name: "Banarasi Silk Saree", Category: "sarees",
		Description: "Zari border with a contrast pallu.",
		Price:       "5999.00", DiscountPrice: "4999.00", Stock: 6,
		Variants: []catalog.VariantRecord{
			{Color: "maroon", Stock: 3},
			{Color: "emerald", Stock: 3, PriceDelta: "250.00"},
		},
	},
	{
		Slug: "cotton-kurta", Name: "Cotton Kurta", Category: "kurtas",
		Description: "Everyday block-printed kurta.",
		Price:       "899.00", Stock: 12,
		Variants: []catalog.VariantRecord{
			{Size: "S", Color: "indigo", Stock: 3},
			{Size: "M", Color: "indigo", Stock: 5},
			{Size: "L", Color: "indigo", Stock: 4},
		},
	},
	{
		Slug: "jute-tote", Name: "Jute Tote Bag", Category: "accessories",
		Description: "Sturdy tote with cotton handles.",
		Price:       "349.50", Stock: 40,
	},
}

func writeSampleCatalog(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	gzipWriter := gzip.NewWriter(file)
	enc := json.NewEncoder(gzipWriter)
	for _, rec := range sampleCatalog {
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("failed to write record %s: %w", rec.Slug, err)
		}
	}

	if err := gzipWriter.Close(); err != nil {
		return fmt.Errorf("failed to flush catalogue: %w", err)
	}
	return file.Close()
}
