// Package importer loads catalog export files into the products table.
package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"creator-checkout/internal/domain"
)

type productWriter interface {
	Upsert(ctx context.Context, product domain.Product) error
}

// JSONImporter reads a JSON array of products (the creator platform's
// catalog export format) and upserts each one.
type JSONImporter struct {
	reader      io.Reader
	productRepo productWriter
}

// NewJSONImporter builds an importer over the given export stream.
func NewJSONImporter(r io.Reader, repo productWriter) *JSONImporter {
	return &JSONImporter{reader: r, productRepo: repo}
}

// Run parses the export and upserts products; returns how many were written.
func (i *JSONImporter) Run(ctx context.Context) (int, error) {
	var products []domain.Product
	dec := json.NewDecoder(i.reader)
	if err := dec.Decode(&products); err != nil {
		return 0, fmt.Errorf("decode export: %w", err)
	}

	imported := 0
	for _, p := range products {
		if p.Permalink == "" {
			continue
		}
		if err := i.productRepo.Upsert(ctx, p); err != nil {
			return imported, fmt.Errorf("upsert %s: %w", p.Permalink, err)
		}
		imported++
	}
	return imported, nil
}
