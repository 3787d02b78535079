// Package repository provides the document store the calculators read their
// source collections from and write derived records to.
package repository

import (
	"context"
	"reflect"
	"strings"
	"time"

	"github.com/citruscircuits/calcserver/pkg/metrics"
)

// Filter selects documents whose fields equal the given values. An empty
// filter matches every document.
type Filter map[string]any

// Store is a document store addressed by collection name and field filter.
type Store interface {
	// Find decodes every document matching filter into out, which must be a
	// pointer to a slice. Documents are returned in insertion order.
	Find(ctx context.Context, collection string, filter Filter, out any) error

	// InsertDocuments appends docs to the collection without deduplication.
	InsertDocuments(ctx context.Context, collection string, docs []any) error

	// DeleteData removes all documents matching filter.
	DeleteData(ctx context.Context, collection string, filter Filter) error

	// UpdateDocument replaces the first document matching query with doc, or
	// inserts doc when nothing matches. The replacement is atomic.
	UpdateDocument(ctx context.Context, collection string, doc any, query Filter) error
}

// CollectionName translates a dotted dataset path into its collection name:
// "raw.qr" becomes "raw_qr", "processed.calc_obj_tim" becomes "obj_tim" and
// "processed.subj_aim" becomes "subj_aim". Other names pass through unchanged.
func CollectionName(path string) string {
	switch {
	case strings.HasPrefix(path, "raw.") && len(path) > len("raw."):
		return "raw_" + strings.TrimPrefix(path, "raw.")
	case strings.HasPrefix(path, "processed.calc_") && len(path) > len("processed.calc_"):
		return strings.TrimPrefix(path, "processed.calc_")
	case strings.HasPrefix(path, "processed.") && len(path) > len("processed."):
		return strings.TrimPrefix(path, "processed.")
	}
	return path
}

func resolveCollection(path string) (string, error) {
	name := CollectionName(strings.TrimSpace(path))
	if name == "" {
		return "", ErrInvalidCollection
	}
	return name, nil
}

// checkTarget verifies out is a non-nil pointer to a slice.
func checkTarget(out any) (reflect.Value, error) {
	v := reflect.ValueOf(out)
	if v.Kind() != reflect.Ptr || v.IsNil() || v.Elem().Kind() != reflect.Slice {
		return reflect.Value{}, ErrInvalidTarget
	}
	return v.Elem(), nil
}

// observe records latency and failures of one store operation.
func observe(operation string, start time.Time, err error) {
	metrics.RecordStoreLatency(operation, float64(time.Since(start).Microseconds())/1000)
	if err != nil {
		metrics.RecordStoreError(operation)
	}
}
