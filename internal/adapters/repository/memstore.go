package repository

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

// MemoryStore keeps collections in process as encoded BSON documents, so it
// decodes exactly like the Mongo-backed store.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string][]bson.Raw
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string][]bson.Raw)}
}

// Find implements Store.
func (s *MemoryStore) Find(ctx context.Context, collection string, filter Filter, out any) (err error) {
	start := time.Now()
	defer func() { observe("find", start, err) }()

	name, err := resolveCollection(collection)
	if err != nil {
		return err
	}
	target, err := checkTarget(out)
	if err != nil {
		return err
	}
	if err = ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	var matched []bson.Raw
	for _, doc := range s.collections[name] {
		ok, mErr := matches(doc, filter)
		if mErr != nil {
			s.mu.RUnlock()
			return mErr
		}
		if ok {
			matched = append(matched, doc)
		}
	}
	s.mu.RUnlock()

	elemType := target.Type().Elem()
	result := reflect.MakeSlice(target.Type(), 0, len(matched))
	for _, doc := range matched {
		elem := reflect.New(elemType)
		if err = bson.Unmarshal(doc, elem.Interface()); err != nil {
			return fmt.Errorf("decode %s document: %w", name, err)
		}
		result = reflect.Append(result, elem.Elem())
	}
	target.Set(result)
	return nil
}

// InsertDocuments implements Store.
func (s *MemoryStore) InsertDocuments(ctx context.Context, collection string, docs []any) (err error) {
	start := time.Now()
	defer func() { observe("insert", start, err) }()

	name, err := resolveCollection(collection)
	if err != nil {
		return err
	}
	encoded := make([]bson.Raw, 0, len(docs))
	for _, doc := range docs {
		raw, eErr := encode(doc)
		if eErr != nil {
			return eErr
		}
		encoded = append(encoded, raw)
	}
	if err = ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.collections[name] = append(s.collections[name], encoded...)
	s.mu.Unlock()
	return nil
}

// DeleteData implements Store.
func (s *MemoryStore) DeleteData(ctx context.Context, collection string, filter Filter) (err error) {
	start := time.Now()
	defer func() { observe("delete", start, err) }()

	name, err := resolveCollection(collection)
	if err != nil {
		return err
	}
	if err = ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	docs := s.collections[name]
	kept := docs[:0]
	for _, doc := range docs {
		ok, mErr := matches(doc, filter)
		if mErr != nil {
			return mErr
		}
		if !ok {
			kept = append(kept, doc)
		}
	}
	clear(docs[len(kept):])
	s.collections[name] = kept
	return nil
}

// UpdateDocument implements Store. When nothing matches, the inserted
// document also carries any query fields it lacks.
func (s *MemoryStore) UpdateDocument(ctx context.Context, collection string, doc any, query Filter) (err error) {
	start := time.Now()
	defer func() { observe("update", start, err) }()

	name, err := resolveCollection(collection)
	if err != nil {
		return err
	}
	raw, err := encode(doc)
	if err != nil {
		return err
	}
	if err = ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	docs := s.collections[name]
	for i, existing := range docs {
		ok, mErr := matches(existing, query)
		if mErr != nil {
			return mErr
		}
		if ok {
			docs[i] = raw
			return nil
		}
	}
	if raw, err = withQueryFields(raw, query); err != nil {
		return err
	}
	s.collections[name] = append(docs, raw)
	return nil
}

// Count returns the number of documents in a collection.
func (s *MemoryStore) Count(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.collections[CollectionName(collection)])
}

func encode(doc any) (bson.Raw, error) {
	data, err := bson.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	return bson.Raw(data), nil
}

// matches reports whether every filter field is present in doc with an equal
// value. Numbers compare by value across int32, int64 and double encodings.
func matches(doc bson.Raw, filter Filter) (bool, error) {
	for key, want := range filter {
		got, err := doc.LookupErr(key)
		if err != nil {
			return false, nil
		}
		t, data, err := bson.MarshalValue(want)
		if err != nil {
			return false, fmt.Errorf("%w: filter field %q: %w", ErrInvalidDocument, key, err)
		}
		expected := bson.RawValue{Type: t, Value: data}
		if gn, ok := numeric(got); ok {
			if en, ok := numeric(expected); ok {
				if gn != en {
					return false, nil
				}
				continue
			}
		}
		if !got.Equal(expected) {
			return false, nil
		}
	}
	return true, nil
}

func numeric(v bson.RawValue) (float64, bool) {
	switch v.Type {
	case bson.TypeInt32:
		return float64(v.Int32()), true
	case bson.TypeInt64:
		return float64(v.Int64()), true
	case bson.TypeDouble:
		return v.Double(), true
	}
	return 0, false
}

func withQueryFields(raw bson.Raw, query Filter) (bson.Raw, error) {
	var missing bson.D
	keys := make([]string, 0, len(query))
	for key := range query {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	for _, key := range keys {
		if _, err := raw.LookupErr(key); err != nil {
			missing = append(missing, bson.E{Key: key, Value: query[key]})
		}
	}
	if len(missing) == 0 {
		return raw, nil
	}
	var merged bson.D
	if err := bson.Unmarshal(raw, &merged); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	return encode(append(merged, missing...))
}
