package postgres

import (
	"reflect"
	"sync"
)

// ExtractDBColumns lists the "db" tags of T in field order, descending into
// embedded structs.
//
// Usage:
//
//	columns := ExtractDBColumns[parcel.Parcel]()
//	// ["id", "tracking_number", "zone_code", ...]
func ExtractDBColumns[T any]() []string {
	var zero T
	meta := typeMetadataFor(reflect.TypeOf(zero))
	cols := make([]string, 0, len(meta.fields))
	for _, f := range meta.fields {
		cols = append(cols, f.column)
	}
	return cols
}

// fieldInfo locates a tagged field, possibly inside embedded structs.
type fieldInfo struct {
	index  []int
	column string
}

type typeMetadata struct {
	fields   []fieldInfo
	byColumn map[string][]int
}

var typeCache sync.Map // map[reflect.Type]*typeMetadata

func typeMetadataFor(t reflect.Type) *typeMetadata {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if cached, ok := typeCache.Load(t); ok {
		return cached.(*typeMetadata)
	}

	meta := &typeMetadata{byColumn: make(map[string][]int)}
	if t.Kind() == reflect.Struct {
		collectFields(t, nil, meta)
	}

	typeCache.Store(t, meta)
	return meta
}

func collectFields(t reflect.Type, prefix []int, meta *typeMetadata) {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		index := append(append([]int(nil), prefix...), i)

		if field.Anonymous && field.Type.Kind() == reflect.Struct {
			collectFields(field.Type, index, meta)
			continue
		}

		tag := field.Tag.Get("db")
		if tag == "" || tag == "-" {
			continue
		}
		meta.fields = append(meta.fields, fieldInfo{index: index, column: tag})
		meta.byColumn[tag] = index
	}
}

// RowValues returns the values of v for columns, in order. Unknown columns yield nil.
// It feeds COPY rows built from the same column list used for SELECTs.
func RowValues(v any, columns []string) []any {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}

	meta := typeMetadataFor(rv.Type())
	out := make([]any, len(columns))
	for i, col := range columns {
		if index, ok := meta.byColumn[col]; ok {
			out[i] = rv.FieldByIndex(index).Interface()
		}
	}
	return out
}
