package resource

import (
	"encoding/json"

	pkgerrors "github.com/angelmondragon/tourbook-backend/pkg/errors"
	"github.com/angelmondragon/tourbook-backend/pkg/query"
)

// Document serializes v and applies the field projection of params.
func Document(v any, params query.Params, schema query.Schema) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode document")
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode document")
	}
	return query.Project(doc, params, schema), nil
}

// Documents projects every record after passing it through present.
func Documents[T any](records []T, params query.Params, schema query.Schema, present func(*T) any) ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(records))
	for i := range records {
		var v any = &records[i]
		if present != nil {
			v = present(&records[i])
		}
		doc, err := Document(v, params, schema)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}
