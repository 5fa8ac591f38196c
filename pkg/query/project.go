package query

// Project applies field limiting to one serialized record. With an include
// list only those fields (plus the id) survive; otherwise fields hidden by
// default and explicitly excluded ones are dropped.
func Project(doc map[string]any, p Params, schema Schema) map[string]any {
	if doc == nil {
		return nil
	}
	if len(p.Include) > 0 {
		out := make(map[string]any, len(p.Include)+1)
		if schema.idField != "" {
			if v, ok := doc[schema.idField]; ok {
				out[schema.idField] = v
			}
		}
		for _, name := range p.Include {
			if v, ok := doc[name]; ok {
				out[name] = v
			}
		}
		return out
	}

	out := make(map[string]any, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	for name := range schema.hidden {
		delete(out, name)
	}
	for _, name := range p.Exclude {
		delete(out, name)
	}
	return out
}
