package auditry

// RedactFunc defines a function used to sanitize or mask values before they are recorded.
type RedactFunc func(field string, v any) any

// RedactMap maps field names to specific redaction functions.
type RedactMap map[string]RedactFunc

// ExtractChanges returns field name -> current value for every modified column of entity,
// skipping primary keys and the housekeeping column (matched case-insensitively).
func ExtractChanges(entity Entity, s *Schema, housekeeping string) map[string]any {
	out := map[string]any{}
	for _, c := range s.Columns {
		if c.IsHousekeeping(housekeeping) || c.PrimaryKey {
			continue
		}
		if !entity.IsColumnModified(c.Name) {
			continue
		}
		out[c.Field] = c.Value(entity)
	}
	return out
}

// apply returns a redacted copy of m.
func (r RedactMap) apply(m map[string]any) map[string]any {
	if len(m) == 0 || len(r) == 0 {
		return m
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if fn, ok := r[k]; ok && fn != nil {
			out[k] = fn(k, v)
		} else {
			out[k] = v
		}
	}
	return out
}
