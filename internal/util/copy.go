package util

// CloneStringMap returns a copy of a flat string map. Nil stays nil so
// callers can distinguish unset from empty.
func CloneStringMap(src map[string]string) map[string]string {
	if src == nil {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

// CloneAnyMap returns a deep copy of a JSON-shaped payload map: nested
// map[string]interface{} and []interface{} values are copied recursively,
// everything else is assumed immutable and carried over by value. Store
// implementations use this so reads never alias persisted state.
func CloneAnyMap(src map[string]interface{}) map[string]interface{} {
	if src == nil {
		return nil
	}
	out := make(map[string]interface{}, len(src))
	for k, v := range src {
		out[k] = cloneAnyValue(v)
	}
	return out
}

func cloneAnyValue(v interface{}) interface{} {
	switch typed := v.(type) {
	case map[string]interface{}:
		return CloneAnyMap(typed)
	case []interface{}:
		out := make([]interface{}, len(typed))
		for i, elem := range typed {
			out[i] = cloneAnyValue(elem)
		}
		return out
	case []byte:
		out := make([]byte, len(typed))
		copy(out, typed)
		return out
	default:
		return v
	}
}

// CloneBytes returns a copy of a byte slice. Nil stays nil.
func CloneBytes(src []byte) []byte {
	if src == nil {
		return nil
	}
	out := make([]byte, len(src))
	copy(out, src)
	return out
}
