package merge

// Map is one section-keyed configuration tree, or a partial of one.
type Map = map[string]any

// Deep combines base with overlay and returns a new tree.
//
// For keys present on both sides, two lists are concatenated base first, two
// mappings are merged recursively and anything else takes the overlay value.
// Neither input is modified and the result shares no mutable state with them.
func Deep(base, overlay Map) Map {
	out := make(Map, len(base)+len(overlay))

	for k, v := range base {
		out[k] = Clone(v)
	}

	for k, ov := range overlay {
		bv, ok := out[k]
		if !ok {
			out[k] = Clone(ov)
			continue
		}
		out[k] = value(bv, ov)
	}

	return out
}

// All folds layers left to right with Deep. Nil layers are skipped.
func All(layers ...Map) Map {
	out := Map{}
	for _, layer := range layers {
		if layer == nil {
			continue
		}
		out = Deep(out, layer)
	}
	return out
}

// value merges an already cloned base value with an overlay value.
func value(base, overlay any) any {
	if bl, ok := asList(base); ok {
		if ol, ok := asList(overlay); ok {
			joined := make([]any, 0, len(bl)+len(ol))
			joined = append(joined, bl...)
			for _, item := range ol {
				joined = append(joined, Clone(item))
			}
			return joined
		}
	}

	if bm, ok := asMap(base); ok {
		if om, ok := asMap(overlay); ok {
			return Deep(bm, om)
		}
	}

	return Clone(overlay)
}

// Clone returns a deep copy of a configuration value. Scalars are returned
// as is; lists and mappings are copied recursively and normalised to []any
// and Map.
func Clone(v any) any {
	if l, ok := asList(v); ok {
		out := make([]any, len(l))
		for i, item := range l {
			out[i] = Clone(item)
		}
		return out
	}

	if m, ok := asMap(v); ok {
		out := make(Map, len(m))
		for k, item := range m {
			out[k] = Clone(item)
		}
		return out
	}

	return v
}

func asList(v any) ([]any, bool) {
	switch l := v.(type) {
	case []any:
		return l, true
	case []string:
		out := make([]any, len(l))
		for i, s := range l {
			out[i] = s
		}
		return out, true
	case []Map:
		out := make([]any, len(l))
		for i, m := range l {
			out[i] = m
		}
		return out, true
	}
	return nil, false
}

func asMap(v any) (Map, bool) {
	switch m := v.(type) {
	case Map:
		return m, true
	case map[string]string:
		out := make(Map, len(m))
		for k, s := range m {
			out[k] = s
		}
		return out, true
	}
	return nil, false
}
