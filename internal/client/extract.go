package client

// The relay's fallback and live paths populate different fields, so the text
// fragment may live under several alternative paths. Extractors run in a
// fixed priority order and the first hit wins.

type extractor func(evt any) (string, bool)

var extractors = []extractor{
	func(evt any) (string, bool) {
		s, ok := evt.(string)
		return s, ok
	},
	func(evt any) (string, bool) { return strField(evt, "delta") },
	func(evt any) (string, bool) { return strField(evt, "output_text") },
	func(evt any) (string, bool) { return strField(objField(evt, "delta"), "text") },
	func(evt any) (string, bool) { return strField(evt, "text") },
	func(evt any) (string, bool) { return strField(firstContent(evt), "text") },
	func(evt any) (string, bool) { return strField(firstContent(objField(evt, "delta")), "text") },
	func(evt any) (string, bool) { return strField(objField(evt, "delta"), "output_text") },
}

// ExtractText returns the text fragment carried by a stream payload, or ""
// when no extractor matches.
func ExtractText(evt any) string {
	for _, ex := range extractors {
		if s, ok := ex(evt); ok && s != "" {
			return s
		}
	}
	return ""
}

func strField(evt any, key string) (string, bool) {
	m, ok := evt.(map[string]any)
	if !ok {
		return "", false
	}
	s, ok := m[key].(string)
	return s, ok
}

func objField(evt any, key string) any {
	m, ok := evt.(map[string]any)
	if !ok {
		return nil
	}
	return m[key]
}

func firstContent(evt any) any {
	m, ok := evt.(map[string]any)
	if !ok {
		return nil
	}
	arr, ok := m["content"].([]any)
	if !ok || len(arr) == 0 {
		return nil
	}
	return arr[0]
}
