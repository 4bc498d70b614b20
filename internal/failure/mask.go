package failure

import (
	"encoding/json"
	"os"
	"strings"
)

// Redaction marker written in place of every sensitive value.
const Masked = "***MASKED***"

var defaultSensitiveFields = []string{"password", "token", "secret"}

// Masker redacts configured sensitive fields from JSON request bodies
// before they are persisted. Field name matching is case-insensitive and
// applies at every depth of the document.
type Masker struct {
	fields map[string]bool
}

// NewMasker builds a masker over the default field list plus any extras.
func NewMasker(extra ...string) *Masker {
	m := &Masker{fields: make(map[string]bool)}
	for _, f := range defaultSensitiveFields {
		m.fields[strings.ToLower(f)] = true
	}
	for _, f := range extra {
		f = strings.ToLower(strings.TrimSpace(f))
		if f != "" {
			m.fields[f] = true
		}
	}
	return m
}

// MaskerFromEnv extends the defaults with SENSITIVE_FIELDS, a comma
// separated list operators can set without code changes.
func MaskerFromEnv() *Masker {
	extra := strings.Split(os.Getenv("SENSITIVE_FIELDS"), ",")
	return NewMasker(extra...)
}

// Mask returns the body with sensitive values redacted. Anything that is
// not valid JSON degrades to nil rather than failing the caller.
func (m *Masker) Mask(body []byte) []byte {
	if len(body) == 0 {
		return nil
	}
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil
	}
	doc = m.walk(doc)
	out, err := json.Marshal(doc)
	if err != nil {
		return nil
	}
	return out
}

func (m *Masker) walk(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			if m.fields[strings.ToLower(k)] {
				t[k] = Masked
			} else {
				t[k] = m.walk(val)
			}
		}
		return t
	case []any:
		for i, val := range t {
			t[i] = m.walk(val)
		}
		return t
	default:
		return v
	}
}
