package refs

import (
	"encoding/json"
	"fmt"
	"os"
)

// LabelMap translates a normalized reference into the canonical label used
// in the persistent index metadata. It is loaded once at startup and
// read-only afterwards, so it is safe to share across sessions.
type LabelMap map[string]string

// LoadLabelMap reads a JSON object of string-to-string mappings. A missing
// or malformed file is an error; callers treat it as fatal at startup.
func LoadLabelMap(path string) (LabelMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading label map: %w", err)
	}
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing label map %s: %w", path, err)
	}
	return LabelMap(m), nil
}

// Map looks up the canonical label for ref. Unknown references map to
// themselves; a reference is never dropped.
func (m LabelMap) Map(ref string) string {
	if mapped, ok := m[ref]; ok {
		return mapped
	}
	return ref
}
