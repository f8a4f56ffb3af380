package transform

import (
	"encoding/json"
	"fmt"
	"os"
)

// WriteJSONFile stores the fitted transform so a later session can start
// from it instead of the nominal default.
func (t *FVC2FP) WriteJSONFile(path string) error {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("write transform: %w", err)
	}
	return nil
}

// ReadJSONFile loads a stored transform.
func ReadJSONFile(path string) (*FVC2FP, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read transform: %w", err)
	}
	t := &FVC2FP{}
	if err := json.Unmarshal(data, t); err != nil {
		return nil, fmt.Errorf("parse transform %s: %w", path, err)
	}
	if t.Scale == 0 {
		return nil, fmt.Errorf("parse transform %s: zero scale", path)
	}
	return t, nil
}
