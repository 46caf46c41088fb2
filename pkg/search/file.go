package search

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadFilterSet reads a filter set from a YAML file:
//
//	name: Sample search
//	filters:
//	  - name: Title
//	    value: untitled
//	    enabled: true
//	  - name: Mode
//	    value: Solo
//	    enabled: false
//
// Known filters missing from the file are added disabled.
func LoadFilterSet(path string) (FilterSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return FilterSet{}, fmt.Errorf("read search file: %w", err)
	}

	var set FilterSet
	if err := yaml.Unmarshal(data, &set); err != nil {
		return FilterSet{}, fmt.Errorf("parse search file %s: %w", path, err)
	}

	return Complete(set), nil
}

// Complete returns set with every known filter present, in the canonical
// order. Filters set lacks are added disabled.
func Complete(set FilterSet) FilterSet {
	full := NewFilterSet(set.Name)
	for _, f := range set.Filters {
		full.Set(f.Name, f.Value, f.Enabled)
	}
	return full
}

// SaveFilterSet writes set to path as YAML.
func SaveFilterSet(path string, set FilterSet) error {
	data, err := yaml.Marshal(set)
	if err != nil {
		return fmt.Errorf("encode search file: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write search file: %w", err)
	}
	return nil
}
