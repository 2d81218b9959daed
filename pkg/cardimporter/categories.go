package cardimporter

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/crufter/airtable-go"
	"github.com/ghodss/yaml"
	"k8s.io/klog"
)

// CategoryMapping pairs the card issuer's category label with a ledger
// category id. The field names follow the historical mapping file.
type CategoryMapping struct {
	CardName string `json:"CardName"`
	ID       string `json:"id"`
}

// CategoryMap resolves card category labels to ledger category ids.
type CategoryMap map[string]string

// NewCategoryMap builds a map from mappings. When a label repeats, the first
// mapping wins.
func NewCategoryMap(mappings []CategoryMapping) CategoryMap {
	m := CategoryMap{}
	for _, mapping := range mappings {
		if _, ok := m[mapping.CardName]; ok {
			continue
		}
		m[mapping.CardName] = mapping.ID
	}
	return m
}

// Lookup returns the category id for label, or nil when the label is unknown.
func (m CategoryMap) Lookup(label string) *string {
	id, ok := m[label]
	if !ok {
		return nil
	}
	return &id
}

// LoadCategoryFile reads a JSON or YAML list of mappings. A missing file gives
// an empty map so every expense goes in uncategorized.
func LoadCategoryFile(filename string) (CategoryMap, error) {
	raw, err := os.ReadFile(filename)
	if errors.Is(err, os.ErrNotExist) {
		klog.Warningf("Category file %s not found, expenses will be uncategorized\n", filename)
		return CategoryMap{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read category file %s: %w", filename, err)
	}

	mappings := []CategoryMapping{}
	if err := yaml.Unmarshal(raw, &mappings); err != nil {
		return nil, fmt.Errorf("failed to parse category file %s: %w", filename, err)
	}

	return NewCategoryMap(mappings), nil
}

type airtableRecord struct {
	AirtableID string
	Fields     map[string]interface{}
}

// LoadAirtableCategories reads mappings from an Airtable table with CardName
// and id fields. Records missing either field are skipped.
func LoadAirtableCategories(apiKey, baseID, table string) (CategoryMap, error) {
	client, err := airtable.New(apiKey, baseID)
	if err != nil {
		return nil, fmt.Errorf("failed to create airtable client: %w", err)
	}

	records := []airtableRecord{}
	if err := client.ListRecords(table, &records); err != nil {
		return nil, fmt.Errorf("failed to list airtable records from %s: %w", table, err)
	}

	return categoryMapFromRecords(records), nil
}

func categoryMapFromRecords(records []airtableRecord) CategoryMap {
	mappings := make([]CategoryMapping, 0, len(records))
	for _, record := range records {
		name, _ := record.Fields["CardName"].(string)
		id, _ := record.Fields["id"].(string)
		name = strings.TrimSpace(name)
		if name == "" || id == "" {
			klog.Warningf("Skipping airtable category record %s without CardName or id\n", record.AirtableID)
			continue
		}
		mappings = append(mappings, CategoryMapping{CardName: name, ID: id})
	}

	klog.Infof("Loaded %d category mappings from airtable\n", len(mappings))
	return NewCategoryMap(mappings)
}
