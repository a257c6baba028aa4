package question

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"strings"
)

//go:embed data/*.json
var bankFS embed.FS

// loadBank parses every embedded category file into a category -> questions
// map. The file name (without extension) is the category key.
func loadBank() (map[string][]Question, error) {
	entries, err := fs.ReadDir(bankFS, "data")
	if err != nil {
		return nil, fmt.Errorf("read question data: %w", err)
	}

	bank := make(map[string][]Question, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		raw, err := bankFS.ReadFile(path.Join("data", name))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}

		var qs []Question
		if err := json.Unmarshal(raw, &qs); err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}

		category := strings.TrimSuffix(name, ".json")
		for i := range qs {
			if qs[i].Category == "" {
				qs[i].Category = category
			}
		}
		bank[category] = qs
	}
	return bank, nil
}
