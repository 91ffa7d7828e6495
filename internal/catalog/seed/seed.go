// Package seed loads the initial catalog from a TOML file.
package seed

import (
	"fmt"
	"strings"

	"cowork/pkg/model"

	"github.com/BurntSushi/toml"
)

// File mirrors the seed document:
//
//	[[resources]]
//	id = "room-3"
//	kind = "room"
//	name = "Room 3"
//	capacity = 6
//	amenities = ["whiteboard"]
//	[resources.rates]
//	per_hour_cents = 5000
type File struct {
	Resources []*model.Resource `toml:"resources"`
}

// Load decodes path and rejects keys that do not map to a resource field.
func Load(path string) (*File, error) {
	var f File
	md, err := toml.DecodeFile(path, &f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode seed file %s: %w", path, err)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return nil, fmt.Errorf("seed file %s has unknown keys: %s", path, strings.Join(keys, ", "))
	}

	for i, r := range f.Resources {
		if r == nil || strings.TrimSpace(r.Name) == "" {
			return nil, fmt.Errorf("seed file %s: resource #%d has no name", path, i+1)
		}
	}
	return &f, nil
}
