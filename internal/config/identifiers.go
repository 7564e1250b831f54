package config

import "strings"

// normalizeInputPath gives a comparison key for an input_path so two
// configs pointing at the same directory collide regardless of case
// or a trailing separator, mirroring the case-insensitive comparison
// the teacher's field normalizer applies before comparing names.
func normalizeInputPath(path string) string {
	return strings.ToLower(strings.TrimRight(path, "/\\"))
}

// findInputPathCollision returns the ID of the enabled config already
// claiming path, if any.
func findInputPathCollision(configs []*HotfolderConfig, path string, excludeID string) string {
	key := normalizeInputPath(path)
	for _, c := range configs {
		if c.ID == excludeID || !c.Enabled {
			continue
		}
		if normalizeInputPath(c.InputPath) == key {
			return c.ID
		}
	}
	return ""
}
