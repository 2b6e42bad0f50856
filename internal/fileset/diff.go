package fileset

// ComparisonResult is the derived diff between the current file set and the
// saved baseline. It is recomputed on demand and never persisted.
type ComparisonResult struct {
	ModifiedPaths map[string]struct{} `json:"modifiedPaths"`
	HasChanges    bool                `json:"hasChanges"`
	CurrentMap    map[string]string   `json:"currentMap"`
	SavedMap      map[string]string   `json:"savedMap"`
}

// Compare reports which paths differ between current and the saved baseline.
// A nil saved slice means no baseline exists yet: the result always has
// changes but nothing to highlight. A path counts as modified when its content
// differs or when it exists only in the baseline (deletion). The computation
// is pure and idempotent; it runs on every content change.
func Compare(current, saved []File) ComparisonResult {
	currentMap := toMap(current)

	if saved == nil {
		return ComparisonResult{
			ModifiedPaths: map[string]struct{}{},
			HasChanges:    true,
			CurrentMap:    currentMap,
			SavedMap:      map[string]string{},
		}
	}

	savedMap := toMap(saved)
	modified := make(map[string]struct{})
	for path, content := range currentMap {
		if prev, ok := savedMap[path]; !ok || prev != content {
			modified[path] = struct{}{}
		}
	}
	for path := range savedMap {
		if _, ok := currentMap[path]; !ok {
			modified[path] = struct{}{}
		}
	}

	return ComparisonResult{
		ModifiedPaths: modified,
		HasChanges:    len(modified) > 0,
		CurrentMap:    currentMap,
		SavedMap:      savedMap,
	}
}

func toMap(files []File) map[string]string {
	m := make(map[string]string, len(files))
	for _, f := range files {
		m[f.Path] = f.Content
	}
	return m
}
