package patch

import (
	"errors"
	"path"
	"strings"

	"previewsync/internal/fileset"
)

// ErrNotFound is returned when no strategy matches in any candidate file. The
// caller reports a warning and leaves the file set unchanged; a miss never
// corrupts content.
var ErrNotFound = errors.New("patch: original text not found")

// Patcher rewrites a textual fragment inside one file of a set using the
// ordered strategy chain, broadening the search across likely renderer files
// when the element lives in a reusable component.
type Patcher struct {
	strategies []Strategy
}

func New() *Patcher {
	return &Patcher{strategies: Strategies()}
}

// PatchFile runs the strategy chain against a single file's content.
func (p *Patcher) PatchFile(content, original, replacement string) (string, bool) {
	if p == nil || original == "" {
		return "", false
	}
	for _, try := range p.strategies {
		if patched, ok := try(content, original, replacement); ok {
			return patched, true
		}
	}
	return "", false
}

// PatchSet patches original→replacement starting at filePath. When filePath
// is a reusable component file and nothing matches there, the search broadens
// to files likely to render it (page/app/index conventions), then the whole
// set. It returns a new snapshot plus the path actually patched; the input
// snapshot is never mutated.
func (p *Patcher) PatchSet(files []fileset.File, filePath, original, replacement string) ([]fileset.File, string, error) {
	if p == nil || len(files) == 0 || original == "" {
		return files, "", ErrNotFound
	}

	for _, candidate := range candidateOrder(files, filePath) {
		for i, f := range files {
			if f.Path != candidate {
				continue
			}
			patched, ok := p.PatchFile(f.Content, original, replacement)
			if !ok {
				break
			}
			out := make([]fileset.File, len(files))
			copy(out, files)
			out[i].Content = patched
			return out, f.Path, nil
		}
	}
	return files, "", ErrNotFound
}

// entryConventions lists files that commonly render components, tried in this
// order before the rest of the set.
var entryConventions = []string{
	"src/App.tsx", "src/App.jsx", "src/App.vue", "src/App.svelte",
	"src/main.tsx", "src/main.jsx", "src/main.ts", "src/main.js",
	"app/page.tsx", "app/page.jsx",
	"pages/index.tsx", "pages/index.jsx",
	"src/index.tsx", "src/index.jsx", "src/index.js",
	"index.html",
}

func candidateOrder(files []fileset.File, filePath string) []string {
	present := make(map[string]bool, len(files))
	for _, f := range files {
		present[f.Path] = true
	}

	order := make([]string, 0, len(files))
	seen := make(map[string]bool, len(files))
	add := func(p string) {
		if p != "" && present[p] && !seen[p] {
			order = append(order, p)
			seen[p] = true
		}
	}

	add(filePath)
	if !isComponentFile(filePath) && present[filePath] {
		return order
	}
	for _, p := range entryConventions {
		add(p)
	}
	for _, f := range files {
		add(f.Path)
	}
	return order
}

// isComponentFile reports whether the path looks like a reusable component:
// under a components directory, or a capitalized basename with a UI extension.
func isComponentFile(filePath string) bool {
	if filePath == "" {
		return true
	}
	if strings.Contains(filePath, "/components/") || strings.HasPrefix(filePath, "components/") {
		return true
	}
	base := path.Base(filePath)
	ext := path.Ext(base)
	switch ext {
	case ".tsx", ".jsx", ".vue", ".svelte", ".ts", ".js":
	default:
		return false
	}
	name := strings.TrimSuffix(base, ext)
	return name != "" && name[0] >= 'A' && name[0] <= 'Z' && name != "App"
}
