package hostgpu

import (
	"os"
	"path/filepath"
	"sort"

	"gpubridge/internal/logging"
)

// Resolver locates required runtime libraries in the host library
// directory, following symbolic links to their real backing files.
type Resolver struct {
	libraryDir string
	logger     *logging.Logger
}

// NewResolver creates a library resolver searching libraryDir.
func NewResolver(libraryDir string, logger *logging.Logger) *Resolver {
	return &Resolver{libraryDir: libraryDir, logger: logger}
}

// Resolve maps each required library name to its real host path and its
// in-container bind target. Names with no match, and symbolic links whose
// target is missing, are warned about and skipped: a partial mapping is
// acceptable and verified functionally later.
func (r *Resolver) Resolve(names []string) []Mapping {
	mappings := make([]Mapping, 0, len(names))

	for _, name := range names {
		path, ok := r.findFirst(name)
		if !ok {
			r.logger.Warn("hostgpu.resolve.missing", "Required library not found on host", map[string]interface{}{
				"library":     name,
				"library_dir": r.libraryDir,
			})
			continue
		}

		// Binding a symbolic link into an isolated mount namespace without
		// its target is unsafe, so the mapping always records the ultimate
		// real file.
		real, err := filepath.EvalSymlinks(path)
		if err != nil {
			r.logger.Warn("hostgpu.resolve.broken_link", "Library link target missing, skipping", map[string]interface{}{
				"library": name,
				"path":    path,
				"error":   err.Error(),
			})
			continue
		}

		mappings = append(mappings, Mapping{
			Name:          name,
			HostPath:      real,
			ContainerPath: filepath.Join(r.libraryDir, name),
		})

		r.logger.Debug("hostgpu.resolve.mapped", "Library resolved", map[string]interface{}{
			"library":   name,
			"host_path": real,
		})
	}

	return mappings
}

// findFirst returns the first directory entry matching the library name,
// preferring an exact match over versioned variants.
func (r *Resolver) findFirst(name string) (string, bool) {
	exact := filepath.Join(r.libraryDir, name)
	if _, err := os.Lstat(exact); err == nil {
		return exact, true
	}

	matches, err := filepath.Glob(filepath.Join(r.libraryDir, name+"*"))
	if err != nil || len(matches) == 0 {
		return "", false
	}
	sort.Strings(matches)
	return matches[0], true
}
