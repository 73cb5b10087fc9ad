package ingestion

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// FileEntry represents a Go source file of the project.
type FileEntry struct {
	// Path is the absolute file path.
	Path string

	// RelPath is the slash separated path relative to the repo root.
	RelPath string

	// SHA256 is the hash of the file content.
	SHA256 string
}

// Default patterns to ignore (in addition to .gitignore).
var defaultIgnorePatterns = []string{
	".git/",
	".reachgraph/",
	"vendor/",
	"testdata/",
	"node_modules/",
	"_*/",
	".*/",
}

// ProjectMatcher decides which files belong to the analyzed project.
// It combines the default patterns with the repository's .gitignore.
type ProjectMatcher struct {
	root    string
	matcher gitignore.Matcher
}

// NewProjectMatcher loads the ignore patterns of the repository at root.
// A missing .gitignore is not an error.
func NewProjectMatcher(root string) (*ProjectMatcher, error) {
	patterns := make([]gitignore.Pattern, 0, len(defaultIgnorePatterns))
	for _, p := range defaultIgnorePatterns {
		patterns = append(patterns, gitignore.ParsePattern(p, nil))
	}

	loaded, err := loadGitignore(root)
	if err != nil {
		return nil, err
	}
	patterns = append(patterns, loaded...)

	return &ProjectMatcher{root: root, matcher: gitignore.NewMatcher(patterns)}, nil
}

// Ignored reports whether a slash separated path relative to the root is
// excluded from the project.
func (m *ProjectMatcher) Ignored(relPath string, isDir bool) bool {
	if relPath == "" || relPath == "." {
		return false
	}
	return m.matcher.Match(strings.Split(relPath, "/"), isDir)
}

// IgnoredFile is Ignored for files. It matches goindex.Options.Ignore.
func (m *ProjectMatcher) IgnoredFile(relPath string) bool {
	return m.Ignored(relPath, false)
}

// Watched reports whether an absolute path is a project Go file.
func (m *ProjectMatcher) Watched(path string) bool {
	if !isGoFile(path) {
		return false
	}
	rel, ok := m.rel(path)
	return ok && !m.Ignored(rel, false)
}

// rel converts an absolute path below the root to a slash separated
// relative path.
func (m *ProjectMatcher) rel(path string) (string, bool) {
	rel, err := filepath.Rel(m.root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// WalkRepo walks the repository and returns its project Go files sorted by
// relative path.
func WalkRepo(repoPath string, matcher *ProjectMatcher) ([]FileEntry, error) {
	var entries []FileEntry

	err := filepath.WalkDir(repoPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, ok := matcher.rel(path)
		if !ok {
			return nil
		}

		if d.IsDir() {
			if matcher.Ignored(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}

		if !isGoFile(d.Name()) || matcher.Ignored(rel, false) {
			return nil
		}

		hash, err := hashFile(path)
		if err != nil {
			return err
		}

		entries = append(entries, FileEntry{
			Path:    path,
			RelPath: rel,
			SHA256:  hash,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].RelPath < entries[j].RelPath })
	return entries, nil
}

// Fingerprint combines the paths and hashes of the entries. Two walks of an
// unchanged tree have the same fingerprint.
func Fingerprint(entries []FileEntry) string {
	h := sha256.New()
	for _, e := range entries {
		io.WriteString(h, e.RelPath)
		h.Write([]byte{0})
		io.WriteString(h, e.SHA256)
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// loadGitignore loads .gitignore patterns from the repository root.
func loadGitignore(repoPath string) ([]gitignore.Pattern, error) {
	content, err := os.ReadFile(filepath.Join(repoPath, ".gitignore"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var patterns []gitignore.Pattern
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, gitignore.ParsePattern(line, nil))
	}
	return patterns, nil
}

func isGoFile(name string) bool {
	return strings.HasSuffix(name, ".go")
}
