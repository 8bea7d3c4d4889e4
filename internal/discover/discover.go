// Package discover resolves test files for each run category.
//
// Three built-in roots are searched: two build-based unit categories and
// one interpreted spec category. Discovery runs once at startup; the
// resulting set is immutable thereafter.
package discover

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Category IDs.
const (
	CategoryUnitNode    = "unit-node"
	CategoryUnitBrowser = "unit-browser"
	CategorySpec        = "spec"
)

// EnvTestFiles is the environment variable consumed by the build
// collaborator's bundling step. It holds the relative unit-test file
// names joined by EnvDelimiter.
const (
	EnvTestFiles = "HARNESS_TEST_FILES"
	EnvDelimiter = ","
)

// Category identifies a class of test artifact and its resolved files.
type Category struct {
	ID      string
	Root    string
	Pattern string
	Files   []string
	Build   bool // true for build-based categories
}

// Set is the ordered, immutable result of discovery.
// Categories appear in fixed order: unit-node, unit-browser, spec.
type Set struct {
	Categories []Category
}

// defaults returns the built-in category roots with empty file lists.
func defaults() []Category {
	return []Category{
		{ID: CategoryUnitNode, Root: "test/unit", Pattern: "*.test.js", Build: true},
		{ID: CategoryUnitBrowser, Root: "test/browser", Pattern: "*.test.js", Build: true},
		{ID: CategorySpec, Root: "test/spec", Pattern: "*.spec.js"},
	}
}

// Discover resolves the file set for each category, rooted at dir.
// With no explicit paths, all three built-in roots are walked. Explicit
// paths are classified by their category root; a path matching no known
// root is a fatal discovery error.
func Discover(dir string, paths []string) (*Set, error) {
	set := &Set{Categories: defaults()}

	if len(paths) == 0 {
		for i := range set.Categories {
			files, err := walkRoot(dir, set.Categories[i])
			if err != nil {
				return nil, err
			}
			set.Categories[i].Files = files
		}
		return set, nil
	}

	for _, p := range paths {
		if err := set.classify(dir, p); err != nil {
			return nil, err
		}
	}

	for i := range set.Categories {
		sort.Strings(set.Categories[i].Files)
	}
	return set, nil
}

// classify assigns an explicit path to its category by root prefix.
func (s *Set) classify(dir, path string) error {
	rel := filepath.ToSlash(filepath.Clean(path))

	for i := range s.Categories {
		cat := &s.Categories[i]
		if rel != cat.Root && !strings.HasPrefix(rel, cat.Root+"/") {
			continue
		}

		full := filepath.Join(dir, rel)
		info, err := os.Stat(full)
		if err != nil {
			return fmt.Errorf("discovery: %w", err)
		}
		if info.IsDir() {
			files, err := walkRoot(dir, Category{Root: rel, Pattern: cat.Pattern})
			if err != nil {
				return err
			}
			cat.Files = append(cat.Files, files...)
		} else {
			cat.Files = append(cat.Files, rel)
		}
		return nil
	}

	return fmt.Errorf("discovery: path %q matches no known category root", path)
}

// walkRoot collects files under the category root matching its pattern.
// A missing root is not an error; the category is simply empty.
func walkRoot(dir string, cat Category) ([]string, error) {
	root := filepath.Join(dir, cat.Root)
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return nil, nil
	}

	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ok, err := filepath.Match(cat.Pattern, d.Name())
		if err != nil {
			return err
		}
		if ok {
			rel, err := filepath.Rel(dir, path)
			if err != nil {
				return err
			}
			files = append(files, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discovery: walking %s: %w", cat.Root, err)
	}
	return files, nil
}

// ByID returns the category with the given id, or nil.
func (s *Set) ByID(id string) *Category {
	for i := range s.Categories {
		if s.Categories[i].ID == id {
			return &s.Categories[i]
		}
	}
	return nil
}

// AllFiles returns every discovered file across all categories, in
// category order. Used as the watch-mode file set.
func (s *Set) AllFiles() []string {
	var out []string
	for _, cat := range s.Categories {
		out = append(out, cat.Files...)
	}
	return out
}

// TestFilesEnv returns the value published to EnvTestFiles: the relative
// file names of the build-based categories, joined by EnvDelimiter.
func (s *Set) TestFilesEnv() string {
	var files []string
	for _, cat := range s.Categories {
		if cat.Build {
			files = append(files, cat.Files...)
		}
	}
	return strings.Join(files, EnvDelimiter)
}
