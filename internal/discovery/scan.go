// Package discovery enumerates work items, either from the on-disk release
// layout (release_<N>/<organism>/*.<ext>) or from a manifest file.
//
// Both sources return items in a fixed order so that every array task sees the
// same list and the partitioner hands out disjoint shares.
package discovery

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/harrison/annobatch/internal/models"
)

const releasePrefix = "release_"

// DefaultExt is the file extension matched inside organism directories.
const DefaultExt = ".gff3"

// Payload keys set on items found by Scan.
const (
	PayloadInput = "input"
	PayloadDir   = "dir"
	PayloadFile  = "file"
)

// ScanOptions controls a directory scan.
type ScanOptions struct {
	// Ext is the file extension to match, with or without the leading dot.
	Ext string
	// Release restricts the scan to a single release_<N> directory when > 0.
	Release int
	// Normalize rewrites organism directory names with models.NormalizeOrganism.
	Normalize bool
}

func (o ScanOptions) ext() string {
	ext := o.Ext
	if ext == "" {
		ext = DefaultExt
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// Scan walks baseDir for release_<N>/<organism>/*<ext> files. Releases are
// ordered numerically, organisms and files by name. Directories whose suffix is
// not a number are ignored.
func Scan(baseDir string, opts ScanOptions) ([]models.WorkItem, error) {
	releases, err := releaseDirs(baseDir, opts.Release)
	if err != nil {
		return nil, err
	}

	ext := opts.ext()
	var items []models.WorkItem
	for _, rel := range releases {
		relPath := filepath.Join(baseDir, releasePrefix+strconv.Itoa(rel))
		orgs, err := subdirs(relPath)
		if err != nil {
			return nil, err
		}
		for _, org := range orgs {
			orgPath := filepath.Join(relPath, org)
			files, err := filepath.Glob(filepath.Join(orgPath, "*"+ext))
			if err != nil {
				return nil, fmt.Errorf("glob %s: %w", orgPath, err)
			}
			sort.Strings(files)

			organism := org
			if opts.Normalize {
				organism = models.NormalizeOrganism(org)
			}
			for _, f := range files {
				name := filepath.Base(f)
				items = append(items, models.WorkItem{
					ID:       fmt.Sprintf("%s%d/%s/%s", releasePrefix, rel, org, name),
					Organism: organism,
					Release:  rel,
					Payload: map[string]string{
						PayloadInput: f,
						PayloadDir:   orgPath,
						PayloadFile:  name,
					},
				})
			}
		}
	}
	return items, nil
}

func releaseDirs(baseDir string, only int) ([]int, error) {
	if only > 0 {
		path := filepath.Join(baseDir, releasePrefix+strconv.Itoa(only))
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("release %d: %w", only, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("release %d: %s is not a directory", only, path)
		}
		return []int{only}, nil
	}

	names, err := subdirs(baseDir)
	if err != nil {
		return nil, err
	}
	var releases []int
	for _, name := range names {
		if !strings.HasPrefix(name, releasePrefix) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimPrefix(name, releasePrefix))
		if err != nil || n < 0 {
			continue
		}
		releases = append(releases, n)
	}
	sort.Ints(releases)
	return releases, nil
}

func subdirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
