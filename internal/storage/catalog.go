package storage

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/msgtrace/tracecheck/internal/models"
)

// Catalog discovers the trace files of a directory and orders them for
// replay: natural (numeric-aware) name order, with the current trace file last.
type Catalog struct {
	currentName   string
	archiveSuffix string
}

// NewCatalog creates a Catalog. currentName is the base name of the live
// trace file; archiveSuffix marks compressed files.
func NewCatalog(currentName, archiveSuffix string) *Catalog {
	return &Catalog{
		currentName:   currentName,
		archiveSuffix: archiveSuffix,
	}
}

// Discover lists the regular files in dir in replay order.
func (c *Catalog) Discover(dir string) ([]*models.TraceFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, models.NewIOError(dir, "reading trace directory", err)
	}

	var (
		list    []*models.TraceFile
		current []*models.TraceFile
	)
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, models.NewIOError(filepath.Join(dir, entry.Name()), "stat trace file", err)
		}

		tf := &models.TraceFile{
			Name:     entry.Name(),
			Path:     filepath.Join(dir, entry.Name()),
			Size:     info.Size(),
			Archived: c.IsArchive(entry.Name()),
		}
		if c.isCurrent(entry.Name()) {
			tf.Current = true
			current = append(current, tf)
			continue
		}
		list = append(list, tf)
	}

	if len(current) > 1 {
		names := make([]string, len(current))
		for i, tf := range current {
			names[i] = tf.Name
		}
		sort.Strings(names)
		return nil, models.NewAmbiguousCurrentError(dir, names)
	}

	SortNatural(list)
	return append(list, current...), nil
}

// IsArchive reports whether name carries the archive suffix.
func (c *Catalog) IsArchive(name string) bool {
	return c.archiveSuffix != "" && strings.HasSuffix(name, c.archiveSuffix)
}

func (c *Catalog) isCurrent(name string) bool {
	if c.IsArchive(name) {
		name = strings.TrimSuffix(name, c.archiveSuffix)
	}
	return name == c.currentName
}

// SortNatural orders files by name so that embedded numbers compare by
// value ("trace_2" before "trace_10").
func SortNatural(files []*models.TraceFile) {
	col := collate.New(language.Und, collate.Numeric)
	sort.SliceStable(files, func(i, j int) bool {
		a, b := files[i].Name, files[j].Name
		if r := col.CompareString(a, b); r != 0 {
			return r < 0
		}
		return a < b
	})
}
