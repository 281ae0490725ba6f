package io

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kennygrant/sanitize"

	"github.com/geniass/pricecompare/pkg/compare"
)

type ComparisonWithPath struct {
	compare.PriceComparison
	Path string
}

// FileName is the export file name of c: the item title made file system
// safe, followed by the product identifier.
func FileName(c *compare.PriceComparison) string {
	name := sanitize.BaseName(c.Item)
	name = strings.Trim(name, "-")
	if name == "" {
		return c.Identifier + ".json"
	}
	return name + "-" + c.Identifier + ".json"
}

// SaveComparison writes c as JSON into dir, creating dir if needed, and
// returns the path written. An existing export of the same item is replaced.
func SaveComparison(dir string, c *compare.PriceComparison) (string, error) {
	if err := os.MkdirAll(dir, os.ModeDir|0755); err != nil {
		return "", err
	}

	path := filepath.Join(dir, FileName(c))
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if err := writeComparison(f, c); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

type writeCloser interface {
	Write(p []byte) (int, error)
	Close() error
}

// writeComparison encodes c into w and closes it. A failed close means the
// export may be truncated and is reported like a failed write.
func writeComparison(w writeCloser, c *compare.PriceComparison) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(c); err != nil {
		w.Close()
		return fmt.Errorf("encode: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	return nil
}

// LoadFromDir reads every JSON export below dir, most recent comparison
// first.
func LoadFromDir(dir string) ([]ComparisonWithPath, error) {
	var cs []ComparisonWithPath
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		dec := json.NewDecoder(f)
		var c compare.PriceComparison
		if err := dec.Decode(&c); err != nil {
			return fmt.Errorf("decode %s: %w", path, err)
		}
		cs = append(cs, ComparisonWithPath{PriceComparison: c, Path: path})
		return nil
	})

	sort.SliceStable(cs, func(i, j int) bool {
		return cs[i].ComparedAt.After(cs[j].ComparedAt)
	})

	if err != nil {
		return cs, err
	}
	return cs, nil
}
