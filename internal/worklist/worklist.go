// Package worklist reads the newline-delimited list of disc images a run
// processes.
package worklist

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"isoconvert/internal/logging"
	"isoconvert/internal/services"
)

// Skip reasons reported for dropped entries.
const (
	ReasonMissing   = "missing"
	ReasonDirectory = "directory"
	ReasonDuplicate = "duplicate"
)

// Skipped is a worklist entry that was dropped while loading.
type Skipped struct {
	Line   int
	Path   string
	Reason string
}

// List is a loaded worklist. Items are absolute, unique, and in file order.
type List struct {
	Items   []string
	Skipped []Skipped
}

// Load reads path and logs every skipped entry.
func Load(path string, logger *slog.Logger) (List, error) {
	logger = logging.NewComponentLogger(logger, "worklist")
	file, err := os.Open(path)
	if err != nil {
		return List{}, services.Wrap(services.ErrConfiguration, "worklist", "open", path, err)
	}
	defer file.Close()

	list, err := Parse(file, filepath.Dir(path))
	if err != nil {
		return List{}, services.Wrap(services.ErrIO, "worklist", "read", path, err)
	}
	for _, s := range list.Skipped {
		attrs := []logging.Attr{
			logging.Int("line", s.Line),
			logging.String("path", s.Path),
			logging.String("reason", s.Reason),
		}
		if s.Reason == ReasonDuplicate {
			logger.Info("duplicate worklist entry skipped", logging.Args(attrs...)...)
			continue
		}
		logging.WarnWithContext(logger, "worklist entry skipped", "worklist_skip",
			append(attrs,
				logging.String(logging.FieldErrorHint, "check the path in "+path),
				logging.String(logging.FieldImpact, "image will not be converted"),
			)...,
		)
	}
	logger.Info("worklist loaded",
		logging.String("path", path),
		logging.Int("items", len(list.Items)),
		logging.Int("skipped", len(list.Skipped)),
	)
	return list, nil
}

// Parse reads worklist entries from r. Relative paths resolve against
// baseDir. Carriage returns, surrounding whitespace and quote characters are
// stripped; blank lines and lines starting with '#' are ignored.
func Parse(r io.Reader, baseDir string) (List, error) {
	var list List
	seen := make(map[string]struct{})
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		entry := cleanEntry(scanner.Text())
		if entry == "" || strings.HasPrefix(entry, "#") {
			continue
		}
		path := entry
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		path = filepath.Clean(path)
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}

		if _, dup := seen[path]; dup {
			list.Skipped = append(list.Skipped, Skipped{Line: lineNo, Path: path, Reason: ReasonDuplicate})
			continue
		}
		info, err := os.Stat(path)
		switch {
		case err != nil:
			list.Skipped = append(list.Skipped, Skipped{Line: lineNo, Path: path, Reason: ReasonMissing})
			continue
		case info.IsDir():
			list.Skipped = append(list.Skipped, Skipped{Line: lineNo, Path: path, Reason: ReasonDirectory})
			continue
		}
		seen[path] = struct{}{}
		list.Items = append(list.Items, path)
	}
	if err := scanner.Err(); err != nil {
		return list, fmt.Errorf("line %d: %w", lineNo+1, err)
	}
	return list, nil
}

func cleanEntry(raw string) string {
	entry := strings.TrimSpace(strings.ReplaceAll(raw, "\r", ""))
	entry = strings.ReplaceAll(entry, `"`, "")
	if len(entry) >= 2 && strings.HasPrefix(entry, "'") && strings.HasSuffix(entry, "'") {
		entry = entry[1 : len(entry)-1]
	}
	return strings.TrimSpace(entry)
}
