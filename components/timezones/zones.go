// Package timezones serves IANA zone names as select options. The zone list
// is embedded; Search ranks prefix matches ahead of substring matches.
package timezones

import (
	"bufio"
	"embed"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-crudmeta/pkg/model"
)

//go:embed data/iana_timezones.txt
var dataFS embed.FS

const zonesFile = "data/iana_timezones.txt"

var (
	loadOnce sync.Once
	embedded []string
	loadErr  error
)

// EmptyMode decides what an empty query returns.
type EmptyMode string

const (
	EmptyNone EmptyMode = "none"
	EmptyTop  EmptyMode = "top"
)

// Embedded returns a copy of the bundled zone list, sorted.
func Embedded() ([]string, error) {
	loadOnce.Do(func() {
		f, err := dataFS.Open(zonesFile)
		if err != nil {
			loadErr = err
			return
		}
		defer f.Close()
		embedded, loadErr = Parse(f)
	})
	if loadErr != nil {
		return nil, loadErr
	}
	return append([]string(nil), embedded...), nil
}

// Parse reads one zone per line. Blank lines, # comments and duplicates are
// skipped.
func Parse(r io.Reader) ([]string, error) {
	if r == nil {
		return nil, errors.New("timezones: nil reader")
	}
	seen := map[string]bool{}
	var zones []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || seen[line] {
			continue
		}
		seen[line] = true
		zones = append(zones, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	sort.Strings(zones)
	return zones, nil
}

// Search returns at most limit zones containing query, case-insensitively.
func Search(zones []string, query string, limit int, empty EmptyMode) []string {
	if limit <= 0 {
		return nil
	}
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		if empty != EmptyTop {
			return nil
		}
		return append([]string(nil), zones[:min(limit, len(zones))]...)
	}

	type hit struct {
		zone   string
		prefix bool
	}
	var hits []hit
	for _, zone := range zones {
		lower := strings.ToLower(zone)
		if strings.Contains(lower, query) {
			hits = append(hits, hit{zone: zone, prefix: strings.HasPrefix(lower, query)})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].prefix != hits[j].prefix {
			return hits[i].prefix
		}
		return hits[i].zone < hits[j].zone
	})

	out := make([]string, 0, min(limit, len(hits)))
	for _, h := range hits[:min(limit, len(hits))] {
		out = append(out, h.zone)
	}
	return out
}

// AsOptions maps zones to label/value options.
func AsOptions(zones []string) []model.Option {
	out := make([]model.Option, 0, len(zones))
	for _, zone := range zones {
		out = append(out, model.Option{Label: zone, Value: zone})
	}
	return out
}
