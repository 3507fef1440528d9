// Package fetch retrieves one remote archive per (date, file type)
// pair, staging the bytes into a uniquely named transient file and
// recording unreachable resources in the missed-files log.
package fetch

import (
	"fmt"
	"strings"
	"time"
)

// FileType is an immutable template naming a remote archive family,
// e.g. "WEBPXTICK_DT.zip". It is used verbatim in URL construction and
// drives derived filename generation.
type FileType string

// Base returns the template up to the first dot.
func (ft FileType) Base() string {
	s := string(ft)
	if i := strings.Index(s, "."); i >= 0 {
		return s[:i]
	}
	return s
}

// Ext returns the template's final extension, without the dot.
func (ft FileType) Ext() string {
	s := string(ft)
	if i := strings.LastIndex(s, "."); i >= 0 {
		return s[i+1:]
	}
	return ""
}

// Filename derives the dated local name for this file type:
// {base}_{YYYYMMDD}.{ext}.
func (ft FileType) Filename(date time.Time) string {
	return fmt.Sprintf("%s_%s.%s", ft.Base(), date.Format("20060102"), ft.Ext())
}

// FileTypes converts a configured list of templates.
func FileTypes(templates []string) []FileType {
	fts := make([]FileType, 0, len(templates))
	for _, t := range templates {
		fts = append(fts, FileType(t))
	}
	return fts
}
