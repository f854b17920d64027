// file: internal/matcher/series.go
// version: 2.0.0
// guid: 1f2a3b4c-5d6e-7f8a-9b0c-1d2e3f4a5b6c

package matcher

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// Common series indicators in titles and file names
var seriesPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(.+?)\s+Book\s+(\d+)(?:\s*:|\s+-)\s+(.+)`),   // "Series Book 1: Title"
	regexp.MustCompile(`(?i)(.+?)\s+Vol\.?\s+(\d+)(?:\s*:|\s+-)\s+(.+)`), // "Series Vol. 1: Title"
	regexp.MustCompile(`(?i)(.+?)\s+Tome\s+(\d+)(?:\s*:|\s+-)?\s*(.*)`),  // "Series Tome 1" (common in French ebooks)
	regexp.MustCompile(`(?i)(.+?)\s+#(\d+)(?:\s*:|\s+-)\s+(.+)`),         // "Series #1: Title"
	regexp.MustCompile(`(?i)(.+?)\s+(\d+)(?:\s*:|\s+-)\s+(.+)`),          // "Series 1 - Title"
}

// seriesWords are common words indicating a series
var seriesWords = []string{"trilogy", "series", "saga", "chronicles", "cycle", "sequence"}

// IdentifySeries attempts to identify a series name and position from the
// book title and file path. Used as a fallback when the OPF carries no
// calibre series metadata. Returns ("", 0) when nothing looks like a series.
func IdentifySeries(title, filePath string) (string, int) {
	if title == "" {
		title = filepath.Base(filePath)
		title = strings.TrimSuffix(title, filepath.Ext(title))
	}

	for _, pattern := range seriesPatterns {
		matches := pattern.FindStringSubmatch(title)
		if len(matches) >= 3 {
			series := strings.TrimSpace(matches[1])
			position := 0
			if posIdx, err := strconv.Atoi(matches[2]); err == nil {
				position = posIdx
			}
			return series, position
		}
	}

	// A parent directory that is not the author directory may be the series.
	dirs := strings.Split(filepath.Dir(filePath), string(filepath.Separator))
	if len(dirs) >= 2 {
		parentDir := dirs[len(dirs)-1]
		authorDir := ""
		if len(dirs) >= 3 {
			authorDir = dirs[len(dirs)-2]
		}
		if parentDir != "." && parentDir != authorDir && !isSingleWord(parentDir) {
			for _, word := range seriesWords {
				if strings.Contains(strings.ToLower(parentDir), word) {
					return parentDir, 0
				}
			}
			if fuzzy.Match(normalize(parentDir), normalize(title)) {
				return parentDir, 0
			}
		}
	}

	if parts := strings.Split(title, ": "); len(parts) >= 2 {
		return parts[0], 0
	}
	return "", 0
}

// isSingleWord checks if a string consists of a single word
func isSingleWord(s string) bool {
	return len(strings.Fields(s)) == 1
}
