//go:build windows

package platform

import "strings"

// defaultNormCase lowercases and normalizes separators, matching Python's
// os.path.normcase behavior on Windows.
func defaultNormCase(path string) string {
	return strings.ToLower(strings.ReplaceAll(path, "/", `\`))
}
