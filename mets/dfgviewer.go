package mets

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	dfgViewerHost = regexp.MustCompile(`^https?://dfg-viewer\.de/`)
	setMetsParam  = regexp.MustCompile(`set\[mets\]=(http[^&]+)`)
	dlfIDParam    = regexp.MustCompile(`tx_dlf\[id\]=(http.+)`)
)

// ResolveSourceURL unwraps DFG-Viewer presentation URLs to the METS URL
// they carry in their query string. Any other URL is returned unchanged.
func ResolveSourceURL(raw string) string {
	if !dfgViewerHost.MatchString(raw) {
		return raw
	}
	decoded, err := url.QueryUnescape(raw)
	if err != nil {
		decoded = raw
	}
	if m := setMetsParam.FindStringSubmatch(decoded); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := dlfIDParam.FindStringSubmatch(decoded); m != nil {
		return strings.TrimSpace(m[1])
	}
	return raw
}
