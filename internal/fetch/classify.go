package fetch

import (
	"path/filepath"
	"strings"

	"github.com/growthlens/audit-cli/internal/model"
)

// Classify sorts downloaded export files into the audit's source slots
// by file name. Unrecognized files are returned separately so the
// caller can surface them instead of silently ignoring them.
func Classify(paths []string) (model.SourceFiles, []string) {
	var src model.SourceFiles
	var unknown []string

	for _, p := range paths {
		name := strings.ToLower(filepath.Base(p))
		ext := filepath.Ext(name)
		switch {
		case ext == ".png" || ext == ".jpg" || ext == ".jpeg":
			src.Screenshots = append(src.Screenshots, p)
		case containsAny(name, "internal_all", "internal_html", "crawl", "screaming"):
			src.Crawl = keepFirst(src.Crawl, p, &unknown)
		case containsAny(name, "organic", "keyword"):
			src.Keywords = keepFirst(src.Keywords, p, &unknown)
		case containsAny(name, "analytics", "ga4", "channel"):
			src.Analytics = keepFirst(src.Analytics, p, &unknown)
		case containsAny(name, "gtm", "container", "tag_manager", "tagmanager"):
			src.TagManager = keepFirst(src.TagManager, p, &unknown)
		default:
			unknown = append(unknown, p)
		}
	}
	return src, unknown
}

func containsAny(name string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(name, n) {
			return true
		}
	}
	return false
}

// keepFirst assigns path to an empty slot; a second candidate for the
// same slot goes to unknown rather than overwriting the first.
func keepFirst(current, path string, unknown *[]string) string {
	if current != "" {
		*unknown = append(*unknown, path)
		return current
	}
	return path
}
