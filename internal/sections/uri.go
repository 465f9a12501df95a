package sections

import (
	"strconv"
	"strings"

	"github.com/alfredjeanlab/cms/internal/model"
)

// RenderURI fills a site settings URI format for one entry. Supported
// tokens are {slug}, {id} and {section.handle}. Leading and trailing
// slashes are trimmed; "__home__" renders as the empty URI.
func RenderURI(format string, section *model.Section, entry *model.Entry, slug string) string {
	r := strings.NewReplacer(
		"{slug}", slug,
		"{id}", strconv.FormatInt(entry.ID, 10),
		"{section.handle}", section.Handle,
	)
	uri := strings.Trim(r.Replace(format), "/")
	if uri == "__home__" {
		return ""
	}
	return uri
}
