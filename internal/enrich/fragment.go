package enrich

import (
	"fmt"
	"strings"

	"github.com/nicholasgasior/markitdown-enrich/internal/imaging"
)

// Fragment is one unit of output. Image is zero for page text.
type Fragment struct {
	Page  int
	Image int
	Text  string
}

func imageFragment(pageNr, index int, v imaging.Validated, description string, embed bool) Fragment {
	text := description
	if embed {
		text = fmt.Sprintf("![Image %d on Page %d](%s)\n\n%s", index, pageNr, v.DataURI(), description)
	}
	return Fragment{Page: pageNr, Image: index, Text: text}
}

// Render joins fragments with blank lines.
func Render(frags []Fragment) string {
	parts := make([]string, 0, len(frags))
	for _, f := range frags {
		parts = append(parts, f.Text)
	}
	return strings.TrimSpace(strings.Join(parts, "\n\n"))
}
