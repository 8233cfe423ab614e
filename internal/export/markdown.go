package export

import (
	"fmt"
	"strings"
	"time"
)

// Markdown formats an exported page as a markdown document.
func Markdown(page *Page) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n", page.Location)
	fmt.Fprintf(&b, "> Exported %s\n", time.Now().Format("2006-01-02 15:04"))

	for ci, c := range page.Containers {
		if len(page.Containers) > 1 {
			fmt.Fprintf(&b, "\n# Container %d\n", ci+1)
		}
		for _, g := range c.Groups {
			n := len(g.Items)
			noun := "items"
			if n == 1 {
				noun = "item"
			}
			fmt.Fprintf(&b, "\n## %s (%d %s)\n\n", g.Name, n, noun)

			for _, it := range g.Items {
				if it.Href != "" {
					fmt.Fprintf(&b, "- [%s](%s)\n", displayName(it), it.Href)
				} else {
					fmt.Fprintf(&b, "- %s\n", displayName(it))
				}
			}
		}
	}

	return b.String()
}
