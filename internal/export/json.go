package export

import (
	"encoding/json"
	"time"
)

type jsonExport struct {
	Location   string          `json:"location"`
	ExportedAt time.Time       `json:"exported_at"`
	Containers []jsonContainer `json:"containers"`
}

type jsonContainer struct {
	Groups []jsonGroup `json:"groups"`
}

type jsonGroup struct {
	Name  string     `json:"name"`
	Items []jsonItem `json:"items"`
}

type jsonItem struct {
	Name  string `json:"name"`
	Href  string `json:"href,omitempty"`
	Title string `json:"title,omitempty"`
}

// JSON formats an exported page as a JSON document.
func JSON(page *Page) (string, error) {
	out := jsonExport{
		Location:   page.Location,
		ExportedAt: time.Now(),
		Containers: make([]jsonContainer, 0, len(page.Containers)),
	}

	for _, c := range page.Containers {
		jc := jsonContainer{Groups: make([]jsonGroup, 0, len(c.Groups))}
		for _, g := range c.Groups {
			jg := jsonGroup{Name: g.Name, Items: make([]jsonItem, 0, len(g.Items))}
			for _, it := range g.Items {
				jg.Items = append(jg.Items, jsonItem{Name: it.Name, Href: it.Href, Title: it.Title})
			}
			jc.Groups = append(jc.Groups, jg)
		}
		out.Containers = append(out.Containers, jc)
	}

	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b) + "\n", nil
}
