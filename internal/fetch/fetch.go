// Package fetch resolves display names for items whose link target must be
// consulted, using readability extraction. It is an enrichment helper for
// export; the core pipeline never blocks on the network.
package fetch

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
)

var skipPrefixes = []string{"about:", "javascript:", "data:", "file:", "chrome:", "moz-extension:"}

// Title fetches a URL and returns the page title readability extracts.
// Returns an error for non-HTTP URLs or if extraction fails.
func Title(url string) (string, error) {
	for _, prefix := range skipPrefixes {
		if strings.HasPrefix(url, prefix) {
			return "", fmt.Errorf("skipping non-HTTP URL: %s", url)
		}
	}

	client := &http.Client{Timeout: 15 * time.Second}
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("fetch %s: HTTP %d", url, resp.StatusCode)
	}

	article, err := readability.FromReader(resp.Body, nil)
	if err != nil {
		return "", fmt.Errorf("extract title from %s: %w", url, err)
	}
	if article.Title == "" {
		return "", fmt.Errorf("no title found at %s", url)
	}
	return article.Title, nil
}
