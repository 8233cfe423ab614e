package fetch

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTitle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<!DOCTYPE html>
<html><head><title>Deployment Runbook</title></head>
<body>
<article>
<h1>Deployment Runbook</h1>
<p>This page describes the deployment procedure in enough prose for the readability parser to treat it as a real article rather than navigation chrome. Several sentences of meaningful content are needed here.</p>
<p>A second paragraph keeps the extraction from discarding the body as boilerplate. The steps below assume the staging environment is already provisioned.</p>
</article>
</body></html>`))
	}))
	defer srv.Close()

	title, err := Title(srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if title != "Deployment Runbook" {
		t.Errorf("title = %q, want %q", title, "Deployment Runbook")
	}
}

func TestTitleSkipsNonHTTP(t *testing.T) {
	urls := []string{
		"about:blank",
		"javascript:void(0)",
		"data:text/html,hello",
		"file:///home/user/doc.html",
		"chrome://settings",
		"moz-extension://abc/page",
	}
	for _, u := range urls {
		if _, err := Title(u); err == nil {
			t.Errorf("expected error for %q, got nil", u)
		}
	}
}

func TestTitleHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	if _, err := Title(srv.URL); err == nil {
		t.Error("expected error for 404 response, got nil")
	}
}
