package webcrawl

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFetchReturnsHTMLAndPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body><pre>code</pre></body></html>"))
	}))
	defer srv.Close()

	f := NewFetcher(0)
	page, err := f.Fetch(context.Background(), srv.URL+"/docs/intro")
	require.NoError(t, err)
	require.Equal(t, "/docs/intro", page.Path)
	require.Contains(t, page.HTML, "<pre>code</pre>")
}

func TestFetchNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := NewFetcher(0)
	_, err := f.Fetch(context.Background(), srv.URL+"/missing")
	require.Error(t, err)
}
