package search_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"querygraph/search"
)

func TestClientSearchJSONBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "boiling point of sulfur", r.URL.Query().Get("q"))
		w.Write([]byte(`{"result": "444.6 C"}`))
	}))
	defer server.Close()

	c := search.NewClient(server.URL, 5*time.Second)
	got, err := c.Search(context.Background(), "boiling point of sulfur")
	assert.NoError(t, err)
	assert.Equal(t, "444.6 C", got)
}

func TestClientSearchPlainTextBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("a plain text answer"))
	}))
	defer server.Close()

	c := search.NewClient(server.URL, 5*time.Second)
	got, err := c.Search(context.Background(), "q")
	assert.NoError(t, err)
	assert.Equal(t, "a plain text answer", got)
}

func TestClientSearchUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "source down", http.StatusBadGateway)
	}))
	defer server.Close()

	c := search.NewClient(server.URL, 5*time.Second)
	_, err := c.Search(context.Background(), "q")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestClientSearchNotConfigured(t *testing.T) {
	c := search.NewClient("", time.Second)
	_, err := c.Search(context.Background(), "q")
	assert.Error(t, err)
}
