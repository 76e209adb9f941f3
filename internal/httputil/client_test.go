package httputil

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type exportDoc struct {
	Columns []string `json:"columns"`
}

func TestNewStandardClient(t *testing.T) {
	if c := NewStandardClient(nil); c != http.DefaultClient {
		t.Error("expected http.DefaultClient")
	}
	custom := &http.Client{}
	if c := NewStandardClient(custom); c != custom {
		t.Error("expected the custom client")
	}
}

func TestGetJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") != "application/json" {
			t.Errorf("Accept = %q", r.Header.Get("Accept"))
		}
		switch r.URL.Path {
		case "/export":
			w.Write([]byte(`{"columns":["date","O_UNIT"]}`))
		case "/broken":
			w.Write([]byte(`{"columns":`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := NewStandardClient(server.Client())
	ctx := context.Background()

	var doc exportDoc
	if err := GetJSON(ctx, client, server.URL+"/export", &doc); err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
	if len(doc.Columns) != 2 || doc.Columns[1] != "O_UNIT" {
		t.Errorf("columns = %v", doc.Columns)
	}

	if err := GetJSON(ctx, client, server.URL+"/missing", &doc); err == nil || !strings.Contains(err.Error(), "404") {
		t.Errorf("expected status error, got %v", err)
	}
	if err := GetJSON(ctx, client, server.URL+"/broken", &doc); err == nil {
		t.Error("expected decode error")
	}
}

func TestGetJSON_Mock(t *testing.T) {
	mock := (&MockHTTPClient{}).
		Respond(http.StatusOK, `{"columns":["date"]}`).
		Fail(errors.New("dial tcp: refused")).
		Respond(http.StatusBadGateway, "")
	ctx := context.Background()

	var doc exportDoc
	if err := GetJSON(ctx, mock, "http://analytics.local/export", &doc); err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
	if len(doc.Columns) != 1 {
		t.Errorf("columns = %v", doc.Columns)
	}

	if err := GetJSON(ctx, mock, "http://analytics.local/export", &doc); err == nil || !strings.Contains(err.Error(), "refused") {
		t.Errorf("expected transport error, got %v", err)
	}
	if err := GetJSON(ctx, mock, "http://analytics.local/export", &doc); err == nil || !strings.Contains(err.Error(), "502") {
		t.Errorf("expected status error, got %v", err)
	}

	// An empty queue answers 200 with no body, which is not JSON.
	if err := GetJSON(ctx, mock, "http://analytics.local/export", &doc); err == nil {
		t.Error("expected decode error on empty body")
	}

	reqs := mock.Requests()
	if len(reqs) != 4 {
		t.Fatalf("recorded %d requests, want 4", len(reqs))
	}
	if got := reqs[0].Header.Get("Accept"); got != "application/json" {
		t.Errorf("Accept = %q", got)
	}
}
