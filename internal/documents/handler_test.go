package documents

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func setupDocumentsRouter(t *testing.T) (*gin.Engine, *Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc := NewService(NewMemoryRepo())
	r := gin.New()
	NewHandler(svc).RegisterRoutes(r.Group("/api"))
	return r, svc
}

func TestGetDocumentIsStable(t *testing.T) {
	router, svc := setupDocumentsRouter(t)
	doc, err := svc.Create(context.Background(), "lease.txt", "text/plain", 11, "hello world")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	var bodies [][]byte
	for i := 0; i < 2; i++ {
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/documents/"+doc.ID, nil))
		if resp.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.Code)
		}
		bodies = append(bodies, resp.Body.Bytes())
	}
	if !bytes.Equal(bodies[0], bodies[1]) {
		t.Fatalf("expected identical responses, got %s and %s", bodies[0], bodies[1])
	}

	var got map[string]any
	if err := json.Unmarshal(bodies[0], &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["id"] != doc.ID || got["filename"] != "lease.txt" || got["fileType"] != "text/plain" {
		t.Fatalf("unexpected document: %v", got)
	}
	if got["fileSize"] != "11" || got["originalText"] != "hello world" {
		t.Fatalf("unexpected size or text: %v", got)
	}
}

func TestGetDocumentErrors(t *testing.T) {
	router, _ := setupDocumentsRouter(t)

	tests := []struct {
		path   string
		status int
	}{
		{path: "/api/documents/123", status: http.StatusBadRequest},
		{path: "/api/documents/00000000-0000-4000-8000-000000000000", status: http.StatusNotFound},
	}
	for _, tc := range tests {
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, tc.path, nil))
		if resp.Code != tc.status {
			t.Fatalf("%s: expected %d, got %d", tc.path, tc.status, resp.Code)
		}
	}
}

func TestListDocumentsOldestFirst(t *testing.T) {
	router, svc := setupDocumentsRouter(t)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	calls := 0
	svc.Now = func() time.Time {
		calls++
		return base.Add(time.Duration(calls) * time.Minute)
	}
	for _, name := range []string{"a.txt", "b.txt", "c.txt"} {
		if _, err := svc.Create(context.Background(), name, "text/plain", 1, "x"); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/documents", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var docs []Document
	if err := json.NewDecoder(resp.Body).Decode(&docs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(docs) != 3 || docs[0].Filename != "a.txt" || docs[2].Filename != "c.txt" {
		t.Fatalf("unexpected order: %+v", docs)
	}
}

func TestListDocumentsEmptyIsArray(t *testing.T) {
	router, _ := setupDocumentsRouter(t)

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/documents", nil))
	if body := resp.Body.String(); body != "[]" {
		t.Fatalf("expected empty array, got %s", body)
	}
}
