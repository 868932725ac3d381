package restapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/avolkov/docvault/internal/core/domain"
)

func TestInsert(t *testing.T) {
	var gotPath, gotKey, gotAuth string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("Idempotency-Key")
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "remote-1"})
	}))
	defer server.Close()

	client := New(server.URL, "token-1")
	id, err := client.Insert(context.Background(), "documents", json.RawMessage(`{"file_name":"a.txt"}`), "key-1")
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if id != "remote-1" {
		t.Errorf("id = %q", id)
	}
	if gotPath != "/rest/v1/documents" {
		t.Errorf("path = %q", gotPath)
	}
	if gotKey != "key-1" {
		t.Errorf("idempotency key = %q", gotKey)
	}
	if gotAuth != "Bearer token-1" {
		t.Errorf("authorization = %q", gotAuth)
	}
	if gotBody["file_name"] != "a.txt" {
		t.Errorf("body = %v", gotBody)
	}
}

func TestInsertWithoutID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{})
	}))
	defer server.Close()

	_, err := New(server.URL, "").Insert(context.Background(), "documents", json.RawMessage(`{}`), "")
	if err == nil {
		t.Fatal("expected error when remote returns no id")
	}
}

func TestUpdateAndDelete(t *testing.T) {
	var methods, paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		methods = append(methods, r.Method)
		paths = append(paths, r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := New(server.URL, "")
	if err := client.Update(context.Background(), "documents", "doc-1", json.RawMessage(`{"is_favorite":true}`)); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := client.Delete(context.Background(), "documents", "doc-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if methods[0] != http.MethodPatch || paths[0] != "/rest/v1/documents/doc-1" {
		t.Errorf("update call = %s %s", methods[0], paths[0])
	}
	if methods[1] != http.MethodDelete || paths[1] != "/rest/v1/documents/doc-1" {
		t.Errorf("delete call = %s %s", methods[1], paths[1])
	}
}

func TestFetchDocument(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/v1/documents/doc-1" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(domain.CachedDocument{
			ID:       "doc-1",
			FileName: "a.txt",
		})
	}))
	defer server.Close()

	doc, err := New(server.URL, "").FetchDocument(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("FetchDocument: %v", err)
	}
	if doc.ID != "doc-1" || doc.FileName != "a.txt" {
		t.Errorf("doc = %+v", doc)
	}
}

func TestNotFoundMapsToDomainError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := New(server.URL, "").FetchDocument(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestServerErrorWrapsTemporary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	err := New(server.URL, "").Health(context.Background())
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Errorf("err = %v, want ErrTemporary", err)
	}

	var statusErr *HTTPStatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status error not preserved: %v", err)
	}
}

func TestHealth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/healthz" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	if err := New(server.URL, "").Health(context.Background()); err != nil {
		t.Errorf("Health: %v", err)
	}
}
