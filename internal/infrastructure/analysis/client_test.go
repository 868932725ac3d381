package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/avolkov/docvault/internal/core/domain"
)

func TestAnalyzeAndPersist(t *testing.T) {
	var gotFileName, gotFileType, gotUserID, gotClassify string
	var gotData []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/functions/v1/analyze-document" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		gotFileType = r.FormValue("file_type")
		gotUserID = r.FormValue("user_id")
		gotClassify = r.FormValue("classify")

		file, header, err := r.FormFile("file")
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()
		gotFileName = header.Filename
		gotData, _ = io.ReadAll(file)

		_ = json.NewEncoder(w).Encode(map[string]domain.CachedDocument{
			"document": {
				ID:               "remote-doc",
				FileName:         header.Filename,
				ExtractedText:    "extracted",
				ProcessingStatus: domain.ProcessingCompleted,
			},
		})
	}))
	defer server.Close()

	doc, err := New(server.URL, "token").AnalyzeAndPersist(context.Background(), domain.AnalyzeRequest{
		FileName: "a.txt",
		FileType: "text/plain",
		Data:     []byte("hello"),
		UserID:   "user-1",
		Classify: true,
	})
	if err != nil {
		t.Fatalf("AnalyzeAndPersist: %v", err)
	}
	if doc.ID != "remote-doc" || doc.ExtractedText != "extracted" {
		t.Errorf("doc = %+v", doc)
	}
	if gotFileName != "a.txt" || gotFileType != "text/plain" || gotUserID != "user-1" || gotClassify != "true" {
		t.Errorf("form = %s %s %s %s", gotFileName, gotFileType, gotUserID, gotClassify)
	}
	if string(gotData) != "hello" {
		t.Errorf("file bytes = %q", gotData)
	}
}

func TestAnalyzeAndPersistStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := New(server.URL, "").AnalyzeAndPersist(context.Background(), domain.AnalyzeRequest{
		FileName: "a.txt",
		Data:     []byte("x"),
	})
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusBadGateway {
		t.Errorf("err = %v, want StatusError 502", err)
	}
}

func TestAnalyzeAndPersistMissingDocument(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"document": map[string]any{}})
	}))
	defer server.Close()

	_, err := New(server.URL, "").AnalyzeAndPersist(context.Background(), domain.AnalyzeRequest{
		FileName: "a.txt",
		Data:     []byte("x"),
	})
	if err == nil {
		t.Fatal("expected error when backend returns no document id")
	}
}
