package ocr

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/fedrates-cli/internal/resilience"
)

func TestNewPixelReader_NoKey(t *testing.T) {
	assert.Nil(t, NewPixelReader("", "any-model"))
}

func TestNewPixelReader_WithKey(t *testing.T) {
	r := NewPixelReader("test-key", "")
	require.NotNil(t, r)
	assert.IsType(t, &MistralOCR{}, r)
}

func TestPdfToText_BinPath(t *testing.T) {
	p := NewPdfToText("")
	assert.Equal(t, "pdftotext", p.binPath)

	p = NewPdfToText("/custom/pdftotext")
	assert.Equal(t, "/custom/pdftotext", p.binPath)
}

func TestPdfToText_BinaryNotFound(t *testing.T) {
	p := NewPdfToText("/nonexistent/pdftotext")
	_, err := p.ReadPages(context.Background(), "/tmp/test.pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pdftotext failed")
}

func TestPdfToText_SplitsPagesOnFormFeed(t *testing.T) {
	// Fake pdftotext emitting two pages separated by a form feed, with the
	// trailing form feed real pdftotext leaves at the end.
	tmpDir := t.TempDir()
	fakeBin := filepath.Join(tmpDir, "pdftotext")
	script := "#!/bin/sh\nprintf 'page one text\\fpage two text\\f'\n"
	require.NoError(t, os.WriteFile(fakeBin, []byte(script), 0755))

	p := NewPdfToText(fakeBin)
	pages, err := p.ReadPages(context.Background(), "/tmp/dummy.pdf")
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, 1, pages[0].Number)
	assert.Contains(t, pages[0].Text, "page one")
	assert.Equal(t, 2, pages[1].Number)
	assert.Contains(t, pages[1].Text, "page two")
}

func TestMistralOCR_DefaultModel(t *testing.T) {
	m := NewMistralOCR("key", "")
	assert.Equal(t, defaultMistralModel, m.model)
	assert.Equal(t, mistralOCREndpoint, m.endpoint)
}

func TestMistralOCR_ReadPages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req mistralOCRRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		assert.Equal(t, "document_url", req.Document.Type)
		assert.Contains(t, req.Document.DocumentURL, "data:application/pdf;base64,")

		resp := mistralOCRResponse{
			Pages: []mistralOCRPage{
				{Index: 0, Markdown: "Page one content"},
				{Index: 1, Markdown: "Page two content"},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp) //nolint:errcheck
	}))
	defer srv.Close()

	pdfPath := writeTempPDF(t)
	m := &MistralOCR{apiKey: "test-key", model: "test-model", endpoint: srv.URL, client: &http.Client{}}

	pages, err := m.ReadPages(context.Background(), pdfPath)
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, 1, pages[0].Number)
	assert.Equal(t, "Page one content", pages[0].Text)
	assert.Equal(t, 2, pages[1].Number)
}

func TestMistralOCR_RateLimitIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"rate limited"}`))
	}))
	defer srv.Close()

	m := &MistralOCR{apiKey: "key", model: "m", endpoint: srv.URL, client: &http.Client{}}
	_, err := m.ReadPages(context.Background(), writeTempPDF(t))
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
}

func TestMistralOCR_AuthErrorNotTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid api key"}`))
	}))
	defer srv.Close()

	m := &MistralOCR{apiKey: "bad-key", model: "m", endpoint: srv.URL, client: &http.Client{}}
	_, err := m.ReadPages(context.Background(), writeTempPDF(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mistral API returned 401")
	assert.False(t, resilience.IsTransient(err))
}

func TestMistralOCR_MalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{invalid json`))
	}))
	defer srv.Close()

	m := &MistralOCR{apiKey: "key", model: "m", endpoint: srv.URL, client: &http.Client{}}
	_, err := m.ReadPages(context.Background(), writeTempPDF(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal mistral response")
}

func TestMistralOCR_FileNotFound(t *testing.T) {
	m := NewMistralOCR("key", "model")
	_, err := m.ReadPages(context.Background(), "/nonexistent/file.pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read PDF")
}

func writeTempPDF(t *testing.T) string {
	t.Helper()
	pdfPath := filepath.Join(t.TempDir(), "test.pdf")
	require.NoError(t, os.WriteFile(pdfPath, []byte("%PDF-1.4 test content"), 0644))
	return pdfPath
}
