package services

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCleanText(t *testing.T) {
	in := "  Jane Doe \r\n\n\n\nSenior\x00 Engineer\x07\n\n  Go, Python  "
	assert.Equal(t, "Jane Doe\n\nSenior Engineer\n\nGo, Python", CleanText(in))
}

func TestExtractPlainText(t *testing.T) {
	ex := NewTextExtractor("", nil, zap.NewNop())

	text, err := ex.Extract(context.Background(), "cv.txt", []byte("Python developer\n\n\n"))
	require.NoError(t, err)
	assert.Equal(t, "Python developer", text)

	_, err = ex.Extract(context.Background(), "empty.md", []byte("  \n "))
	assert.ErrorIs(t, err, ErrNoText)
}

func TestExtractUnsupportedWithoutTika(t *testing.T) {
	ex := NewTextExtractor("", nil, zap.NewNop())

	_, err := ex.Extract(context.Background(), "cv.docx", []byte("PK..."))
	assert.ErrorIs(t, err, ErrUnsupportedFile)
}

func TestExtractWithTika(t *testing.T) {
	var gotMethod, gotAccept, gotType string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotAccept = r.Header.Get("Accept")
		gotType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		_, _ = w.Write([]byte("Extracted by Tika\n"))
	}))
	defer srv.Close()

	ex := NewTextExtractor(srv.URL, srv.Client(), zap.NewNop())
	text, err := ex.Extract(context.Background(), "cv.docx", []byte("docx-bytes"))
	require.NoError(t, err)

	assert.Equal(t, "Extracted by Tika", text)
	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "text/plain", gotAccept)
	assert.Contains(t, gotType, "wordprocessingml")
	assert.Equal(t, "docx-bytes", string(gotBody))
}

func TestExtractBrokenPDFFallsBackToTika(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ocr text"))
	}))
	defer srv.Close()

	ex := NewTextExtractor(srv.URL, srv.Client(), zap.NewNop())
	text, err := ex.Extract(context.Background(), "scan.pdf", []byte("not really a pdf"))
	require.NoError(t, err)
	assert.Equal(t, "ocr text", text)
}

func TestExtractTikaRejectsFormat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnsupportedMediaType)
	}))
	defer srv.Close()

	ex := NewTextExtractor(srv.URL, srv.Client(), zap.NewNop())
	_, err := ex.Extract(context.Background(), "image.xyz", []byte("??"))
	assert.ErrorIs(t, err, ErrUnsupportedFile)
}
