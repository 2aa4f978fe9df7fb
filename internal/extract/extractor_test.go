package extract

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeOCR struct {
	text     string
	err      error
	mimeType string
	calls    int
}

func (f *fakeOCR) Recognize(ctx context.Context, data []byte, mimeType string) (string, error) {
	f.calls++
	f.mimeType = mimeType
	return f.text, f.err
}

func TestIsSupported(t *testing.T) {
	for _, ft := range []string{"pdf", "PDF", ".png", "jpg", "jpeg", "bmp", "tiff"} {
		require.True(t, IsSupported(ft), ft)
	}
	for _, ft := range []string{"", "exe", "docx", "gif", "tif"} {
		require.False(t, IsSupported(ft), ft)
	}
}

func TestExtractImageUsesOCR(t *testing.T) {
	ocr := &fakeOCR{text: "  handwritten notes \n"}
	e := New(ocr)
	require.Equal(t, "handwritten notes", e.Extract(context.Background(), []byte{1, 2, 3}, "JPG"))
	require.Equal(t, "image/jpeg", ocr.mimeType)
	require.Equal(t, 1, ocr.calls)
}

func TestExtractFailuresGiveEmpty(t *testing.T) {
	ctx := context.Background()
	ocr := &fakeOCR{err: errors.New("ocr down")}
	e := New(ocr)
	require.Equal(t, "", e.Extract(ctx, []byte{1}, "png"))
	require.Equal(t, "", e.Extract(ctx, []byte("not a pdf at all"), "pdf"))
	require.Equal(t, "", e.Extract(ctx, nil, "pdf"))
	require.Equal(t, "", e.Extract(ctx, []byte("MZ"), "exe"))
	require.Equal(t, 1, ocr.calls)

	require.Equal(t, "", New(nil).Extract(ctx, []byte{1}, "png"))
}

func TestExtractTruncatedPDFDoesNotPanic(t *testing.T) {
	data := []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF")
	require.NotPanics(t, func() {
		require.Equal(t, "", New(nil).Extract(context.Background(), data, "pdf"))
	})
}

func TestHTTPOCR(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/ocr/extract", r.URL.Path)
		file, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		data, _ := io.ReadAll(file)
		require.Equal(t, []byte("img"), data)
		require.Equal(t, "image.png", hdr.Filename)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "text": "recognized"})
	}))
	defer srv.Close()

	ocr := NewHTTPOCR(srv.URL, time.Second)
	text, err := ocr.Recognize(context.Background(), []byte("img"), "image/png")
	require.NoError(t, err)
	require.Equal(t, "recognized", text)
}

func TestHTTPOCRFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"success": false, "error": "blurry"})
	}))
	defer srv.Close()

	_, err := NewHTTPOCR(srv.URL, time.Second).Recognize(context.Background(), []byte("img"), "image/png")
	require.ErrorContains(t, err, "blurry")
}

func TestNewOCR(t *testing.T) {
	ocr, err := NewOCR("", nil)
	require.NoError(t, err)
	require.Nil(t, ocr)
	_, err = NewOCR("http", map[string]interface{}{})
	require.Error(t, err)
	_, err = NewOCR("tesseract", nil)
	require.Error(t, err)
	ocr, err = NewOCR("http", map[string]interface{}{"base_url": "http://localhost:8001"})
	require.NoError(t, err)
	require.NotNil(t, ocr)
}

// stallingOCR never answers on its own; it returns once ctx is done.
type stallingOCR struct{}

func (stallingOCR) Recognize(ctx context.Context, data []byte, mimeType string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestExtractStalledOCRDegradesAfterTimeout(t *testing.T) {
	e := New(stallingOCR{}, WithOCRTimeout(50*time.Millisecond))
	done := make(chan string, 1)
	go func() {
		done <- e.Extract(context.Background(), []byte{1}, "png")
	}()
	select {
	case text := <-done:
		require.Equal(t, "", text)
	case <-time.After(5 * time.Second):
		t.Fatal("extract did not return after the ocr timeout")
	}
}

func TestExtractDefaultOCRTimeout(t *testing.T) {
	require.Equal(t, DefaultOCRTimeout, New(nil).ocrTimeout)
	require.Equal(t, DefaultOCRTimeout, New(nil, WithOCRTimeout(0)).ocrTimeout)
	require.Equal(t, time.Second, New(nil, WithOCRTimeout(time.Second)).ocrTimeout)
}

func TestGeminiOCRConfig(t *testing.T) {
	_, err := NewOCR("gemini", map[string]interface{}{})
	require.Error(t, err)

	ocr, err := NewOCR("gemini", map[string]interface{}{"api_key": "k"})
	require.NoError(t, err)
	g, ok := ocr.(*geminiOCR)
	require.True(t, ok)
	require.NotNil(t, g.client)
	require.Equal(t, defaultGeminiOCRModel, g.model)
	require.Equal(t, 120*time.Second, g.timeout)

	ocr, err = NewOCR("gemini", map[string]interface{}{"api_key": "k", "model": "m", "timeout": 5})
	require.NoError(t, err)
	g = ocr.(*geminiOCR)
	require.Equal(t, "m", g.model)
	require.Equal(t, 5*time.Second, g.timeout)
}
