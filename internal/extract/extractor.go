package extract

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

const (
	TypePDF  = "pdf"
	TypeJPG  = "jpg"
	TypeJPEG = "jpeg"
	TypePNG  = "png"
	TypeBMP  = "bmp"
	TypeTIFF = "tiff"
)

var imageMIMETypes = map[string]string{
	TypeJPG:  "image/jpeg",
	TypeJPEG: "image/jpeg",
	TypePNG:  "image/png",
	TypeBMP:  "image/bmp",
	TypeTIFF: "image/tiff",
}

// OCR turns an image into text.
type OCR interface {
	Recognize(ctx context.Context, data []byte, mimeType string) (string, error)
}

// IsSupported reports whether fileType (an extension without the dot) can be
// ingested.
func IsSupported(fileType string) bool {
	ft := normalizeType(fileType)
	if ft == TypePDF {
		return true
	}
	_, ok := imageMIMETypes[ft]
	return ok
}

func SupportedTypes() []string {
	return []string{TypePDF, TypeJPG, TypeJPEG, TypePNG, TypeBMP, TypeTIFF}
}

func MIMEType(fileType string) string {
	ft := normalizeType(fileType)
	if ft == TypePDF {
		return "application/pdf"
	}
	if mt, ok := imageMIMETypes[ft]; ok {
		return mt
	}
	return "application/octet-stream"
}

func normalizeType(fileType string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(fileType)), ".")
}

// DefaultOCRTimeout bounds a single image recognition call.
const DefaultOCRTimeout = 120 * time.Second

type Extractor struct {
	ocr        OCR
	ocrTimeout time.Duration
}

type Option func(*Extractor)

func WithOCRTimeout(d time.Duration) Option {
	return func(e *Extractor) {
		if d > 0 {
			e.ocrTimeout = d
		}
	}
}

// New builds an extractor. A nil ocr makes every image extract to "".
func New(ocr OCR, opts ...Option) *Extractor {
	e := &Extractor{ocr: ocr, ocrTimeout: DefaultOCRTimeout}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract never fails; anything that goes wrong is logged and gives "".
func (e *Extractor) Extract(ctx context.Context, data []byte, declaredType string) string {
	ft := normalizeType(declaredType)
	logger := logutil.GetLogger(ctx).With(zap.String("file_type", ft), zap.Int("size", len(data)))
	text, err := e.extract(ctx, data, ft)
	if err != nil {
		logger.Warn("text extraction failed", zap.Error(err))
		return ""
	}
	logger.Debug("text extracted", zap.Int("chars", len(text)))
	return text
}

func (e *Extractor) extract(ctx context.Context, data []byte, ft string) (string, error) {
	if ft == TypePDF {
		return extractPDF(data)
	}
	mimeType, ok := imageMIMETypes[ft]
	if !ok {
		return "", nil
	}
	if e.ocr == nil {
		return "", fmt.Errorf("ocr not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, e.ocrTimeout)
	defer cancel()
	text, err := e.ocr.Recognize(ctx, data, mimeType)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}
