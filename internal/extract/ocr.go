package extract

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

type OCRFactory func(args interface{}) (OCR, error)

var (
	ocrMu       sync.RWMutex
	ocrRegistry = map[string]OCRFactory{}
)

func RegisterOCR(name string, factory OCRFactory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	ocrMu.Lock()
	ocrRegistry[key] = factory
	ocrMu.Unlock()
}

// NewOCR returns nil, nil when kind is empty so images just extract to "".
func NewOCR(kind string, args interface{}) (OCR, error) {
	key := strings.ToLower(strings.TrimSpace(kind))
	if key == "" {
		return nil, nil
	}
	ocrMu.RLock()
	factory := ocrRegistry[key]
	ocrMu.RUnlock()
	if factory == nil {
		return nil, fmt.Errorf("unsupported ocr type: %s", kind)
	}
	return factory(args)
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return nil
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode ocr config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode ocr config: %w", err)
	}
	return nil
}
