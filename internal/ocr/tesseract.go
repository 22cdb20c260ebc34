// Package ocr implements documents.Recognizer with Tesseract via gosseract
package ocr

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// Tesseract recognizes text with a fresh gosseract client per call
type Tesseract struct {
	languages     []string
	clientFactory func() *gosseract.Client
}

// NewTesseract constructs a recognizer for the given languages, e.g. "eng"
func NewTesseract(languages ...string) *Tesseract {
	return &Tesseract{
		languages:     languages,
		clientFactory: gosseract.NewClient,
	}
}

// Recognize returns the text found in image. An image without text yields
// an empty string and no error
func (t *Tesseract) Recognize(ctx context.Context, image []byte) (string, error) {
	if len(image) == 0 {
		return "", errors.New("empty image")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	c := t.clientFactory()
	defer c.Close()

	if len(t.languages) > 0 {
		if err := c.SetLanguage(t.languages...); err != nil {
			return "", fmt.Errorf("set languages: %w", err)
		}
	}
	if err := c.SetImageFromBytes(image); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}

	text, err := c.Text()
	if err != nil {
		return "", fmt.Errorf("recognize text: %w", err)
	}
	return strings.TrimSpace(text), nil
}
