// Package pass renders the housing-pass image sent after confirmation: a
// Code 128 barcode of the registration number composed onto the printed card
// template.
package pass

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/code128"
)

// Barcode placement on the card template, measured on the print artwork.
const (
	barcodeLeft   = 157
	barcodeTop    = 1064
	barcodeWidth  = 1308
	barcodeHeight = 275
)

// Fallback card dimensions when no template image is configured.
const (
	fallbackWidth  = 1622
	fallbackHeight = 550
	fallbackMargin = 157
)

// Renderer produces the pass image for a registration.
type Renderer interface {
	Render(registrationNo string) ([]byte, error)
}

// ImageRenderer composes the barcode onto a PNG card template. When the
// template cannot be read a plain white card is used so delivery never blocks
// on a missing asset.
type ImageRenderer struct {
	templatePath string
}

func NewImageRenderer(templatePath string) *ImageRenderer {
	return &ImageRenderer{templatePath: templatePath}
}

func (r *ImageRenderer) Render(registrationNo string) ([]byte, error) {
	if registrationNo == "" {
		return nil, fmt.Errorf("empty registration number")
	}

	code, err := code128.Encode(registrationNo)
	if err != nil {
		return nil, fmt.Errorf("encode barcode for %s: %w", registrationNo, err)
	}

	card, area := r.loadCard()
	scaled, err := barcode.Scale(code, area.Dx(), area.Dy())
	if err != nil {
		return nil, fmt.Errorf("scale barcode for %s: %w", registrationNo, err)
	}
	draw.Draw(card, area, scaled, image.Point{}, draw.Over)

	var buf bytes.Buffer
	if err := png.Encode(&buf, card); err != nil {
		return nil, fmt.Errorf("encode pass image: %w", err)
	}
	return buf.Bytes(), nil
}

// loadCard returns a drawable copy of the template and the barcode rectangle
// within it.
func (r *ImageRenderer) loadCard() (draw.Image, image.Rectangle) {
	if tmpl := r.loadTemplate(); tmpl != nil {
		card := image.NewRGBA(tmpl.Bounds())
		draw.Draw(card, card.Bounds(), tmpl, tmpl.Bounds().Min, draw.Src)
		return card, image.Rect(barcodeLeft, barcodeTop, barcodeLeft+barcodeWidth, barcodeTop+barcodeHeight)
	}

	card := image.NewRGBA(image.Rect(0, 0, fallbackWidth, fallbackHeight))
	draw.Draw(card, card.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	return card, image.Rect(fallbackMargin, fallbackMargin,
		fallbackWidth-fallbackMargin, fallbackHeight-fallbackMargin)
}

func (r *ImageRenderer) loadTemplate() image.Image {
	if r.templatePath == "" {
		return nil
	}
	f, err := os.Open(r.templatePath)
	if err != nil {
		return nil
	}
	defer f.Close()

	tmpl, err := png.Decode(f)
	if err != nil {
		return nil
	}
	return tmpl
}
