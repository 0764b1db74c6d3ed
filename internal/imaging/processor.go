// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package imaging normalizes uploaded post images: it decodes them,
// applies the EXIF orientation, scales them down to a web-friendly size
// and re-encodes without metadata.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/webp" // WebP decoder
)

// Result is a processed image ready for storage.
type Result struct {
	Data     []byte
	Width    int
	Height   int
	Format   string
	MimeType string
}

// Processor converts uploaded images into display and thumbnail variants.
type Processor struct {
	maxWidth   int
	thumbWidth int
	quality    int
}

const (
	defaultMaxWidth   = 1600
	defaultThumbWidth = 400
	defaultQuality    = 85
)

// NewProcessor creates a processor with the default size limits.
func NewProcessor() *Processor {
	return &Processor{
		maxWidth:   defaultMaxWidth,
		thumbWidth: defaultThumbWidth,
		quality:    defaultQuality,
	}
}

// Process reads an uploaded image and returns the web-size variant and a
// thumbnail. Images already smaller than the limits are re-encoded as-is,
// which also strips EXIF metadata (pure Go encoders don't preserve it).
func (p *Processor) Process(reader io.Reader) (web, thumb *Result, err error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read image data: %w", err)
	}

	format := detectFormat(data)
	if format == "" {
		return nil, nil, fmt.Errorf("unsupported image format")
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode image: %w", err)
	}

	orientation := readExifOrientation(bytes.NewReader(data))
	img = applyOrientation(img, orientation)

	web, err = p.encodeVariant(img, format, p.maxWidth)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode image: %w", err)
	}

	thumb, err = p.encodeVariant(img, format, p.thumbWidth)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}

	return web, thumb, nil
}

// DetectMimeType detects the MIME type of image data.
func (p *Processor) DetectMimeType(data []byte) string {
	contentType := http.DetectContentType(data)
	if idx := strings.Index(contentType, ";"); idx != -1 {
		contentType = contentType[:idx]
	}
	return contentType
}

// IsImage reports whether a MIME type is one the processor can handle.
func (p *Processor) IsImage(mimeType string) bool {
	switch mimeType {
	case "image/jpeg", "image/png", "image/gif", "image/webp":
		return true
	default:
		return false
	}
}

// encodeVariant scales img to fit within maxWidth and encodes it.
func (p *Processor) encodeVariant(img image.Image, format string, maxWidth int) (*Result, error) {
	bounds := img.Bounds()
	if bounds.Dx() > maxWidth {
		img = imaging.Fit(img, maxWidth, maxWidth*4, imaging.Lanczos)
		bounds = img.Bounds()
	}

	encoded, outFormat, err := encodeImage(img, format, p.quality)
	if err != nil {
		return nil, err
	}

	return &Result{
		Data:     encoded,
		Width:    bounds.Dx(),
		Height:   bounds.Dy(),
		Format:   outFormat,
		MimeType: formatToMimeType(outFormat),
	}, nil
}

// readExifOrientation reads the EXIF orientation tag from image data.
// Returns 1 (normal) if orientation cannot be determined.
func readExifOrientation(r io.Reader) int {
	x, err := exif.Decode(r)
	if err != nil {
		return 1
	}

	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}

	orientation, err := tag.Int(0)
	if err != nil {
		return 1
	}

	return orientation
}

// applyOrientation applies EXIF orientation transformation to an image.
// Orientation values:
// 1: Normal
// 2: Flip horizontal
// 3: Rotate 180°
// 4: Flip vertical
// 5: Rotate 90° CW + flip horizontal
// 6: Rotate 90° CW
// 7: Rotate 90° CCW + flip horizontal
// 8: Rotate 90° CCW
func applyOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.FlipH(imaging.Rotate270(img))
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.FlipH(imaging.Rotate90(img))
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}

// encodeImage encodes an image with the specified format and quality.
// WebP input is re-encoded as JPEG since pure Go has no WebP encoder;
// the returned format reflects the actual encoding used.
func encodeImage(img image.Image, format string, quality int) ([]byte, string, error) {
	var buf bytes.Buffer

	switch format {
	case "png":
		if err := png.Encode(&buf, img); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "png", nil
	case "gif":
		if err := gif.Encode(&buf, img, nil); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "gif", nil
	default:
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "jpeg", nil
	}
}

// detectFormat detects the image format from raw bytes.
func detectFormat(data []byte) string {
	contentType := http.DetectContentType(data)
	// Explicitly reject TIFF (CVE-2023-36308 in disintegration/imaging)
	if strings.Contains(contentType, "tiff") {
		return ""
	}
	switch {
	case strings.Contains(contentType, "jpeg"):
		return "jpeg"
	case strings.Contains(contentType, "png"):
		return "png"
	case strings.Contains(contentType, "gif"):
		return "gif"
	case strings.Contains(contentType, "webp"):
		return "webp"
	default:
		return ""
	}
}

// formatToMimeType converts format string to MIME type.
func formatToMimeType(format string) string {
	switch format {
	case "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	default:
		return "application/octet-stream"
	}
}

// Ext returns the canonical file extension for an encoded format.
func Ext(format string) string {
	switch format {
	case "png":
		return ".png"
	case "gif":
		return ".gif"
	default:
		return ".jpg"
	}
}
