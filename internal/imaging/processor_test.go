// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

// createTestImage creates a simple test image with the given dimensions.
func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	return img
}

func encodeTestJPEG(t *testing.T, width, height int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, createTestImage(width, height), nil); err != nil {
		t.Fatalf("encode test image: %v", err)
	}
	return buf.Bytes()
}

func TestProcessResizesLargeImage(t *testing.T) {
	p := NewProcessor()

	web, thumb, err := p.Process(bytes.NewReader(encodeTestJPEG(t, 3200, 1600)))
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	if web.Width != defaultMaxWidth {
		t.Errorf("web width = %d, want %d", web.Width, defaultMaxWidth)
	}
	if thumb.Width != defaultThumbWidth {
		t.Errorf("thumb width = %d, want %d", thumb.Width, defaultThumbWidth)
	}
	if web.Format != "jpeg" || web.MimeType != "image/jpeg" {
		t.Errorf("web format = %q mime = %q, want jpeg", web.Format, web.MimeType)
	}
	if len(web.Data) == 0 || len(thumb.Data) == 0 {
		t.Error("expected non-empty encoded variants")
	}
}

func TestProcessKeepsSmallImageSize(t *testing.T) {
	p := NewProcessor()

	web, _, err := p.Process(bytes.NewReader(encodeTestJPEG(t, 320, 200)))
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	if web.Width != 320 || web.Height != 200 {
		t.Errorf("web dimensions = %dx%d, want 320x200", web.Width, web.Height)
	}
}

func TestProcessPreservesPNGFormat(t *testing.T) {
	p := NewProcessor()

	var buf bytes.Buffer
	if err := png.Encode(&buf, createTestImage(100, 100)); err != nil {
		t.Fatalf("encode test png: %v", err)
	}

	web, _, err := p.Process(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if web.Format != "png" {
		t.Errorf("web format = %q, want png", web.Format)
	}
}

func TestProcessRejectsNonImage(t *testing.T) {
	p := NewProcessor()

	if _, _, err := p.Process(bytes.NewReader([]byte("not an image at all"))); err == nil {
		t.Error("expected error for non-image data")
	}
}

func TestProcessorIsImage(t *testing.T) {
	p := NewProcessor()

	tests := []struct {
		mimeType string
		want     bool
	}{
		{"image/jpeg", true},
		{"image/png", true},
		{"image/gif", true},
		{"image/webp", true},
		{"application/pdf", false},
		{"application/octet-stream", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.mimeType, func(t *testing.T) {
			if got := p.IsImage(tt.mimeType); got != tt.want {
				t.Errorf("IsImage(%q) = %v, want %v", tt.mimeType, got, tt.want)
			}
		})
	}
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"jpeg magic bytes", []byte{0xFF, 0xD8, 0xFF, 0xE0}, "jpeg"},
		{"png magic bytes", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, "png"},
		{"gif magic bytes", []byte{0x47, 0x49, 0x46, 0x38, 0x39, 0x61}, "gif"},
		{"unknown", []byte{0x00, 0x01, 0x02, 0x03}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := detectFormat(tt.data); got != tt.want {
				t.Errorf("detectFormat() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestApplyOrientation(t *testing.T) {
	// A 2x1 image swaps dimensions under 90° rotations.
	img := createTestImage(2, 1)

	tests := []struct {
		orientation int
		wantW       int
		wantH       int
	}{
		{1, 2, 1},
		{2, 2, 1},
		{3, 2, 1},
		{4, 2, 1},
		{5, 1, 2},
		{6, 1, 2},
		{7, 1, 2},
		{8, 1, 2},
		{0, 2, 1},
	}

	for _, tt := range tests {
		got := applyOrientation(img, tt.orientation)
		b := got.Bounds()
		if b.Dx() != tt.wantW || b.Dy() != tt.wantH {
			t.Errorf("orientation %d: dimensions = %dx%d, want %dx%d",
				tt.orientation, b.Dx(), b.Dy(), tt.wantW, tt.wantH)
		}
	}
}

func TestExt(t *testing.T) {
	tests := []struct {
		format string
		want   string
	}{
		{"jpeg", ".jpg"},
		{"png", ".png"},
		{"gif", ".gif"},
		{"webp", ".jpg"},
		{"", ".jpg"},
	}

	for _, tt := range tests {
		if got := Ext(tt.format); got != tt.want {
			t.Errorf("Ext(%q) = %q, want %q", tt.format, got, tt.want)
		}
	}
}
