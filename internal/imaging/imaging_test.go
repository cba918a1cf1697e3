package imaging

import (
	"bytes"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// tinyPNG is a 1x1 transparent PNG.
var tinyPNG = mustBase64("iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mP8z8BQDwAEhQGAhKmMIQAAAABJRU5ErkJggg==")

func mustBase64(s string) []byte {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}

func TestSniffMIME(t *testing.T) {
	webp := append([]byte("RIFF"), 0, 0, 0, 0)
	webp = append(webp, []byte("WEBP")...)

	cases := []struct {
		name string
		data []byte
		want string
	}{
		{"png", tinyPNG, "image/png"},
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10}, "image/jpeg"},
		{"webp", webp, "image/webp"},
		{"gif rejected", []byte("GIF89a"), ""},
		{"empty", nil, ""},
		{"riff but not webp", append([]byte("RIFF"), []byte("....WAVE")...), ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SniffMIME(tc.data); got != tc.want {
				t.Errorf("SniffMIME = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestProbePNG(t *testing.T) {
	w, h := probePNG(tinyPNG)
	if w != 1 || h != 1 {
		t.Errorf("probePNG = %dx%d, want 1x1", w, h)
	}
}

func TestProbeJPEG(t *testing.T) {
	// Minimal SOI + APP0 + SOF0 declaring 3x2 pixels.
	var b bytes.Buffer
	b.Write([]byte{0xFF, 0xD8})                                     // SOI
	b.Write([]byte{0xFF, 0xE0, 0x00, 0x04, 0x00, 0x00})             // APP0, len 4
	b.Write([]byte{0xFF, 0xC0, 0x00, 0x0B, 0x08, 0x00, 0x02, 0x00, // SOF0, height 2
		0x03, 0x01, 0x00}) // width 3
	w, h := probeJPEG(b.Bytes())
	if w != 3 || h != 2 {
		t.Errorf("probeJPEG = %dx%d, want 3x2", w, h)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "page001.png")
	if err := os.WriteFile(path, tinyPNG, 0o644); err != nil {
		t.Fatal(err)
	}

	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if p.MIMEType != "image/png" {
		t.Errorf("MIMEType = %q", p.MIMEType)
	}
	if p.Width != 1 || p.Height != 1 {
		t.Errorf("dimensions = %dx%d, want 1x1", p.Width, p.Height)
	}
}

func TestLoad_UnsupportedFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "page.txt")
	if err := os.WriteFile(path, []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for non-image file")
	}
}

func TestDataURI(t *testing.T) {
	p, err := FromBytes("x.png", tinyPNG)
	if err != nil {
		t.Fatal(err)
	}
	uri := p.DataURI()
	if !strings.HasPrefix(uri, "data:image/png;base64,") {
		t.Fatalf("unexpected prefix: %q", uri[:40])
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, "data:image/png;base64,"))
	if err != nil {
		t.Fatalf("payload not base64: %v", err)
	}
	if !bytes.Equal(decoded, tinyPNG) {
		t.Error("payload does not round-trip")
	}
}
