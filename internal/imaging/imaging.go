// Package imaging handles page image intake: MIME sniffing by magic bytes,
// dimension probing for png/jpeg, size budgets, and data-URI encoding for
// OpenAI-style payloads. Full image decoding is out of scope; the model
// consumes the encoded bytes as-is.
package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"os"

	"github.com/okibee/mangalens/internal/apperrors"
)

// MaxImageBytes caps page images. The vision APIs reject much smaller
// payloads than this in practice; the cap mainly guards against passing a
// wrong file by accident.
const MaxImageBytes = 20 * 1024 * 1024

// Page is a loaded page image ready to send.
type Page struct {
	Path     string
	Data     []byte
	MIMEType string
	// Width and Height are probed pixel dimensions, 0 when unknown
	// (webp probing is not implemented).
	Width  int
	Height int
}

// Load reads a page image file, sniffs its type and probes dimensions.
func Load(path string) (*Page, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat page image: %w", err)
	}
	if info.Size() > MaxImageBytes {
		return nil, apperrors.New(apperrors.KindBadRequest,
			fmt.Sprintf("page image exceeds %d MB limit", MaxImageBytes/(1024*1024)), nil)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read page image: %w", err)
	}
	return FromBytes(path, data)
}

// FromBytes builds a Page from in-memory image data.
func FromBytes(path string, data []byte) (*Page, error) {
	if len(data) > MaxImageBytes {
		return nil, apperrors.New(apperrors.KindBadRequest,
			fmt.Sprintf("page image exceeds %d MB limit", MaxImageBytes/(1024*1024)), nil)
	}
	mimeType := SniffMIME(data)
	if mimeType == "" {
		return nil, apperrors.New(apperrors.KindBadRequest,
			"unsupported image format (png, jpeg or webp required)", nil)
	}
	p := &Page{
		Path:     path,
		Data:     data,
		MIMEType: mimeType,
	}
	p.Width, p.Height = probeDimensions(data, mimeType)
	return p, nil
}

// DataURI returns the page as a base64 data URI for image_url payloads.
func (p *Page) DataURI() string {
	return "data:" + p.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(p.Data)
}

var (
	pngMagic  = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}
	jpegMagic = []byte{0xFF, 0xD8, 0xFF}
	riffMagic = []byte("RIFF")
	webpMagic = []byte("WEBP")
)

// SniffMIME identifies png/jpeg/webp by magic bytes. Returns "" for
// anything else.
func SniffMIME(data []byte) string {
	switch {
	case bytes.HasPrefix(data, pngMagic):
		return "image/png"
	case bytes.HasPrefix(data, jpegMagic):
		return "image/jpeg"
	case len(data) >= 12 && bytes.HasPrefix(data, riffMagic) && bytes.Equal(data[8:12], webpMagic):
		return "image/webp"
	}
	return ""
}

func probeDimensions(data []byte, mimeType string) (int, int) {
	switch mimeType {
	case "image/png":
		return probePNG(data)
	case "image/jpeg":
		return probeJPEG(data)
	}
	return 0, 0
}

// probePNG reads width/height from the IHDR chunk, which the PNG spec
// requires to come first.
func probePNG(data []byte) (int, int) {
	// 8 signature + 4 length + "IHDR" + 8 dimension bytes
	if len(data) < 24 {
		return 0, 0
	}
	if !bytes.Equal(data[12:16], []byte("IHDR")) {
		return 0, 0
	}
	w := int(be32(data[16:20]))
	h := int(be32(data[20:24]))
	return w, h
}

// probeJPEG walks the segment markers until a start-of-frame segment.
func probeJPEG(data []byte) (int, int) {
	i := 2 // skip SOI
	for i+9 < len(data) {
		if data[i] != 0xFF {
			return 0, 0
		}
		marker := data[i+1]
		// Standalone markers without a length field.
		if marker == 0xD8 || marker == 0x01 || (marker >= 0xD0 && marker <= 0xD7) {
			i += 2
			continue
		}
		length := int(data[i+2])<<8 | int(data[i+3])
		if length < 2 {
			return 0, 0
		}
		// SOF0..SOF15 except DHT(C4), JPG(C8), DAC(CC).
		if marker >= 0xC0 && marker <= 0xCF && marker != 0xC4 && marker != 0xC8 && marker != 0xCC {
			if i+9 > len(data) {
				return 0, 0
			}
			h := int(data[i+5])<<8 | int(data[i+6])
			w := int(data[i+7])<<8 | int(data[i+8])
			return w, h
		}
		i += 2 + length
	}
	return 0, 0
}

func be32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
