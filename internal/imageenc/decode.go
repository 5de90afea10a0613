// Package imageenc normalizes the heterogeneous image encodings observed in
// rows coming back from the remote store: raw bytes, bare base64, full data
// URLs, and hex-wrapped JSON byte maps written by older clients.
package imageenc

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"
)

// Kind tags a decode outcome.
type Kind int

const (
	// Raw means Bytes holds the image payload.
	Raw Kind = iota
	// DataURL means URL holds a ready-to-render data URL.
	DataURL
	// Undecodable means no matcher recognized the payload. Callers render
	// "no image available"; this is never an error.
	Undecodable
)

func (k Kind) String() string {
	switch k {
	case Raw:
		return "raw"
	case DataURL:
		return "data-url"
	default:
		return "undecodable"
	}
}

// Decoded is the tagged result of decoding a stored image payload.
type Decoded struct {
	Kind  Kind
	Bytes []byte
	URL   string
}

var (
	jpegMagic = []byte{0xFF, 0xD8, 0xFF}
	pngMagic  = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1A, '\n'}
)

type matcher func(payload []byte) (Decoded, bool)

// Matchers run in order; the first match wins.
var matchers = []matcher{
	matchDataURL,
	matchBareBase64,
	matchHexWrappedJSON,
	matchRawImage,
}

// Decode detects the encoding of a stored image payload and normalizes it.
// It never fails: unrecognized payloads come back tagged Undecodable.
func Decode(payload []byte) Decoded {
	if len(payload) == 0 {
		return Decoded{Kind: Undecodable}
	}
	for _, m := range matchers {
		if d, ok := m(payload); ok {
			return d
		}
	}
	return Decoded{Kind: Undecodable}
}

func matchDataURL(payload []byte) (Decoded, bool) {
	if !bytes.HasPrefix(payload, []byte("data:")) {
		return Decoded{}, false
	}
	return Decoded{Kind: DataURL, URL: string(payload)}, true
}

// matchBareBase64 recognizes base64 without a data URL prefix by the encoded
// magic of JPEG ("/9j/") and PNG ("iVBOR") payloads.
func matchBareBase64(payload []byte) (Decoded, bool) {
	s := string(payload)
	if !strings.HasPrefix(s, "/9j/") && !strings.HasPrefix(s, "iVBOR") {
		return Decoded{}, false
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return Decoded{Kind: Undecodable}, true
	}
	return Decoded{Kind: Raw, Bytes: raw}, true
}

// matchHexWrappedJSON handles the legacy bytea escape form: a "\x…" hex string
// that decodes to a JSON object mapping byte indexes to byte values.
func matchHexWrappedJSON(payload []byte) (Decoded, bool) {
	s := string(payload)
	if !strings.HasPrefix(s, `\x`) {
		return Decoded{}, false
	}
	hexString := strings.ReplaceAll(s, `\x`, "")
	decoded, err := hex.DecodeString(hexString)
	if err != nil {
		return Decoded{Kind: Undecodable}, true
	}

	var byteMap map[string]int
	if err := json.Unmarshal(decoded, &byteMap); err != nil {
		// Some rows carry the image bytes directly rather than a byte map.
		if isImageMagic(decoded) {
			return Decoded{Kind: Raw, Bytes: decoded}, true
		}
		return Decoded{Kind: Undecodable}, true
	}

	raw := make([]byte, len(byteMap))
	for key, value := range byteMap {
		idx, err := strconv.Atoi(key)
		if err != nil || idx < 0 || idx >= len(raw) || value < 0 || value > 255 {
			return Decoded{Kind: Undecodable}, true
		}
		raw[idx] = byte(value)
	}
	return Decoded{Kind: Raw, Bytes: raw}, true
}

func matchRawImage(payload []byte) (Decoded, bool) {
	if !isImageMagic(payload) {
		return Decoded{}, false
	}
	return Decoded{Kind: Raw, Bytes: payload}, true
}

func isImageMagic(b []byte) bool {
	return bytes.HasPrefix(b, jpegMagic) || bytes.HasPrefix(b, pngMagic)
}
