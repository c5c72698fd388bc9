package display

import (
	"encoding/base64"
	"fmt"
	"io"
)

const (
	escapeStart = "\x1b_G"
	escapeEnd   = "\x1b\\"
	chunkSize   = 4096
)

// KittyEncoder writes PNG data using the kitty graphics protocol.
type KittyEncoder struct {
	out     io.Writer
	columns int
}

// NewKittyEncoder scales images to columns terminal cells wide; zero keeps
// the native size.
func NewKittyEncoder(out io.Writer, columns int) *KittyEncoder {
	return &KittyEncoder{out: out, columns: columns}
}

func (e *KittyEncoder) Encode(data []byte) error {
	if len(data) == 0 {
		return nil
	}

	encoded := base64.StdEncoding.EncodeToString(data)
	chunks := splitIntoChunks(encoded, chunkSize)

	for i, chunk := range chunks {
		if _, err := fmt.Fprintf(e.out, "%s%s;%s%s", escapeStart, e.params(i, len(chunks)), chunk, escapeEnd); err != nil {
			return err
		}
	}
	return nil
}

func (e *KittyEncoder) params(index, total int) string {
	var p string
	if index == 0 {
		p = "a=T,f=100,q=2"
		if e.columns > 0 {
			p += fmt.Sprintf(",c=%d", e.columns)
		}
		if total > 1 {
			p += ",m=1"
		}
		return p
	}
	if index == total-1 {
		return "m=0"
	}
	return "m=1"
}

func splitIntoChunks(s string, size int) []string {
	var chunks []string
	for len(s) > 0 {
		if len(s) < size {
			size = len(s)
		}
		chunks = append(chunks, s[:size])
		s = s[size:]
	}
	return chunks
}
