package pipeline

// streaming.go provides reader wrappers that clean up uploaded CSV bytes
// before parsing:
//
//   - BOMSkippingReader: removes the UTF-8 BOM (0xEF 0xBB 0xBF) that
//     Windows tools prepend to exports
//   - SanitizingReader: replaces invalid UTF-8 sequences with '?'
//   - CountingReader: tracks bytes read
//
// WrapInput applies all three in the required order.

import (
	"io"
	"unicode/utf8"
)

// SanitizingReader wraps an io.Reader and replaces invalid UTF-8 sequences
// with '?' on the fly, so the CSV parser only ever sees valid text.
type SanitizingReader struct {
	reader io.Reader

	// Leftover bytes from the previous read that may form a multi-byte
	// sequence continuing into the next chunk.
	pending []byte
}

// NewSanitizingReader creates a streaming UTF-8 sanitizer over r.
func NewSanitizingReader(r io.Reader) *SanitizingReader {
	return &SanitizingReader{
		reader:  r,
		pending: make([]byte, 0, utf8.UTFMax),
	}
}

// Read implements io.Reader, sanitizing invalid UTF-8 in place.
func (s *SanitizingReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	offset := 0
	if len(s.pending) > 0 {
		offset = copy(p, s.pending)
		s.pending = s.pending[:0]
	}

	n, err := s.reader.Read(p[offset:])
	n += offset

	if n == 0 {
		return 0, err
	}

	// Fast path: most export data is plain ASCII.
	if isAllASCII(p[:n]) {
		return n, err
	}

	sanitized := s.sanitize(p[:n], err == io.EOF)
	return sanitized, err
}

// isAllASCII returns true if all bytes are ASCII (< 128).
func isAllASCII(data []byte) bool {
	for _, b := range data {
		if b >= 0x80 {
			return false
		}
	}
	return true
}

// sanitize rewrites data in place, replacing invalid sequences with '?'
// and returning the number of usable bytes. When not at EOF, an incomplete
// trailing sequence is carried over to the next read instead of being
// flagged invalid.
func (s *SanitizingReader) sanitize(data []byte, atEOF bool) int {
	if utf8.Valid(data) {
		if !atEOF {
			if trailing := incompleteTrailingBytes(data); trailing > 0 {
				s.pending = append(s.pending, data[len(data)-trailing:]...)
				return len(data) - trailing
			}
		}
		return len(data)
	}

	write := 0
	for read := 0; read < len(data); {
		r, size := utf8.DecodeRune(data[read:])

		if !atEOF && read+size >= len(data) && isIncompleteRune(data[read:]) {
			s.pending = append(s.pending, data[read:]...)
			return write
		}

		if r == utf8.RuneError && size == 1 {
			// '?' keeps the output the same length; the three-byte
			// replacement character would expand the buffer mid-stream.
			data[write] = '?'
			write++
			read++
		} else {
			copy(data[write:], data[read:read+size])
			write += size
			read += size
		}
	}

	return write
}

// incompleteTrailingBytes returns how many bytes at the end of data could
// be the start of a multi-byte UTF-8 sequence that continues in the next
// chunk.
func incompleteTrailingBytes(data []byte) int {
	if len(data) == 0 {
		return 0
	}

	for i := 1; i <= 3 && i <= len(data); i++ {
		b := data[len(data)-i]
		if b >= 0xC0 {
			if i < runeLen(b) {
				return i
			}
			return 0
		}
		if b&0xC0 != 0x80 {
			return 0
		}
	}
	return 0
}

// runeLen returns the expected length of a UTF-8 sequence starting with b.
func runeLen(b byte) int {
	switch {
	case b < 0x80:
		return 1
	case b < 0xC0:
		return 0 // continuation byte
	case b < 0xE0:
		return 2
	case b < 0xF0:
		return 3
	default:
		return 4
	}
}

// isIncompleteRune returns true if data could be a truncated multi-byte
// sequence.
func isIncompleteRune(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	return runeLen(data[0]) > len(data)
}

// BOMSkippingReader wraps an io.Reader and drops a leading UTF-8 BOM if
// present.
type BOMSkippingReader struct {
	reader     io.Reader
	bomChecked bool
	buf        [3]byte
	bufData    []byte
	bufOffset  int
}

// NewBOMSkippingReader creates a new BOM-skipping reader over r.
func NewBOMSkippingReader(r io.Reader) *BOMSkippingReader {
	return &BOMSkippingReader{reader: r}
}

// Read implements io.Reader. The first call inspects the leading bytes for
// a BOM and either drops or preserves them.
func (r *BOMSkippingReader) Read(p []byte) (int, error) {
	if !r.bomChecked {
		r.bomChecked = true

		n, err := io.ReadFull(r.reader, r.buf[:])
		if n == 0 {
			return 0, err
		}

		if n >= 3 && r.buf[0] == 0xEF && r.buf[1] == 0xBB && r.buf[2] == 0xBF {
			r.bufData = nil
		} else {
			r.bufData = r.buf[:n]
			r.bufOffset = 0
		}

		if err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		if err != nil && err != io.EOF {
			return 0, err
		}

		if len(r.bufData) > 0 {
			copied := copy(p, r.bufData[r.bufOffset:])
			r.bufOffset += copied
			if r.bufOffset >= len(r.bufData) {
				r.bufData = nil
			}
			if copied < len(p) && err != io.EOF {
				n, err2 := r.reader.Read(p[copied:])
				return copied + n, err2
			}
			return copied, err
		}
	}

	if len(r.bufData) > r.bufOffset {
		copied := copy(p, r.bufData[r.bufOffset:])
		r.bufOffset += copied
		if r.bufOffset >= len(r.bufData) {
			r.bufData = nil
		}
		return copied, nil
	}

	return r.reader.Read(p)
}

// CountingReader wraps an io.Reader to track bytes consumed by the parser.
type CountingReader struct {
	reader    io.Reader
	BytesRead int64
	Total     int64 // 0 if unknown
}

// NewCountingReader creates a counting reader with an optional total size.
func NewCountingReader(r io.Reader, total int64) *CountingReader {
	return &CountingReader{reader: r, Total: total}
}

// Read implements io.Reader.
func (r *CountingReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.BytesRead += int64(n)
	return n, err
}

// WrapInput wraps an upload for parsing: BOM stripping first, then UTF-8
// sanitization, then byte counting.
func WrapInput(r io.Reader, totalSize int64) *CountingReader {
	bomReader := NewBOMSkippingReader(r)
	sanitized := NewSanitizingReader(bomReader)
	return NewCountingReader(sanitized, totalSize)
}
