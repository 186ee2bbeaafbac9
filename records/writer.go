package records

import (
	"encoding/binary"
	"io"

	"github.com/mkobetic/stls/primitives"
)

type flusher interface {
	Flush() error
}

// Writer transforms written content into properly formed TLS records:
// MAC, padding, explicit IV/nonce and bulk encryption are applied
// according to the configured cipher spec. Records are flushed
// automatically when the content fills the configured buffer, or
// explicitly using the Flush method.
type Writer struct {
	writer  io.Writer // destination of written TLS records
	buffer  []byte    // holds the entire TLS record
	record  []byte    // frames the entire TLS record (including the header)
	content []byte    // frames the section of the record available for content
	free    []byte    // frames the section of content that is still free
	box     *CipherBox
	mac     *MAC
}

// NewWriter creates a Writer that frames written content using TLS record
// format. The buffer argument enables external buffer management, to
// minimize large allocations. It also controls the maximum size of TLS
// records that the writer produces. If buffer is nil a new buffer is
// allocated with default (maximum) record size.
func NewWriter(writer io.Writer, buffer []byte) *Writer {
	if buffer == nil {
		buffer = make([]byte, MaxBufferSize)
	} else if len(buffer) > MaxBufferSize {
		// Make sure buffer does not exceed maximum record length
		buffer = buffer[:MaxBufferSize]
	}
	w := &Writer{writer: writer, buffer: buffer}
	w.record = buffer
	w.SetVersion(SSL30)
	w.SetContentType(Handshake)
	w.SetCipher(NULL_NULL, SSL30, nil, nil, nil, nil)
	return w
}

// Write buffers b in the writer. If there is not enough room,
// records with older content will be flushed automatically
// into the underlying writer as necessary.
func (w *Writer) Write(b []byte) (int, error) {
	var err error
	flushed := 0
	copied := copy(w.free, b)
	b = b[copied:]
	w.free = w.free[copied:]
	for len(b) > 0 {
		err = w.Flush()
		if err != nil {
			break
		}
		flushed += copied
		copied = copy(w.free, b)
		b = b[copied:]
		w.free = w.free[copied:]
	}
	return flushed + copied, err
}

// Flush seals the buffered content into a record and emits it into the
// underlying writer.
func (w *Writer) Flush() error {
	length := len(w.content) - len(w.free)
	t := w.ContentType()

	nonce := w.box.CreateExplicitNonce(w.mac, t, length)
	copy(w.record[HeaderSize:], nonce)
	fragment := w.content[:length]
	if w.mac.MACLen() > 0 {
		digest := w.mac.compute(t, fragment)
		fragment = append(fragment, digest...)
	}

	var bodyLen int
	if w.box.IsAEADMode() {
		sealed, err := w.box.Encrypt(fragment)
		if err != nil {
			return err
		}
		bodyLen = len(nonce) + len(sealed)
	} else {
		// The explicit IV block of CBC suites is enciphered along with
		// the fragment.
		sealed, err := w.box.Encrypt(w.record[HeaderSize : HeaderSize+len(nonce)+len(fragment)])
		if err != nil {
			return err
		}
		bodyLen = len(sealed)
	}
	if w.mac.SeqNumOverflow() {
		return ErrRecordSequenceNumberOverflow
	}

	binary.BigEndian.PutUint16(w.record[3:5], uint16(bodyLen))
	if _, err := w.writer.Write(w.record[:HeaderSize+bodyLen]); err != nil {
		return err
	}
	if f, ok := w.writer.(flusher); ok {
		if err := f.Flush(); err != nil {
			return err
		}
	}
	w.free = w.content
	return nil
}

// Close flushes remaining buffered content and releases any associated
// resources.
func (w *Writer) Close() error {
	if !w.bufferEmpty() {
		if err := w.Flush(); err != nil {
			return err
		}
	}
	w.box.Close()
	w.mac.Close()
	if c, ok := w.writer.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Version returns current protocol version.
func (w *Writer) Version() ProtocolVersion {
	return ProtocolVersion(w.record[1])<<8 | ProtocolVersion(w.record[2])
}

// SetVersion sets current protocol version.
// If previous version is different any buffered content is flushed
// in a record of that version.
func (w *Writer) SetVersion(v ProtocolVersion) error {
	if w.Version() == v {
		return nil
	}
	if !w.bufferEmpty() {
		if err := w.Flush(); err != nil {
			return err
		}
	}
	w.record[1] = byte(v >> 8)
	w.record[2] = byte(v & 0xFF)
	return nil
}

// ContentType returns current record content type.
func (w *Writer) ContentType() ContentType {
	return ContentType(w.record[0])
}

// SetContentType sets current record content type.
// If previous type is different any buffered content is flushed
// in a record of that type.
func (w *Writer) SetContentType(t ContentType) error {
	if w.ContentType() == t {
		return nil
	}
	if !w.bufferEmpty() {
		if err := w.Flush(); err != nil {
			return err
		}
	}
	w.record[0] = byte(t)
	return nil
}

// SetCipher reconfigures the Writer with the new security parameters.
// If there is any previously buffered content, it is flushed in a record
// protected with the previous security parameters.
func (w *Writer) SetCipher(cs CipherSpec, v ProtocolVersion, key, iv, macKey []byte, random primitives.Random) error {
	if w.box != nil {
		if !w.bufferEmpty() {
			if err := w.Flush(); err != nil {
				return err
			}
		}
		w.box.Close()
		w.mac.Close()
	}
	box, err := NewCipherBox(v, cs.Bulk, key, iv, random, true)
	if err != nil {
		return err
	}
	w.box = box
	w.mac = NewMAC(cs.MAC, macKey, v)
	// Content starts after the header and the explicit IV/nonce of the
	// new cipher.
	contentStart := HeaderSize + box.ExplicitNonceSize()
	content := w.buffer[contentStart:]
	if max := w.maxPlaintextLength(); len(content) > max {
		content = content[:max]
	}
	w.content = content
	w.free = content
	return nil
}

func (w *Writer) bufferEmpty() bool {
	return len(w.free) == len(w.content)
}

func (w *Writer) maxPlaintextLength() int {
	// Leave room for the header, the largest explicit nonce, the mac and
	// the padding.
	max := len(w.buffer) - HeaderSize - MaxExplicitNonceSize - MinBufferTrailerSize
	if max < MaxPlaintextLength {
		return max
	}
	return MaxPlaintextLength
}
