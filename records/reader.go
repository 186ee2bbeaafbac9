package records

import (
	"encoding/binary"
	"io"

	"github.com/mkobetic/stls/primitives"
)

// Reader extracts payload from properly formed TLS records: explicit
// IV/nonce, bulk decryption, padding and MAC are processed according to
// the configured cipher spec.
type Reader struct {
	reader      io.Reader       // source of TLS records
	buffer      []byte          // holds the entire TLS record
	record      []byte          // frames the entire TLS record (including the header)
	unread      []byte          // frames the unread part of the payload
	box         *CipherBox      // deciphers incoming sealed records
	mac         *MAC            // verifies incoming record digests
	Version     ProtocolVersion // expected record version
	ContentType ContentType     // expected record content type
}

// NewReader creates a Reader that decodes content framed in TLS records.
// The buffer argument enables external buffer management to minimize
// large allocations. It must be large enough to accommodate a maximum
// size record, otherwise the Reader will not be created. If buffer is nil
// a new buffer is allocated.
func NewReader(reader io.Reader, buffer []byte) *Reader {
	if buffer == nil {
		buffer = make([]byte, MaxBufferSize)
	} else if len(buffer) > MaxBufferSize {
		// Make sure buffer does not exceed maximum record length
		buffer = buffer[:MaxBufferSize]
	} else if len(buffer) < MaxBufferSize {
		// buffer must be large enough to fit a largest legal size record
		return nil
	}
	r := &Reader{reader: reader, buffer: buffer, ContentType: Handshake}
	r.SetCipher(NULL_NULL, SSL30, nil, nil, nil, nil)
	return r
}

// Read fills p with payload of the expected content type.
func (r *Reader) Read(p []byte) (n int, err error) {
	n = copy(p, r.unread)
	r.unread = r.unread[n:]
	p = p[n:]
	for len(p) > 0 {
		err = r.readRecord()
		if err != nil {
			return n, err
		}
		m := copy(p, r.unread)
		r.unread = r.unread[m:]
		p = p[m:]
		n += m
	}
	return n, nil
}

func (r *Reader) readRecord() error {
	header := r.record[:HeaderSize]
	if _, err := io.ReadFull(r.reader, header); err != nil {
		return err
	}
	if r.Version != TLSXX && r.recordVersion() != r.Version {
		return ErrWrongRecordVersion
	}
	if r.recordContentType() != r.ContentType {
		return ErrUnexpectedRecordContentType
	}
	length := int(binary.BigEndian.Uint16(header[3:5]))
	if length > MaxCiphertextLength {
		return ErrRecordTooLarge
	}
	body := r.record[HeaderSize:][:length]
	if _, err := io.ReadFull(r.reader, body); err != nil {
		return err
	}

	nonceSize, err := r.box.ApplyExplicitNonce(r.mac, r.ContentType, body)
	if err != nil {
		return err
	}
	plain, err := r.box.Decrypt(body, r.mac.MACLen())
	if err != nil {
		return err
	}
	content := plain[nonceSize:]
	if macLen := r.mac.MACLen(); macLen > 0 {
		if len(content) < macLen {
			return ErrBadRecordMAC
		}
		payload := content[:len(content)-macLen]
		digest := content[len(content)-macLen:]
		if err := r.mac.verify(r.ContentType, payload, digest); err != nil {
			return err
		}
		content = payload
	}
	if r.mac.SeqNumOverflow() {
		return ErrRecordSequenceNumberOverflow
	}
	r.unread = content
	return nil
}

// Close releases any associated resources.
func (r *Reader) Close() error {
	r.box.Close()
	r.mac.Close()
	if c, ok := r.reader.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// SetCipher reconfigures the Reader with the new security parameters.
// Subsequent Reads will process new records using the new parameters.
func (r *Reader) SetCipher(cs CipherSpec, v ProtocolVersion, key, iv, macKey []byte, random primitives.Random) error {
	if r.box != nil {
		r.box.Close()
		r.mac.Close()
	}
	box, err := NewCipherBox(v, cs.Bulk, key, iv, random, false)
	if err != nil {
		return err
	}
	r.box = box
	r.mac = NewMAC(cs.MAC, macKey, v)
	r.record = r.buffer
	r.unread = nil
	return nil
}

// recordVersion returns the version of the record being processed.
func (r *Reader) recordVersion() ProtocolVersion {
	return ProtocolVersion(r.record[1])<<8 | ProtocolVersion(r.record[2])
}

// recordContentType returns the content type of the record being processed.
func (r *Reader) recordContentType() ContentType {
	return ContentType(r.record[0])
}
