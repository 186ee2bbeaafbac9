package records

// addPadding appends TLS block-cipher padding to buf: padLen+1 bytes each
// holding the value padLen, bringing the total length to a multiple of
// blockSize. The TLS form of the padding is also valid for SSLv3.
func addPadding(buf []byte, blockSize int) []byte {
	newLen := len(buf) + 1
	if newLen%blockSize != 0 {
		newLen += blockSize - 1
		newLen -= newLen % blockSize
	}
	pad := byte(newLen - len(buf))
	for i := byte(0); i < pad; i++ {
		buf = append(buf, pad-1)
	}
	return buf
}

// checkPadding scans the padding and the padding-length byte in constant
// time. The scan always performs the same bounded number of accesses
// (257: the index runs from 0 through the bound 256) regardless of the
// padding value, restarting over the same bytes
// until the bound is reached, so the access pattern carries no
// information about where a mismatch occurred.
//
// The caller must ensure len(buf) > 0.
func checkPadding(buf []byte, pad byte) (missed, matched int) {
	_assert(len(buf) > 0, "padding len must be positive")
	for i := 0; i <= 256; {
		for j := 0; j < len(buf) && i <= 256; j, i = j+1, i+1 {
			if buf[j] != pad {
				missed++
			} else {
				matched++
			}
		}
	}
	return missed, matched
}

// removePadding returns the fragment length with the block-cipher padding
// stripped. tagLen is the record MAC size still contained in buf. The
// check runs in constant time; every failure is ErrBadRecordMAC.
//
// Typical TLS padding for a 64 bit block cipher:
//
//	xx xx xx xx xx xx xx 00
//	xx xx xx xx xx xx 01 01
//	...
//	07 07 07 07 07 07 07 07
//
// TLS also allows up to 256 bytes of padding as long as the total is a
// multiple of the block size. SSLv3 requires only the length byte to be
// less than the block size; the other padding bytes are arbitrary.
func removePadding(buf []byte, tagLen, blockSize int, version ProtocolVersion) (int, error) {
	// last byte is the length byte (actual padding length minus one)
	padLen := int(buf[len(buf)-1])

	newLen := len(buf) - (padLen + 1)
	if newLen < tagLen {
		// The buffer is too short to contain the claimed padding plus a
		// MAC tag. Run the same bounded dummy scan from the start of the
		// fragment anyway so the rejection takes as long as a real padding
		// check would.
		checkPadding(buf, byte(padLen))
		return 0, ErrBadRecordMAC
	}

	missed, _ := checkPadding(buf[newLen:], byte(padLen))
	if version >= TLS10 {
		if missed != 0 {
			return 0, ErrBadRecordMAC
		}
	} else {
		// SSLv3 requires 0 <= length byte < block size, but some
		// implementations use 1 <= length byte <= block size, so accept
		// that as well.
		if padLen > blockSize {
			return 0, ErrBadRecordMAC
		}
	}
	return newLen, nil
}
