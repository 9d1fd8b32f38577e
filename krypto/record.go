package krypto

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
)

const recordMagic byte = 0xA7

// ErrMalformedRecord reports a serialized record that cannot be parsed.
var ErrMalformedRecord = errors.New("malformed encrypted record")

// EncryptedRecord is the sealed form of one sensitive field.
// Records are values: any content change produces a new record.
type EncryptedRecord struct {
	SchemaVersion string `json:"v,omitempty"`
	Nonce         []byte `json:"nonce"`
	Tag           []byte `json:"tag"`
	Ciphertext    []byte `json:"ciphertext"`
}

// Clone returns a deep copy, so callers can keep a record while mutating another.
func (r EncryptedRecord) Clone() EncryptedRecord {
	return EncryptedRecord{
		SchemaVersion: r.SchemaVersion,
		Nonce:         bytes.Clone(r.Nonce),
		Tag:           bytes.Clone(r.Tag),
		Ciphertext:    bytes.Clone(r.Ciphertext),
	}
}

// MarshalBinary encodes the record as
//
//	magic(1) | len(v) u16 | v | len(nonce) u16 | nonce | len(tag) u16 | tag | len(ct) u32 | ct
func (r EncryptedRecord) MarshalBinary() ([]byte, error) {
	if len(r.SchemaVersion) > math.MaxUint16 || len(r.Nonce) > math.MaxUint16 || len(r.Tag) > math.MaxUint16 {
		return nil, ErrMalformedRecord
	}
	if uint64(len(r.Ciphertext)) > math.MaxUint32 {
		return nil, ErrMalformedRecord
	}

	out := make([]byte, 0, 1+2+len(r.SchemaVersion)+2+len(r.Nonce)+2+len(r.Tag)+4+len(r.Ciphertext))
	out = append(out, recordMagic)
	out = binary.BigEndian.AppendUint16(out, uint16(len(r.SchemaVersion)))
	out = append(out, r.SchemaVersion...)
	out = binary.BigEndian.AppendUint16(out, uint16(len(r.Nonce)))
	out = append(out, r.Nonce...)
	out = binary.BigEndian.AppendUint16(out, uint16(len(r.Tag)))
	out = append(out, r.Tag...)
	out = binary.BigEndian.AppendUint32(out, uint32(len(r.Ciphertext)))
	out = append(out, r.Ciphertext...)
	return out, nil
}

// UnmarshalBinary decodes the MarshalBinary form. Trailing bytes are rejected.
func (r *EncryptedRecord) UnmarshalBinary(data []byte) error {
	if len(data) < 1 || data[0] != recordMagic {
		return ErrMalformedRecord
	}
	rd := recordReader{buf: data[1:]}

	version := rd.next16()
	nonce := rd.next16()
	tag := rd.next16()
	ct := rd.next32()
	if rd.err || len(rd.buf) != 0 {
		return ErrMalformedRecord
	}

	*r = EncryptedRecord{
		SchemaVersion: string(version),
		Nonce:         bytes.Clone(nonce),
		Tag:           bytes.Clone(tag),
		Ciphertext:    bytes.Clone(ct),
	}
	if r.Ciphertext == nil {
		r.Ciphertext = []byte{}
	}
	return nil
}

type recordReader struct {
	buf []byte
	err bool
}

func (rd *recordReader) next16() []byte {
	if rd.err || len(rd.buf) < 2 {
		rd.err = true
		return nil
	}
	n := int(binary.BigEndian.Uint16(rd.buf))
	return rd.take(2, n)
}

func (rd *recordReader) next32() []byte {
	if rd.err || len(rd.buf) < 4 {
		rd.err = true
		return nil
	}
	n := binary.BigEndian.Uint32(rd.buf)
	if uint64(n) > uint64(len(rd.buf)-4) {
		rd.err = true
		return nil
	}
	return rd.take(4, int(n))
}

func (rd *recordReader) take(prefix, n int) []byte {
	if len(rd.buf)-prefix < n {
		rd.err = true
		return nil
	}
	field := rd.buf[prefix : prefix+n]
	rd.buf = rd.buf[prefix+n:]
	return field
}
