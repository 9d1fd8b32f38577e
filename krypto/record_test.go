package krypto_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hussein-Mazeh/atlas/krypto"
)

func TestRecordBinaryForm(t *testing.T) {
	key := newKey(t)
	rec, err := krypto.AESGCM{}.Seal([]byte("note body"), key)
	require.NoError(t, err)

	data, err := rec.MarshalBinary()
	require.NoError(t, err)

	var decoded krypto.EncryptedRecord
	require.NoError(t, decoded.UnmarshalBinary(data))
	assert.Equal(t, rec, decoded)

	got, err := krypto.AESGCM{}.Open(decoded, key)
	require.NoError(t, err)
	assert.Equal(t, "note body", string(got))
}

func TestRecordBinaryRejectsMalformedInput(t *testing.T) {
	rec, err := krypto.AESGCM{}.Seal([]byte("x"), newKey(t))
	require.NoError(t, err)
	data, err := rec.MarshalBinary()
	require.NoError(t, err)

	cases := map[string][]byte{
		"empty":     nil,
		"bad magic": append([]byte{0x00}, data[1:]...),
		"truncated": data[:len(data)-1],
		"trailing":  append(append([]byte{}, data...), 0x01),
		"header":    data[:3],
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			var out krypto.EncryptedRecord
			assert.ErrorIs(t, out.UnmarshalBinary(in), krypto.ErrMalformedRecord)
		})
	}
}

func TestRecordJSONFieldNames(t *testing.T) {
	rec := krypto.EncryptedRecord{
		SchemaVersion: krypto.VersionAESGCM,
		Nonce:         make([]byte, krypto.NonceSize),
		Tag:           make([]byte, krypto.TagSize),
		Ciphertext:    []byte("abc"),
	}
	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))
	assert.ElementsMatch(t, []string{"v", "nonce", "tag", "ciphertext"}, keys(fields))
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
