package krypto_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hussein-Mazeh/atlas/krypto"
)

func newKey(t *testing.T) *krypto.Key {
	t.Helper()
	key, err := krypto.NewRandomKey()
	require.NoError(t, err)
	t.Cleanup(key.Destroy)
	return key
}

func ciphers() map[string]krypto.Cipher {
	return map[string]krypto.Cipher{
		"aes-gcm":           krypto.AESGCM{},
		"chacha20-poly1305": krypto.ChaCha20Poly1305{},
	}
}

func TestSealOpenRoundTrip(t *testing.T) {
	inputs := [][]byte{
		{},
		[]byte("h"),
		[]byte("hello"),
		bytes.Repeat([]byte{0x00, 0xff}, 4096),
	}

	for name, c := range ciphers() {
		t.Run(name, func(t *testing.T) {
			key := newKey(t)
			for _, p := range inputs {
				rec, err := c.Seal(p, key)
				require.NoError(t, err)
				assert.Len(t, rec.Nonce, krypto.NonceSize)
				assert.Len(t, rec.Tag, krypto.TagSize)
				assert.Len(t, rec.Ciphertext, len(p), "ciphertext carries no padding")
				assert.Equal(t, c.Version(), rec.SchemaVersion)

				got, err := c.Open(rec, key)
				require.NoError(t, err)
				assert.True(t, bytes.Equal(p, got))
			}
		})
	}
}

func TestSealUsesFreshNonce(t *testing.T) {
	for name, c := range ciphers() {
		t.Run(name, func(t *testing.T) {
			key := newKey(t)
			a, err := c.Seal([]byte("same plaintext"), key)
			require.NoError(t, err)
			b, err := c.Seal([]byte("same plaintext"), key)
			require.NoError(t, err)

			assert.NotEqual(t, a.Nonce, b.Nonce)
			assert.NotEqual(t, a.Ciphertext, b.Ciphertext)
		})
	}
}

func TestOpenDetectsEveryBitFlip(t *testing.T) {
	for name, c := range ciphers() {
		t.Run(name, func(t *testing.T) {
			key := newKey(t)
			rec, err := c.Seal([]byte("journal entry"), key)
			require.NoError(t, err)

			fields := map[string]func(*krypto.EncryptedRecord) []byte{
				"ciphertext": func(r *krypto.EncryptedRecord) []byte { return r.Ciphertext },
				"nonce":      func(r *krypto.EncryptedRecord) []byte { return r.Nonce },
				"tag":        func(r *krypto.EncryptedRecord) []byte { return r.Tag },
			}
			for field, pick := range fields {
				for i := 0; i < len(pick(&rec))*8; i++ {
					tampered := rec.Clone()
					buf := pick(&tampered)
					buf[i/8] ^= 1 << (i % 8)

					got, err := c.Open(tampered, key)
					if !errors.Is(err, krypto.ErrAuthenticationFailed) {
						t.Fatalf("%s bit %d: expected authentication failure, got %v", field, i, err)
					}
					assert.Nil(t, got)
				}
			}
		})
	}
}

func TestOpenWithWrongKeyIsIndistinguishable(t *testing.T) {
	c := krypto.AESGCM{}
	rec, err := c.Seal([]byte("mood: fine"), newKey(t))
	require.NoError(t, err)

	_, err = c.Open(rec, newKey(t))
	assert.Equal(t, krypto.ErrAuthenticationFailed, err)

	short := rec.Clone()
	short.Nonce = short.Nonce[:4]
	_, err = c.Open(short, newKey(t))
	assert.Equal(t, krypto.ErrAuthenticationFailed, err)
}

func TestOpenRejectsRelabelledRecord(t *testing.T) {
	key := newKey(t)
	rec, err := krypto.AESGCM{}.Seal([]byte("task"), key)
	require.NoError(t, err)

	rec.SchemaVersion = krypto.VersionChaCha20Poly1305
	_, err = krypto.AESGCM{}.Open(rec, key)
	assert.ErrorIs(t, err, krypto.ErrAuthenticationFailed)

	rec.SchemaVersion = ""
	got, err := krypto.AESGCM{}.Open(rec, key)
	require.NoError(t, err)
	assert.Equal(t, "task", string(got))
}

func TestCipherFor(t *testing.T) {
	c, err := krypto.CipherFor("")
	require.NoError(t, err)
	assert.Equal(t, krypto.VersionAESGCM, c.Version())

	c, err = krypto.CipherFor("chacha")
	require.NoError(t, err)
	assert.Equal(t, krypto.VersionChaCha20Poly1305, c.Version())

	_, err = krypto.CipherFor("rot13")
	assert.Error(t, err)
}

func TestKeyFromBytes(t *testing.T) {
	raw := bytes.Repeat([]byte{7}, krypto.KeySize)
	key, err := krypto.KeyFromBytes(raw)
	require.NoError(t, err)
	defer key.Destroy()

	assert.Equal(t, make([]byte, krypto.KeySize), raw, "source bytes are wiped")
	assert.Equal(t, bytes.Repeat([]byte{7}, krypto.KeySize), key.Bytes())

	_, err = krypto.KeyFromBytes([]byte("short"))
	assert.ErrorIs(t, err, krypto.ErrInvalidKeyLength)
}

func TestKeyEqual(t *testing.T) {
	a := newKey(t)
	b := newKey(t)
	assert.True(t, a.Equal(a))
	assert.False(t, a.Equal(b))
	assert.False(t, a.Equal(nil))
}
