package main

import (
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hussein-Mazeh/atlas/internal/biometric"
	"github.com/Hussein-Mazeh/atlas/internal/settings"
	"github.com/Hussein-Mazeh/atlas/krypto"
)

func sampleRecord() krypto.EncryptedRecord {
	return krypto.EncryptedRecord{
		SchemaVersion: krypto.VersionAESGCM,
		Nonce:         make([]byte, krypto.NonceSize),
		Tag:           make([]byte, krypto.TagSize),
		Ciphertext:    []byte("hello"),
	}
}

func TestParseRecordJSON(t *testing.T) {
	want := sampleRecord()
	data, err := json.Marshal(want)
	require.NoError(t, err)

	got, err := parseRecord(append([]byte("  "), append(data, '\n')...))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestParseRecordBinary(t *testing.T) {
	want := sampleRecord()
	data, err := want.MarshalBinary()
	require.NoError(t, err)

	got, err := parseRecord([]byte(base64.StdEncoding.EncodeToString(data) + "\n"))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestParseRecordRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "not base64!", base64.StdEncoding.EncodeToString([]byte("short")), "{broken"} {
		_, err := parseRecord([]byte(in))
		assert.Error(t, err, "input %q", in)
	}
}

func TestReadInputJoinsArgs(t *testing.T) {
	got, err := readInput([]string{"call", "mum"})
	require.NoError(t, err)
	assert.Equal(t, "call mum", string(got))
}

func newSetCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "set"}
	cmd.Flags().AddFlagSet(settingsSetCmd.Flags())
	return cmd
}

func TestUpdateFromFlags(t *testing.T) {
	cmd := newSetCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--auto-lock", "2m", "--auth-on-open=true"}))

	u, err := updateFromFlags(cmd)
	require.NoError(t, err)
	require.NotNil(t, u.AutoLockTimeout)
	assert.Equal(t, 2*time.Minute, *u.AutoLockTimeout)
	require.NotNil(t, u.RequireAuthOnAppOpen)
	assert.True(t, *u.RequireAuthOnAppOpen)
	assert.Nil(t, u.RequireAuthForSensitiveData, "unset flags stay nil")
	assert.Nil(t, u.EncryptionEnabled)

	got, err := u.Apply(settings.Defaults())
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, got.AutoLockTimeout)
}

func TestNewLogger(t *testing.T) {
	_, err := newLogger("json", "debug")
	assert.NoError(t, err)
	_, err = newLogger("text", "warn")
	assert.NoError(t, err)
	_, err = newLogger("xml", "info")
	assert.Error(t, err)
	_, err = newLogger("text", "loud")
	assert.Error(t, err)
}

func TestSelectGate(t *testing.T) {
	a := &app{passcode: biometric.NewPasscode(settings.NewMemoryStore(), nil, krypto.DefaultArgon2Params())}

	g, err := a.selectGate("none")
	require.NoError(t, err)
	assert.IsType(t, biometric.Unavailable{}, g)

	g, err = a.selectGate("passcode")
	require.NoError(t, err)
	assert.Same(t, a.passcode, g)

	_, err = a.selectGate("retina")
	var uerr userError
	assert.ErrorAs(t, err, &uerr)
}

func TestHandleErrorIgnoresNil(t *testing.T) {
	handleError(nil)
}
