package issuer

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentity_SignAndVerify(t *testing.T) {
	id, err := NewIdentity()
	require.NoError(t, err)

	data := []byte("announcement payload")
	sig, err := id.Sign(data)
	require.NoError(t, err)

	ok, err := VerifyAnnouncementSignature(id.PublicKeyHex(), data, sig)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyAnnouncementSignature(id.PublicKeyHex(), []byte("tampered payload"), sig)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIdentity_SignIsRepeatable(t *testing.T) {
	id, err := NewIdentity()
	require.NoError(t, err)

	// The enclave survives repeated signing calls.
	for i := 0; i < 3; i++ {
		sig, err := id.Sign([]byte("payload"))
		require.NoError(t, err)
		ok, err := VerifyAnnouncementSignature(id.PublicKeyHex(), []byte("payload"), sig)
		require.NoError(t, err)
		assert.True(t, ok)
	}
}

func TestKeyfile_SaveAndLoad(t *testing.T) {
	id, err := NewIdentity()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "issuer.key")
	require.NoError(t, id.Save(path, "correct horse battery staple"))

	loaded, err := Load(path, "correct horse battery staple")
	require.NoError(t, err)
	assert.Equal(t, id.PublicKeyHex(), loaded.PublicKeyHex())

	sig, err := loaded.Sign([]byte("payload"))
	require.NoError(t, err)
	ok, err := VerifyAnnouncementSignature(id.PublicKeyHex(), []byte("payload"), sig)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestKeyfile_WrongPassphrase(t *testing.T) {
	id, err := NewIdentity()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "issuer.key")
	require.NoError(t, id.Save(path, "right"))

	_, err = Load(path, "wrong")
	require.Error(t, err)
}

func TestVerifyAnnouncementSignature_BadKey(t *testing.T) {
	_, err := VerifyAnnouncementSignature("not-hex", []byte("x"), []byte("y"))
	require.Error(t, err)

	_, err = VerifyAnnouncementSignature("abcd", []byte("x"), []byte("y"))
	require.Error(t, err)
}
