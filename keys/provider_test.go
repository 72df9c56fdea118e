package keys

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func TestParsePrivateKey_PKCS1(t *testing.T) {
	key := generateKey(t)

	parsed, err := ParsePrivateKey(EncodePrivateKey(key))
	require.NoError(t, err)
	assert.True(t, key.Equal(parsed))
}

func TestParsePrivateKey_PKCS8(t *testing.T) {
	key := generateKey(t)
	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)

	parsed, err := ParsePrivateKey(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}))
	require.NoError(t, err)
	assert.True(t, key.Equal(parsed))
}

func TestParsePrivateKey_Malformed(t *testing.T) {
	_, err := ParsePrivateKey([]byte("not a key"))
	assert.Error(t, err)

	_, err = ParsePrivateKey(pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: []byte{1, 2, 3}}))
	assert.Error(t, err)

	_, err = ParsePrivateKey(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: []byte{1}}))
	assert.Error(t, err)
}

func TestParsePublicKey_RoundTrip(t *testing.T) {
	key := generateKey(t)
	pub, err := EncodePublicKey(&key.PublicKey)
	require.NoError(t, err)

	parsed, err := ParsePublicKey(pub)
	require.NoError(t, err)
	assert.True(t, key.PublicKey.Equal(parsed))
}

func TestFileProvider(t *testing.T) {
	dir := t.TempDir()
	key := generateKey(t)
	pub, err := EncodePublicKey(&key.PublicKey)
	require.NoError(t, err)

	privPath := filepath.Join(dir, "private.pem")
	pubPath := filepath.Join(dir, "public.pem")
	require.NoError(t, os.WriteFile(privPath, EncodePrivateKey(key), 0o600))
	require.NoError(t, os.WriteFile(pubPath, pub, 0o644))

	p := FileProvider{PrivatePath: privPath, PublicPath: pubPath}

	gotPriv, err := p.PrivateKeyPEM()
	require.NoError(t, err)
	assert.Equal(t, EncodePrivateKey(key), gotPriv)

	gotPub, err := p.PublicKeyPEM()
	require.NoError(t, err)
	assert.Equal(t, pub, gotPub)

	_, err = FileProvider{PrivatePath: filepath.Join(dir, "missing.pem")}.PrivateKeyPEM()
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestStaticProvider_Empty(t *testing.T) {
	_, err := StaticProvider{}.PrivateKeyPEM()
	assert.Error(t, err)
	_, err = StaticProvider{}.PublicKeyPEM()
	assert.Error(t, err)
}
