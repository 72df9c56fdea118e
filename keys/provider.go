// Package keys supplies the actor's PEM key material. Generation and rotation
// happen elsewhere; this package only reads what it is given.
package keys

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
)

// Provider hands out PEM encoded key material on demand.
type Provider interface {
	PrivateKeyPEM() ([]byte, error)
	PublicKeyPEM() ([]byte, error)
}

// FileProvider reads keys from disk on every call so nothing lingers in memory.
type FileProvider struct {
	PrivatePath string
	PublicPath  string
}

func (p FileProvider) PrivateKeyPEM() ([]byte, error) {
	b, err := os.ReadFile(p.PrivatePath)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	return b, nil
}

func (p FileProvider) PublicKeyPEM() ([]byte, error) {
	b, err := os.ReadFile(p.PublicPath)
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}
	return b, nil
}

// StaticProvider serves keys held in memory.
type StaticProvider struct {
	Private []byte
	Public  []byte
}

func (p StaticProvider) PrivateKeyPEM() ([]byte, error) {
	if len(p.Private) == 0 {
		return nil, errors.New("no private key configured")
	}
	return p.Private, nil
}

func (p StaticProvider) PublicKeyPEM() ([]byte, error) {
	if len(p.Public) == 0 {
		return nil, errors.New("no public key configured")
	}
	return p.Public, nil
}

// ParsePrivateKey decodes a PKCS#1 or PKCS#8 RSA private key.
func ParsePrivateKey(pemData []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemData)
	if block == nil {
		return nil, errors.New("no PEM block found")
	}

	switch block.Type {
	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("unsupported key type %T", key)
		}
		return rsaKey, nil
	default:
		return nil, fmt.Errorf("unsupported PEM block %q", block.Type)
	}
}

// ParsePublicKey decodes a PKIX or PKCS#1 RSA public key.
func ParsePublicKey(pemData []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(pemData)
	if block == nil {
		return nil, errors.New("no PEM block found")
	}

	switch block.Type {
	case "RSA PUBLIC KEY":
		return x509.ParsePKCS1PublicKey(block.Bytes)
	case "PUBLIC KEY":
		key, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		rsaKey, ok := key.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("unsupported key type %T", key)
		}
		return rsaKey, nil
	default:
		return nil, fmt.Errorf("unsupported PEM block %q", block.Type)
	}
}

// EncodePrivateKey returns key as a PKCS#1 PEM block.
func EncodePrivateKey(key *rsa.PrivateKey) []byte {
	return pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
}

// EncodePublicKey returns key as a PKIX PEM block, the form Mastodon expects
// in publicKeyPem.
func EncodePublicKey(key *rsa.PublicKey) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(key)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), nil
}
