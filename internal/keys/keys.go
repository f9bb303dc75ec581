// Package keys manages the ed25519 key pair that signs update manifests
// and the trust bundle shipped with packaged applications.
//
// The private key stays with the release builder and is never part of a
// built artifact; the public key is embedded into the application at
// packaging time. Keys and signatures travel as unpadded base64.
package keys

import (
	"bytes"
	"compress/gzip"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrInvalidSignature is returned when a signature does not verify
	// against the expected public key.
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrNoSignature is returned when a document that must be signed
	// carries no signature at all.
	ErrNoSignature = errors.New("no signature")
)

// Pair is an ed25519 signing key pair.
type Pair struct {
	Public  ed25519.PublicKey
	Private ed25519.PrivateKey
}

// Generate creates a new random key pair.
func Generate() (*Pair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key pair: %w", err)
	}
	return &Pair{Public: pub, Private: priv}, nil
}

// Sign signs data with the private key and returns the unpadded base64
// signature.
func (p *Pair) Sign(data []byte) string {
	return base64.RawStdEncoding.EncodeToString(ed25519.Sign(p.Private, data))
}

// PublicString returns the public key in its transport encoding.
func (p *Pair) PublicString() string {
	return EncodePublic(p.Public)
}

// EncodePublic encodes a public key as unpadded base64.
func EncodePublic(pub ed25519.PublicKey) string {
	return base64.RawStdEncoding.EncodeToString(pub)
}

// DecodePublic decodes a base64 public key, tolerating padded input.
func DecodePublic(s string) (ed25519.PublicKey, error) {
	raw, err := base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
	if err != nil {
		return nil, fmt.Errorf("undecodable public key: %w", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("public key is %d bytes, want %d", len(raw), ed25519.PublicKeySize)
	}
	return ed25519.PublicKey(raw), nil
}

// Verify checks a base64 signature over data against pub. It fails closed:
// an empty signature, an undecodable signature and a signature from the
// wrong key are all reported the same way.
func Verify(pub ed25519.PublicKey, data []byte, signature string) error {
	if signature == "" {
		return ErrNoSignature
	}
	raw, err := base64.RawStdEncoding.DecodeString(strings.TrimRight(signature, "="))
	if err != nil {
		return fmt.Errorf("%w: undecodable", ErrInvalidSignature)
	}
	if !ed25519.Verify(pub, data, raw) {
		return ErrInvalidSignature
	}
	return nil
}

const (
	privateKeyFile = "molt.key"
	publicKeyFile  = "molt.pub"
)

// Save writes the pair under dir: the private key with owner-only
// permissions, the public key world-readable.
func (p *Pair) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create key directory: %w", err)
	}

	priv := base64.RawStdEncoding.EncodeToString(p.Private)
	if err := os.WriteFile(filepath.Join(dir, privateKeyFile), []byte(priv+"\n"), 0o600); err != nil {
		return fmt.Errorf("failed to write private key: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, publicKeyFile), []byte(p.PublicString()+"\n"), 0o644); err != nil {
		return fmt.Errorf("failed to write public key: %w", err)
	}
	return nil
}

// Exists reports whether dir already holds a private key.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, privateKeyFile))
	return err == nil
}

// Load reads a pair previously written by Save.
func Load(dir string) (*Pair, error) {
	data, err := os.ReadFile(filepath.Join(dir, privateKeyFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read private key: %w", err)
	}

	raw, err := base64.RawStdEncoding.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("undecodable private key: %w", err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("private key is %d bytes, want %d", len(raw), ed25519.PrivateKeySize)
	}

	priv := ed25519.PrivateKey(raw)
	return &Pair{Public: priv.Public().(ed25519.PublicKey), Private: priv}, nil
}

// Bundle is the trust document shipped alongside a release repository
// ("keys.gz"). Clients consume only the embedded public key; the bundle
// signature exists for release-side defense in depth and is not part of
// the client's own verification.
type Bundle struct {
	AppPublic string `json:"app_public"`
	Signature string `json:"signature"`
}

// NewBundle builds a signed trust bundle for the pair.
func NewBundle(p *Pair) Bundle {
	b := Bundle{AppPublic: p.PublicString()}
	b.Signature = p.Sign(b.signedBytes())
	return b
}

// signedBytes is the canonical serialization of everything except the
// signature field.
func (b Bundle) signedBytes() []byte {
	body, _ := json.Marshal(map[string]string{"app_public": b.AppPublic})
	return body
}

// Encode serializes the bundle to its gzip-compressed wire form.
func (b Bundle) Encode() ([]byte, error) {
	body, err := json.Marshal(b)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(body); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeBundle parses a gzip-compressed trust bundle.
func DecodeBundle(data []byte) (Bundle, error) {
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return Bundle{}, fmt.Errorf("trust bundle is not gzip data: %w", err)
	}
	defer gz.Close()

	body, err := io.ReadAll(gz)
	if err != nil {
		return Bundle{}, fmt.Errorf("failed to decompress trust bundle: %w", err)
	}

	var b Bundle
	if err := json.Unmarshal(body, &b); err != nil {
		return Bundle{}, fmt.Errorf("failed to parse trust bundle: %w", err)
	}
	return b, nil
}
