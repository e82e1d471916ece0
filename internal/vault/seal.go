package vault

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/scrypt"

	"ledgerctl/internal/security"
)

// Archive layout:
//
//	magic[8] | N uint32 | r uint32 | p uint32 | salt[32] | nonce[12] | AES-256-GCM ciphertext
//
// Everything before the ciphertext is authenticated as additional data.
const (
	magic     = "LCVAULT1"
	keyLen    = 32
	saltLen   = 32
	nonceLen  = 12
	headerLen = len(magic) + 3*4 + saltLen + nonceLen

	// Bounds on header parameters so a corrupt archive cannot demand
	// an absurd amount of memory before authentication fails.
	maxScryptN  = 1 << 22
	maxScryptRP = 1 << 10
)

var errMalformed = errors.New("malformed archive")

// Params are the scrypt cost parameters.
type Params struct {
	N int
	R int
	P int
}

// DefaultParams are used when no configuration is given.
var DefaultParams = Params{N: 1 << 18, R: 8, P: 1}

func (p Params) valid() bool {
	return p.N > 1 && p.N <= maxScryptN && p.N&(p.N-1) == 0 &&
		p.R > 0 && p.R <= maxScryptRP && p.P > 0 && p.P <= maxScryptRP
}

type header struct {
	params Params
	salt   []byte
	nonce  []byte
	raw    []byte
}

func newHeader(p Params) (*header, error) {
	h := &header{
		params: p,
		salt:   make([]byte, saltLen),
		nonce:  make([]byte, nonceLen),
	}
	if _, err := io.ReadFull(rand.Reader, h.salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	if _, err := io.ReadFull(rand.Reader, h.nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(magic)
	for _, v := range []int{p.N, p.R, p.P} {
		binary.Write(&buf, binary.BigEndian, uint32(v))
	}
	buf.Write(h.salt)
	buf.Write(h.nonce)
	h.raw = buf.Bytes()
	return h, nil
}

func parseHeader(data []byte) (*header, []byte, error) {
	if len(data) < headerLen || string(data[:len(magic)]) != magic {
		return nil, nil, errMalformed
	}
	off := len(magic)
	word := func() int {
		v := binary.BigEndian.Uint32(data[off:])
		off += 4
		return int(v)
	}
	h := &header{}
	h.params = Params{N: word(), R: word(), P: word()}
	if !h.params.valid() {
		return nil, nil, fmt.Errorf("%w: scrypt parameters out of range", errMalformed)
	}
	h.salt = data[off : off+saltLen]
	off += saltLen
	h.nonce = data[off : off+nonceLen]
	off += nonceLen
	h.raw = data[:off]
	return h, data[off:], nil
}

func (h *header) aead(password []byte) (cipher.AEAD, error) {
	key, err := scrypt.Key(password, h.salt, h.params.N, h.params.R, h.params.P, keyLen)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}

	var gcm cipher.AEAD
	err = security.GuardedExec(key, func(k []byte) error {
		block, err := aes.NewCipher(k)
		if err != nil {
			return fmt.Errorf("create cipher: %w", err)
		}
		gcm, err = cipher.NewGCM(block)
		return err
	})
	return gcm, err
}

// seal encrypts plaintext and returns the complete archive bytes.
func seal(password, plaintext []byte, p Params) ([]byte, error) {
	h, err := newHeader(p)
	if err != nil {
		return nil, err
	}
	gcm, err := h.aead(password)
	if err != nil {
		return nil, err
	}
	return gcm.Seal(append([]byte(nil), h.raw...), h.nonce, plaintext, h.raw), nil
}

// open authenticates and decrypts archive bytes. Any failure, wrong
// password included, is reported as ErrWrongPasswordOrCorrupt.
func open(password, archive []byte) ([]byte, error) {
	h, ciphertext, err := parseHeader(archive)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWrongPasswordOrCorrupt, err)
	}
	gcm, err := h.aead(password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWrongPasswordOrCorrupt, err)
	}
	plaintext, err := gcm.Open(nil, h.nonce, ciphertext, h.raw)
	if err != nil {
		return nil, ErrWrongPasswordOrCorrupt
	}
	return plaintext, nil
}
