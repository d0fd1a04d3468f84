// Package crypto implements the pair cipher used to keep message content
// opaque at rest and on the wire. The shared key is derived non-interactively
// from the two user identifiers alone: both sides compute the same key
// locally and nothing key-shaped ever crosses the network. This is a
// deterministic hash construction over public identifiers, not a key
// exchange, and the contract is to keep it that way.
package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"
)

// Delimiter separates the hex IV from the base64 ciphertext on the wire.
// Its absence marks legacy/plaintext content that passes through untouched.
const Delimiter = ":QKD:"

const (
	seedSuffix = "qkd-seed-2024"
	keySuffix  = "final-key"
)

var (
	keyCacheMu sync.Mutex
	keyCache   = make(map[string][]byte)
)

// pairID returns the canonical order-independent form of an identifier pair.
func pairID(idA, idB string) string {
	ids := []string{idA, idB}
	sort.Strings(ids)
	return strings.Join(ids, "-")
}

// DeriveKey derives the 256-bit shared key for an identifier pair. The pair
// is canonicalized by lexicographic sort, so DeriveKey(a, b) == DeriveKey(b, a).
// Results are memoized per process; ClearKeyCache drops the memo.
func DeriveKey(idA, idB string) []byte {
	pair := pairID(idA, idB)

	keyCacheMu.Lock()
	defer keyCacheMu.Unlock()
	if key, ok := keyCache[pair]; ok {
		return key
	}

	seed := sha256.Sum256([]byte(pair + seedSuffix))
	seedHex := hex.EncodeToString(seed[:])
	final := sha256.Sum256([]byte(seedHex + pair + keySuffix))

	key := final[:]
	keyCache[pair] = key
	return key
}

// ClearKeyCache empties the per-process key memo.
func ClearKeyCache() {
	keyCacheMu.Lock()
	keyCache = make(map[string][]byte)
	keyCacheMu.Unlock()
}

// Encrypt encrypts text under the pair key with AES-256-CBC and a fresh
// random IV, serialized as hex(iv) + ":QKD:" + base64(ciphertext). Empty
// input is returned unchanged; so is the input on any internal failure, so
// callers never have to branch on an error.
func Encrypt(text, idA, idB string) string {
	if text == "" {
		return text
	}

	key := DeriveKey(idA, idB)
	block, err := aes.NewCipher(key)
	if err != nil {
		return text
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return text
	}

	padded := pkcs7Pad([]byte(text), aes.BlockSize)
	ct := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ct, padded)

	return hex.EncodeToString(iv) + Delimiter + base64.StdEncoding.EncodeToString(ct)
}

// Decrypt reverses Encrypt. Blobs without the delimiter are treated as
// legacy plaintext and returned unchanged. Any failure along the way (bad
// IV, bad base64, wrong key, invalid padding, non-UTF-8 or empty result)
// returns the original blob untouched so the caller's view stays renderable.
func Decrypt(blob, idA, idB string) string {
	if !strings.Contains(blob, Delimiter) {
		return blob
	}

	parts := strings.Split(blob, Delimiter)
	if len(parts) != 2 {
		return blob
	}

	iv, err := hex.DecodeString(parts[0])
	if err != nil || len(iv) != aes.BlockSize {
		return blob
	}
	ct, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil || len(ct) == 0 || len(ct)%aes.BlockSize != 0 {
		return blob
	}

	key := DeriveKey(idA, idB)
	block, err := aes.NewCipher(key)
	if err != nil {
		return blob
	}

	pt := make([]byte, len(ct))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(pt, ct)

	pt, ok := pkcs7Unpad(pt, aes.BlockSize)
	if !ok {
		return blob
	}
	if len(bytes.TrimSpace(pt)) == 0 || !utf8.Valid(pt) {
		return blob
	}
	return string(pt)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, bool) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, false
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, false
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, false
		}
	}
	return data[:len(data)-n], true
}
