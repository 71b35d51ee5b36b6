package random

import (
	"crypto/rand"
	"math/big"
)

// CodeAlphabet avoids characters that are easy to confuse when read aloud.
const CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz23456789"

// Source generates random strings and can be replaced in tests.
type Source interface {
	String(length int, alphabet string) string
}

// Crypto implements Source using crypto/rand.
type Crypto struct{}

func New() *Crypto {
	return &Crypto{}
}

// String generates a random string of the given length from alphabet.
func (Crypto) String(length int, alphabet string) string {
	if length <= 0 || len(alphabet) == 0 {
		return ""
	}
	max := big.NewInt(int64(len(alphabet)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand does not fail on supported platforms
			panic(err)
		}
		out[i] = alphabet[n.Int64()]
	}
	return string(out)
}
