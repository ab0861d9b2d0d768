package util

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const letterBytes = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
const digitBytes = "0123456789"

// Symbols exclude quotes, backslash, '$' and '%' so generated values
// can sit unescaped in config files. Escaping is still applied
// wherever they are embedded in scripts.
const symbolBytes = "!#*+-=?@^_~"

const PasswordAlphabet = letterBytes + digitBytes + symbolBytes

// RandPassword returns a password of length n drawn uniformly from
// PasswordAlphabet using the system CSPRNG.
func RandPassword(n int) (string, error) {
	out, err := randFrom(PasswordAlphabet, n)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func randFrom(alphabet string, n int) ([]byte, error) {
	if n <= 0 {
		return nil, fmt.Errorf("invalid random length %d", n)
	}
	output := make([]byte, n)
	max := big.NewInt(int64(len(alphabet)))
	for ii := 0; ii < n; ii++ {
		pos, err := rand.Int(rand.Reader, max)
		if err != nil {
			return nil, err
		}
		output[ii] = alphabet[pos.Int64()]
	}
	return output, nil
}
