package rpf3

import (
	"crypto/aes"
	"crypto/cipher"
)

// tocKey is the fixed AES-256 key of the TOC and script bodies.
var tocKey = []byte{
	0xAF, 0x7C, 0xD2, 0xE9, 0xFA, 0xAA, 0x45, 0xFD,
	0x97, 0x28, 0xAC, 0x24, 0x7D, 0xD0, 0xCE, 0x5E,
	0xD6, 0xE4, 0xA1, 0x82, 0xFF, 0xE2, 0x41, 0xDB,
	0x8F, 0xF0, 0x70, 0x3B, 0x62, 0x9C, 0x47, 0x85,
}

// aesPasses is how many times the ECB transform runs over the buffer.
const aesPasses = 16

// encTrailer is appended to an encrypted TOC before encryption.
var encTrailer = []byte{
	0x2F, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0xA2, 0xBD, 0xC6, 0x25, 0x9A, 0x37, 0xA2, 0xDA, 0x62, 0x10, 0x8C, 0x2C, 0x5C, 0x8C, 0xB0, 0x91,
	0xA2, 0xBD, 0xC6, 0x25, 0x9A, 0x37, 0xA2, 0xDA, 0x62, 0x10, 0x8C, 0x2C, 0x5C, 0x8C, 0xB0, 0x91,
	0xA2, 0xBD, 0xC6, 0x25, 0x9A, 0x37, 0xA2, 0xDA, 0x62, 0x10, 0x8C, 0x2C, 0x5C, 0x8C, 0xB0, 0x91,
}

func tocCipher() cipher.Block {
	block, err := aes.NewCipher(tocKey)
	if err != nil {
		panic(err) // key length is fixed
	}
	return block
}

// DecryptAES returns a copy of data with every whole 16-byte block
// decrypted 16 times in ECB mode. Trailing bytes are left as they are.
func DecryptAES(data []byte) []byte {
	out := append([]byte(nil), data...)
	n := len(out) &^ 15
	if n == 0 {
		return out
	}
	block := tocCipher()
	for pass := 0; pass < aesPasses; pass++ {
		for i := 0; i < n; i += aes.BlockSize {
			block.Decrypt(out[i:i+aes.BlockSize], out[i:i+aes.BlockSize])
		}
	}
	return out
}

// EncryptAES is the inverse of DecryptAES.
func EncryptAES(data []byte) []byte {
	out := append([]byte(nil), data...)
	n := len(out) &^ 15
	if n == 0 {
		return out
	}
	block := tocCipher()
	for pass := 0; pass < aesPasses; pass++ {
		for i := 0; i < n; i += aes.BlockSize {
			block.Encrypt(out[i:i+aes.BlockSize], out[i:i+aes.BlockSize])
		}
	}
	return out
}
