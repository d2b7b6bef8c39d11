// Package encoding provides text encoding utilities for RPF3/RSC5 names and strings files.
package encoding

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// Windows1252ToUTF8 converts Windows-1252 encoded bytes to a UTF-8 string.
// Returns the original bytes as a string if conversion fails.
func Windows1252ToUTF8(data []byte) string {
	decoder := charmap.Windows1252.NewDecoder()
	result, _, err := transform.Bytes(decoder, data)
	if err != nil {
		return string(data)
	}
	return string(result)
}

// UTF8ToWindows1252 converts a UTF-8 string to Windows-1252 bytes.
// Runes without a Windows-1252 mapping make the conversion fail, in which
// case the UTF-8 bytes are returned unchanged.
func UTF8ToWindows1252(s string) []byte {
	encoder := charmap.Windows1252.NewEncoder()
	result, _, err := transform.Bytes(encoder, []byte(s))
	if err != nil {
		return []byte(s)
	}
	return result
}

// DecodeString decodes a resource string. Valid UTF-8 is kept as is,
// anything else is treated as Windows-1252.
func DecodeString(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	return Windows1252ToUTF8(data)
}

// CString decodes a null-terminated string from data.
func CString(data []byte) string {
	if i := bytes.IndexByte(data, 0); i >= 0 {
		data = data[:i]
	}
	return DecodeString(data)
}

// NormalizePath normalizes an archive path for case-insensitive lookup.
// Archive paths use backslashes internally.
func NormalizePath(path string) string {
	path = strings.ReplaceAll(path, "/", "\\")
	return strings.ToLower(path)
}

// TrimNullBytes removes trailing null bytes from a byte slice.
func TrimNullBytes(data []byte) []byte {
	return bytes.TrimRight(data, "\x00")
}
