// Package checksum names the checksum algorithms a TUS server can advertise
// in the Tus-Checksum-Algorithm header. The checksum extension itself is not
// implemented by this client; the package exists to give capability tags a
// type and a normalized spelling.
package checksum

import (
	"crypto"
	"hash"
	"hash/adler32"
	"hash/crc32"
	"hash/crc64"
	"hash/fnv"
	"strings"
	"unicode"
)

// Algorithm is a normalized checksum algorithm name: lowercase letters and
// digits only, e.g. "sha1" or "crc32".
type Algorithm string

//revive:disable
const (
	MD5        Algorithm = "md5"
	SHA1       Algorithm = "sha1"
	SHA224     Algorithm = "sha224"
	SHA256     Algorithm = "sha256"
	SHA384     Algorithm = "sha384"
	SHA512     Algorithm = "sha512"
	SHA512_224 Algorithm = "sha512224"
	SHA512_256 Algorithm = "sha512256"
	ADLER32    Algorithm = "adler32"
	CRC32      Algorithm = "crc32"
	CRC64      Algorithm = "crc64"
	FNV        Algorithm = "fnv"
	FNV1       Algorithm = "fnv1"
	FNV1A      Algorithm = "fnv1a"
)

//revive:enable

// Algorithms maps every known algorithm to its hash constructor. Only hashes
// the standard library registers unconditionally are listed, so a constructor
// never panics on an unlinked implementation.
var Algorithms = map[Algorithm]func() hash.Hash{
	MD5:        crypto.MD5.New,
	SHA1:       crypto.SHA1.New,
	SHA224:     crypto.SHA224.New,
	SHA256:     crypto.SHA256.New,
	SHA384:     crypto.SHA384.New,
	SHA512:     crypto.SHA512.New,
	SHA512_224: crypto.SHA512_224.New,
	SHA512_256: crypto.SHA512_256.New,
	ADLER32:    func() hash.Hash { return adler32.New() },
	CRC32:      func() hash.Hash { return crc32.New(crc32.IEEETable) },
	CRC64:      func() hash.Hash { return crc64.New(crc64.MakeTable(crc64.ISO)) },
	FNV:        func() hash.Hash { return fnv.New32() },
	FNV1:       func() hash.Hash { return fnv.New32() },
	FNV1A:      func() hash.Hash { return fnv.New32a() },
}

// GetAlgorithm normalizes a wire-level algorithm name ("SHA-1", "md_5") and
// reports whether it is known.
func GetAlgorithm(name string) (algo Algorithm, ok bool) {
	res := strings.Builder{}
	for _, r := range name {
		// Keep only letters and digits, uppercase converting to lowercase
		if unicode.IsUpper(r) {
			res.WriteRune(unicode.ToLower(r))
		} else if unicode.IsLetter(r) || unicode.IsDigit(r) {
			res.WriteRune(r)
		}
	}
	algo = Algorithm(res.String())
	_, ok = Algorithms[algo]
	return
}
