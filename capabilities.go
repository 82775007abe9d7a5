package tus

import "github.com/revivelabs/tus-go/checksum"

// TusServerInfo is the capability set a server advertises on an OPTIONS
// probe. It is produced once per GetServerInfo call and is not part of any
// upload's state.
type TusServerInfo struct {
	Version            string
	MaxSize            int64
	Extensions         []string
	SupportedVersions  []string
	ChecksumAlgorithms []checksum.Algorithm
}

// Supports reports whether the server advertises the given protocol
// extension, e.g. "creation" or "termination".
func (si TusServerInfo) Supports(extension string) bool {
	for _, e := range si.Extensions {
		if e == extension {
			return true
		}
	}
	return false
}

func serverInfoFromHeaders(h TusHeaders) TusServerInfo {
	si := TusServerInfo{
		Version:            h.Version,
		Extensions:         h.Extensions,
		SupportedVersions:  h.SupportedVersions,
		ChecksumAlgorithms: h.ChecksumAlgorithms,
	}
	if h.MaxSize != nil {
		si.MaxSize = *h.MaxSize
	}
	return si
}
