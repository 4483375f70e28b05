package entities

// FingerprintSet holds every content fingerprint computed over one artifact
type FingerprintSet struct {
	MD5    string `json:"md5" yaml:"md5"`
	SHA1   string `json:"sha1" yaml:"sha1"`
	SHA256 string `json:"sha256" yaml:"sha256"`
	CRC32  string `json:"crc32" yaml:"crc32"` // 8 lowercase hex chars

	// SSDeep is absent when the input is too small to produce a signature
	SSDeep Optional[string] `json:"ssdeep" yaml:"ssdeep"`
}
