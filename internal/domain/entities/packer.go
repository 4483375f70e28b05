package entities

// Packer match sources
const (
	PackerSourceSignatureDB = "signature-db"
	PackerSourceUPXProbe    = "upx-probe"
)

// PackerSignature is one entry of a packer/compiler signature database.
// Pattern bytes are matched literally unless the same index is set in Wildcard.
type PackerSignature struct {
	Name     string
	Pattern  []byte
	Wildcard []bool
	EPOnly   bool
}

// Len returns the number of bytes the signature spans
func (s PackerSignature) Len() int {
	return len(s.Pattern)
}

// SignatureDatabase is an ordered set of packer signatures
type SignatureDatabase struct {
	Source     string
	Signatures []PackerSignature
}

// SignatureMatch is a database entry found in the artifact
type SignatureMatch struct {
	Name   string `json:"name" yaml:"name"`
	Offset int64  `json:"offset" yaml:"offset"`
}

// PackerMatch holds the packer detection outcome for one artifact.
// PE artifacts report Signatures; ELF artifacts report Label.
type PackerMatch struct {
	Source     string           `json:"source" yaml:"source"`
	Signatures []SignatureMatch `json:"signatures" yaml:"signatures"`
	Label      Optional[string] `json:"label" yaml:"label"`
}

// Detected reports whether any packer was identified. A nil match detects nothing.
func (m *PackerMatch) Detected() bool {
	if m == nil {
		return false
	}
	return len(m.Signatures) > 0 || m.Label.Present()
}
