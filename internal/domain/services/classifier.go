package services

import (
	"bytes"
	"encoding/binary"

	"github.com/ochairo/specimen/internal/domain/entities"
)

const (
	dosHeaderSize = 0x40
	lfanewOffset  = 0x3c
)

var (
	mzMagic     = []byte("MZ")
	peSignature = []byte("PE\x00\x00")
	elfMagic    = []byte{0x7f, 'E', 'L', 'F'}
)

// ClassifyContainer decides which structural parser applies to data.
// Truncated or inconsistent headers classify as Other, never as an error.
func ClassifyContainer(data []byte) entities.ContainerKind {
	switch {
	case isPE(data):
		return entities.ContainerPE
	case bytes.HasPrefix(data, elfMagic):
		return entities.ContainerELF
	default:
		return entities.ContainerOther
	}
}

func isPE(data []byte) bool {
	if len(data) < dosHeaderSize || !bytes.HasPrefix(data, mzMagic) {
		return false
	}
	off := uint64(binary.LittleEndian.Uint32(data[lfanewOffset:]))
	if off+uint64(len(peSignature)) > uint64(len(data)) {
		return false
	}
	return bytes.Equal(data[off:off+uint64(len(peSignature))], peSignature)
}
