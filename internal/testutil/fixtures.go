// Package testutil builds small, well-formed PE and ELF images for tests.
package testutil

import (
	"encoding/binary"
)

// Layout of images produced by BuildPE
const (
	PEImageBase     = 0x400000
	PEImageBase64   = 0x140000000
	PELfanew        = 0x80
	PETextRVA       = 0x1000
	PETextOffset    = 0x200
	PETextSize      = 0x1000
	PESizeOfOptHdr  = 0xe0
	PESectionTable  = PELfanew + 4 + 20 + PESizeOfOptHdr

	// PE32+ optional header size; the section table follows it
	PESizeOfOptHdr64 = 0xf0
	peExportDirOff  = 0x100
	peImportDirOff  = 0x400
	peImportHeapOff = 0x500
)

// PEExport is one exported function
type PEExport struct {
	Name string // empty for ordinal-only exports
	RVA  uint32
}

// PEImport is one imported DLL
type PEImport struct {
	DLL      string
	Symbols  []string
	Ordinals []uint16
}

// PEOptions controls BuildPE
type PEOptions struct {
	// PE64 emits a PE32+ image (AMD64, 64-bit image base, 8-byte lookup entries)
	PE64 bool

	Machine       uint16
	TimeDateStamp uint32

	// EntryCode is written at the entry point (start of .text)
	EntryCode []byte

	Imports    []PEImport
	Exports    []PEExport
	ExportBase uint32

	// DeclaredSections overrides NumberOfSections when non-zero
	DeclaredSections uint16
}

// BuildPE returns a PE32 or PE32+ image with one .text section holding the
// entry point, the export directory and the import directory
func BuildPE(opts PEOptions) []byte {
	if opts.Machine == 0 {
		opts.Machine = 0x14c
		if opts.PE64 {
			opts.Machine = 0x8664
		}
	}
	if opts.ExportBase == 0 {
		opts.ExportBase = 1
	}

	img := make([]byte, PETextOffset+PETextSize)
	le := binary.LittleEndian

	// DOS header
	img[0], img[1] = 'M', 'Z'
	le.PutUint32(img[0x3c:], PELfanew)

	// PE signature + COFF header
	copy(img[PELfanew:], "PE\x00\x00")
	coff := PELfanew + 4
	numSections := uint16(1)
	if opts.DeclaredSections != 0 {
		numSections = opts.DeclaredSections
	}
	le.PutUint16(img[coff:], opts.Machine)
	le.PutUint16(img[coff+2:], numSections)
	le.PutUint32(img[coff+4:], opts.TimeDateStamp)
	optSize, dirs := PESizeOfOptHdr, 96
	if opts.PE64 {
		optSize, dirs = PESizeOfOptHdr64, 112
	}
	le.PutUint16(img[coff+16:], uint16(optSize))
	le.PutUint16(img[coff+18:], 0x0102)

	// Optional header
	opt := coff + 20
	if opts.PE64 {
		le.PutUint16(img[opt:], 0x20b)
		le.PutUint64(img[opt+24:], PEImageBase64)
	} else {
		le.PutUint16(img[opt:], 0x10b)
		le.PutUint32(img[opt+28:], PEImageBase)
	}
	le.PutUint32(img[opt+16:], PETextRVA)
	le.PutUint32(img[opt+32:], 0x1000)
	le.PutUint32(img[opt+36:], 0x200)
	le.PutUint32(img[opt+56:], PETextRVA+PETextSize)
	le.PutUint32(img[opt+60:], PETextOffset)
	le.PutUint32(img[opt+dirs-4:], 16)

	// Section table
	sh := opt + optSize
	copy(img[sh:], ".text")
	le.PutUint32(img[sh+8:], PETextSize)
	le.PutUint32(img[sh+12:], PETextRVA)
	le.PutUint32(img[sh+16:], PETextSize)
	le.PutUint32(img[sh+20:], PETextOffset)
	le.PutUint32(img[sh+36:], 0x60000020)

	text := img[PETextOffset:]
	copy(text, opts.EntryCode)

	if len(opts.Exports) > 0 {
		le.PutUint32(img[opt+dirs:], PETextRVA+peExportDirOff)
		le.PutUint32(img[opt+dirs+4:], 40)
		writeExports(text, opts.Exports, opts.ExportBase)
	}
	if len(opts.Imports) > 0 {
		le.PutUint32(img[opt+dirs+8:], PETextRVA+peImportDirOff)
		le.PutUint32(img[opt+dirs+12:], uint32(20*(len(opts.Imports)+1)))
		writeImports(text, opts.Imports, opts.PE64)
	}

	return img
}

func writeExports(text []byte, exports []PEExport, base uint32) {
	le := binary.LittleEndian
	dir := peExportDirOff
	funcs, names, ords, heap := dir+0x40, dir+0x80, dir+0xc0, dir+0x100

	dllName := heap
	heap += copy(text[heap:], "fixture.dll\x00")

	named := 0
	for i, exp := range exports {
		le.PutUint32(text[funcs+i*4:], exp.RVA)
		if exp.Name == "" {
			continue
		}
		le.PutUint32(text[names+named*4:], uint32(PETextRVA+heap))
		le.PutUint16(text[ords+named*2:], uint16(i))
		heap += copy(text[heap:], exp.Name+"\x00")
		named++
	}

	le.PutUint32(text[dir+12:], uint32(PETextRVA+dllName))
	le.PutUint32(text[dir+16:], base)
	le.PutUint32(text[dir+20:], uint32(len(exports)))
	le.PutUint32(text[dir+24:], uint32(named))
	le.PutUint32(text[dir+28:], uint32(PETextRVA+funcs))
	le.PutUint32(text[dir+32:], uint32(PETextRVA+names))
	le.PutUint32(text[dir+36:], uint32(PETextRVA+ords))
}

func writeImports(text []byte, imports []PEImport, pe64 bool) {
	le := binary.LittleEndian
	entry := 4
	put := func(off int, v uint64) { le.PutUint32(text[off:], uint32(v)) }
	ordinalFlag := uint64(0x80000000)
	if pe64 {
		entry = 8
		put = func(off int, v uint64) { le.PutUint64(text[off:], v) }
		ordinalFlag = 1 << 63
	}
	heap := peImportHeapOff
	alloc := func(n int) int {
		off := heap
		heap += (n + 3) &^ 3
		return off
	}

	for i, imp := range imports {
		d := peImportDirOff + i*20
		entries := len(imp.Symbols) + len(imp.Ordinals) + 1
		ilt := alloc(entries * entry)
		iat := alloc(entries * entry)

		slot := 0
		for _, sym := range imp.Symbols {
			hint := alloc(2 + len(sym) + 1)
			copy(text[hint+2:], sym)
			put(ilt+slot*entry, uint64(PETextRVA+hint))
			put(iat+slot*entry, uint64(PETextRVA+hint))
			slot++
		}
		for _, ord := range imp.Ordinals {
			put(ilt+slot*entry, ordinalFlag|uint64(ord))
			put(iat+slot*entry, ordinalFlag|uint64(ord))
			slot++
		}

		name := alloc(len(imp.DLL) + 1)
		copy(text[name:], imp.DLL)

		le.PutUint32(text[d:], uint32(PETextRVA+ilt))
		le.PutUint32(text[d+12:], uint32(PETextRVA+name))
		le.PutUint32(text[d+16:], uint32(PETextRVA+iat))
	}
}

// PEIATSlot returns the absolute address BuildPE assigns to slot i of the
// first imported library's IAT
func PEIATSlot(opts PEOptions, i int) uint64 {
	imp := opts.Imports[0]
	base, entry := uint64(PEImageBase), 4
	if opts.PE64 {
		base, entry = PEImageBase64, 8
	}
	entries := len(imp.Symbols) + len(imp.Ordinals) + 1
	iltSize := (entries*entry + 3) &^ 3
	return base + PETextRVA + uint64(peImportHeapOff+iltSize) + uint64(i*entry)
}

// BuildELF returns a 64-bit little-endian ELF executable header with no
// sections or segments
func BuildELF(entry uint64) []byte {
	le := binary.LittleEndian
	img := make([]byte, 64)
	copy(img, "\x7fELF")
	img[4] = 2 // ELFCLASS64
	img[5] = 1 // ELFDATA2LSB
	img[6] = 1 // EV_CURRENT
	le.PutUint16(img[16:], 2)    // ET_EXEC
	le.PutUint16(img[18:], 0x3e) // EM_X86_64
	le.PutUint32(img[20:], 1)
	le.PutUint64(img[24:], entry)
	le.PutUint16(img[52:], 64)
	le.PutUint16(img[54:], 56)
	le.PutUint16(img[58:], 64)
	return img
}
