package gateways

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ochairo/specimen/internal/domain/entities"
)

const (
	dosHeaderSize        = 0x40
	lfanewOffset         = 0x3c
	coffHeaderSize       = 20
	sectionHeaderSize    = 40
	dataDirectorySize    = 8
	importDescriptorSize = 20
	exportDirectorySize  = 40

	dirExport = 0
	dirImport = 1

	maxDataDirectories   = 16
	maxImportDescriptors = 4096
	maxThunksPerLibrary  = 65536
	maxNameLength        = 512

	// minThunkSize is the smallest lookup table entry; a file of n bytes holds
	// at most n/minThunkSize distinct import entries
	minThunkSize = 4

	ordinalFlag32 = uint64(0x80000000)
	ordinalFlag64 = uint64(0x8000000000000000)
)

var peSignature = []byte("PE\x00\x00")

// peParser parses PE structural metadata without trusting declared sizes or offsets.
// Every offset is checked against the buffer before it is dereferenced.
type peParser struct {
	loc *time.Location
}

// NewPEParser creates a PE parser that decodes timestamps in loc (UTC when nil)
//
//nolint:revive // unexported-return: Intentionally returns concrete type for testability
func NewPEParser(loc *time.Location) *peParser {
	if loc == nil {
		loc = time.UTC
	}
	return &peParser{loc: loc}
}

type dataDirectory struct {
	rva  uint32
	size uint32
}

// peImage is the bounds-checked view used while walking one file
type peImage struct {
	data          []byte
	sections      []entities.PESection
	sizeOfHeaders uint32
	imageBase     uint64
	is64          bool

	// symbolBudget is the number of import entries still allowed across all libraries
	symbolBudget uint64

	// names interns strings by file offset so repeated references share one copy.
	// Distinct names never hold more bytes than the file itself.
	names     map[uint64]string
	nameBytes uint64
}

func malformed(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", entities.ErrMalformedContainer, fmt.Sprintf(format, args...))
}

// ParsePE parses headers, sections, imports and exports from data
func (p *peParser) ParsePE(data []byte) (*entities.PEStructure, error) {
	img := &peImage{
		data:         data,
		symbolBudget: uint64(len(data)) / minThunkSize,
		names:        make(map[uint64]string),
	}

	if len(data) < dosHeaderSize || data[0] != 'M' || data[1] != 'Z' {
		return nil, malformed("missing MS-DOS header")
	}
	lfanew := uint64(img.u32(lfanewOffset))
	if !img.fits(lfanew, uint64(len(peSignature))+coffHeaderSize) {
		return nil, malformed("PE header offset %#x outside file of %d bytes", lfanew, len(data))
	}
	if !bytes.Equal(data[lfanew:lfanew+uint64(len(peSignature))], peSignature) {
		return nil, malformed("bad PE signature at %#x", lfanew)
	}

	coff := lfanew + uint64(len(peSignature))
	numSections := img.u16(coff + 2)
	timestamp := img.u32(coff + 4)
	sizeOfOptional := uint64(img.u16(coff + 16))

	out := &entities.PEStructure{
		Machine:              entities.Some(img.u16(coff)),
		NumberOfSections:     entities.Some(numSections),
		TimeDateStamp:        entities.Some(timestamp),
		TimeDateStampDecoded: decodeTimestamp(timestamp, p.loc),
		Characteristics:      entities.Some(img.u16(coff + 18)),
		Sections:             []entities.PESection{},
		Imports:              entities.ImportTable{},
		Exports:              []entities.ExportedSymbol{},
	}

	optOff := coff + coffHeaderSize
	if !img.fits(optOff, sizeOfOptional) {
		return nil, malformed("optional header of %d bytes runs past end of file", sizeOfOptional)
	}
	dirs := img.parseOptionalHeader(optOff, sizeOfOptional, out)

	secOff := optOff + sizeOfOptional
	if uint64(numSections)*sectionHeaderSize > uint64(len(data))-secOff {
		return nil, malformed("%d sections declared but only %d bytes remain for the section table",
			numSections, uint64(len(data))-secOff)
	}
	for i := uint64(0); i < uint64(numSections); i++ {
		img.sections = append(img.sections, img.section(secOff+i*sectionHeaderSize))
	}
	out.Sections = append(out.Sections, img.sections...)

	if ep, ok := out.EntryPointRVA.Get(); ok {
		if off, mapped := img.rvaToOffset(ep); mapped && off <= math.MaxUint32 {
			out.EntryPointOffset = entities.Some(uint32(off))
		}
	}

	if dir, ok := lookupDirectory(dirs, dirImport); ok {
		imports, err := img.parseImports(dir)
		if err != nil {
			return nil, err
		}
		out.Imports = imports
	}
	if dir, ok := lookupDirectory(dirs, dirExport); ok {
		exports, err := img.parseExports(dir)
		if err != nil {
			return nil, err
		}
		out.Exports = exports
	}

	return out, nil
}

// decodeTimestamp converts a link timestamp. TimeDateStamp is a signed 32-bit
// time_t; values with the top bit set are build hashes written by
// reproducible-build linkers (/Brepro), not clock readings, so they are
// reported absent.
func decodeTimestamp(ts uint32, loc *time.Location) entities.Optional[time.Time] {
	if ts > math.MaxInt32 {
		return entities.None[time.Time]()
	}
	return entities.Some(time.Unix(int64(ts), 0).In(loc))
}

// parseOptionalHeader fills the optional-header fields the declared size covers
// and returns the data directories
func (img *peImage) parseOptionalHeader(off, size uint64, out *entities.PEStructure) []dataDirectory {
	has := func(field, n uint64) bool { return field+n <= size }

	if !has(0, 2) {
		return nil
	}
	magic := img.u16(off)
	out.Magic = entities.Some(magic)
	img.is64 = magic == entities.PEMagic32Plus

	if has(16, 4) {
		out.EntryPointRVA = entities.Some(img.u32(off + 16))
	}

	numDirsOff, dirsOff := uint64(92), uint64(96)
	if img.is64 {
		if has(24, 8) {
			img.imageBase = img.u64(off + 24)
			out.ImageBase = entities.Some(img.imageBase)
		}
		numDirsOff, dirsOff = 108, 112
	} else if has(28, 4) {
		img.imageBase = uint64(img.u32(off + 28))
		out.ImageBase = entities.Some(img.imageBase)
	}

	if has(60, 4) {
		img.sizeOfHeaders = img.u32(off + 60)
		out.SizeOfHeaders = entities.Some(img.sizeOfHeaders)
	}

	if !has(numDirsOff, 4) {
		return nil
	}
	count := uint64(img.u32(off + numDirsOff))
	if count > maxDataDirectories {
		count = maxDataDirectories
	}
	if size < dirsOff {
		return nil
	}
	if avail := (size - dirsOff) / dataDirectorySize; count > avail {
		count = avail
	}

	dirs := make([]dataDirectory, 0, count)
	for i := uint64(0); i < count; i++ {
		d := off + dirsOff + i*dataDirectorySize
		dirs = append(dirs, dataDirectory{rva: img.u32(d), size: img.u32(d + 4)})
	}
	return dirs
}

func lookupDirectory(dirs []dataDirectory, index int) (dataDirectory, bool) {
	if index >= len(dirs) || dirs[index].rva == 0 {
		return dataDirectory{}, false
	}
	return dirs[index], true
}

func (img *peImage) section(off uint64) entities.PESection {
	return entities.PESection{
		Name:             strings.TrimRight(string(img.data[off:off+8]), "\x00"),
		VirtualSize:      img.u32(off + 8),
		VirtualAddress:   img.u32(off + 12),
		SizeOfRawData:    img.u32(off + 16),
		PointerToRawData: img.u32(off + 20),
		Characteristics:  img.u32(off + 36),
	}
}

// parseImports walks the import descriptor array up to its null terminator
func (img *peImage) parseImports(dir dataDirectory) (entities.ImportTable, error) {
	off, ok := img.rvaToOffset(dir.rva)
	if !ok {
		return nil, malformed("import directory RVA %#x outside file", dir.rva)
	}
	if dir.size > 0 && !img.fits(off, uint64(dir.size)) {
		return nil, malformed("import directory of %d bytes runs past end of file", dir.size)
	}

	libs := entities.ImportTable{}
	tables := make(map[uint32]uint64)
	for i := uint64(0); ; i++ {
		if i >= maxImportDescriptors {
			return nil, malformed("import directory exceeds %d descriptors", maxImportDescriptors)
		}
		d := off + i*importDescriptorSize
		if !img.fits(d, importDescriptorSize) {
			return nil, malformed("import descriptor %d runs past end of file", i)
		}
		if isZero(img.data[d : d+importDescriptorSize]) {
			break
		}
		// The null terminator may sit just past a size that counts only real descriptors
		if dir.size > 0 && (i+1)*importDescriptorSize > uint64(dir.size) {
			return nil, malformed("import descriptor %d lies outside the %d-byte import directory", i, dir.size)
		}

		lookupRVA, nameRVA, iatRVA := img.u32(d), img.u32(d+12), img.u32(d+16)
		if table := lookupTableRVA(lookupRVA, iatRVA); table != 0 {
			if prev, seen := tables[table]; seen {
				return nil, malformed("import descriptors %d and %d share lookup table %#x", prev, i, table)
			}
			tables[table] = i
		}
		nameOff, ok := img.rvaToOffset(nameRVA)
		if !ok {
			return nil, malformed("import descriptor %d name RVA %#x outside file", i, nameRVA)
		}
		dll, err := img.cString(nameOff)
		if err != nil {
			return nil, err
		}
		symbols, err := img.parseThunks(lookupRVA, iatRVA)
		if err != nil {
			return nil, fmt.Errorf("imports of %s: %w", dll, err)
		}
		libs = append(libs, entities.ImportedLibrary{DLL: dll, Symbols: symbols})
	}
	return libs, nil
}

// lookupTableRVA returns the table holding the import entries; binders may
// leave the lookup table out and keep only the IAT
func lookupTableRVA(lookupRVA, iatRVA uint32) uint32 {
	if lookupRVA != 0 {
		return lookupRVA
	}
	return iatRVA
}

// parseThunks reads one import lookup table. Addresses are IAT slot VAs.
func (img *peImage) parseThunks(lookupRVA, iatRVA uint32) ([]entities.ImportedSymbol, error) {
	tableRVA := lookupTableRVA(lookupRVA, iatRVA)
	slotRVA := iatRVA
	if slotRVA == 0 {
		slotRVA = tableRVA
	}
	symbols := []entities.ImportedSymbol{}
	if tableRVA == 0 {
		return symbols, nil
	}

	off, ok := img.rvaToOffset(tableRVA)
	if !ok {
		return nil, malformed("import lookup table RVA %#x outside file", tableRVA)
	}

	entry, flag := uint64(4), ordinalFlag32
	if img.is64 {
		entry, flag = 8, ordinalFlag64
	}

	for i := uint64(0); ; i++ {
		if i >= maxThunksPerLibrary {
			return nil, malformed("import lookup table exceeds %d entries", maxThunksPerLibrary)
		}
		t := off + i*entry
		if !img.fits(t, entry) {
			return nil, malformed("import lookup table runs past end of file")
		}
		var v uint64
		if img.is64 {
			v = img.u64(t)
		} else {
			v = uint64(img.u32(t))
		}
		if v == 0 {
			break
		}
		if img.symbolBudget == 0 {
			return nil, malformed("import tables declare more entries than a %d-byte file holds", len(img.data))
		}
		img.symbolBudget--

		sym := entities.ImportedSymbol{Address: img.imageBase + uint64(slotRVA) + i*entry}
		if v&flag != 0 {
			sym.Ordinal = entities.Some(uint16(v & 0xffff))
			symbols = append(symbols, sym)
			continue
		}

		hintRVA := uint32(v & 0x7fffffff)
		hintOff, ok := img.rvaToOffset(hintRVA)
		if !ok || !img.fits(hintOff, 2) {
			return nil, malformed("hint/name RVA %#x outside file", hintRVA)
		}
		name, err := img.cString(hintOff + 2)
		if err != nil {
			return nil, err
		}
		sym.Name = name
		symbols = append(symbols, sym)
	}
	return symbols, nil
}

// parseExports reads the export directory. Named exports come first in name
// table order, then ordinal-only exports in address table order.
func (img *peImage) parseExports(dir dataDirectory) ([]entities.ExportedSymbol, error) {
	off, ok := img.rvaToOffset(dir.rva)
	if !ok || !img.fits(off, exportDirectorySize) {
		return nil, malformed("export directory RVA %#x outside file", dir.rva)
	}

	base := img.u32(off + 16)
	numFuncs := uint64(img.u32(off + 20))
	numNames := uint64(img.u32(off + 24))
	funcsRVA, namesRVA, ordsRVA := img.u32(off+28), img.u32(off+32), img.u32(off+36)

	exports := []entities.ExportedSymbol{}
	if numFuncs == 0 {
		return exports, nil
	}

	funcsOff, ok := img.rvaToOffset(funcsRVA)
	if !ok || !img.fits(funcsOff, numFuncs*4) {
		return nil, malformed("export address table of %d entries runs past end of file", numFuncs)
	}

	var namesOff, ordsOff uint64
	if numNames > 0 {
		namesOff, ok = img.rvaToOffset(namesRVA)
		if !ok || !img.fits(namesOff, numNames*4) {
			return nil, malformed("export name table of %d entries runs past end of file", numNames)
		}
		ordsOff, ok = img.rvaToOffset(ordsRVA)
		if !ok || !img.fits(ordsOff, numNames*2) {
			return nil, malformed("export ordinal table of %d entries runs past end of file", numNames)
		}
	}

	named := make(map[uint64]bool, numNames)
	for i := uint64(0); i < numNames; i++ {
		idx := uint64(img.u16(ordsOff + i*2))
		if idx >= numFuncs {
			return nil, malformed("export name %d refers to function %d of %d", i, idx, numFuncs)
		}
		nameRVA := img.u32(namesOff + i*4)
		nameOff, ok := img.rvaToOffset(nameRVA)
		if !ok {
			return nil, malformed("export name RVA %#x outside file", nameRVA)
		}
		name, err := img.cString(nameOff)
		if err != nil {
			return nil, err
		}
		exports = append(exports, entities.ExportedSymbol{
			Address: img.imageBase + uint64(img.u32(funcsOff+idx*4)),
			Name:    name,
			Ordinal: base + uint32(idx),
		})
		named[idx] = true
	}

	for idx := uint64(0); idx < numFuncs; idx++ {
		if named[idx] {
			continue
		}
		rva := img.u32(funcsOff + idx*4)
		if rva == 0 {
			continue
		}
		exports = append(exports, entities.ExportedSymbol{
			Address: img.imageBase + uint64(rva),
			Ordinal: base + uint32(idx),
		})
	}
	return exports, nil
}

// rvaToOffset maps an RVA to a file offset inside the buffer
func (img *peImage) rvaToOffset(rva uint32) (uint64, bool) {
	size := uint64(len(img.data))
	for _, s := range img.sections {
		span := s.VirtualSize
		if s.SizeOfRawData > span {
			span = s.SizeOfRawData
		}
		if rva >= s.VirtualAddress && uint64(rva) < uint64(s.VirtualAddress)+uint64(span) {
			off := uint64(rva-s.VirtualAddress) + uint64(s.PointerToRawData)
			return off, off < size
		}
	}
	if uint64(rva) < size && (len(img.sections) == 0 || rva < img.sizeOfHeaders) {
		return uint64(rva), true
	}
	return 0, false
}

// cString reads a NUL-terminated name, capped at maxNameLength bytes
func (img *peImage) cString(off uint64) (string, error) {
	if off >= uint64(len(img.data)) {
		return "", malformed("string offset %#x outside file", off)
	}
	if name, ok := img.names[off]; ok {
		return name, nil
	}
	end := off + maxNameLength
	if end > uint64(len(img.data)) {
		end = uint64(len(img.data))
	}
	raw := img.data[off:end]
	if i := bytes.IndexByte(raw, 0); i >= 0 {
		raw = raw[:i]
	}
	img.nameBytes += uint64(len(raw))
	if img.nameBytes > uint64(len(img.data)) {
		return "", malformed("names overlap beyond the %d bytes of the file", len(img.data))
	}
	name := string(raw)
	img.names[off] = name
	return name, nil
}

func (img *peImage) fits(off, n uint64) bool {
	size := uint64(len(img.data))
	return off <= size && n <= size-off
}

func (img *peImage) u16(off uint64) uint16 {
	return binary.LittleEndian.Uint16(img.data[off:])
}

func (img *peImage) u32(off uint64) uint32 {
	return binary.LittleEndian.Uint32(img.data[off:])
}

func (img *peImage) u64(off uint64) uint64 {
	return binary.LittleEndian.Uint64(img.data[off:])
}

func isZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}
