package entities

import (
	"bytes"
	"encoding/json"
	"time"

	"gopkg.in/yaml.v3"
)

// PE optional header magic values
const (
	PEMagic32     uint16 = 0x10b
	PEMagic32Plus uint16 = 0x20b
)

// PEStructure represents structural metadata parsed from a Portable Executable.
// Header fields are optional because truncated optional headers are common in
// malformed and hand-crafted samples.
type PEStructure struct {
	Machine              Optional[uint16]    `json:"machine" yaml:"machine"`
	NumberOfSections     Optional[uint16]    `json:"number_of_sections" yaml:"number_of_sections"`
	TimeDateStamp        Optional[uint32]    `json:"time_date_stamp" yaml:"time_date_stamp"`
	TimeDateStampDecoded Optional[time.Time] `json:"time_date_stamp_decoded" yaml:"time_date_stamp_decoded"`
	Characteristics      Optional[uint16]    `json:"characteristics" yaml:"characteristics"`

	Magic            Optional[uint16] `json:"magic" yaml:"magic"`
	EntryPointRVA    Optional[uint32] `json:"entry_point_rva" yaml:"entry_point_rva"`
	EntryPointOffset Optional[uint32] `json:"entry_point_offset" yaml:"entry_point_offset"`
	ImageBase        Optional[uint64] `json:"image_base" yaml:"image_base"`
	SizeOfHeaders    Optional[uint32] `json:"size_of_headers" yaml:"size_of_headers"`

	Sections []PESection       `json:"sections" yaml:"sections"`
	Imports  ImportTable       `json:"imports" yaml:"imports"`
	Exports  []ExportedSymbol  `json:"exports" yaml:"exports"`
}

// Is64 reports whether the optional header is PE32+
func (p *PEStructure) Is64() bool {
	m, ok := p.Magic.Get()
	return ok && m == PEMagic32Plus
}

// ImportsFor returns the imported symbols of dll, in table order
func (p *PEStructure) ImportsFor(dll string) ([]ImportedSymbol, bool) {
	for _, lib := range p.Imports {
		if lib.DLL == dll {
			return lib.Symbols, true
		}
	}
	return nil, false
}

// PESection is one entry of the section table
type PESection struct {
	Name             string `json:"name" yaml:"name"`
	VirtualAddress   uint32 `json:"virtual_address" yaml:"virtual_address"`
	VirtualSize      uint32 `json:"virtual_size" yaml:"virtual_size"`
	PointerToRawData uint32 `json:"pointer_to_raw_data" yaml:"pointer_to_raw_data"`
	SizeOfRawData    uint32 `json:"size_of_raw_data" yaml:"size_of_raw_data"`
	Characteristics  uint32 `json:"characteristics" yaml:"characteristics"`
}

// ImportTable lists imported libraries in descriptor order. It is encoded as a
// DLL -> symbols mapping that keeps that order; symbols of a DLL named by
// several descriptors are listed under its first occurrence.
type ImportTable []ImportedLibrary

// grouped merges libraries sharing a DLL name, keeping first-occurrence order
func (t ImportTable) grouped() ImportTable {
	out := make(ImportTable, 0, len(t))
	index := make(map[string]int, len(t))
	for _, lib := range t {
		if i, ok := index[lib.DLL]; ok {
			merged := make([]ImportedSymbol, 0, len(out[i].Symbols)+len(lib.Symbols))
			out[i].Symbols = append(append(merged, out[i].Symbols...), lib.Symbols...)
			continue
		}
		index[lib.DLL] = len(out)
		out = append(out, lib)
	}
	return out
}

// MarshalJSON writes the mapping key by key so table order survives
func (t ImportTable) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, lib := range t.grouped() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(lib.DLL)
		if err != nil {
			return nil, err
		}
		symbols := lib.Symbols
		if symbols == nil {
			symbols = []ImportedSymbol{}
		}
		value, err := json.Marshal(symbols)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalYAML builds an ordered mapping node
func (t ImportTable) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, lib := range t.grouped() {
		symbols := lib.Symbols
		if symbols == nil {
			symbols = []ImportedSymbol{}
		}
		value := &yaml.Node{}
		if err := value.Encode(symbols); err != nil {
			return nil, err
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: lib.DLL},
			value)
	}
	return node, nil
}

// ImportedLibrary groups the symbols imported from one DLL
type ImportedLibrary struct {
	DLL     string           `json:"dll" yaml:"dll"`
	Symbols []ImportedSymbol `json:"symbols" yaml:"symbols"`
}

// ImportedSymbol is an IAT slot. Name is empty for imports by ordinal.
type ImportedSymbol struct {
	Address uint64           `json:"address" yaml:"address"`
	Name    string           `json:"name" yaml:"name"`
	Ordinal Optional[uint16] `json:"ordinal" yaml:"ordinal"`
}

// ExportedSymbol is one entry of the export directory.
// Address is absolute (image base + RVA). Name is empty for ordinal-only exports.
type ExportedSymbol struct {
	Address uint64 `json:"address" yaml:"address"`
	Name    string `json:"name" yaml:"name"`
	Ordinal uint32 `json:"ordinal" yaml:"ordinal"`
}
