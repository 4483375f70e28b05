package entities

// ELFStructure represents structural metadata parsed from an ELF file.
// Every field is optional; an empty structure is a valid parse result.
type ELFStructure struct {
	Class   Optional[string] `json:"class" yaml:"class"`
	Data    Optional[string] `json:"data" yaml:"data"`
	Machine Optional[string] `json:"machine" yaml:"machine"`
	Type    Optional[string] `json:"type" yaml:"type"`
	Entry   Optional[uint64] `json:"entry" yaml:"entry"`

	Sections          []ELFSection `json:"sections,omitempty" yaml:"sections,omitempty"`
	Programs          []ELFProgram `json:"programs,omitempty" yaml:"programs,omitempty"`
	ImportedLibraries []string     `json:"imported_libraries,omitempty" yaml:"imported_libraries,omitempty"`
}

// IsEmpty reports whether no field was extracted
func (e *ELFStructure) IsEmpty() bool {
	return !e.Class.Present() && !e.Data.Present() && !e.Machine.Present() &&
		!e.Type.Present() && !e.Entry.Present() &&
		len(e.Sections) == 0 && len(e.Programs) == 0 && len(e.ImportedLibraries) == 0
}

// ELFSection is one entry of the section header table
type ELFSection struct {
	Name   string `json:"name" yaml:"name"`
	Type   string `json:"type" yaml:"type"`
	Addr   uint64 `json:"addr" yaml:"addr"`
	Offset uint64 `json:"offset" yaml:"offset"`
	Size   uint64 `json:"size" yaml:"size"`
}

// ELFProgram is one entry of the program header table
type ELFProgram struct {
	Type   string `json:"type" yaml:"type"`
	Flags  string `json:"flags" yaml:"flags"`
	Offset uint64 `json:"offset" yaml:"offset"`
	Vaddr  uint64 `json:"vaddr" yaml:"vaddr"`
	Filesz uint64 `json:"filesz" yaml:"filesz"`
	Memsz  uint64 `json:"memsz" yaml:"memsz"`
}
