package gateways

import (
	"bytes"
	"debug/elf"
	"fmt"

	"github.com/ochairo/specimen/internal/domain/entities"
	"github.com/ochairo/specimen/internal/domain/interfaces"
)

// elfParser extracts ELF structure using debug/elf.
// Parsing never fails: anything debug/elf rejects is left absent.
type elfParser struct {
	minimal bool
	logger  interfaces.Logger
}

// NewELFParser creates a new ELF parser. A minimal parser extracts nothing.
//
//nolint:revive // unexported-return: Intentionally returns concrete type for testability
func NewELFParser(minimal bool, logger interfaces.Logger) *elfParser {
	return &elfParser{minimal: minimal, logger: interfaces.OrNoOp(logger)}
}

// ParseELF returns whatever structure could be read from data
func (p *elfParser) ParseELF(data []byte) (out *entities.ELFStructure) {
	out = &entities.ELFStructure{}
	if p.minimal {
		return out
	}

	defer func() {
		if r := recover(); r != nil {
			p.logger.Warn("ELF parser panicked, keeping partial structure", interfaces.F("panic", fmt.Sprint(r)))
		}
	}()

	f, err := elf.NewFile(bytes.NewReader(data))
	if err != nil {
		p.logger.Warn("failed to open ELF file", interfaces.F("error", err.Error()))
		return out
	}
	//nolint:errcheck // Close is a no-op for an in-memory reader
	defer f.Close()

	// Header
	out.Class = entities.Some(f.Class.String())
	out.Data = entities.Some(f.Data.String())
	out.Machine = entities.Some(f.Machine.String())
	out.Type = entities.Some(f.Type.String())
	out.Entry = entities.Some(f.Entry)

	for _, s := range f.Sections {
		out.Sections = append(out.Sections, entities.ELFSection{
			Name:   s.Name,
			Type:   s.Type.String(),
			Addr:   s.Addr,
			Offset: s.Offset,
			Size:   s.Size,
		})
	}

	for _, prog := range f.Progs {
		out.Programs = append(out.Programs, entities.ELFProgram{
			Type:   prog.Type.String(),
			Flags:  prog.Flags.String(),
			Offset: prog.Off,
			Vaddr:  prog.Vaddr,
			Filesz: prog.Filesz,
			Memsz:  prog.Memsz,
		})
	}

	// DT_NEEDED entries; static binaries have none
	if libs, err := f.ImportedLibraries(); err == nil {
		out.ImportedLibraries = libs
	} else {
		p.logger.Debug("no dynamic libraries read", interfaces.F("error", err.Error()))
	}

	return out
}
