package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	orchestrators "github.com/ochairo/specimen/internal/domain-orchestrators"
	"github.com/ochairo/specimen/internal/domain/entities"
)

// maxListedStrings bounds the strings shown in text output; JSON and YAML carry all of them
const maxListedStrings = 20

var (
	headerColor = color.New(color.FgCyan, color.Bold)
	labelColor  = color.New(color.FgCyan)
	okColor     = color.New(color.FgGreen)
	warnColor   = color.New(color.FgYellow)
	errColor    = color.New(color.FgRed)
)

type renderer func(w io.Writer, records []*entities.AnalysisRecord) error

func rendererFor(format string) (renderer, error) {
	switch format {
	case "json":
		return func(w io.Writer, records []*entities.AnalysisRecord) error {
			if len(records) == 1 {
				return writeJSON(w, records[0])
			}
			return writeJSON(w, records)
		}, nil
	case "yaml":
		return func(w io.Writer, records []*entities.AnalysisRecord) error {
			if len(records) == 1 {
				return writeYAML(w, records[0])
			}
			return writeYAML(w, records)
		}, nil
	case "text":
		return func(w io.Writer, records []*entities.AnalysisRecord) error {
			for _, r := range records {
				displayRecord(w, r)
			}
			return nil
		}, nil
	default:
		return nil, fmt.Errorf("unknown format %q (want json, yaml or text)", format)
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeYAML(w io.Writer, v interface{}) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func displayRecord(w io.Writer, r *entities.AnalysisRecord) {
	_, _ = headerColor.Fprintf(w, "== %s ==\n", r.Filename)
	field(w, "ID", r.ID)
	field(w, "Path", r.Path)
	field(w, "Type", r.FileType)
	field(w, "Size", fmt.Sprintf("%d bytes", r.FileSize))
	if r.ContentTruncated {
		_, _ = warnColor.Fprintf(w, "  content beyond the in-memory limit was not scanned\n")
	}
	if r.Kind != "" {
		field(w, "Container", string(r.Kind))
	}

	if fp := r.Fingerprints; fp != nil {
		_, _ = headerColor.Fprintln(w, "Fingerprints")
		field(w, "MD5", fp.MD5)
		field(w, "SHA-1", fp.SHA1)
		field(w, "SHA-256", fp.SHA256)
		field(w, "CRC-32", fp.CRC32)
		field(w, "ssdeep", fp.SSDeep.OrElse("(none)"))
	}

	if s := r.Strings; s != nil {
		_, _ = headerColor.Fprintln(w, "Strings")
		field(w, "ASCII", fmt.Sprintf("%d", len(s.ASCII)))
		field(w, "UTF-16LE", fmt.Sprintf("%d", len(s.Unicode)))
		listStrings(w, s.ASCII)
		if s.Truncated {
			_, _ = warnColor.Fprintln(w, "  string cap reached, list is incomplete")
		}
	}

	if r.PE != nil {
		displayPE(w, r.PE)
	}
	if r.ELF != nil {
		displayELF(w, r.ELF)
	}
	if r.Packer != nil {
		displayPacker(w, r.Packer)
	}

	if r.HasErrors() {
		_, _ = headerColor.Fprintln(w, "Errors")
		for _, e := range r.Errors {
			_, _ = errColor.Fprintf(w, "  [%s] %s: %s\n", e.Step, e.Kind, e.Message)
		}
	}
	fmt.Fprintf(w, "  analysed in %v\n\n", r.Duration.Round(time.Millisecond))
}

func displayPE(w io.Writer, pe *entities.PEStructure) {
	_, _ = headerColor.Fprintln(w, "PE")
	field(w, "Machine", hexOpt16(pe.Machine))
	if ts, ok := pe.TimeDateStampDecoded.Get(); ok {
		field(w, "Timestamp", ts.Format(time.RFC3339))
	} else if raw, ok := pe.TimeDateStamp.Get(); ok {
		field(w, "Timestamp", fmt.Sprintf("0x%x (out of range)", raw))
	}
	if pe.Is64() {
		field(w, "Format", "PE32+")
	} else if pe.Magic.Present() {
		field(w, "Format", "PE32")
	}
	if rva, ok := pe.EntryPointRVA.Get(); ok {
		field(w, "Entry point", fmt.Sprintf("0x%x", rva))
	}
	if base, ok := pe.ImageBase.Get(); ok {
		field(w, "Image base", fmt.Sprintf("0x%x", base))
	}

	fmt.Fprintf(w, "  %-10s %10s %10s %10s %10s\n", "Section", "VirtAddr", "VirtSize", "RawPtr", "RawSize")
	for _, s := range pe.Sections {
		fmt.Fprintf(w, "  %-10s %10s %10s %10s %10s\n", s.Name,
			fmt.Sprintf("0x%x", s.VirtualAddress), fmt.Sprintf("0x%x", s.VirtualSize),
			fmt.Sprintf("0x%x", s.PointerToRawData), fmt.Sprintf("0x%x", s.SizeOfRawData))
	}

	for _, lib := range pe.Imports {
		_, _ = labelColor.Fprintf(w, "  %s", lib.DLL)
		fmt.Fprintf(w, " (%d)\n", len(lib.Symbols))
		for _, sym := range lib.Symbols {
			name := sym.Name
			if ord, ok := sym.Ordinal.Get(); ok && name == "" {
				name = fmt.Sprintf("#%d", ord)
			}
			fmt.Fprintf(w, "    0x%x %s\n", sym.Address, name)
		}
	}
	if len(pe.Exports) > 0 {
		_, _ = labelColor.Fprintln(w, "  Exports")
		for _, exp := range pe.Exports {
			fmt.Fprintf(w, "    0x%x %s (%d)\n", exp.Address, exp.Name, exp.Ordinal)
		}
	}
}

func displayELF(w io.Writer, e *entities.ELFStructure) {
	_, _ = headerColor.Fprintln(w, "ELF")
	if e.IsEmpty() {
		fmt.Fprintln(w, "  no structure extracted")
		return
	}
	field(w, "Class", e.Class.OrElse("?"))
	field(w, "Data", e.Data.OrElse("?"))
	field(w, "Machine", e.Machine.OrElse("?"))
	field(w, "Type", e.Type.OrElse("?"))
	if entry, ok := e.Entry.Get(); ok {
		field(w, "Entry point", fmt.Sprintf("0x%x", entry))
	}
	field(w, "Sections", fmt.Sprintf("%d", len(e.Sections)))
	field(w, "Segments", fmt.Sprintf("%d", len(e.Programs)))
	for _, lib := range e.ImportedLibraries {
		fmt.Fprintf(w, "    %s\n", lib)
	}
}

func displayPacker(w io.Writer, m *entities.PackerMatch) {
	_, _ = headerColor.Fprintln(w, "Packer")
	if !m.Detected() {
		_, _ = okColor.Fprintf(w, "  none detected (%s)\n", m.Source)
		return
	}
	for _, sig := range m.Signatures {
		_, _ = warnColor.Fprintf(w, "  %s", sig.Name)
		fmt.Fprintf(w, " at 0x%x\n", sig.Offset)
	}
	if label, ok := m.Label.Get(); ok {
		_, _ = warnColor.Fprintf(w, "  %s (%s)\n", label, m.Source)
	}
}

func displayComparison(w io.Writer, left, right string, cmp *orchestrators.Comparison) {
	_, _ = headerColor.Fprintln(w, "Comparison")
	field(w, "A", left+" "+cmp.Left.SSDeep.OrElse("(no ssdeep)"))
	field(w, "B", right+" "+cmp.Right.SSDeep.OrElse("(no ssdeep)"))
	if cmp.Identical {
		_, _ = okColor.Fprintln(w, "  identical (SHA-256)")
		return
	}
	if score, ok := cmp.Score.Get(); ok {
		field(w, "Score", fmt.Sprintf("%d/100", score))
		return
	}
	_, _ = warnColor.Fprintln(w, "  no score: a file is too small for a fuzzy hash")
}

func field(w io.Writer, label, value string) {
	_, _ = labelColor.Fprintf(w, "  %-12s", label)
	fmt.Fprintf(w, " %s\n", value)
}

func hexOpt16(o entities.Optional[uint16]) string {
	if v, ok := o.Get(); ok {
		return fmt.Sprintf("0x%x", v)
	}
	return "(absent)"
}

func listStrings(w io.Writer, strs []string) {
	for i, s := range strs {
		if i == maxListedStrings {
			fmt.Fprintf(w, "    ... and %d more\n", len(strs)-maxListedStrings)
			return
		}
		fmt.Fprintf(w, "    %q\n", s)
	}
}
