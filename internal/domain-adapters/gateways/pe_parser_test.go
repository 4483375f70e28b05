package gateways

import (
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/ochairo/specimen/internal/domain/entities"
	"github.com/ochairo/specimen/internal/testutil"
)

func TestPEParser_ParsePE_Headers(t *testing.T) {
	data := testutil.BuildPE(testutil.PEOptions{
		Machine:       0x14c,
		TimeDateStamp: 0x5f5e1000,
	})

	pe, err := NewPEParser(time.UTC).ParsePE(data)
	if err != nil {
		t.Fatalf("ParsePE() error = %v", err)
	}

	if m, ok := pe.Machine.Get(); !ok || m != 0x14c {
		t.Errorf("Machine = %#x (present %v), want 0x14c", m, ok)
	}
	if ts, ok := pe.TimeDateStampDecoded.Get(); !ok || !ts.Equal(time.Unix(0x5f5e1000, 0)) {
		t.Errorf("TimeDateStampDecoded = %v (present %v)", ts, ok)
	}
	if ep, ok := pe.EntryPointRVA.Get(); !ok || ep != testutil.PETextRVA {
		t.Errorf("EntryPointRVA = %#x, want %#x", ep, testutil.PETextRVA)
	}
	if off, ok := pe.EntryPointOffset.Get(); !ok || off != testutil.PETextOffset {
		t.Errorf("EntryPointOffset = %#x, want %#x", off, testutil.PETextOffset)
	}
	if base, ok := pe.ImageBase.Get(); !ok || base != testutil.PEImageBase {
		t.Errorf("ImageBase = %#x, want %#x", base, testutil.PEImageBase)
	}
	if pe.Is64() {
		t.Error("Is64() = true for a PE32 image")
	}

	if len(pe.Sections) != 1 {
		t.Fatalf("got %d sections, want 1", len(pe.Sections))
	}
	s := pe.Sections[0]
	if s.Name != ".text" || s.VirtualAddress != testutil.PETextRVA || s.PointerToRawData != testutil.PETextOffset {
		t.Errorf("section = %+v", s)
	}

	if pe.Imports == nil || len(pe.Imports) != 0 {
		t.Errorf("Imports = %#v, want empty", pe.Imports)
	}
	if pe.Exports == nil || len(pe.Exports) != 0 {
		t.Errorf("Exports = %#v, want empty", pe.Exports)
	}
}

func TestPEParser_ParsePE_TimeZone(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*60*60)
	data := testutil.BuildPE(testutil.PEOptions{TimeDateStamp: 0})

	pe, err := NewPEParser(loc).ParsePE(data)
	if err != nil {
		t.Fatalf("ParsePE() error = %v", err)
	}
	ts, ok := pe.TimeDateStampDecoded.Get()
	if !ok {
		t.Fatal("TimeDateStampDecoded should be present")
	}
	if ts.Location() != loc || ts.Hour() != 9 {
		t.Errorf("TimeDateStampDecoded = %v, want 1970-01-01 09:00 in UTC+9", ts)
	}
}

func TestPEParser_ParsePE_TimestampRange(t *testing.T) {
	tests := []struct {
		raw         uint32
		wantDecoded bool
	}{
		{0, true},
		{0x7fffffff, true},
		{0x80000000, false},
		{0xfffffffe, false},
	}

	parser := NewPEParser(nil)
	for _, tt := range tests {
		pe, err := parser.ParsePE(testutil.BuildPE(testutil.PEOptions{TimeDateStamp: tt.raw}))
		if err != nil {
			t.Fatalf("ParsePE(%#x) error = %v", tt.raw, err)
		}
		if raw, ok := pe.TimeDateStamp.Get(); !ok || raw != tt.raw {
			t.Errorf("TimeDateStamp = %#x (present %v), want raw %#x kept", raw, ok, tt.raw)
		}
		ts, ok := pe.TimeDateStampDecoded.Get()
		if ok != tt.wantDecoded {
			t.Errorf("TimeDateStampDecoded present = %v for %#x, want %v", ok, tt.raw, tt.wantDecoded)
		}
		if ok && ts.Unix() != int64(tt.raw) {
			t.Errorf("TimeDateStampDecoded = %v, want epoch %d", ts, tt.raw)
		}
	}
}

func TestPEParser_ParsePE_Exports(t *testing.T) {
	data := testutil.BuildPE(testutil.PEOptions{
		Exports: []testutil.PEExport{
			{Name: "Foo", RVA: 0x1000},
			{RVA: 0x1010},
			{Name: "Bar", RVA: 0x1020},
		},
		ExportBase: 1,
	})

	pe, err := NewPEParser(nil).ParsePE(data)
	if err != nil {
		t.Fatalf("ParsePE() error = %v", err)
	}

	want := []entities.ExportedSymbol{
		{Address: 0x401000, Name: "Foo", Ordinal: 1},
		{Address: 0x401020, Name: "Bar", Ordinal: 3},
		{Address: 0x401010, Ordinal: 2},
	}
	if len(pe.Exports) != len(want) {
		t.Fatalf("got %d exports, want %d: %+v", len(pe.Exports), len(want), pe.Exports)
	}
	for i := range want {
		if pe.Exports[i] != want[i] {
			t.Errorf("export %d = %+v, want %+v", i, pe.Exports[i], want[i])
		}
	}
}

func TestPEParser_ParsePE_Imports(t *testing.T) {
	kernel32 := testutil.PEImport{
		DLL:      "KERNEL32.dll",
		Symbols:  []string{"LoadLibraryA", "GetProcAddress"},
		Ordinals: []uint16{17},
	}
	opts := testutil.PEOptions{
		Imports: []testutil.PEImport{kernel32, {DLL: "USER32.dll", Symbols: []string{"MessageBoxA"}}},
	}
	data := testutil.BuildPE(opts)

	pe, err := NewPEParser(nil).ParsePE(data)
	if err != nil {
		t.Fatalf("ParsePE() error = %v", err)
	}

	if len(pe.Imports) != 2 {
		t.Fatalf("got %d imported libraries, want 2", len(pe.Imports))
	}
	if pe.Imports[0].DLL != "KERNEL32.dll" || pe.Imports[1].DLL != "USER32.dll" {
		t.Errorf("libraries = %s, %s; want table order", pe.Imports[0].DLL, pe.Imports[1].DLL)
	}

	syms, ok := pe.ImportsFor("KERNEL32.dll")
	if !ok || len(syms) != 3 {
		t.Fatalf("KERNEL32.dll symbols = %+v", syms)
	}
	if syms[0].Name != "LoadLibraryA" || syms[1].Name != "GetProcAddress" {
		t.Errorf("symbol names = %q, %q", syms[0].Name, syms[1].Name)
	}
	for i, sym := range syms {
		if want := testutil.PEIATSlot(opts, i); sym.Address != want {
			t.Errorf("symbol %d address = %#x, want %#x", i, sym.Address, want)
		}
	}
	if ord, ok := syms[2].Ordinal.Get(); !ok || ord != 17 || syms[2].Name != "" {
		t.Errorf("ordinal import = %+v, want ordinal 17 without name", syms[2])
	}
}

func TestPEParser_ParsePE_PE32Plus(t *testing.T) {
	opts := testutil.PEOptions{
		PE64: true,
		Imports: []testutil.PEImport{{
			DLL:      "KERNEL32.dll",
			Symbols:  []string{"VirtualAlloc", "ExitProcess"},
			Ordinals: []uint16{0x1234},
		}},
		Exports: []testutil.PEExport{{Name: "Run", RVA: 0x1000}, {RVA: 0x1040}},
	}

	pe, err := NewPEParser(nil).ParsePE(testutil.BuildPE(opts))
	if err != nil {
		t.Fatalf("ParsePE() error = %v", err)
	}

	if !pe.Is64() {
		t.Error("Is64() = false for a PE32+ image")
	}
	if m, ok := pe.Machine.Get(); !ok || m != 0x8664 {
		t.Errorf("Machine = %#x, want 0x8664", m)
	}
	if base, ok := pe.ImageBase.Get(); !ok || base != testutil.PEImageBase64 {
		t.Errorf("ImageBase = %#x, want %#x", base, uint64(testutil.PEImageBase64))
	}
	if off, ok := pe.EntryPointOffset.Get(); !ok || off != testutil.PETextOffset {
		t.Errorf("EntryPointOffset = %#x, want %#x", off, testutil.PETextOffset)
	}

	syms, ok := pe.ImportsFor("KERNEL32.dll")
	if !ok || len(syms) != 3 {
		t.Fatalf("KERNEL32.dll symbols = %+v", syms)
	}
	if syms[0].Name != "VirtualAlloc" || syms[1].Name != "ExitProcess" {
		t.Errorf("symbol names = %q, %q", syms[0].Name, syms[1].Name)
	}
	for i, sym := range syms {
		if want := testutil.PEIATSlot(opts, i); sym.Address != want {
			t.Errorf("symbol %d address = %#x, want %#x", i, sym.Address, want)
		}
	}
	if ord, ok := syms[2].Ordinal.Get(); !ok || ord != 0x1234 || syms[2].Name != "" {
		t.Errorf("ordinal import = %+v, want ordinal 0x1234 without name", syms[2])
	}

	want := []entities.ExportedSymbol{
		{Address: testutil.PEImageBase64 + 0x1000, Name: "Run", Ordinal: 1},
		{Address: testutil.PEImageBase64 + 0x1040, Ordinal: 2},
	}
	if len(pe.Exports) != len(want) {
		t.Fatalf("got %d exports, want %d: %+v", len(pe.Exports), len(want), pe.Exports)
	}
	for i := range want {
		if pe.Exports[i] != want[i] {
			t.Errorf("export %d = %+v, want %+v", i, pe.Exports[i], want[i])
		}
	}
}

// overlappingImports returns an image whose descriptors each start one entry
// further into a single lookup table, so every table is a suffix of the first
func overlappingImports(descriptors, entries int) []byte {
	const dirOff, tableOff, nameOff = 0x400, 0x800, 0xf00
	data := testutil.BuildPE(testutil.PEOptions{})
	le := binary.LittleEndian
	text := data[testutil.PETextOffset:]

	copy(text[nameOff+2:], "Sleep")
	copy(text[nameOff+0x20:], "KERNEL32.dll")
	for i := 0; i < entries; i++ {
		le.PutUint32(text[tableOff+i*4:], testutil.PETextRVA+nameOff)
	}
	for i := 0; i < descriptors; i++ {
		d := dirOff + i*20
		table := uint32(testutil.PETextRVA + tableOff + i*4)
		le.PutUint32(text[d:], table)
		le.PutUint32(text[d+12:], testutil.PETextRVA+nameOff+0x20)
		le.PutUint32(text[d+16:], table)
	}

	opt := testutil.PELfanew + 4 + 20
	le.PutUint32(data[opt+104:], testutil.PETextRVA+dirOff)
	le.PutUint32(data[opt+108:], uint32(20*(descriptors+1)))
	return data
}

func TestPEParser_ParsePE_ImportBudget(t *testing.T) {
	parser := NewPEParser(nil)

	pe, err := parser.ParsePE(overlappingImports(2, 100))
	if err != nil {
		t.Fatalf("ParsePE() error = %v", err)
	}
	if len(pe.Imports) != 2 || len(pe.Imports[0].Symbols) != 100 || len(pe.Imports[1].Symbols) != 99 {
		t.Fatalf("imports = %d libraries", len(pe.Imports))
	}
	for _, sym := range pe.Imports[1].Symbols {
		if sym.Name != "Sleep" {
			t.Fatalf("symbol name = %q, want Sleep", sym.Name)
		}
	}

	// 50 overlapping tables of up to 400 entries declare far more entries
	// than a 4.5 KiB file can hold
	data := overlappingImports(50, 400)
	pe, err = parser.ParsePE(data)
	if !errors.Is(err, entities.ErrMalformedContainer) {
		t.Fatalf("ParsePE() error = %v, want ErrMalformedContainer", err)
	}
	if pe != nil {
		t.Error("ParsePE() should not return a partial structure on error")
	}

	allocs := testing.AllocsPerRun(5, func() {
		_, _ = parser.ParsePE(data)
	})
	if budget := float64(len(data)) / 4; allocs > budget {
		t.Errorf("ParsePE() made %.0f allocations, want at most %.0f for a %d-byte file", allocs, budget, len(data))
	}
}

func TestPEParser_ParsePE_Malformed(t *testing.T) {
	valid := testutil.BuildPE(testutil.PEOptions{Exports: []testutil.PEExport{{Name: "Foo", RVA: 0x1000}}})
	withImports := testutil.BuildPE(testutil.PEOptions{Imports: []testutil.PEImport{
		{DLL: "KERNEL32.dll", Symbols: []string{"ExitProcess"}},
		{DLL: "USER32.dll", Symbols: []string{"MessageBoxA"}},
	}})
	optHeader := testutil.PELfanew + 4 + 20
	exportDir := testutil.PETextOffset + 0x100
	importDir := testutil.PETextOffset + 0x400

	mutate := func(src []byte, f func(b []byte)) []byte {
		b := append([]byte(nil), src...)
		f(b)
		return b
	}

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"not mz", mutate(valid, func(b []byte) { b[0] = 'X' })},
		{"truncated dos header", valid[:0x20]},
		{"pe offset past end", mutate(valid, func(b []byte) { binary.LittleEndian.PutUint32(b[0x3c:], 0xfffffff0) })},
		{"bad pe signature", mutate(valid, func(b []byte) { b[testutil.PELfanew] = 'N' })},
		{"section count overflow", testutil.BuildPE(testutil.PEOptions{DeclaredSections: 0xffff})},
		{"section table cut off", valid[:testutil.PESectionTable+20]},
		{"optional header past end", mutate(valid, func(b []byte) {
			binary.LittleEndian.PutUint16(b[testutil.PELfanew+4+16:], 0xfff0)
		})},
		{"export directory outside file", mutate(valid, func(b []byte) {
			binary.LittleEndian.PutUint32(b[optHeader+96:], 0x7ffffff0)
		})},
		{"export name ordinal out of range", mutate(valid, func(b []byte) {
			ords := binary.LittleEndian.Uint32(b[exportDir+36:]) - testutil.PETextRVA + testutil.PETextOffset
			binary.LittleEndian.PutUint16(b[ords:], 5)
		})},
		{"export table larger than file", mutate(valid, func(b []byte) {
			binary.LittleEndian.PutUint32(b[exportDir+20:], 0x10000000)
		})},
		{"import directory smaller than its descriptors", mutate(withImports, func(b []byte) {
			binary.LittleEndian.PutUint32(b[optHeader+108:], 20)
		})},
		{"import descriptors share a lookup table", mutate(withImports, func(b []byte) {
			binary.LittleEndian.PutUint32(b[importDir+20:], binary.LittleEndian.Uint32(b[importDir:]))
		})},
	}

	parser := NewPEParser(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pe, err := parser.ParsePE(tt.data)
			if !errors.Is(err, entities.ErrMalformedContainer) {
				t.Errorf("ParsePE() error = %v, want ErrMalformedContainer", err)
			}
			if pe != nil {
				t.Error("ParsePE() should not return a partial structure on error")
			}
		})
	}
}

func TestPEParser_ParsePE_ShortOptionalHeader(t *testing.T) {
	data := testutil.BuildPE(testutil.PEOptions{})
	// Keep only Magic and the linker version fields
	binary.LittleEndian.PutUint16(data[testutil.PELfanew+4+16:], 4)

	pe, err := NewPEParser(nil).ParsePE(data)
	if err != nil {
		t.Fatalf("ParsePE() error = %v", err)
	}
	if !pe.Magic.Present() {
		t.Error("Magic should be present")
	}
	if pe.EntryPointRVA.Present() || pe.ImageBase.Present() || pe.SizeOfHeaders.Present() {
		t.Errorf("fields beyond the declared optional header must be absent: %+v", pe)
	}
	if pe.EntryPointOffset.Present() {
		t.Error("EntryPointOffset should be absent without an entry point")
	}
}

// FuzzPEParser tests the PE parser against random/malformed inputs
// to detect crashes, panics, or out-of-bounds reads.
//
// Run with: go test -fuzz=FuzzPEParser -fuzztime=30s
func FuzzPEParser(f *testing.F) {
	f.Add(testutil.BuildPE(testutil.PEOptions{}))
	f.Add(testutil.BuildPE(testutil.PEOptions{
		Exports: []testutil.PEExport{{Name: "Foo", RVA: 0x1000}, {RVA: 0x1004}},
		Imports: []testutil.PEImport{{DLL: "KERNEL32.dll", Symbols: []string{"ExitProcess"}, Ordinals: []uint16{3}}},
	}))
	f.Add(testutil.BuildPE(testutil.PEOptions{DeclaredSections: 96}))
	f.Add(testutil.BuildPE(testutil.PEOptions{
		PE64:    true,
		Imports: []testutil.PEImport{{DLL: "KERNEL32.dll", Symbols: []string{"ExitProcess"}, Ordinals: []uint16{3}}},
	}))
	f.Add([]byte("MZ"))
	f.Add([]byte{})

	parser := NewPEParser(nil)
	f.Fuzz(func(t *testing.T, data []byte) {
		pe, err := parser.ParsePE(data)
		if err != nil {
			if !errors.Is(err, entities.ErrMalformedContainer) {
				t.Errorf("unexpected error type: %v", err)
			}
			return
		}
		if off, ok := pe.EntryPointOffset.Get(); ok && int(off) >= len(data) {
			t.Errorf("EntryPointOffset %#x outside %d-byte input", off, len(data))
		}
	})
}
