package entities

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestOptional_JSON(t *testing.T) {
	type doc struct {
		A Optional[int]    `json:"a"`
		B Optional[string] `json:"b"`
	}

	data, err := json.Marshal(doc{A: Some(0), B: None[string]()})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(data) != `{"a":0,"b":null}` {
		t.Errorf("Marshal() = %s", data)
	}

	var got doc
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if v, ok := got.A.Get(); !ok || v != 0 {
		t.Errorf("A = %v (present %v), want present 0", v, ok)
	}
	if got.B.Present() {
		t.Error("B should be absent")
	}
}

func TestOptional_YAML(t *testing.T) {
	type doc struct {
		A Optional[uint32] `yaml:"a"`
		B Optional[uint32] `yaml:"b"`
	}

	data, err := yaml.Marshal(doc{A: Some(uint32(7))})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if !strings.Contains(string(data), "a: 7") || !strings.Contains(string(data), "b: null") {
		t.Errorf("Marshal() = %s", data)
	}

	var got doc
	if err := yaml.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if got.A.OrElse(0) != 7 || got.B.Present() {
		t.Errorf("Unmarshal() = %+v", got)
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{fmt.Errorf("%w: short read", ErrIO), KindIOError},
		{fmt.Errorf("%w: bad magic", ErrMalformedContainer), KindMalformedContainer},
		{fmt.Errorf("%w: upx missing", ErrExternalTool), KindExternalToolError},
		{fmt.Errorf("%w: not PE", ErrUnsupportedFormat), KindUnsupportedFormat},
		{fmt.Errorf("%w: bad pattern", ErrSignatureDatabase), KindSignatureDatabaseError},
		{fmt.Errorf("read: %w", context.DeadlineExceeded), KindUnknown},
		{fmt.Errorf("%w: read: %w", ErrIO, context.DeadlineExceeded), KindIOError},
		{errors.New("boom"), KindUnknown},
	}

	for _, tt := range tests {
		if got := KindOf(tt.err); got != tt.want {
			t.Errorf("KindOf(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestNewStepError_DeadlineKinds(t *testing.T) {
	deadline := fmt.Errorf("step: %w", context.DeadlineExceeded)

	tests := []struct {
		step string
		err  error
		want string
	}{
		{StepLoad, deadline, KindIOError},
		{StepHash, context.Canceled, KindIOError},
		{StepPacker, deadline, KindExternalToolError},
		{StepPE, deadline, KindUnknown},
		{StepPacker, fmt.Errorf("%w: bad db: %w", ErrSignatureDatabase, context.DeadlineExceeded), KindSignatureDatabaseError},
	}

	for _, tt := range tests {
		if got := NewStepError(tt.step, tt.err); got.Kind != tt.want {
			t.Errorf("NewStepError(%s, %v).Kind = %q, want %q", tt.step, tt.err, got.Kind, tt.want)
		}
	}
}

func TestAnalysisRecord_EncodedKeys(t *testing.T) {
	record := &AnalysisRecord{
		ID:       "id",
		Filename: "a.exe",
		Path:     "/samples/a.exe",
		FileType: "application/vnd.microsoft.portable-executable",
		FileSize: 4608,
		Fingerprints: &FingerprintSet{
			MD5: "m", SHA1: "s1", SHA256: "s256", CRC32: "0000abcd", SSDeep: None[string](),
		},
		Strings: &StringTable{ASCII: []string{}, Unicode: []string{}},
		Kind:    ContainerPE,
		PE:      &PEStructure{Imports: ImportTable{}, Exports: []ExportedSymbol{}},
		Errors:  []StepError{},
	}
	wantKeys := []string{"filename", "filetype", "filesize", "md5", "sha1", "sha256", "crc32", "ssdeep", "strings", "pe_info", "errors"}

	data, err := json.Marshal(record)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	var asJSON map[string]interface{}
	if err := json.Unmarshal(data, &asJSON); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	for _, key := range wantKeys {
		if _, ok := asJSON[key]; !ok {
			t.Errorf("JSON record has no %q key: %s", key, data)
		}
	}
	if _, ok := asJSON["fingerprints"]; ok {
		t.Error("fingerprints should not be nested")
	}
	if asJSON["crc32"] != "0000abcd" || asJSON["ssdeep"] != nil {
		t.Errorf("crc32/ssdeep = %v/%v", asJSON["crc32"], asJSON["ssdeep"])
	}

	out, err := yaml.Marshal(record)
	if err != nil {
		t.Fatalf("yaml.Marshal() error = %v", err)
	}
	var asYAML map[string]interface{}
	if err := yaml.Unmarshal(out, &asYAML); err != nil {
		t.Fatalf("yaml.Unmarshal() error = %v", err)
	}
	for _, key := range wantKeys {
		if _, ok := asYAML[key]; !ok {
			t.Errorf("YAML record has no %q key:\n%s", key, out)
		}
	}

	// A record without fingerprints carries no hash keys
	record.Fingerprints = nil
	data, err = json.Marshal(record)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	if strings.Contains(string(data), `"md5"`) {
		t.Errorf("record without fingerprints has hash keys: %s", data)
	}
}

func TestImportTable_OrderedMapping(t *testing.T) {
	table := ImportTable{
		{DLL: "USER32.dll", Symbols: []ImportedSymbol{{Address: 0x402000, Name: "MessageBoxA"}}},
		{DLL: "ADVAPI32.dll", Symbols: []ImportedSymbol{{Address: 0x402010, Ordinal: Some(uint16(7))}}},
		{DLL: "USER32.dll", Symbols: []ImportedSymbol{{Address: 0x402020, Name: "wsprintfA"}}},
	}

	data, err := json.Marshal(table)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	want := `{"USER32.dll":[{"address":4202496,"name":"MessageBoxA","ordinal":null},` +
		`{"address":4202528,"name":"wsprintfA","ordinal":null}],` +
		`"ADVAPI32.dll":[{"address":4202512,"name":"","ordinal":7}]}`
	if string(data) != want {
		t.Errorf("json.Marshal() =\n%s\nwant\n%s", data, want)
	}
	if len(table[0].Symbols) != 1 {
		t.Error("encoding must not modify the table")
	}

	out, err := yaml.Marshal(map[string]ImportTable{"imports": table})
	if err != nil {
		t.Fatalf("yaml.Marshal() error = %v", err)
	}
	var node yaml.Node
	if err := yaml.Unmarshal(out, &node); err != nil {
		t.Fatalf("yaml.Unmarshal() error = %v", err)
	}
	imports := node.Content[0].Content[1]
	if imports.Kind != yaml.MappingNode || len(imports.Content) != 4 {
		t.Fatalf("imports node = %v with %d children, want a 2-entry mapping", imports.Kind, len(imports.Content))
	}
	if imports.Content[0].Value != "USER32.dll" || imports.Content[2].Value != "ADVAPI32.dll" {
		t.Errorf("keys = %s, %s; want table order", imports.Content[0].Value, imports.Content[2].Value)
	}

	empty, err := json.Marshal(ImportTable{})
	if err != nil || string(empty) != "{}" {
		t.Errorf("empty table = %s, %v; want {}", empty, err)
	}
}

func TestAnalysisRecord_ErrorFor(t *testing.T) {
	r := &AnalysisRecord{}
	if r.HasErrors() {
		t.Error("empty record should have no errors")
	}
	r.Errors = append(r.Errors, NewStepError(StepPE, fmt.Errorf("%w: truncated", ErrMalformedContainer)))

	e, ok := r.ErrorFor(StepPE)
	if !ok || e.Kind != KindMalformedContainer || !strings.Contains(e.Message, "truncated") {
		t.Errorf("ErrorFor(pe) = %+v, %v", e, ok)
	}
	if _, ok := r.ErrorFor(StepHash); ok {
		t.Error("ErrorFor(hash) should not be found")
	}
}

func TestPackerMatch_Detected(t *testing.T) {
	var nilMatch *PackerMatch
	if nilMatch.Detected() {
		t.Error("nil match should detect nothing")
	}
	if (&PackerMatch{Signatures: []SignatureMatch{}}).Detected() {
		t.Error("empty match should detect nothing")
	}
	if !(&PackerMatch{Signatures: []SignatureMatch{{Name: "UPX"}}}).Detected() {
		t.Error("signature match should be detected")
	}
	if !(&PackerMatch{Label: Some("upx")}).Detected() {
		t.Error("label should be detected")
	}
}
