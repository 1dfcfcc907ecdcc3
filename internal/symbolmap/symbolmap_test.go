package symbolmap

import (
	"os"
	"path/filepath"
	"testing"

	"ledisasm/internal/label"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "syms.map")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadMapFileParsesTypesAndComments(t *testing.T) {
	content := `; entry points
0x1000 FUNCTION main
2000 DATA g_config
3000 some_implicit_function ; trailing comment

`
	path := writeTemp(t, content)
	m, err := LoadMapFile(path)
	if err != nil {
		t.Fatalf("LoadMapFile: %v", err)
	}
	if m.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", m.Len())
	}

	var got []Symbol
	m.All(func(s Symbol) { got = append(got, s) })

	want := []Symbol{
		{Address: 0x1000, Type: label.Function, Name: "main"},
		{Address: 0x2000, Type: label.Data, Name: "g_config"},
		{Address: 0x3000, Type: label.Function, Name: "some_implicit_function"},
	}
	for i, w := range want {
		if got[i] != w {
			t.Errorf("symbol %d = %+v, want %+v", i, got[i], w)
		}
	}
}

func TestLoadMapFileRejectsMalformedLine(t *testing.T) {
	path := writeTemp(t, "justonefield\n")
	if _, err := LoadMapFile(path); err == nil {
		t.Error("LoadMapFile with a malformed line: want error, got nil")
	}
}

func TestAppendCombinesMaps(t *testing.T) {
	a := &Map{symbols: []Symbol{{Address: 1, Name: "a"}}}
	b := &Map{symbols: []Symbol{{Address: 2, Name: "b"}}}
	a.Append(b)
	if a.Len() != 2 {
		t.Errorf("Len() = %d, want 2", a.Len())
	}
}
