package storage

import (
	"os"
	"path/filepath"
	"testing"
)

type sampleDoc struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestDocumentRoundTrip(t *testing.T) {
	dir := t.TempDir()
	doc, err := NewDocument[sampleDoc](filepath.Join(dir, "sample.json"))
	if err != nil {
		t.Fatalf("NewDocument: %v", err)
	}

	want := sampleDoc{Name: "kelvin", Count: 3}
	if err := doc.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got := doc.Load(sampleDoc{})
	if got != want {
		t.Errorf("Load = %+v, want %+v", got, want)
	}
}

func TestDocumentMissingFileReturnsDefault(t *testing.T) {
	dir := t.TempDir()
	doc, err := NewDocument[sampleDoc](filepath.Join(dir, "missing.json"))
	if err != nil {
		t.Fatalf("NewDocument: %v", err)
	}

	def := sampleDoc{Name: "default"}
	got := doc.Load(def)
	if got != def {
		t.Errorf("Load on missing file = %+v, want default %+v", got, def)
	}
	if doc.Exists() {
		t.Error("Exists = true for missing file")
	}
}

func TestDocumentCorruptFileReturnsDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "corrupt.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	doc, err := NewDocument[sampleDoc](path)
	if err != nil {
		t.Fatalf("NewDocument: %v", err)
	}

	def := sampleDoc{Name: "fallback"}
	if got := doc.Load(def); got != def {
		t.Errorf("Load on corrupt file = %+v, want default %+v", got, def)
	}
}

func TestDocumentCreatesParentDir(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "a", "b", "doc.json")
	doc, err := NewDocument[[]string](nested)
	if err != nil {
		t.Fatalf("NewDocument: %v", err)
	}
	if err := doc.Save([]string{"x"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if got := doc.Load(nil); len(got) != 1 || got[0] != "x" {
		t.Errorf("Load = %v, want [x]", got)
	}
}
