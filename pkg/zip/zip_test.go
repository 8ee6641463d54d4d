package zip

import (
	"archive/zip"
	"bytes"
	"testing"
)

func TestArchiveNamesAndContents(t *testing.T) {
	data, err := Archive([]Entry{
		{Name: "root", MIME: "image/jpeg", Data: []byte("aaa")},
		{Name: "edit", MIME: "image/png", Data: []byte("bbb")},
		{Name: "edit", MIME: "image/png", Data: []byte("ccc")},
	})
	if err != nil {
		t.Fatalf("archive: %v", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	want := map[string]string{
		"root.jpg":   "aaa",
		"edit.png":   "bbb",
		"edit-2.png": "ccc",
	}
	if len(zr.File) != len(want) {
		t.Fatalf("entries = %d, want %d", len(zr.File), len(want))
	}
	for _, f := range zr.File {
		body, ok := want[f.Name]
		if !ok {
			t.Fatalf("unexpected entry %q", f.Name)
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", f.Name, err)
		}
		var buf bytes.Buffer
		if _, err := buf.ReadFrom(rc); err != nil {
			t.Fatalf("read %s: %v", f.Name, err)
		}
		rc.Close()
		if buf.String() != body {
			t.Fatalf("entry %s = %q, want %q", f.Name, buf.String(), body)
		}
	}
}

func TestArchiveEmpty(t *testing.T) {
	data, err := Archive(nil)
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	if len(zr.File) != 0 {
		t.Fatalf("entries = %d, want 0", len(zr.File))
	}
}
