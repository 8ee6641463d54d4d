// Package zip bundles rendered images into a single downloadable archive.
package zip

import (
	"archive/zip"
	"bytes"
	"fmt"
	"strings"
)

type Entry struct {
	Name string
	MIME string
	Data []byte
}

// Archive writes the entries into a zip archive. Names without an extension
// get one derived from the MIME type; duplicate names are suffixed with a
// counter so no entry silently overwrites another.
func Archive(entries []Entry) ([]byte, error) {
	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	seen := make(map[string]int, len(entries))

	for _, entry := range entries {
		name := entryName(entry)
		if n := seen[name]; n > 0 {
			ext := ""
			if dot := strings.LastIndex(name, "."); dot > 0 {
				ext = name[dot:]
				name = name[:dot]
			}
			name = fmt.Sprintf("%s-%d%s", name, n+1, ext)
		}
		seen[entryName(entry)]++

		w, err := zw.Create(name)
		if err != nil {
			return nil, fmt.Errorf("add %s: %w", name, err)
		}
		if _, err := w.Write(entry.Data); err != nil {
			return nil, fmt.Errorf("write %s: %w", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func entryName(entry Entry) string {
	name := strings.TrimSpace(entry.Name)
	if name == "" {
		name = "image"
	}
	if strings.Contains(name, ".") {
		return name
	}
	return name + "." + extensionFor(entry.MIME)
}

func extensionFor(mime string) string {
	switch strings.ToLower(strings.TrimSpace(mime)) {
	case "image/png":
		return "png"
	case "image/webp":
		return "webp"
	default:
		return "jpg"
	}
}
