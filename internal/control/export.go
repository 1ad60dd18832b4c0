package control

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/vietddude/enrich/internal/core/domain"
)

// readExport loads a bookmark export from a file, or stdin when the path is
// empty or "-". A bare JSON array of bookmarks is accepted as well as the
// full export object.
func readExport(path string) (*domain.Export, error) {
	var data []byte
	var err error
	if path == "" || path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read export: %w", err)
	}

	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var bookmarks []domain.Bookmark
		if err := json.Unmarshal(data, &bookmarks); err != nil {
			return nil, fmt.Errorf("failed to parse export: %w", err)
		}
		return &domain.Export{Bookmarks: bookmarks}, nil
	}

	var export domain.Export
	if err := json.Unmarshal(data, &export); err != nil {
		return nil, fmt.Errorf("failed to parse export: %w", err)
	}
	return &export, nil
}

// writeExport writes the enriched export to a file, or stdout when the path
// is empty or "-".
func writeExport(path string, export *domain.Export) error {
	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode export: %w", err)
	}
	data = append(data, '\n')

	if path == "" || path == "-" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	return nil
}
