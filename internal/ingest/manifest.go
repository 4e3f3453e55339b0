// Package ingest drives batch anonymization runs from a manifest file of
// document references.
package ingest

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/segmentio/parquet-go"
)

// ManifestEntry names one document to process.
type ManifestEntry struct {
	Collection string `csv:"collection" parquet:"collection" json:"collection"`
	DocumentID string `csv:"document_id" parquet:"document_id" json:"document_id"`
}

// FileFormat identifies a supported manifest format.
type FileFormat string

const (
	FormatCSV     FileFormat = "csv"
	FormatJSON    FileFormat = "json"
	FormatParquet FileFormat = "parquet"
)

// DetectFormat picks the manifest format from the file extension.
func DetectFormat(path string) (FileFormat, error) {
	switch {
	case strings.HasSuffix(path, ".csv"):
		return FormatCSV, nil
	case strings.HasSuffix(path, ".json") || strings.HasSuffix(path, ".jsonl"):
		return FormatJSON, nil
	case strings.HasSuffix(path, ".parquet"):
		return FormatParquet, nil
	default:
		return "", fmt.Errorf("unsupported manifest format: %s", path)
	}
}

// ReadManifest loads every entry from the manifest file. Entries without a
// document id are dropped.
func ReadManifest(path string) ([]ManifestEntry, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening manifest: %w", err)
	}
	defer file.Close()

	var entries []ManifestEntry
	switch format {
	case FormatCSV:
		entries, err = readCSV(file)
	case FormatJSON:
		entries, err = readJSON(file)
	case FormatParquet:
		entries, err = readParquet(file)
	}
	if err != nil {
		return nil, fmt.Errorf("reading manifest %s: %w", path, err)
	}

	kept := entries[:0]
	for _, entry := range entries {
		if entry.DocumentID != "" {
			kept = append(kept, entry)
		}
	}
	return kept, nil
}

func readCSV(file *os.File) ([]ManifestEntry, error) {
	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	collectionIdx, documentIdx := -1, -1
	for i, column := range header {
		switch strings.TrimSpace(strings.ToLower(column)) {
		case "collection":
			collectionIdx = i
		case "document_id", "id":
			documentIdx = i
		}
	}
	if documentIdx < 0 {
		return nil, fmt.Errorf("manifest has no document_id column")
	}

	var entries []ManifestEntry
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		entry := ManifestEntry{DocumentID: row[documentIdx]}
		if collectionIdx >= 0 && collectionIdx < len(row) {
			entry.Collection = row[collectionIdx]
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// readJSON reads one JSON object per line.
func readJSON(file *os.File) ([]ManifestEntry, error) {
	decoder := json.NewDecoder(file)

	var entries []ManifestEntry
	for {
		var entry ManifestEntry
		if err := decoder.Decode(&entry); err == io.EOF {
			break
		} else if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func readParquet(file *os.File) ([]ManifestEntry, error) {
	reader := parquet.NewReader(file)
	defer reader.Close()

	var entries []ManifestEntry
	for {
		var entry ManifestEntry
		if err := reader.Read(&entry); err == io.EOF {
			break
		} else if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
