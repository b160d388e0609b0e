// Package catalogio writes catalog snapshots to files and reads them back.
// The format follows the file extension: .parquet, .jsonl or .yaml.
package catalogio

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"
	"gopkg.in/yaml.v3"

	"github.com/lehigh-university-libraries/bookledger/internal/models"
)

// Meta describes where a snapshot was taken
type Meta struct {
	Network  string `yaml:"network"`
	ChainID  uint64 `yaml:"chain_id"`
	Contract string `yaml:"contract"`
}

// Snapshot is the YAML document layout
type Snapshot struct {
	ExportedAt string        `yaml:"exported_at"`
	Meta       Meta          `yaml:"source"`
	Books      []models.Book `yaml:"books"`
}

// row is the parquet layout of a book; times are unix seconds.
type row struct {
	ID        uint64 `parquet:"id"`
	Title     string `parquet:"title"`
	Author    string `parquet:"author"`
	Publisher string `parquet:"publisher"`
	Year      uint64 `parquet:"year"`
	OnLoan    bool   `parquet:"on_loan"`
	AddedAt   int64  `parquet:"added_at"`
}

func toRow(b models.Book) row {
	r := row{
		ID:        b.ID,
		Title:     b.Title,
		Author:    b.Author,
		Publisher: b.Publisher,
		Year:      b.Year,
		OnLoan:    b.OnLoan,
	}
	if !b.AddedAt.IsZero() {
		r.AddedAt = b.AddedAt.Unix()
	}
	return r
}

func (r row) book() models.Book {
	b := models.Book{
		ID:        r.ID,
		Title:     r.Title,
		Author:    r.Author,
		Publisher: r.Publisher,
		Year:      r.Year,
		OnLoan:    r.OnLoan,
	}
	if r.AddedAt != 0 {
		b.AddedAt = time.Unix(r.AddedAt, 0).UTC()
	}
	return b
}

func format(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".parquet", ".jsonl", ".yaml":
		return ext, nil
	case ".json":
		return ".jsonl", nil
	case ".yml":
		return ".yaml", nil
	}
	return "", fmt.Errorf("unsupported file format: %s (supported: .parquet, .jsonl, .yaml)", ext)
}

// Export writes books to path
func Export(path string, books []models.Book, meta Meta) error {
	ext, err := format(path)
	if err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	defer file.Close()

	switch ext {
	case ".parquet":
		err = writeParquet(file, books)
	case ".jsonl":
		err = writeJSONL(file, books)
	default:
		err = writeYAML(file, books, meta)
	}
	if err != nil {
		return err
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close export file: %w", err)
	}

	slog.Info("Catalog exported", "path", path, "books", len(books))
	return nil
}

func writeParquet(w io.Writer, books []models.Book) error {
	rows := make([]row, len(books))
	for i, b := range books {
		rows[i] = toRow(b)
	}

	writer := parquet.NewGenericWriter[row](w)
	if _, err := writer.Write(rows); err != nil {
		return fmt.Errorf("failed to write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finish parquet file: %w", err)
	}
	return nil
}

func writeJSONL(w io.Writer, books []models.Book) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	for _, b := range books {
		if err := enc.Encode(b); err != nil {
			return fmt.Errorf("failed to encode book %d: %w", b.ID, err)
		}
	}
	return bw.Flush()
}

func writeYAML(w io.Writer, books []models.Book, meta Meta) error {
	snap := Snapshot{
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		Meta:       meta,
		Books:      books,
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(snap); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	return enc.Close()
}

// Load reads the books stored in path
func Load(path string) ([]models.Book, error) {
	ext, err := format(path)
	if err != nil {
		return nil, err
	}

	slog.Debug("Opening catalog file", "path", path)
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog file: %w", err)
	}
	defer file.Close()

	switch ext {
	case ".parquet":
		return loadParquet(file)
	case ".jsonl":
		return loadJSONL(file)
	default:
		return loadYAML(file)
	}
}

func loadParquet(file *os.File) ([]models.Book, error) {
	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	pf, err := parquet.OpenFile(file, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet: %w", err)
	}
	slog.Debug("Parquet file opened", "num_rows", pf.NumRows(), "num_row_groups", len(pf.RowGroups()))

	reader := parquet.NewGenericReader[row](pf)
	defer reader.Close()

	var books []models.Book
	rows := make([]row, 128)
	for {
		n, err := reader.Read(rows)
		for _, r := range rows[:n] {
			books = append(books, r.book())
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read parquet rows: %w", err)
		}
	}
	return books, nil
}

func loadJSONL(r io.Reader) ([]models.Book, error) {
	var books []models.Book
	scanner := bufio.NewScanner(r)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}

		var b models.Book
		if err := json.Unmarshal(line, &b); err != nil {
			return nil, fmt.Errorf("failed to parse JSON at line %d: %w", lineNum, err)
		}
		books = append(books, b)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading catalog: %w", err)
	}
	return books, nil
}

func loadYAML(r io.Reader) ([]models.Book, error) {
	var snap Snapshot
	if err := yaml.NewDecoder(r).Decode(&snap); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return snap.Books, nil
}

// Drafts turns loaded books into add-book forms
func Drafts(books []models.Book) []models.Draft {
	drafts := make([]models.Draft, len(books))
	for i, b := range books {
		drafts[i] = models.DraftFromBook(b)
	}
	return drafts
}
