package catalogio

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lehigh-university-libraries/bookledger/internal/models"
)

func sampleBooks() []models.Book {
	return []models.Book{
		{ID: 0, Title: "Ficciones", Author: "Jorge Luis Borges", Publisher: "Sur", Year: 1944,
			AddedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)},
		{ID: 1, Title: "Rayuela", Author: "Julio Cortázar", Publisher: "Sudamericana", Year: 1963, OnLoan: true,
			AddedAt: time.Date(2024, 3, 2, 8, 30, 0, 0, time.UTC)},
		{ID: 2, Title: "Sin fecha", Author: "Anónimo", Publisher: "Desconocida", Year: 0},
	}
}

func TestExportLoad(t *testing.T) {
	meta := Meta{Network: "Sepolia", ChainID: 11155111, Contract: "0x5FbDB2315678afecb367f032d93F642f64180aa3"}

	for _, name := range []string{"catalog.parquet", "catalog.jsonl", "catalog.yaml", "catalog.yml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			if err := Export(path, sampleBooks(), meta); err != nil {
				t.Fatalf("Export failed: %v", err)
			}

			books, err := Load(path)
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			want := sampleBooks()
			if len(books) != len(want) {
				t.Fatalf("Expected %d books, got %d", len(want), len(books))
			}
			for i := range want {
				if !books[i].AddedAt.Equal(want[i].AddedAt) {
					t.Errorf("Book %d: expected added %v, got %v", i, want[i].AddedAt, books[i].AddedAt)
				}
				books[i].AddedAt = want[i].AddedAt
				if books[i] != want[i] {
					t.Errorf("Book %d: expected %+v, got %+v", i, want[i], books[i])
				}
			}
		})
	}
}

func TestUnsupportedFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.csv")
	if err := Export(path, sampleBooks(), Meta{}); err == nil {
		t.Error("Expected export error for csv")
	}
	if _, err := Load(path); err == nil {
		t.Error("Expected load error for csv")
	}
}

func TestLoadJSONLErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.jsonl")
	content := "{\"id\":0,\"title\":\"Ficciones\"}\n\nnot json\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Error("Expected parse error")
	}
}

func TestDrafts(t *testing.T) {
	drafts := Drafts(sampleBooks())
	if len(drafts) != 3 {
		t.Fatalf("Expected 3 drafts, got %d", len(drafts))
	}
	want := models.Draft{Title: "Rayuela", Author: "Julio Cortázar", Publisher: "Sudamericana", Year: "1963"}
	if drafts[1] != want {
		t.Errorf("Expected %+v, got %+v", want, drafts[1])
	}
}
