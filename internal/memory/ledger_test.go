package memory

import (
	"strings"
	"testing"
)

func TestExtractLedgerItems(t *testing.T) {
	text := "רכוש מכונת גלידה מקצועית. בנוסף נדרשים 500 גרם אגר-אגר לייצוב המרקם."
	items := ExtractLedgerItems(text)
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2: %v", len(items), items)
	}
	if items[0] != "מכונת גלידה מקצועית" {
		t.Errorf("first item = %q", items[0])
	}
	if !strings.HasPrefix(items[1], "500 גרם") {
		t.Errorf("quantity item = %q", items[1])
	}
}

func TestExtractLedgerItemsDedupes(t *testing.T) {
	text := "רכוש אגר אגר. רכוש אגר אגר."
	items := ExtractLedgerItems(text)
	if len(items) != 1 {
		t.Errorf("got %d items, want 1: %v", len(items), items)
	}
}

func TestExtractLedgerItemsLengthBounds(t *testing.T) {
	if items := ExtractLedgerItems("רכוש זה."); len(items) != 0 {
		t.Errorf("item of 2 runes should be dropped, got %v", items)
	}
	long := "רכוש " + strings.Repeat("א", 250) + "."
	if items := ExtractLedgerItems(long); len(items) != 0 {
		t.Errorf("item over 200 runes should be dropped, got %v", items)
	}
}

func TestExtractLedgerItemsNoMatches(t *testing.T) {
	if items := ExtractLedgerItems("סתם משפט בלי הוראות רכישה"); len(items) != 0 {
		t.Errorf("got %v, want none", items)
	}
}

func TestChunkTextRespectsSentences(t *testing.T) {
	text := "משפט ראשון כאן. משפט שני כאן. משפט שלישי כאן."
	chunks := ChunkText(text, 35)
	if len(chunks) < 2 {
		t.Fatalf("got %d chunks, want split: %v", len(chunks), chunks)
	}
	for _, chunk := range chunks {
		if strings.HasPrefix(chunk, " ") {
			t.Errorf("chunk starts with space: %q", chunk)
		}
	}
	joined := strings.Join(chunks, " ")
	if !strings.Contains(joined, "משפט שלישי כאן.") {
		t.Errorf("content lost in chunking: %v", chunks)
	}
}

func TestChunkTextSingleChunk(t *testing.T) {
	chunks := ChunkText("טקסט קצר.", 0)
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
}

func TestChunkTextEmpty(t *testing.T) {
	if chunks := ChunkText("   ", 100); len(chunks) != 0 {
		t.Errorf("got %v, want none", chunks)
	}
}
