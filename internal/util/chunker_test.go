package util

import "testing"

func TestChunkText(t *testing.T) {
	text := "abcdefghijklmnopqrstuvwxyz"
	chunks := ChunkText(text, 10, 2)
	if len(chunks) < 3 {
		t.Fatalf("expected at least 3 chunks, got %d", len(chunks))
	}
	if chunks[0] != "abcdefghij" {
		t.Fatalf("unexpected first chunk: %s", chunks[0])
	}
	if chunks[1] != "ijklmnopqr" {
		t.Fatalf("unexpected second chunk: %s", chunks[1])
	}
}

func TestChunkTextDeterministic(t *testing.T) {
	text := "The quick brown fox jumps over the lazy dog. " +
		"Pack my box with five dozen liquor jugs. " +
		"How vexingly quick daft zebras jump!"
	a := ChunkText(text, 40, 10)
	b := ChunkText(text, 40, 10)
	if len(a) != len(b) {
		t.Fatalf("chunk count differs across runs: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("chunk %d differs across runs: %q vs %q", i, a[i], b[i])
		}
	}
}

func TestChunkTextLastChunkShorter(t *testing.T) {
	chunks := ChunkText("abcdefghijk", 5, 0)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if chunks[2] != "k" {
		t.Fatalf("unexpected last chunk: %q", chunks[2])
	}
}

func TestChunkTextShortInput(t *testing.T) {
	chunks := ChunkText("hi", 100, 20)
	if len(chunks) != 1 || chunks[0] != "hi" {
		t.Fatalf("unexpected chunks for short input: %v", chunks)
	}
}

func TestChunkTextBadOverlapFallsBack(t *testing.T) {
	chunks := ChunkText("abcdefghij", 4, 10)
	if len(chunks) != 3 {
		t.Fatalf("expected overlap reset to zero, got %d chunks", len(chunks))
	}
}
