package audio

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteReadChunkRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	pcm := []byte{1, 2, 3, 4, 5, 6}
	if err := WriteChunk(&buf, pcm); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := ReadChunk(&buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(got, pcm) {
		t.Fatalf("expected %v, got %v", pcm, got)
	}
}

func TestWriteChunkRejectsOversize(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteChunk(&buf, make([]byte, MaxChunkBytes+1)); err != ErrChunkTooLarge {
		t.Fatalf("expected ErrChunkTooLarge, got %v", err)
	}
}

func TestMultipleChunksSequential(t *testing.T) {
	var buf bytes.Buffer
	chunks := [][]byte{{1}, {2, 2}, {}, {3, 3, 3}}
	for _, c := range chunks {
		if err := WriteChunk(&buf, c); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	for _, want := range chunks {
		got, err := ReadChunk(&buf)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestSocketPathFormat(t *testing.T) {
	if got := SocketPath(DirMic, 1234); got != "/tmp/rb-mic-1234.sock" {
		t.Fatalf("unexpected path: %s", got)
	}
	if got := SocketPath(DirSpk, 1234); got != "/tmp/rb-spk-1234.sock" {
		t.Fatalf("unexpected path: %s", got)
	}
}

func TestNewPathsMatchesSocketPath(t *testing.T) {
	p := NewPaths(99)
	if p.Mic != SocketPath(DirMic, 99) || p.Spk != SocketPath(DirSpk, 99) {
		t.Fatalf("unexpected paths: %+v", p)
	}
}

func TestUnlinkStaleRemovesBothFiles(t *testing.T) {
	dir := t.TempDir()
	p := Paths{Mic: filepath.Join(dir, "mic.sock"), Spk: filepath.Join(dir, "spk.sock")}
	os.WriteFile(p.Mic, []byte{}, 0o644)
	os.WriteFile(p.Spk, []byte{}, 0o644)

	p.UnlinkStale()

	if _, err := os.Stat(p.Mic); !os.IsNotExist(err) {
		t.Fatal("expected mic socket file removed")
	}
	if _, err := os.Stat(p.Spk); !os.IsNotExist(err) {
		t.Fatal("expected spk socket file removed")
	}
}

func TestUnlinkStaleToleratesMissingFiles(t *testing.T) {
	dir := t.TempDir()
	p := Paths{Mic: filepath.Join(dir, "nope-mic.sock"), Spk: filepath.Join(dir, "nope-spk.sock")}
	p.UnlinkStale() // must not panic or error on missing files
}

func TestEncodeDecodeRelayChunkRoundTrip(t *testing.T) {
	pcm := []byte{0, 1, 2, 3, 255, 254}
	encoded := EncodeRelayChunk(pcm)
	decoded, err := DecodeRelayChunk(encoded)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(decoded, pcm) {
		t.Fatalf("expected %v, got %v", pcm, decoded)
	}
}

func TestDecodeRelayChunkRejectsInvalidBase64(t *testing.T) {
	if _, err := DecodeRelayChunk("not-valid-base64!!"); err == nil {
		t.Fatal("expected error decoding invalid base64")
	}
}
