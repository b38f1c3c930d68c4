package uploads

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestSanitizeBase(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		wantBase string
		wantExt  string
	}{
		{"plain", "video.mp4", "video", "mp4"},
		{"spaces and specials", "my cool video!.mp4", "my_cool_video_", "mp4"},
		{"path is flattened", "../../etc/passwd", "passwd", ""},
		{"no extension", "README", "README", ""},
		{"only extension", ".gitignore", "upload", "gitignore"},
		{"keeps dashes and underscores", "a-b_c.webm", "a-b_c", "webm"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base, ext := SanitizeBase(tt.in)
			if base != tt.wantBase || ext != tt.wantExt {
				t.Errorf("SanitizeBase(%q) = (%q, %q), want (%q, %q)", tt.in, base, ext, tt.wantBase, tt.wantExt)
			}
		})
	}
}

func TestFinalName(t *testing.T) {
	now := time.Unix(1700000000, 0)
	if got := FinalName("holiday clip.mp4", now); got != "holiday_clip_1700000000.mp4" {
		t.Errorf("got %q", got)
	}
	if got := FinalName("raw", now); got != "raw_1700000000" {
		t.Errorf("got %q", got)
	}
}

func TestStore(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	t.Run("resolve missing file", func(t *testing.T) {
		if _, err := store.Resolve("ghost.mp4"); !errors.Is(err, ErrNotFound) {
			t.Errorf("got err %v", err)
		}
	})

	t.Run("resolve flattens paths", func(t *testing.T) {
		path := filepath.Join(store.Dir(), "clip_1.mp4")
		if err := os.WriteFile(path, []byte("abcd"), 0o644); err != nil {
			t.Fatal(err)
		}
		fin, err := store.Resolve("../secrets/clip_1.mp4")
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if fin.Name != "clip_1.mp4" || fin.Size != 4 || fin.Path != path {
			t.Errorf("fin = %+v", fin)
		}
	})

	t.Run("release is idempotent", func(t *testing.T) {
		path := filepath.Join(store.Dir(), "clip_2.mp4")
		if err := os.WriteFile(path, []byte("abcd"), 0o644); err != nil {
			t.Fatal(err)
		}
		if err := store.Release("clip_2.mp4"); err != nil {
			t.Fatalf("Release: %v", err)
		}
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Error("file still exists")
		}
		if err := store.Release("clip_2.mp4"); err != nil {
			t.Errorf("second Release: %v", err)
		}
	})
}

func TestParseContentRange(t *testing.T) {
	t.Run("empty means whole file", func(t *testing.T) {
		rng, err := ParseContentRange("")
		if err != nil || rng != nil {
			t.Errorf("got (%+v, %v)", rng, err)
		}
	})

	t.Run("valid header", func(t *testing.T) {
		rng, err := ParseContentRange("bytes 0-1023/4096")
		if err != nil {
			t.Fatal(err)
		}
		if rng.Start != 0 || rng.End != 1023 || rng.Total != 4096 {
			t.Errorf("rng = %+v", rng)
		}
	})

	t.Run("rejects malformed and inconsistent headers", func(t *testing.T) {
		for _, h := range []string{"bytes */4096", "0-1023/4096", "bytes 10-5/4096", "bytes 0-4096/4096"} {
			if _, err := ParseContentRange(h); err == nil {
				t.Errorf("ParseContentRange(%q) accepted", h)
			}
		}
	})
}

func newTestReceiver(t *testing.T) (*Receiver, *Store) {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "temp-videos"))
	if err != nil {
		t.Fatal(err)
	}
	recv, err := NewReceiver(filepath.Join(t.TempDir(), "parts"), store)
	if err != nil {
		t.Fatal(err)
	}
	recv.now = func() time.Time { return time.Unix(1700000000, 0) }
	return recv, store
}

func TestReceiver(t *testing.T) {
	t.Run("chunks assemble in order", func(t *testing.T) {
		recv, store := newTestReceiver(t)

		res, err := recv.Receive("movie.mp4", strings.NewReader("hello "), &ByteRange{Start: 0, End: 5, Total: 11})
		if err != nil {
			t.Fatalf("first chunk: %v", err)
		}
		if res.Finished || res.Done < 54 || res.Done > 55 {
			t.Errorf("first chunk result = %+v", res)
		}

		res, err = recv.Receive("movie.mp4", strings.NewReader("world"), &ByteRange{Start: 6, End: 10, Total: 11})
		if err != nil {
			t.Fatalf("second chunk: %v", err)
		}
		if !res.Finished || res.Filename != "movie_1700000000.mp4" {
			t.Fatalf("final result = %+v", res)
		}

		fin, err := store.Resolve(res.Filename)
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		data, err := os.ReadFile(fin.Path)
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != "hello world" {
			t.Errorf("assembled content = %q", data)
		}
	})

	t.Run("out of order chunk is rejected", func(t *testing.T) {
		recv, _ := newTestReceiver(t)

		if _, err := recv.Receive("movie.mp4", strings.NewReader("hello "), &ByteRange{Start: 0, End: 5, Total: 11}); err != nil {
			t.Fatal(err)
		}
		_, err := recv.Receive("movie.mp4", strings.NewReader("world"), &ByteRange{Start: 9, End: 10, Total: 11})
		if !errors.Is(err, ErrOutOfOrder) {
			t.Fatalf("got err %v", err)
		}

		// The part written so far survives and can still be completed.
		res, err := recv.Receive("movie.mp4", strings.NewReader("world"), &ByteRange{Start: 6, End: 10, Total: 11})
		if err != nil || !res.Finished {
			t.Fatalf("resume failed: (%+v, %v)", res, err)
		}
	})

	t.Run("single chunk finalizes directly", func(t *testing.T) {
		recv, store := newTestReceiver(t)

		res, err := recv.Receive("one shot.mp4", strings.NewReader("all of it"), nil)
		if err != nil {
			t.Fatalf("Receive: %v", err)
		}
		if !res.Finished || res.Done != 100 {
			t.Errorf("result = %+v", res)
		}
		if res.Filename != "one_shot_1700000000.mp4" {
			t.Errorf("filename = %q", res.Filename)
		}
		if _, err := store.Resolve(res.Filename); err != nil {
			t.Errorf("finalized file missing: %v", err)
		}
	})

	t.Run("part file is removed after finalize", func(t *testing.T) {
		recv, _ := newTestReceiver(t)

		if _, err := recv.Receive("movie.mp4", strings.NewReader("full content"), &ByteRange{Start: 0, End: 11, Total: 12}); err != nil {
			t.Fatal(err)
		}
		entries, err := os.ReadDir(recv.partsDir)
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != 0 {
			t.Errorf("parts dir still has %d entries", len(entries))
		}
	})
}

