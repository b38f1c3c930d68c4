package uploads

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"
)

// ByteRange is a parsed Content-Range header for one chunk.
type ByteRange struct {
	Start int64
	End   int64
	Total int64
}

var contentRangePattern = regexp.MustCompile(`^bytes (\d+)-(\d+)/(\d+)$`)

// ParseContentRange parses "bytes start-end/total". An empty header returns
// (nil, nil): the request carries the whole file in one piece.
func ParseContentRange(header string) (*ByteRange, error) {
	if header == "" {
		return nil, nil
	}
	m := contentRangePattern.FindStringSubmatch(header)
	if m == nil {
		return nil, fmt.Errorf("malformed Content-Range %q", header)
	}
	start, _ := strconv.ParseInt(m[1], 10, 64)
	end, _ := strconv.ParseInt(m[2], 10, 64)
	total, _ := strconv.ParseInt(m[3], 10, 64)
	if end < start || total <= end {
		return nil, fmt.Errorf("inconsistent Content-Range %q", header)
	}
	return &ByteRange{Start: start, End: end, Total: total}, nil
}

// Result reports the state of an upload after one chunk.
type Result struct {
	Finished bool
	// Done is the percentage of bytes received so far.
	Done float64
	// Filename and Path are set once the upload has finished.
	Filename string
	Path     string
}

// Receiver appends chunks to a part file per upload and moves the part
// into the finalized store once all bytes have arrived. Chunks must arrive
// in order; an unexpected offset fails the chunk without touching what has
// been written so far.
type Receiver struct {
	partsDir string
	store    *Store
	now      func() time.Time
}

func NewReceiver(partsDir string, store *Store) (*Receiver, error) {
	if err := os.MkdirAll(partsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create parts dir: %w", err)
	}
	return &Receiver{partsDir: partsDir, store: store, now: time.Now}, nil
}

// Receive handles one chunk of the named upload. A nil rng means the chunk
// is the whole file.
func (r *Receiver) Receive(clientName string, chunk io.Reader, rng *ByteRange) (*Result, error) {
	if rng == nil {
		return r.finalize(clientName, chunk)
	}

	part := r.partPath(clientName, rng.Total)
	f, err := os.OpenFile(part, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open part file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.Size() != rng.Start {
		f.Close()
		return nil, fmt.Errorf("%w: have %d bytes, chunk starts at %d", ErrOutOfOrder, info.Size(), rng.Start)
	}
	if _, err := f.Seek(rng.Start, io.SeekStart); err != nil {
		f.Close()
		return nil, err
	}
	written, err := io.Copy(f, chunk)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, fmt.Errorf("write chunk: %w", err)
	}

	have := rng.Start + written
	if have < rng.Total {
		return &Result{Done: float64(have) * 100 / float64(rng.Total)}, nil
	}

	src, err := os.Open(part)
	if err != nil {
		return nil, err
	}
	res, err := r.finalize(clientName, src)
	src.Close()
	if err != nil {
		return nil, err
	}
	if err := os.Remove(part); err != nil {
		return nil, fmt.Errorf("remove part file: %w", err)
	}
	return res, nil
}

func (r *Receiver) finalize(clientName string, src io.Reader) (*Result, error) {
	name := FinalName(clientName, r.now())
	path := filepath.Join(r.store.Dir(), name)
	dst, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create finalized file: %w", err)
	}
	_, err = io.Copy(dst, src)
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("write finalized file: %w", err)
	}
	return &Result{Finished: true, Done: 100, Filename: name, Path: path}, nil
}

func (r *Receiver) partPath(clientName string, total int64) string {
	base, ext := SanitizeBase(clientName)
	return filepath.Join(r.partsDir, fmt.Sprintf("%s.%s.%d.part", base, ext, total))
}
