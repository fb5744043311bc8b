package journal

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"matchbook/infra/sequence"
)

func TestAppendAndReplay(t *testing.T) {
	dir := t.TempDir()

	j, err := Open(DefaultConfig(dir), sequence.New(0))
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}

	const n = 50
	for i := 0; i < n; i++ {
		seq, err := j.Append(RecordSubmit, []byte(fmt.Sprintf("payload-%d", i)))
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		if seq != uint64(i+1) {
			t.Fatalf("append %d: seq %d, want %d", i, seq, i+1)
		}
	}
	if err := j.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	var got int
	last, err := Replay(dir, 0, func(rec *Record) error {
		if rec.Type != RecordSubmit {
			t.Errorf("record %d: type %d", rec.Seq, rec.Type)
		}
		want := fmt.Sprintf("payload-%d", got)
		if string(rec.Data) != want {
			t.Errorf("record %d: payload %q, want %q", rec.Seq, rec.Data, want)
		}
		got++
		return nil
	})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if got != n || last != n {
		t.Errorf("replayed %d records, last seq %d; want %d/%d", got, last, n, n)
	}
}

func TestReplaySkipsUpToAfterSeq(t *testing.T) {
	dir := t.TempDir()

	j, err := Open(DefaultConfig(dir), sequence.New(0))
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		if _, err := j.Append(RecordCancel, []byte("x")); err != nil {
			t.Fatal(err)
		}
	}
	_ = j.Close()

	var seqs []uint64
	_, err = Replay(dir, 7, func(rec *Record) error {
		seqs = append(seqs, rec.Seq)
		return nil
	})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if len(seqs) != 3 || seqs[0] != 8 {
		t.Errorf("replay after 7: got seqs %v, want [8 9 10]", seqs)
	}
}

func TestReplayDetectsCorruption(t *testing.T) {
	dir := t.TempDir()

	j, err := Open(DefaultConfig(dir), sequence.New(0))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := j.Append(RecordSubmit, []byte("intact")); err != nil {
		t.Fatal(err)
	}
	_ = j.Close()

	path := segmentPath(dir, 0)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	data[frameHeaderSize] ^= 0xff // flip a payload byte
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	_, err = Replay(dir, 0, func(*Record) error { return nil })
	if err == nil {
		t.Fatal("replay of corrupt segment must fail")
	}
}

func TestRotationAndTruncate(t *testing.T) {
	dir := t.TempDir()

	cfg := Config{Dir: dir, SegmentSize: 64} // force frequent rotation
	j, err := Open(cfg, sequence.New(0))
	if err != nil {
		t.Fatal(err)
	}

	var lastSeq uint64
	for i := 0; i < 20; i++ {
		lastSeq, err = j.Append(RecordSubmit, []byte("0123456789"))
		if err != nil {
			t.Fatal(err)
		}
	}

	segs, _ := filepath.Glob(filepath.Join(dir, "segment-*.journal"))
	if len(segs) < 2 {
		t.Fatalf("expected rotation, found %d segments", len(segs))
	}

	if err := j.TruncateBefore(lastSeq); err != nil {
		t.Fatalf("truncate: %v", err)
	}

	segs, _ = filepath.Glob(filepath.Join(dir, "segment-*.journal"))
	if len(segs) != 1 {
		t.Errorf("truncate left %d segments, want only the open one", len(segs))
	}

	// The open segment must survive and stay appendable.
	if _, err := j.Append(RecordSubmit, []byte("after-truncate")); err != nil {
		t.Fatalf("append after truncate: %v", err)
	}
	_ = j.Close()
}

func TestReopenContinuesLastSegment(t *testing.T) {
	dir := t.TempDir()

	j, err := Open(DefaultConfig(dir), sequence.New(0))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := j.Append(RecordSubmit, []byte("one")); err != nil {
		t.Fatal(err)
	}
	_ = j.Close()

	j2, err := Open(DefaultConfig(dir), sequence.New(1))
	if err != nil {
		t.Fatal(err)
	}
	seq, err := j2.Append(RecordSubmit, []byte("two"))
	if err != nil {
		t.Fatal(err)
	}
	if seq != 2 {
		t.Errorf("seq after reopen: %d, want 2", seq)
	}
	_ = j2.Close()

	var n int
	_, err = Replay(dir, 0, func(*Record) error { n++; return nil })
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if n != 2 {
		t.Errorf("replayed %d records, want 2", n)
	}
}
