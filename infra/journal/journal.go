package journal

import (
	"encoding/binary"
	"hash/crc32"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"matchbook/infra/sequence"
)

type Config struct {
	Dir         string
	SegmentSize int64
}

func DefaultConfig(dir string) Config {
	return Config{
		Dir:         dir,
		SegmentSize: 4 * 1024 * 1024,
	}
}

// Journal is a segmented, CRC-framed, append-only log of accepted
// operations. It is the write-ahead half of the persistence contract:
// an operation is journaled before it mutates a book, so anything the
// snapshot store missed can be replayed deterministically on restart.
type Journal struct {
	mu sync.Mutex

	dir     string
	segSize int64
	seq     *sequence.Sequencer

	current  *segment
	segIndex int
}

// Open creates or reopens the journal directory. seq supplies record
// sequence numbers; after a restore it must already be positioned past
// every replayed record.
func Open(cfg Config, seq *sequence.Sequencer) (*Journal, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, err
	}

	index, err := lastSegmentIndex(cfg.Dir)
	if err != nil {
		return nil, err
	}

	seg, err := openSegment(cfg.Dir, index)
	if err != nil {
		return nil, err
	}

	return &Journal{
		dir:      cfg.Dir,
		segSize:  cfg.SegmentSize,
		seq:      seq,
		current:  seg,
		segIndex: index,
	}, nil
}

// Append frames and durably writes one record, assigning its sequence
// number under the journal lock so file order always matches sequence
// order. The assigned sequence is returned.
func (j *Journal) Append(t RecordType, data []byte) (uint64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	rec := Record{
		Type: t,
		Seq:  j.seq.Next(),
		Time: time.Now().UnixNano(),
		Data: data,
	}

	payloadLen := uint32(len(rec.Data))

	// Frame: [type:1][seq:8][time:8][len:4][payload][crc:4]
	buf := make([]byte, frameHeaderSize+payloadLen+4)
	buf[0] = byte(rec.Type)
	binary.BigEndian.PutUint64(buf[1:9], rec.Seq)
	binary.BigEndian.PutUint64(buf[9:17], uint64(rec.Time))
	binary.BigEndian.PutUint32(buf[17:21], payloadLen)
	copy(buf[frameHeaderSize:], rec.Data)

	crc := crc32.ChecksumIEEE(buf[:frameHeaderSize+payloadLen])
	binary.BigEndian.PutUint32(buf[frameHeaderSize+payloadLen:], crc)

	if err := j.current.append(buf); err != nil {
		return 0, err
	}

	if j.current.offset >= j.segSize {
		if err := j.rotate(); err != nil {
			return 0, err
		}
	}
	return rec.Seq, nil
}

func (j *Journal) rotate() error {
	_ = j.current.close()
	j.segIndex++

	seg, err := openSegment(j.dir, j.segIndex)
	if err != nil {
		return err
	}
	j.current = seg
	return nil
}

// TruncateBefore removes closed segments whose every record has been
// captured by a durable snapshot at or after seq. The open segment is
// never removed.
func (j *Journal) TruncateBefore(seq uint64) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	files, err := filepath.Glob(filepath.Join(j.dir, "segment-*.journal"))
	if err != nil {
		return err
	}

	for _, path := range files {
		if path == j.current.path {
			continue
		}
		maxSeq, err := maxSeqInSegment(path)
		if err != nil {
			continue
		}
		if maxSeq <= seq {
			_ = os.Remove(path)
		}
	}
	return nil
}

func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.current.close()
}

func lastSegmentIndex(dir string) (int, error) {
	files, err := filepath.Glob(filepath.Join(dir, "segment-*.journal"))
	if err != nil {
		return 0, err
	}
	if len(files) == 0 {
		return 0, nil
	}
	sort.Strings(files)
	last := filepath.Base(files[len(files)-1])
	last = strings.TrimPrefix(last, "segment-")
	last = strings.TrimSuffix(last, ".journal")
	index := 0
	for _, c := range last {
		if c < '0' || c > '9' {
			return 0, nil
		}
		index = index*10 + int(c-'0')
	}
	return index, nil
}
