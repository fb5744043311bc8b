package journal

// RecordType names the operation a record journals.
type RecordType uint8

const (
	RecordSubmit RecordType = iota
	RecordCancel
)

// Record is an immutable journal entry. Seq is assigned by the journal
// at append time and is strictly monotonic across the whole directory.
type Record struct {
	Type RecordType
	Seq  uint64
	Time int64
	Data []byte
}
