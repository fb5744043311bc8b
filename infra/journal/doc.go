// Package journal provides a segmented, CRC-framed, append-only log of
// engine operations. Records carry opaque payloads; the service layer
// owns their encoding. Segments rotate by size and are garbage
// collected once a durable snapshot covers their highest sequence.
package journal
