package logger

import "log/slog"

// Structured field keys for the engine's components. Kept to a handful
// of engine-level concepts (chunks, offsets, sizes, flush/recycle/journal
// state) rather than a field for every conceivable attribute.
const (
	KeyChunk     = "chunk"
	KeyOffset    = "offset"
	KeyBytes     = "bytes"
	KeyKeySize   = "key_size"
	KeyValSize   = "val_size"
	KeyDuration  = "duration_ms"
	KeyError     = "error"
	KeyOp        = "op"
	KeyEvicted   = "evicted"
	KeyResident  = "resident"
	KeyInterval  = "interval_ms"
	KeyJournal   = "journal_len"
)

// Chunk returns a slog.Attr identifying an arena chunk by index.
func Chunk(idx int) slog.Attr {
	return slog.Int(KeyChunk, idx)
}

// Offset returns a slog.Attr for an arena-relative byte offset.
func Offset(off uint64) slog.Attr {
	return slog.Uint64(KeyOffset, off)
}

// Bytes returns a slog.Attr for a byte count (record size, flush size).
func Bytes(n int) slog.Attr {
	return slog.Int(KeyBytes, n)
}

// Err returns a slog.Attr wrapping an error, or a no-op attr if err is nil.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// Op returns a slog.Attr naming the operation in progress (e.g. "flush",
// "recycle", "open").
func Op(name string) slog.Attr {
	return slog.String(KeyOp, name)
}

// Evicted returns a slog.Attr for a recycler eviction count.
func Evicted(n int) slog.Attr {
	return slog.Int(KeyEvicted, n)
}

// Resident returns a slog.Attr for the current resident chunk count.
func Resident(n int) slog.Attr {
	return slog.Int(KeyResident, n)
}
