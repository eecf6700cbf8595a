// Package block defines the block type the ingestion core moves around.
// Everything beyond height, hash and size is opaque payload owned by the
// caller; the core never interprets it.
package block

// Block is the unit of work the queue, loader and iterator operate on.
// Height must be strictly non-negative and Hash must be stable for the
// lifetime of the block.
type Block struct {
	Height uint64
	Hash   string
	Size   int

	// Transactions carries opaque per-transaction payloads. The core never
	// reads their contents, only clears large transient fields via Clean.
	Transactions []Transaction

	// RawHex is a large transient hex payload some providers attach to the
	// block itself (as opposed to its transactions). Cleared by Clean.
	RawHex string
}

// Transaction is an opaque per-transaction payload. RawHex mirrors Block's
// transient hex field and is cleared by Clean.
type Transaction struct {
	Hash   string
	RawHex string
}

// Clean strips large transient hex payloads from the block and its
// transactions in place, reducing the memory footprint of a block once it
// has been accepted into the queue. It is idempotent.
func (b *Block) Clean() {
	if b == nil {
		return
	}
	b.RawHex = ""
	for i := range b.Transactions {
		b.Transactions[i].RawHex = ""
	}
}

// Stats is the lightweight descriptor returned by the provider's
// block-stats lookup, used by the pull strategy to build preload items
// before fetching full bodies.
type Stats struct {
	Hash      string
	Height    uint64
	TotalSize int
	// HasTotalSize distinguishes "provider reported zero bytes" from
	// "provider omitted total_size", since the latter falls back to a
	// configured default rather than being treated as a real zero.
	HasTotalSize bool
}
