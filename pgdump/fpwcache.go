package pgdump

import "sync"

// fpwKey identifies one block within one relation fork.
type fpwKey struct {
	Spc, Db, Rel uint32
	Fork         uint8
	Block        uint32
}

// FPWCache holds the most recent full-page image WAL has supplied for
// each block. RestoreWALDirectory fills one cache per pass through
// Observe; the redo functions in redo.go decode each record from its own
// block data and do not read from the cache. Access is guarded by a
// read/write mutex, so Get and Put are safe for concurrent callers.
type FPWCache struct {
	mu     sync.RWMutex
	images map[fpwKey][]byte
}

// NewFPWCache returns an empty cache.
func NewFPWCache() *FPWCache {
	return &FPWCache{images: make(map[fpwKey][]byte)}
}

func fpwKeyFor(node RelFileNode, fork uint8, block uint32) fpwKey {
	return fpwKey{Spc: node.SpcOID, Db: node.DbOID, Rel: node.RelOID, Fork: fork, Block: block}
}

// Put stores a reconstructed full-page image, replacing whatever was
// cached for that block.
func (c *FPWCache) Put(node RelFileNode, fork uint8, block uint32, page []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.images[fpwKeyFor(node, fork, block)] = page
}

// Get returns the most recently cached image for a block, if any.
func (c *FPWCache) Get(node RelFileNode, fork uint8, block uint32) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	page, ok := c.images[fpwKeyFor(node, fork, block)]
	return page, ok
}

// Observe records every block reference in a record that carried a full
// page image, replacing any image cached earlier for the same block.
func (c *FPWCache) Observe(rec *WALRecord) {
	if rec == nil {
		return
	}
	for _, blk := range rec.Blocks {
		if blk.Image == nil || blk.RelFileNode == nil {
			continue
		}
		c.Put(*blk.RelFileNode, blk.ForkNum, blk.BlockNum, blk.Image)
	}
}
