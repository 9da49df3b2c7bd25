package camera

import (
	"image"
	"sync"

	"github.com/corona10/goimagehash"
)

// Deduper skips frames that are perceptually identical to the previous one.
// A stationary scene at 30fps produces long runs of near-duplicate frames;
// hashing is far cheaper than running detection on each of them.
type Deduper struct {
	mu          sync.Mutex
	maxDistance int
	lastHash    *goimagehash.ImageHash
}

// NewDeduper creates a deduper. Frames within maxDistance Hamming distance
// of the previous frame's perception hash are reported as duplicates.
func NewDeduper(maxDistance int) *Deduper {
	return &Deduper{maxDistance: maxDistance}
}

// IsDuplicate reports whether img is a near-copy of the previously seen frame.
// Hash failures are treated as "not a duplicate" so no frame is lost to them.
func (d *Deduper) IsDuplicate(img image.Image) bool {
	hash, err := goimagehash.PerceptionHash(img)
	if err != nil {
		return false
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.lastHash == nil {
		d.lastHash = hash
		return false
	}

	dist, err := d.lastHash.Distance(hash)
	if err != nil {
		d.lastHash = hash
		return false
	}

	if dist <= d.maxDistance {
		return true
	}

	d.lastHash = hash
	return false
}

// Reset forgets the previous frame.
func (d *Deduper) Reset() {
	d.mu.Lock()
	d.lastHash = nil
	d.mu.Unlock()
}
