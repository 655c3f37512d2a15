// Package render defines the window the scheduler feeds render ready quads
// to, plus a headless implementation for servers and tests.
package render

import (
	"sync"

	"github.com/openalp/firn/tile"
)

// Window is the rendering side of the pipeline. The scheduler drives it
// through UploadQuads and EvictQuads; RequestResize lets a host adjust the
// drawable size.
type Window interface {
	UploadQuads(quads []tile.GpuQuad)
	EvictQuads(ids []tile.Id)
	RequestResize(width, height uint32)
	Close()
}

// Headless is a Window without a GPU. It tracks resident quad ids and the
// requested drawable size, nothing is drawn. Safe for concurrent use.
type Headless struct {
	mutex    sync.Mutex
	resident map[tile.Id]tile.GpuQuad
	width    uint32
	height   uint32
	closed   bool
}

// NewHeadless returns an empty headless window.
func NewHeadless() *Headless {
	return &Headless{
		resident: make(map[tile.Id]tile.GpuQuad),
	}
}

// UploadQuads makes the given quads resident.
func (h *Headless) UploadQuads(quads []tile.GpuQuad) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.closed {
		return
	}
	for _, q := range quads {
		h.resident[q.Id] = q
	}
}

// EvictQuads drops residency for the given ids. Evicting an id that is not
// resident is a pipeline bug and panics.
func (h *Headless) EvictQuads(ids []tile.Id) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.closed {
		return
	}
	for _, id := range ids {
		if _, ok := h.resident[id]; !ok {
			panic("render: evicting a quad that is not resident: " + id.String())
		}
		delete(h.resident, id)
	}
}

// RequestResize records the requested drawable size.
func (h *Headless) RequestResize(width, height uint32) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.width = width
	h.height = height
}

// Close releases the window. Emissions after Close are discarded.
func (h *Headless) Close() {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.closed = true
	h.resident = make(map[tile.Id]tile.GpuQuad)
}

// ResidentCount returns the number of resident quads.
func (h *Headless) ResidentCount() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	return len(h.resident)
}

// Resident reports whether the quad with the given id is resident.
func (h *Headless) Resident(id tile.Id) bool {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	_, ok := h.resident[id]
	return ok
}

// ResidentIds returns the ids of all resident quads, in no particular order.
func (h *Headless) ResidentIds() []tile.Id {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	ids := make([]tile.Id, 0, len(h.resident))
	for id := range h.resident {
		ids = append(ids, id)
	}
	return ids
}

// DrawableSize returns the last requested drawable size.
func (h *Headless) DrawableSize() (width, height uint32) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	return h.width, h.height
}
