package jobs

import (
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/teranos/scrapstudio/errors"
)

// memoryStats returns total and available host memory in bytes
func memoryStats() (total uint64, available uint64, err error) {
	v, err := mem.VirtualMemory()
	if err != nil {
		return 0, 0, errors.Wrap(err, "failed to get memory stats")
	}
	return v.Total, v.Available, nil
}

const gib = 1024 * 1024 * 1024

// lowMemoryGB is the headroom below which a run start logs a warning.
// Engines drive a browser and an LLM client per combo.
const lowMemoryGB = 1.0
