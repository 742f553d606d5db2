package indexer

import "fmt"

// BlockRange is an inclusive block window fetched in one FilterLogs call.
type BlockRange struct {
	From uint64
	To   uint64
}

// ResumeFrom returns the first block to index given the configured start and
// the last checkpointed block. A checkpoint behind the start is ignored.
func ResumeFrom(from, lastProcessed uint64, hasCheckpoint bool) uint64 {
	if !hasCheckpoint || lastProcessed < from {
		return from
	}
	return lastProcessed + 1
}

// SplitRange cuts [from, to] into windows of at most batchSize blocks. The
// last window is shortened to end at to.
func SplitRange(from, to, batchSize uint64) ([]BlockRange, error) {
	if batchSize == 0 {
		return nil, fmt.Errorf("batch size must be greater than zero")
	}
	if to < from {
		return nil, fmt.Errorf("to block must be >= from block")
	}

	ranges := make([]BlockRange, 0, (to-from)/batchSize+1)
	for start := from; ; {
		end := to
		if to-start >= batchSize {
			end = start + batchSize - 1
		}
		ranges = append(ranges, BlockRange{From: start, To: end})
		if end == to {
			return ranges, nil
		}
		start = end + 1
	}
}
