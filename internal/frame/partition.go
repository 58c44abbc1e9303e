package frame

import "capital-flow-lab/internal/domain"

// Partition is the set of rows sharing one key, in ascending row order.
type Partition struct {
	Key  string
	Rows []int
}

// PartitionBy groups rows by key. Partitions are returned in order of the first row
// of each key; rows inside a partition keep frame order.
func (f *Frame) PartitionBy(key func(row int) string) []Partition {
	index := make(map[string]int)
	var parts []Partition
	for i := 0; i < f.Len(); i++ {
		k := key(i)
		pos, ok := index[k]
		if !ok {
			pos = len(parts)
			index[k] = pos
			parts = append(parts, Partition{Key: k})
		}
		parts[pos].Rows = append(parts[pos].Rows, i)
	}
	return parts
}

// ByTicker partitions rows per instrument.
func (f *Frame) ByTicker() []Partition {
	return f.PartitionBy(func(i int) string { return f.Ticker[i] })
}

// ByDate partitions rows per calendar date across instruments.
func (f *Frame) ByDate() []Partition {
	return f.PartitionBy(func(i int) string { return domain.DateKey(f.Date[i]) })
}
