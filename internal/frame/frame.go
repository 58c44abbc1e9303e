// Package frame holds the columnar feature table the transform is computed on.
//
// A Frame stores one slice per column; a row is an index shared by every column.
// Grouped computations never nest loops over mutable rows: they first build explicit
// partitions (row index lists per key) and then run a pass per partition. Partitions
// of one PartitionBy call are disjoint, so a pass over one partition can only write
// rows it owns.
package frame

import (
	"time"

	"github.com/guregu/null/v6"

	"capital-flow-lab/internal/domain"
)

// Frame is the flow feature table in columnar form.
type Frame struct {
	Date     []time.Time
	Ticker   []string
	Open     []float64
	High     []float64
	Low      []float64
	Close    []float64
	AdjClose []float64
	Volume   []float64

	NotionalTraded    []float64
	NotionalLag       []null.Float
	DNotional         []null.Float
	DNotionalUniverse []null.Float
	FlowShare         []null.Float
	FlowZ             []null.Float
	VIX               []null.Float
}

// FromPrices builds a frame whose rows are the price records in input order.
// Every derived column is allocated and starts undefined (zero for NotionalTraded).
func FromPrices(prices []domain.PriceRecord) *Frame {
	n := len(prices)
	f := &Frame{
		Date:     make([]time.Time, n),
		Ticker:   make([]string, n),
		Open:     make([]float64, n),
		High:     make([]float64, n),
		Low:      make([]float64, n),
		Close:    make([]float64, n),
		AdjClose: make([]float64, n),
		Volume:   make([]float64, n),

		NotionalTraded:    make([]float64, n),
		NotionalLag:       make([]null.Float, n),
		DNotional:         make([]null.Float, n),
		DNotionalUniverse: make([]null.Float, n),
		FlowShare:         make([]null.Float, n),
		FlowZ:             make([]null.Float, n),
		VIX:               make([]null.Float, n),
	}
	for i, p := range prices {
		f.Date[i] = p.Date
		f.Ticker[i] = p.Ticker
		f.Open[i] = p.Open
		f.High[i] = p.High
		f.Low[i] = p.Low
		f.Close[i] = p.Close
		f.AdjClose[i] = p.AdjClose
		f.Volume[i] = p.Volume
	}
	return f
}

// FromRecords rebuilds a frame from feature records, keeping every derived value.
func FromRecords(records []*domain.FlowFeatureRecord) *Frame {
	prices := make([]domain.PriceRecord, len(records))
	for i, r := range records {
		prices[i] = r.Price()
	}
	f := FromPrices(prices)
	for i, r := range records {
		f.NotionalTraded[i] = r.NotionalTraded
		f.NotionalLag[i] = r.NotionalLag
		f.DNotional[i] = r.DNotional
		f.DNotionalUniverse[i] = r.DNotionalUniverse
		f.FlowShare[i] = r.FlowShare
		f.FlowZ[i] = r.FlowZ
		f.VIX[i] = r.VIX
	}
	return f
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	return len(f.Date)
}

// Record materializes row i.
func (f *Frame) Record(i int) *domain.FlowFeatureRecord {
	return &domain.FlowFeatureRecord{
		Date:              f.Date[i],
		Ticker:            f.Ticker[i],
		Open:              f.Open[i],
		High:              f.High[i],
		Low:               f.Low[i],
		Close:             f.Close[i],
		AdjClose:          f.AdjClose[i],
		Volume:            f.Volume[i],
		NotionalTraded:    f.NotionalTraded[i],
		NotionalLag:       f.NotionalLag[i],
		DNotional:         f.DNotional[i],
		DNotionalUniverse: f.DNotionalUniverse[i],
		FlowShare:         f.FlowShare[i],
		FlowZ:             f.FlowZ[i],
		VIX:               f.VIX[i],
	}
}

// Records materializes every row in frame order.
func (f *Frame) Records() []*domain.FlowFeatureRecord {
	out := make([]*domain.FlowFeatureRecord, f.Len())
	for i := range out {
		out[i] = f.Record(i)
	}
	return out
}
