package idhash

import (
	"testing"
	"time"

	"capital-flow-lab/internal/domain"
)

func day(n int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func samplePrices() []domain.PriceRecord {
	return []domain.PriceRecord{
		{Date: day(0), Ticker: "QQQ", Open: 1, High: 2, Low: 0.5, Close: 1.5, AdjClose: 1.5, Volume: 100},
		{Date: day(1), Ticker: "QQQ", Open: 1.5, High: 2, Low: 1, Close: 1.8, AdjClose: 1.8, Volume: 120},
		{Date: day(0), Ticker: "SPY", Open: 10, High: 11, Low: 9, Close: 10.5, AdjClose: 10.5, Volume: 1000},
	}
}

func TestComputeInputFingerprint(t *testing.T) {
	vols := []domain.VolatilityRecord{{Date: day(0), Close: 14.2}}

	tests := []struct {
		name    string
		prices  []domain.PriceRecord
		vols    []domain.VolatilityRecord
		window  int
		wantLen int
	}{
		{name: "prices and vix", prices: samplePrices(), vols: vols, window: 60, wantLen: 64},
		{name: "no vix", prices: samplePrices(), vols: nil, window: 60, wantLen: 64},
		{name: "empty", prices: nil, vols: nil, window: 60, wantLen: 64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeInputFingerprint(tt.prices, tt.vols, tt.window)

			if len(got) != tt.wantLen {
				t.Errorf("ComputeInputFingerprint() length = %d, want %d", len(got), tt.wantLen)
			}

			// Verify determinism: same inputs should produce same output
			got2 := ComputeInputFingerprint(tt.prices, tt.vols, tt.window)
			if got != got2 {
				t.Errorf("ComputeInputFingerprint() not deterministic: %s != %s", got, got2)
			}
		})
	}
}

func TestComputeInputFingerprint_Sensitivity(t *testing.T) {
	vols := []domain.VolatilityRecord{{Date: day(0), Close: 14.2}}
	base := ComputeInputFingerprint(samplePrices(), vols, 60)

	changedVolume := samplePrices()
	changedVolume[1].Volume = 121
	if ComputeInputFingerprint(changedVolume, vols, 60) == base {
		t.Error("expected different fingerprint when a volume changes")
	}

	changedVix := []domain.VolatilityRecord{{Date: day(0), Close: 14.3}}
	if ComputeInputFingerprint(samplePrices(), changedVix, 60) == base {
		t.Error("expected different fingerprint when the vix changes")
	}

	if ComputeInputFingerprint(samplePrices(), vols, 20) == base {
		t.Error("expected different fingerprint when the window changes")
	}
}

func TestComputeInputFingerprint_NoBoundaryCollision(t *testing.T) {
	// A price row must not hash like a volatility row.
	a := ComputeInputFingerprint(nil, []domain.VolatilityRecord{{Date: day(0), Close: 1}}, 60)
	b := ComputeInputFingerprint(nil, []domain.VolatilityRecord{{Date: day(0), Close: 1}, {Date: day(1), Close: 1}}, 60)
	if a == b {
		t.Error("expected different fingerprints")
	}
}
