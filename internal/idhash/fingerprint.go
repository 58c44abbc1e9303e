package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"strconv"

	"capital-flow-lab/internal/domain"
)

// ComputeInputFingerprint computes a deterministic fingerprint of normalized inputs using SHA256.
// Formula: SHA256(window|price rows...|"vix"|volatility rows...), one row per line as
// date|ticker|open|high|low|close|adj_close|volume (prices) and date|close (volatility).
// Inputs must already be sorted by the normalizer so equal inputs hash equally.
// Returns hex-encoded hash (64 characters).
func ComputeInputFingerprint(prices []domain.PriceRecord, vols []domain.VolatilityRecord, window int) string {
	h := sha256.New()
	fmt.Fprintf(h, "window=%d\n", window)

	for i := range prices {
		p := &prices[i]
		writeFields(h,
			domain.DateKey(p.Date),
			p.Ticker,
			formatFloat(p.Open),
			formatFloat(p.High),
			formatFloat(p.Low),
			formatFloat(p.Close),
			formatFloat(p.AdjClose),
			formatFloat(p.Volume),
		)
	}

	h.Write([]byte("vix\n"))
	for _, v := range vols {
		writeFields(h, domain.DateKey(v.Date), formatFloat(v.Close))
	}

	return hex.EncodeToString(h.Sum(nil))
}

func writeFields(h hash.Hash, fields ...string) {
	for i, f := range fields {
		if i > 0 {
			h.Write([]byte{'|'})
		}
		h.Write([]byte(f))
	}
	h.Write([]byte{'\n'})
}

// formatFloat uses the shortest round-trip representation.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
