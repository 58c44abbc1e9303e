package merge

import (
	"testing"
	"time"

	"github.com/guregu/null/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"capital-flow-lab/internal/domain"
	"capital-flow-lab/internal/frame"
)

func day(n int) time.Time {
	return time.Date(2024, 2, n, 0, 0, 0, 0, time.UTC)
}

func testFrame() *frame.Frame {
	return frame.FromPrices([]domain.PriceRecord{
		{Date: day(1), Ticker: "QQQ", Close: 400, Volume: 10},
		{Date: day(2), Ticker: "QQQ", Close: 401, Volume: 10},
		{Date: day(3), Ticker: "QQQ", Close: 402, Volume: 10},
		{Date: day(1), Ticker: "SPY", Close: 500, Volume: 20},
		{Date: day(3), Ticker: "SPY", Close: 502, Volume: 20},
	})
}

func TestAttachVolatility_LeftJoin(t *testing.T) {
	f := testFrame()
	vols := []domain.VolatilityRecord{
		{Date: day(3), Close: 17.5},
		{Date: day(1), Close: 14.2},
		{Date: day(9), Close: 30}, // no matching price row
	}

	require.NoError(t, AttachVolatility(f, vols))
	require.Equal(t, 5, f.Len())

	assert.Equal(t, null.FloatFrom(14.2), f.VIX[0])
	assert.False(t, f.VIX[1].Valid, "missing vix date must stay undefined")
	assert.Equal(t, null.FloatFrom(17.5), f.VIX[2])
	assert.Equal(t, null.FloatFrom(14.2), f.VIX[3])
	assert.Equal(t, null.FloatFrom(17.5), f.VIX[4])
	assert.Equal(t, 4, Coverage(f))
}

func TestAttachVolatility_Empty(t *testing.T) {
	f := testFrame()
	require.NoError(t, AttachVolatility(f, nil))
	assert.Equal(t, 0, Coverage(f))
	assert.Equal(t, 5, f.Len())
}

func TestAttachVolatility_DuplicateDate(t *testing.T) {
	f := testFrame()
	err := AttachVolatility(f, []domain.VolatilityRecord{
		{Date: day(1), Close: 14},
		{Date: day(2), Close: 15},
		{Date: day(1), Close: 16},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrOrderingViolation)

	// fails before touching any row
	for i := 0; i < f.Len(); i++ {
		assert.False(t, f.VIX[i].Valid)
	}
}
