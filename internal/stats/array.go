// Package stats keeps rolling bar windows and derives the indicators the
// bundled strategies trade on.
package stats

import (
	"math"

	"main/internal/schema"
)

// ArrayManager holds the trailing OHLCV window of one instrument. Indicator
// queries use the most recent n bars; callers should check Ready before
// trusting the values.
type ArrayManager struct {
	size  int
	count int

	opens   []float64
	highs   []float64
	lows    []float64
	closes  []float64
	volumes []int64
}

// NewArrayManager creates a window of the given capacity. Sizes below one
// fall back to 100.
func NewArrayManager(size int) *ArrayManager {
	if size < 1 {
		size = 100
	}
	return &ArrayManager{
		size:    size,
		opens:   make([]float64, 0, size),
		highs:   make([]float64, 0, size),
		lows:    make([]float64, 0, size),
		closes:  make([]float64, 0, size),
		volumes: make([]int64, 0, size),
	}
}

// Update appends one finished bar, evicting the oldest when full.
func (am *ArrayManager) Update(bar schema.BarData) {
	am.opens = push(am.opens, bar.Open, am.size)
	am.highs = push(am.highs, bar.High, am.size)
	am.lows = push(am.lows, bar.Low, am.size)
	am.closes = push(am.closes, bar.Close, am.size)
	am.volumes = pushInt(am.volumes, bar.Volume, am.size)
	am.count++
}

func push(s []float64, v float64, size int) []float64 {
	if len(s) == size {
		copy(s, s[1:])
		s[len(s)-1] = v
		return s
	}
	return append(s, v)
}

func pushInt(s []int64, v int64, size int) []int64 {
	if len(s) == size {
		copy(s, s[1:])
		s[len(s)-1] = v
		return s
	}
	return append(s, v)
}

// Ready reports whether the window has been filled at least once.
func (am *ArrayManager) Ready() bool {
	return am.count >= am.size
}

// Count returns how many bars have been folded in overall.
func (am *ArrayManager) Count() int {
	return am.count
}

// Close returns the latest close price, or zero before the first bar.
func (am *ArrayManager) Close() float64 {
	if len(am.closes) == 0 {
		return 0
	}
	return am.closes[len(am.closes)-1]
}

// SMA is the simple moving average of the last n closes.
func (am *ArrayManager) SMA(n int) float64 {
	window := tail(am.closes, n)
	if len(window) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range window {
		sum += v
	}
	return sum / float64(len(window))
}

// Std is the population standard deviation of the last n closes.
func (am *ArrayManager) Std(n int) float64 {
	window := tail(am.closes, n)
	if len(window) == 0 {
		return 0
	}
	mean := am.SMA(n)
	variance := 0.0
	for _, v := range window {
		diff := v - mean
		variance += diff * diff
	}
	return math.Sqrt(variance / float64(len(window)))
}

// Boll returns the upper and lower Bollinger bands over the last n closes.
func (am *ArrayManager) Boll(n int, dev float64) (up, down float64) {
	mid := am.SMA(n)
	width := am.Std(n) * dev
	return mid + width, mid - width
}

// HighestHigh is the maximum high of the last n bars.
func (am *ArrayManager) HighestHigh(n int) float64 {
	window := tail(am.highs, n)
	if len(window) == 0 {
		return 0
	}
	max := window[0]
	for _, v := range window[1:] {
		if v > max {
			max = v
		}
	}
	return max
}

// LowestLow is the minimum low of the last n bars.
func (am *ArrayManager) LowestLow(n int) float64 {
	window := tail(am.lows, n)
	if len(window) == 0 {
		return 0
	}
	min := window[0]
	for _, v := range window[1:] {
		if v < min {
			min = v
		}
	}
	return min
}

// Donchian returns the channel bounds over the last n bars, excluding the
// current one.
func (am *ArrayManager) Donchian(n int) (up, down float64) {
	if len(am.highs) < 2 {
		return 0, 0
	}
	trimmed := &ArrayManager{
		highs: am.highs[:len(am.highs)-1],
		lows:  am.lows[:len(am.lows)-1],
	}
	return trimmed.HighestHigh(n), trimmed.LowestLow(n)
}

// ATR is the average true range of the last n bars.
func (am *ArrayManager) ATR(n int) float64 {
	if len(am.closes) < 2 {
		return 0
	}
	if n > len(am.closes)-1 {
		n = len(am.closes) - 1
	}
	if n < 1 {
		return 0
	}
	sum := 0.0
	for i := len(am.closes) - n; i < len(am.closes); i++ {
		tr := am.highs[i] - am.lows[i]
		if v := math.Abs(am.highs[i] - am.closes[i-1]); v > tr {
			tr = v
		}
		if v := math.Abs(am.lows[i] - am.closes[i-1]); v > tr {
			tr = v
		}
		sum += tr
	}
	return sum / float64(n)
}

func tail(s []float64, n int) []float64 {
	if n < 1 {
		return nil
	}
	if n > len(s) {
		n = len(s)
	}
	return s[len(s)-n:]
}
