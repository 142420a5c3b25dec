package s2_signals

import (
	"math"
	"strings"

	"github.com/wonny/b1signal/backend/internal/contracts"
)

// All rules read a history ordered oldest → newest; the last bar is the trade date.
// NaN inputs (NULL columns) make the affected comparison false.

const (
	recentWindow   = 10 // 최근 10 거래일
	volumeWindow   = 5  // vol_* 규칙 윈도우
	down1Lookback  = 5  // down1: 직전 5일 최대 거래량
	limitUpPct     = 9.8
	minMarketCapMV = 800000 // 万元 (= 80亿)
)

func lastN(h []contracts.Bar, n int) []contracts.Bar {
	if len(h) <= n {
		return h
	}
	return h[len(h)-n:]
}

// maxOf returns the largest non-NaN value, NaN when none exists
func maxOf(vals []float64) float64 {
	m := math.NaN()
	for _, v := range vals {
		if math.IsNaN(v) {
			continue
		}
		if math.IsNaN(m) || v > m {
			m = v
		}
	}
	return m
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return math.NaN()
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func amounts(h []contracts.Bar) []float64 {
	out := make([]float64, len(h))
	for i, b := range h {
		out[i] = b.Amount
	}
	return out
}

// === Plus rules ===

// redFatGreenThin (up1, 红肥绿瘦): in the last 10 bars every up day (pct > 0)
// trades more volume than its nearest preceding and nearest following down day.
// A window without down days passes.
func redFatGreenThin(h []contracts.Bar) bool {
	if len(h) < 2 {
		return false
	}

	w := lastN(h, recentWindow)
	up := make([]bool, len(w))
	for i, b := range w {
		up[i] = b.PctChange > 0
	}

	for i := range w {
		if !up[i] {
			continue
		}
		for j := i - 1; j >= 0; j-- {
			if !up[j] {
				if !(w[i].Vol > w[j].Vol) {
					return false
				}
				break
			}
		}
		for j := i + 1; j < len(w); j++ {
			if !up[j] {
				if !(w[i].Vol > w[j].Vol) {
					return false
				}
				break
			}
		}
	}
	return true
}

// shrinkAfterDivergence (up2, 分歧后缩量): today's amount <= 50% of yesterday's
func shrinkAfterDivergence(h []contracts.Bar) bool {
	if len(h) < 2 {
		return false
	}
	today, prev := h[len(h)-1].Amount, h[len(h)-2].Amount
	return prev > 0 && today <= prev*0.5
}

// smallCandle (up3, 小阴小阳): pct change within [-2.0, 1.8]
func smallCandle(pct float64) bool {
	return pct >= -2 && pct <= 1.8
}

// recentAbnormalMove (up4, 近期异动): some bar after the first of the last 10
// rose >= 6% on volume >= 1.5x the previous bar
func recentAbnormalMove(h []contracts.Bar) bool {
	if len(h) < 2 {
		return false
	}
	w := lastN(h, recentWindow)
	for i := 1; i < len(w); i++ {
		prevVol := w[i-1].Vol
		if w[i].PctChange >= 6.0 && prevVol > 0 && w[i].Vol >= prevVol*1.5 {
			return true
		}
	}
	return false
}

// doubleVolumeRed (up5, 倍量红柱): some up bar after the first of the last 10
// with volume >= 1.8x the previous bar
func doubleVolumeRed(h []contracts.Bar) bool {
	if len(h) < 2 {
		return false
	}
	w := lastN(h, recentWindow)
	for i := 1; i < len(w); i++ {
		if !(w[i].PctChange > 0) {
			continue
		}
		prevVol := w[i-1].Vol
		if prevVol > 0 && w[i].Vol >= prevVol*1.8 {
			return true
		}
	}
	return false
}

// amplitudeAppropriate (up6, 振幅适当): 600xxx <= 4%, 000/300/688xxx <= 7%, others fail
func amplitudeAppropriate(tsCode string, swing float64) bool {
	switch {
	case strings.HasPrefix(tsCode, "600"):
		return swing <= 4.0
	case strings.HasPrefix(tsCode, "000"),
		strings.HasPrefix(tsCode, "300"),
		strings.HasPrefix(tsCode, "688"):
		return swing <= 7.0
	default:
		return false
	}
}

// marketCapAppropriate (up7, 市值适当): total_mv >= 800000 万元
func marketCapAppropriate(totalMV float64) bool {
	return totalMV >= minMarketCapMV
}

// volStable (缩量企稳): over the last 5 bars, mean amount of the first two
// <= 0.8x mean amount of the other three
func volStable(h []contracts.Bar) bool {
	if len(h) < volumeWindow {
		return false
	}
	a := amounts(lastN(h, volumeWindow))
	return mean(a[:2]) <= mean(a[2:])*0.8
}

// volBottom (底部放量): today's amount >= 1.5x mean amount of the last 5 bars
func volBottom(amount float64, h []contracts.Bar) bool {
	if len(h) < volumeWindow {
		return false
	}
	return amount >= mean(amounts(lastN(h, volumeWindow)))*1.5
}

// volBreakout (放量突破): today's amount >= 2x the 5-bar mean on an up day
func volBreakout(amount, pct float64, h []contracts.Bar) bool {
	if len(h) < volumeWindow {
		return false
	}
	return amount >= mean(amounts(lastN(h, volumeWindow)))*2.0 && pct > 0
}

// maBull (均线多头): latest MA5 > MA10 > MA20 > MA30
func maBull(ma *contracts.MovingAverages) bool {
	if ma == nil {
		return false
	}
	return ma.MA5 > ma.MA10 && ma.MA10 > ma.MA20 && ma.MA20 > ma.MA30
}

// === Minus rules ===

// highVolume (高位放量): today's amount >= 80% of the max amount of the last 10 bars
func highVolume(amount float64, h []contracts.Bar) bool {
	if len(h) < recentWindow {
		return false
	}
	return amount >= maxOf(amounts(lastN(h, recentWindow)))*0.8
}

// breakMA (跌破均线): close below the latest MA20 on record
func breakMA(closePrice float64, ma *contracts.MovingAverages) bool {
	if ma == nil {
		return false
	}
	return closePrice < ma.MA20
}

// downWithVolume1 (放量下跌): a down bar in the last 10 (at global index >= 5)
// whose volume >= max volume of the 5 bars before it
func downWithVolume1(h []contracts.Bar) bool {
	if len(h) < recentWindow {
		return false
	}

	start := len(h) - recentWindow
	for idx := start; idx < len(h); idx++ {
		if !(h[idx].PctChange < 0) || idx < down1Lookback {
			continue
		}
		prev := h[idx-down1Lookback : idx]
		vols := make([]float64, len(prev))
		for i, b := range prev {
			vols[i] = b.Vol
		}
		if h[idx].Vol >= maxOf(vols) {
			return true
		}
	}
	return false
}

// downWithVolume2 (涨停缩量): any bar after the first in the full history
// with pct >= 9.8 and volume <= 50% of the previous bar
func downWithVolume2(h []contracts.Bar) bool {
	if len(h) < 2 {
		return false
	}
	for idx := 1; idx < len(h); idx++ {
		if !(h[idx].PctChange >= limitUpPct) {
			continue
		}
		if h[idx].Vol <= h[idx-1].Vol*0.5 {
			return true
		}
	}
	return false
}
