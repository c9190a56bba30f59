package strategy

// MaintenanceMarginRate is the fraction of notional held as margin.
const MaintenanceMarginRate = 0.1

// percentChange returns (price - base) / base * 100.
func percentChange(price, base float64) float64 {
	if base == 0 {
		return 0
	}
	return (price - base) / base * 100
}

// MarginLevel returns (balance + pnl) / (positionSize * price * MaintenanceMarginRate).
// Returns 0 when no position is open.
func MarginLevel(balance, pnl, positionSize, price float64) float64 {
	notionalMargin := positionSize * price * MaintenanceMarginRate
	if notionalMargin <= 0 {
		return 0
	}
	return (balance + pnl) / notionalMargin
}

// simplifiedRSI computes an RSI from a single price delta.
//   - gain = max(delta, 0), loss = max(-delta, 0)
//   - RSI = 100 if loss == 0, else 100 - 100/(1 + gain/loss)
func simplifiedRSI(price, initialPrice float64) float64 {
	delta := price - initialPrice
	gain := 0.0
	loss := 0.0
	if delta > 0 {
		gain = delta
	} else {
		loss = -delta
	}
	if loss == 0 {
		return 100
	}
	return 100 - 100/(1+gain/loss)
}
