package backtesting

import (
	"positionEngine/internal/domain"
	"positionEngine/internal/regime"
	"positionEngine/internal/strategy/indicators"
)

// IndicatorConfig sets the periods of the context series computed once per run.
type IndicatorConfig struct {
	ATRPeriod         int     // default 14
	ADXPeriod         int     // default 14
	LongMAPeriod      int     // default 200
	BandPeriod        int     // Bollinger and Keltner, default 20
	BandStdDev        float64 // default 2
	KeltnerMultiple   float64 // default 2
	SupertrendPeriod  int     // default 10
	SupertrendFactor  float64 // default 3
	SwingLookback     int     // default 10
	VolLookback       int     // default 100
	BandwidthLookback int     // default 20
}

func (c IndicatorConfig) withDefaults() IndicatorConfig {
	setInt := func(v *int, def int) {
		if *v <= 0 {
			*v = def
		}
	}
	setFloat := func(v *float64, def float64) {
		if *v <= 0 {
			*v = def
		}
	}
	setInt(&c.ATRPeriod, 14)
	setInt(&c.ADXPeriod, 14)
	setInt(&c.LongMAPeriod, 200)
	setInt(&c.BandPeriod, 20)
	setFloat(&c.BandStdDev, 2)
	setFloat(&c.KeltnerMultiple, 2)
	setInt(&c.SupertrendPeriod, 10)
	setFloat(&c.SupertrendFactor, 3)
	setInt(&c.SwingLookback, 10)
	setInt(&c.VolLookback, 100)
	setInt(&c.BandwidthLookback, 20)
	return c
}

// marketSeries is everything the driver reads per bar besides the kline itself.
type marketSeries struct {
	atr        []float64
	keltner    indicators.BandSeries
	supertrend indicators.Supertrend
	regime     regime.Series
}

func computeSeries(klines []*domain.Kline, cfg IndicatorConfig) marketSeries {
	closes := indicators.Closes(klines)
	bands := indicators.BollingerSeries(closes, cfg.BandPeriod, cfg.BandStdDev)
	return marketSeries{
		atr:        indicators.ATRSeries(klines, cfg.ATRPeriod),
		keltner:    indicators.KeltnerSeries(klines, cfg.BandPeriod, cfg.KeltnerMultiple),
		supertrend: indicators.SupertrendSeries(klines, cfg.SupertrendPeriod, cfg.SupertrendFactor),
		regime: regime.Series{
			ADX:               indicators.ADXSeries(klines, cfg.ADXPeriod),
			Volatility:        indicators.ATRPercentSeries(klines, cfg.ATRPeriod),
			Close:             closes,
			LongMA:            indicators.SMASeries(closes, cfg.LongMAPeriod),
			BandUpper:         bands.Upper,
			BandLower:         bands.Lower,
			BandMiddle:        bands.Middle,
			VolLookback:       cfg.VolLookback,
			BandwidthLookback: cfg.BandwidthLookback,
		},
	}
}
