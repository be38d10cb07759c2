package feed

import (
	"fmt"
	"sort"
	"time"

	"BarBridge/internal/domain/models"
	"BarBridge/internal/domain/repository"
)

// Delivery is the adapter surface the aggregator drives. The engine
// implements it.
type Delivery interface {
	OnBarUpdate(currentBarIndex int)
	OnTick(ts time.Time)
}

// Aggregator rolls a trade stream into fixed-period bars and exposes them as
// a CandleFeed. Apply is the delivery context: it must only ever be called
// from one goroutine, and every adapter callback fires from inside it.
type Aggregator struct {
	symbol    string
	timeframe string
	period    time.Duration

	bars    []models.CachedBar
	forming *models.CachedBar
	levels  map[float64]*models.PriceLevel

	// tick rule state: a trade at or above the previous price counts as
	// ask-side volume, below as bid-side
	lastPrice float64
}

func NewAggregator(symbol, timeframe string) (*Aggregator, error) {
	tf, err := repository.ParseTimeframe(timeframe)
	if err != nil {
		return nil, fmt.Errorf("aggregator timeframe: %w", err)
	}
	return &Aggregator{
		symbol:    symbol,
		timeframe: timeframe,
		period:    tf.Duration(),
		levels:    make(map[float64]*models.PriceLevel),
	}, nil
}

// Ready reports host readiness: the aggregator is ready once the first trade
// has opened a bar.
func (a *Aggregator) Ready() (repository.HostInfo, bool) {
	if a.forming == nil && len(a.bars) == 0 {
		return repository.HostInfo{}, false
	}
	return repository.HostInfo{Symbol: a.symbol, Timeframe: a.timeframe}, true
}

// Candle returns the completed bar at the given index.
func (a *Aggregator) Candle(index int) (models.CachedBar, error) {
	if index < 0 || index >= len(a.bars) {
		return models.CachedBar{}, fmt.Errorf("candle index %d out of range [0,%d)", index, len(a.bars))
	}
	return a.bars[index], nil
}

// Apply folds one trade into the forming bar, completing it first when the
// trade falls in a later period, then notifies the delivery target.
func (a *Aggregator) Apply(t *models.Trade, sink Delivery) {
	open := a.bucketOpen(t.TimeMs)

	switch {
	case a.forming == nil:
		a.open(open, t)
	case open.After(a.forming.OpenTime):
		a.complete()
		a.open(open, t)
	default:
		a.fold(t)
	}

	sink.OnTick(time.UnixMilli(t.TimeMs))
	sink.OnBarUpdate(len(a.bars))
}

func (a *Aggregator) bucketOpen(tradeMs int64) time.Time {
	periodMs := a.period.Milliseconds()
	return time.UnixMilli(tradeMs / periodMs * periodMs).UTC()
}

func (a *Aggregator) open(openTime time.Time, t *models.Trade) {
	a.forming = &models.CachedBar{
		OpenTime:  openTime,
		CloseTime: openTime.Add(a.period),
		Open:      t.Price,
		High:      t.Price,
		Low:       t.Price,
		Close:     t.Price,
	}
	a.levels = make(map[float64]*models.PriceLevel)
	a.fold(t)
}

func (a *Aggregator) fold(t *models.Trade) {
	b := a.forming
	if t.Price > b.High {
		b.High = t.Price
	}
	if t.Price < b.Low {
		b.Low = t.Price
	}
	b.Close = t.Price
	b.Volume += t.Volume

	lvl, ok := a.levels[t.Price]
	if !ok {
		lvl = &models.PriceLevel{Price: t.Price}
		a.levels[t.Price] = lvl
	}
	if a.lastPrice != 0 && t.Price < a.lastPrice {
		lvl.BidVolume += t.Volume
	} else {
		lvl.AskVolume += t.Volume
	}
	a.lastPrice = t.Price
}

func (a *Aggregator) complete() {
	b := *a.forming
	b.Levels = make([]models.PriceLevel, 0, len(a.levels))
	for _, lvl := range a.levels {
		b.Levels = append(b.Levels, *lvl)
	}
	sort.Slice(b.Levels, func(i, j int) bool { return b.Levels[i].Price < b.Levels[j].Price })
	a.bars = append(a.bars, b)
	a.forming = nil
}
