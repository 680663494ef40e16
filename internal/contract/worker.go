package contract

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"stat-arb-engine/internal/config"
	"stat-arb-engine/internal/util/fastparse"
)

// ErrUnknownContract 未配置的合约
var ErrUnknownContract = errors.New("未知合约")

// Worker 合约与手续费查询
// 构造后只读（RefreshTickSizes 在启动阶段、事件循环开始前调用）。
type Worker struct {
	// date 交易日
	date string
	// byName 逻辑名索引
	byName map[string]*Info
	// byTicker 合约代码索引
	byTicker map[string]*Info
	// rolls 按交易日的合约覆盖
	rolls map[string]map[string][]string
}

// NewWorker 由配置构建合约查询
// 参数 cfgs: 合约配置
// 参数 date: 交易日（YYYY-MM-DD），决定换月覆盖
func NewWorker(cfgs []config.ContractConfig, date string) *Worker {
	w := &Worker{
		date:     date,
		byName:   make(map[string]*Info, len(cfgs)),
		byTicker: make(map[string]*Info),
		rolls:    make(map[string]map[string][]string),
	}
	for _, c := range cfgs {
		info := &Info{
			Name:              c.Name,
			MinPriceMove:      c.MinPriceMove,
			CancelLimit:       c.CancelLimit,
			Multiplier:        c.Multiplier,
			OpenFeeRate:       c.OpenFeeRate,
			CloseFeeRate:      c.CloseFeeRate,
			CloseTodayFeeRate: c.CloseTodayFeeRate,
			FeePerLot:         c.FeePerLot,
		}
		if info.Multiplier <= 0 {
			info.Multiplier = 1
		}
		w.rolls[c.Name] = c.Rolls
		info.Tickers = resolveTickers(c.Tickers, c.Rolls, date)
		w.byName[c.Name] = info
		for _, t := range info.Tickers {
			w.byTicker[t] = info
		}
	}
	return w
}

// resolveTickers 取不晚于交易日的最近一次换月覆盖；没有则用默认列表
func resolveTickers(base []string, rolls map[string][]string, date string) []string {
	if len(rolls) == 0 || date == "" {
		return append([]string(nil), base...)
	}
	keys := make([]string, 0, len(rolls))
	for k := range rolls {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	picked := ""
	for _, k := range keys {
		if k <= date {
			picked = k
		}
	}
	if picked == "" {
		return append([]string(nil), base...)
	}
	return append([]string(nil), rolls[picked]...)
}

// Lookup 按逻辑名查询
func (w *Worker) Lookup(name string) (Info, error) {
	info, ok := w.byName[name]
	if !ok {
		return Info{}, fmt.Errorf("%w: %s", ErrUnknownContract, name)
	}
	return *info, nil
}

// ByTicker 按合约代码查询
func (w *Worker) ByTicker(ticker string) (Info, error) {
	info, ok := w.byTicker[ticker]
	if !ok {
		return Info{}, fmt.Errorf("%w: %s", ErrUnknownContract, ticker)
	}
	return *info, nil
}

// ActiveTickers 查询逻辑合约在指定交易日的可交易合约
// 参数 date: 交易日；为空时使用构造时的交易日
func (w *Worker) ActiveTickers(name, date string) ([]string, error) {
	info, ok := w.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownContract, name)
	}
	if date == "" || date == w.date {
		return append([]string(nil), info.Tickers...), nil
	}
	base := info.Tickers
	if rolls := w.rolls[name]; len(rolls) > 0 {
		return resolveTickers(base, rolls, date), nil
	}
	return append([]string(nil), base...), nil
}

// FeePoint 计算单位数量的开平手续费
// 费用 = 价格 × 数量 × 乘数 × 费率 + 数量 × 每手费用；费用点 = 费用 / (数量 × 乘数)
// 参数 noCloseToday: 平仓按非平今费率计费
func (w *Worker) FeePoint(ticker string, openPrice float64, openSize int64, closePrice float64, closeSize int64, noCloseToday bool) (FeePoint, error) {
	info, ok := w.byTicker[ticker]
	if !ok {
		return FeePoint{}, fmt.Errorf("%w: %s", ErrUnknownContract, ticker)
	}
	closeRate := info.CloseTodayFeeRate
	if noCloseToday || closeRate == 0 {
		closeRate = info.CloseFeeRate
	}
	return FeePoint{
		Open:  feePoint(openPrice, openSize, info.Multiplier, info.OpenFeeRate, info.FeePerLot),
		Close: feePoint(closePrice, closeSize, info.Multiplier, closeRate, info.FeePerLot),
	}, nil
}

func feePoint(price float64, size int64, multiplier, rate, perLot float64) float64 {
	if size <= 0 {
		return 0
	}
	qty := decimal.NewFromInt(size)
	mult := decimal.NewFromFloat(multiplier)
	fee := decimal.NewFromFloat(price).Mul(qty).Mul(mult).Mul(decimal.NewFromFloat(rate)).
		Add(qty.Mul(decimal.NewFromFloat(perLot)))
	return fee.Div(qty.Mul(mult)).InexactFloat64()
}

// Fee 计算一笔成交的手续费金额
func (w *Worker) Fee(ticker string, price float64, size int64, closing, noCloseToday bool) (float64, error) {
	fp, err := w.FeePoint(ticker, price, size, price, size, noCloseToday)
	if err != nil {
		return 0, err
	}
	info := w.byTicker[ticker]
	point := fp.Open
	if closing {
		point = fp.Close
	}
	return decimal.NewFromFloat(point).Mul(decimal.NewFromInt(size)).Mul(decimal.NewFromFloat(info.Multiplier)).InexactFloat64(), nil
}

// RefreshTickSizes 用 OKX 的 tickSz 覆盖最小变动价位
// 只更新合约代码与 OKX instId 完全一致的条目。
// 返回: 更新的合约数
func (w *Worker) RefreshTickSizes(ctx context.Context, f Fetcher, url string) (int, error) {
	insts, err := f.FetchOKX(ctx, url)
	if err != nil {
		return 0, fmt.Errorf("获取 OKX 元数据失败: %w", err)
	}
	updated := 0
	for _, inst := range insts {
		info, ok := w.byTicker[inst.InstId]
		if !ok {
			continue
		}
		tick, err := fastparse.ParseFloat(inst.TickSz)
		if err != nil || tick <= 0 {
			continue
		}
		if info.MinPriceMove != tick {
			info.MinPriceMove = tick
			updated++
		}
	}
	return updated, nil
}
