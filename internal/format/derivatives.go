package format

import "fmt"

// IndexFutureOptionLayout is the pipe-separated fo_idx_code_mts.mst layout.
var IndexFutureOptionLayout = Delimited{
	Sep: "|",
	Columns: []string{
		"product_type", "short_code", "std_code", "name",
		"atm_class", "strike_price", "month_code",
		"underlying_code", "underlying_name",
	},
}

// StockFutureOptionLayout is the pipe-separated fo_stk_code_mts.mst layout.
var StockFutureOptionLayout = Delimited{
	Sep: "|",
	Columns: []string{
		"product_type", "short_code", "std_code", "name",
		"underlying_code", "underlying_name", "month_code",
		"strike_price", "multiplier",
	},
}

// EurexOptionLayout is the pipe-separated fo_eurex_code.mst layout.
var EurexOptionLayout = Delimited{
	Sep: "|",
	Columns: []string{
		"product_type", "short_code", "std_code", "name",
		"atm_class", "strike_price",
		"underlying_code", "underlying_name",
	},
}

func parseDelimited(in Input, layout Delimited) Result {
	return eachLine(in.Text, func(line string) (Row, error) {
		row := make(Row, len(layout.Columns))
		if err := layout.Split(line, row); err != nil {
			return nil, err
		}
		return row, nil
	})
}

// IndexFutureOption is the KOSPI200 index futures and options master.
type IndexFutureOption struct{ strict }

func (IndexFutureOption) Name() string      { return "index_future_option" }
func (IndexFutureOption) Columns() []string { return IndexFutureOptionLayout.Columns }

func (IndexFutureOption) Parse(in Input) Result {
	if in.Absent {
		return malformed(ErrSourceAbsent)
	}
	return parseDelimited(in, IndexFutureOptionLayout)
}

// StockFutureOption is the single-stock futures and options master.
type StockFutureOption struct{ strict }

func (StockFutureOption) Name() string      { return "stock_future_option" }
func (StockFutureOption) Columns() []string { return StockFutureOptionLayout.Columns }

func (StockFutureOption) Parse(in Input) Result {
	if in.Absent {
		return malformed(ErrSourceAbsent)
	}
	return parseDelimited(in, StockFutureOptionLayout)
}

// EurexOption is the KRX-EUREX night session option master. The file is not
// published on every business day, so an absent source is an empty result.
type EurexOption struct{ strict }

func (EurexOption) Name() string       { return "eurex_option" }
func (EurexOption) Columns() []string  { return EurexOptionLayout.Columns }
func (EurexOption) AllowsAbsent() bool { return true }

func (EurexOption) Parse(in Input) Result {
	if in.Absent {
		return absentResult()
	}
	return parseDelimited(in, EurexOptionLayout)
}

// commodityHead is the front segment of fo_com_code.mst.
var commodityHead = Spans{
	{Name: "product_type", From: 0, To: 1},
	{Name: "short_code", From: 1, To: 10},
	{Name: "std_code", From: 10, To: 22},
	{Name: "name", From: 22, To: 0},
}

// CommodityMid is the first fixed-width table of the commodity tail.
var CommodityMid = Table{
	{Name: "spread_type", Width: 2},
	{Name: "underlying_code", Width: 3},
	{Name: "contract_month", Width: 6},
	{Name: "tick_size", Width: 12},
	{Name: "multiplier", Width: 18},
}

// CommodityEnd is the second fixed-width table of the commodity tail.
var CommodityEnd = Table{
	{Name: "trading_flag", Width: 2, Scrub: Binary},
	{Name: "last_trading_day", Width: 8},
	{Name: "margin_rate", Width: 6},
	{Name: "market_type", Width: 4, Scrub: UpperAlpha},
}

// CommodityTailWidth is the width of the back segment of a commodity line.
var CommodityTailWidth = CommodityMid.Width() + CommodityEnd.Width()

// CommodityFuture is the commodity futures master (fo_com_code.mst). Lines
// split head -> tail, and the tail splits again into mid and end tables.
type CommodityFuture struct{ strict }

func (CommodityFuture) Name() string { return "commodity_future" }

func (CommodityFuture) Columns() []string {
	return concat(commodityHead.Columns(), CommodityMid.Columns(), CommodityEnd.Columns())
}

func (CommodityFuture) Parse(in Input) Result {
	if in.Absent {
		return malformed(ErrSourceAbsent)
	}
	return eachLine(in.Text, func(line string) (Row, error) {
		l := in.Line(line)
		head, err := l.Head(CommodityTailWidth)
		if err != nil {
			return nil, fmt.Errorf("head: %w", err)
		}
		tail, err := l.Tail(CommodityTailWidth)
		if err != nil {
			return nil, fmt.Errorf("tail: %w", err)
		}
		mid, err := tail.Head(CommodityEnd.Width())
		if err != nil {
			return nil, fmt.Errorf("mid: %w", err)
		}
		end, err := tail.Tail(CommodityEnd.Width())
		if err != nil {
			return nil, fmt.Errorf("end: %w", err)
		}

		row := make(Row, len(commodityHead)+len(CommodityMid)+len(CommodityEnd))
		if err := commodityHead.Slice(head, row); err != nil {
			return nil, err
		}
		if err := CommodityMid.Split(mid, row); err != nil {
			return nil, err
		}
		if err := CommodityEnd.Split(end, row); err != nil {
			return nil, err
		}
		return row, nil
	})
}

// OverseasFutureTable covers a whole ffcode.mst line.
var OverseasFutureTable = Table{
	{Name: "series_code", Width: 32},
	{Name: "name", Width: 50},
	{Name: "exchange_code", Width: 10},
	{Name: "product_code", Width: 10},
	{Name: "product_type", Width: 3},
	{Name: "currency", Width: 3},
	{Name: "decimal_places", Width: 3},
	{Name: "tick_size", Width: 14},
	{Name: "tick_value", Width: 14},
	{Name: "multiplier", Width: 10},
	{Name: "listed", Width: 1, Scrub: Binary},
}

// OverseasFuture is the overseas futures master (ffcode.mst).
type OverseasFuture struct{ strict }

func (OverseasFuture) Name() string      { return "overseas_future" }
func (OverseasFuture) Columns() []string { return OverseasFutureTable.Columns() }

func (OverseasFuture) Parse(in Input) Result {
	if in.Absent {
		return malformed(ErrSourceAbsent)
	}
	return eachLine(in.Text, func(line string) (Row, error) {
		row := make(Row, len(OverseasFutureTable))
		if err := OverseasFutureTable.Split(in.Line(line), row); err != nil {
			return nil, err
		}
		return row, nil
	})
}
