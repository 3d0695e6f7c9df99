package format

import "fmt"

// stockHead is the variable-width front segment shared by the domestic
// equity masters: short code, standard (ISIN) code, then the name up to the
// fixed-width tail.
var stockHead = Spans{
	{Name: "short_code", From: 0, To: 9},
	{Name: "std_code", From: 9, To: 21},
	{Name: "name", From: 21, To: 0},
}

// listingTail is the block of listing and financial fields common to the
// KOSPI and KOSDAQ tails.
var listingTail = Table{
	{Name: "base_price", Width: 9},
	{Name: "trade_unit", Width: 5},
	{Name: "after_hours_unit", Width: 5},
	{Name: "trading_halt", Width: 1},
	{Name: "liquidation", Width: 1},
	{Name: "managed", Width: 1},
	{Name: "market_warning", Width: 2},
	{Name: "warning_forecast", Width: 1},
	{Name: "unfaithful_disclosure", Width: 1},
	{Name: "backdoor_listing", Width: 1},
	{Name: "lock_code", Width: 2},
	{Name: "par_value_change", Width: 2},
	{Name: "capital_increase", Width: 2},
	{Name: "margin_rate", Width: 3},
	{Name: "credit_available", Width: 1},
	{Name: "credit_period", Width: 3},
	{Name: "prev_volume", Width: 12},
	{Name: "par_value", Width: 12},
	{Name: "listing_date", Width: 8},
	{Name: "listed_shares", Width: 15},
	{Name: "capital", Width: 21},
	{Name: "settlement_month", Width: 2},
	{Name: "ipo_price", Width: 7},
	{Name: "preferred", Width: 1},
	{Name: "short_overheat", Width: 1},
	{Name: "abnormal_rise", Width: 1},
	{Name: "krx300", Width: 1},
	{Name: "sales", Width: 9},
	{Name: "operating_profit", Width: 9},
	{Name: "ordinary_profit", Width: 9},
	{Name: "net_income", Width: 5},
	{Name: "roe", Width: 9},
	{Name: "base_date", Width: 8},
	{Name: "market_cap", Width: 9},
	{Name: "group_affiliate", Width: 3},
	{Name: "credit_limit_over", Width: 1},
	{Name: "collateral_loan", Width: 1},
	{Name: "stock_lending", Width: 1},
}

// KospiTail is the 228-column back segment of kospi_code.mst.
var KospiTail = append(Table{
	{Name: "group_code", Width: 2},
	{Name: "market_cap_scale", Width: 1},
	{Name: "sector_large", Width: 4},
	{Name: "sector_mid", Width: 4},
	{Name: "sector_small", Width: 4},
	{Name: "manufacturing", Width: 1},
	{Name: "low_liquidity", Width: 1},
	{Name: "governance", Width: 1},
	{Name: "kospi200_sector", Width: 1},
	{Name: "kospi100", Width: 1},
	{Name: "kospi50", Width: 1},
	{Name: "krx", Width: 1},
	{Name: "etp", Width: 1},
	{Name: "elw_issued", Width: 1},
	{Name: "krx100", Width: 1},
	{Name: "krx_sectors", Width: 17},
	{Name: "sri", Width: 1},
}, listingTail...)

// KosdaqTail is the 222-column back segment of kosdaq_code.mst.
var KosdaqTail = append(Table{
	{Name: "group_code", Width: 2},
	{Name: "market_cap_scale", Width: 1},
	{Name: "sector_large", Width: 4},
	{Name: "sector_mid", Width: 4},
	{Name: "sector_small", Width: 4},
	{Name: "venture", Width: 1},
	{Name: "low_liquidity", Width: 1},
	{Name: "krx", Width: 1},
	{Name: "etp", Width: 1},
	{Name: "krx100", Width: 1},
	{Name: "krx_sectors", Width: 16},
	{Name: "kosdaq150", Width: 1},
}, listingTail...)

func splitHeadTail(l Line, head Spans, tail Table) (Row, error) {
	h, err := l.Head(tail.Width())
	if err != nil {
		return nil, fmt.Errorf("head: %w", err)
	}
	t, err := l.Tail(tail.Width())
	if err != nil {
		return nil, fmt.Errorf("tail: %w", err)
	}
	row := make(Row, len(head)+len(tail))
	if err := head.Slice(h, row); err != nil {
		return nil, err
	}
	if err := tail.Split(t, row); err != nil {
		return nil, err
	}
	return row, nil
}

func parseHeadTail(in Input, head Spans, tail Table) Result {
	if in.Absent {
		return malformed(ErrSourceAbsent)
	}
	return eachLine(in.Text, func(line string) (Row, error) {
		return splitHeadTail(in.Line(line), head, tail)
	})
}

// Kospi is the KOSPI equity master (kospi_code.mst).
type Kospi struct{ strict }

func (Kospi) Name() string          { return "kospi" }
func (Kospi) Columns() []string     { return concat(stockHead.Columns(), KospiTail.Columns()) }
func (Kospi) Parse(in Input) Result { return parseHeadTail(in, stockHead, KospiTail) }

// Kosdaq is the KOSDAQ equity master (kosdaq_code.mst).
type Kosdaq struct{ strict }

func (Kosdaq) Name() string          { return "kosdaq" }
func (Kosdaq) Columns() []string     { return concat(stockHead.Columns(), KosdaqTail.Columns()) }
func (Kosdaq) Parse(in Input) Result { return parseHeadTail(in, stockHead, KosdaqTail) }

// KonexSpans slices konex_code.mst directly: the name runs from column 21 to
// 184 columns before the end, and every trailing field is anchored to the end.
var KonexSpans = Spans{
	{Name: "short_code", From: 0, To: 9},
	{Name: "std_code", From: 9, To: 21},
	{Name: "name", From: 21, To: -184},
	{Name: "group_code", From: -184, To: -182},
	{Name: "base_price", From: -182, To: -173},
	{Name: "trade_unit", From: -173, To: -168},
	{Name: "after_hours_unit", From: -168, To: -163},
	{Name: "trading_halt", From: -163, To: -162},
	{Name: "liquidation", From: -162, To: -161},
	{Name: "managed", From: -161, To: -160},
	{Name: "market_warning", From: -160, To: -158},
	{Name: "warning_forecast", From: -158, To: -157},
	{Name: "lock_code", From: -157, To: -155},
	{Name: "par_value_change", From: -155, To: -153},
	{Name: "capital_increase", From: -153, To: -151},
	{Name: "margin_rate", From: -151, To: -148},
	{Name: "credit_available", From: -148, To: -147},
	{Name: "credit_period", From: -147, To: -144},
	{Name: "prev_volume", From: -144, To: -132},
	{Name: "par_value", From: -132, To: -120},
	{Name: "listing_date", From: -120, To: -112},
	{Name: "listed_shares", From: -112, To: -97},
	{Name: "capital", From: -97, To: -76},
	{Name: "settlement_month", From: -76, To: -74},
	{Name: "ipo_price", From: -74, To: -67},
	{Name: "preferred", From: -67, To: -66},
	{Name: "short_overheat", From: -66, To: -65},
	{Name: "abnormal_rise", From: -65, To: -64},
	{Name: "sales", From: -64, To: -55},
	{Name: "operating_profit", From: -55, To: -46},
	{Name: "ordinary_profit", From: -46, To: -37},
	{Name: "net_income", From: -37, To: -32},
	{Name: "roe", From: -32, To: -23},
	{Name: "base_date", From: -23, To: -15},
	{Name: "market_cap", From: -15, To: -6},
	{Name: "credit_limit_over", From: -6, To: -5},
	{Name: "collateral_loan", From: -5, To: -4},
	{Name: "stock_lending", From: -4, To: -3},
	{Name: "reserved", From: -3, To: 0},
}

// KonexWidth is the width of the end-anchored part of a KONEX line.
const KonexWidth = 184

// Konex is the KONEX equity master (konex_code.mst).
type Konex struct{ strict }

func (Konex) Name() string      { return "konex" }
func (Konex) Columns() []string { return KonexSpans.Columns() }

func (Konex) Parse(in Input) Result {
	if in.Absent {
		return malformed(ErrSourceAbsent)
	}
	return eachLine(in.Text, func(line string) (Row, error) {
		l := in.Line(line)
		if l.Width() < 21+KonexWidth {
			return nil, fmt.Errorf("%w: %d columns", errOutOfRange, l.Width())
		}
		row := make(Row, len(KonexSpans))
		if err := KonexSpans.Slice(l, row); err != nil {
			return nil, err
		}
		return row, nil
	})
}

// SectorIndexTable covers a whole idxcode.mst line.
var SectorIndexTable = Table{
	{Name: "division", Width: 1},
	{Name: "index_code", Width: 4},
	{Name: "name", Width: 40},
}

// SectorIndex is the sector index code master (idxcode.mst).
type SectorIndex struct{ strict }

func (SectorIndex) Name() string      { return "sector_index" }
func (SectorIndex) Columns() []string { return SectorIndexTable.Columns() }

func (SectorIndex) Parse(in Input) Result {
	if in.Absent {
		return malformed(ErrSourceAbsent)
	}
	return eachLine(in.Text, func(line string) (Row, error) {
		row := make(Row, len(SectorIndexTable))
		if err := SectorIndexTable.Split(in.Line(line), row); err != nil {
			return nil, err
		}
		return row, nil
	})
}

// ElwTail is the 82-column back segment of elw_code.mst. Right type and
// exercise style carry stray characters around their letter codes; the
// knock-out and LP flags around their digit.
var ElwTail = Table{
	{Name: "underlying_1", Width: 9},
	{Name: "underlying_2", Width: 9},
	{Name: "underlying_3", Width: 9},
	{Name: "underlying_4", Width: 9},
	{Name: "underlying_5", Width: 9},
	{Name: "issuer_code", Width: 5},
	{Name: "right_type", Width: 2, Scrub: UpperAlpha},
	{Name: "exercise_style", Width: 1, Scrub: UpperAlpha},
	{Name: "knock_out", Width: 2, Scrub: Binary},
	{Name: "lp_code", Width: 5},
	{Name: "lp_flag", Width: 1, Scrub: Binary},
	{Name: "strike_price", Width: 12},
	{Name: "maturity_date", Width: 8},
	{Name: "settlement", Width: 1},
}

// Elw is the equity-linked warrant master (elw_code.mst).
type Elw struct{ strict }

func (Elw) Name() string          { return "elw" }
func (Elw) Columns() []string     { return concat(stockHead.Columns(), ElwTail.Columns()) }
func (Elw) Parse(in Input) Result { return parseHeadTail(in, stockHead, ElwTail) }
