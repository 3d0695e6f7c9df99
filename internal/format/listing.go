package format

import "fmt"

// OverseasStockLayout is the tab-separated layout shared by every overseas
// exchange master (nasmst.cod, nysmst.cod, ...).
var OverseasStockLayout = Delimited{
	Sep: "\t",
	Columns: []string{
		"national_code", "exchange_id", "exchange_code", "exchange_name",
		"symbol", "realtime_symbol", "korea_name", "english_name",
		"security_type", "currency", "float_position", "data_type",
		"base_price", "bid_order_size", "ask_order_size",
		"market_start_time", "market_end_time",
		"dr_flag", "dr_country_code", "sector_code", "index_member_flag",
		"tick_size_type", "type_code", "tick_size_detail",
	},
}

// OverseasStock is the overseas exchange equity master.
type OverseasStock struct{ strict }

func (OverseasStock) Name() string      { return "overseas_stock" }
func (OverseasStock) Columns() []string { return OverseasStockLayout.Columns }

func (OverseasStock) Parse(in Input) Result {
	if in.Absent {
		return malformed(ErrSourceAbsent)
	}
	return parseDelimited(in, OverseasStockLayout)
}

// BondTailWidth is the width of the end-anchored part of a bond line.
const BondTailWidth = 39

// BondSpans slices bond_code.mst. The name runs between the fixed front
// codes and the end-anchored issue terms.
var BondSpans = Spans{
	{Name: "bond_type", From: 0, To: 2},
	{Name: "bond_class", From: 2, To: 4},
	{Name: "std_code", From: 4, To: 16},
	{Name: "name", From: 16, To: -BondTailWidth},
	{Name: "issue_date", From: -39, To: -31},
	{Name: "maturity_date", From: -31, To: -23},
	{Name: "coupon_rate", From: -23, To: -13},
	{Name: "interest_type", From: -13, To: -11, Scrub: UpperAlpha},
	{Name: "face_value", From: -11, To: -1},
	{Name: "listed", From: -1, To: 0, Scrub: Binary},
}

// Bond is the listed bond master (bond_code.mst).
type Bond struct{ strict }

func (Bond) Name() string      { return "bond" }
func (Bond) Columns() []string { return BondSpans.Columns() }

func (Bond) Parse(in Input) Result {
	if in.Absent {
		return malformed(ErrSourceAbsent)
	}
	return eachLine(in.Text, func(line string) (Row, error) {
		l := in.Line(line)
		if l.Width() < 16+BondTailWidth {
			return nil, fmt.Errorf("%w: %d columns", errOutOfRange, l.Width())
		}
		row := make(Row, len(BondSpans))
		if err := BondSpans.Slice(l, row); err != nil {
			return nil, err
		}
		return row, nil
	})
}
