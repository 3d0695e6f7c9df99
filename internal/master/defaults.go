package master

import (
	"strings"

	"github.com/JonMunkholm/mastersync/internal/format"
)

// DefaultBaseURL is where the broker publishes its master files.
const DefaultBaseURL = "https://new.real.download.dws.co.kr/common/master"

// overseasExchanges maps overseas master ids to their market tags.
var overseasExchanges = []struct{ id, market string }{
	{"nas", "NASDAQ"},
	{"nys", "NYSE"},
	{"ams", "AMEX"},
	{"shs", "SSE"},
	{"shi", "SSE_INDEX"},
	{"szs", "SZSE"},
	{"szi", "SZSE_INDEX"},
	{"tse", "TSE"},
	{"hks", "HKEX"},
	{"hnx", "HNX"},
	{"hsx", "HOSE"},
}

// DefaultDescriptors returns the published master files, downloaded from baseURL.
func DefaultDescriptors(baseURL string) []Descriptor {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")
	url := func(file string) string { return baseURL + "/" + file + ".zip" }

	descs := []Descriptor{
		{ID: "kospi", URL: url("kospi_code.mst"), Member: ".mst", Format: format.Kospi{},
			NameField: "name", CodeField: "short_code", MarketTag: "KOSPI", Description: "KOSPI listed equities"},
		{ID: "kosdaq", URL: url("kosdaq_code.mst"), Member: ".mst", Format: format.Kosdaq{},
			NameField: "name", CodeField: "short_code", MarketTag: "KOSDAQ", Description: "KOSDAQ listed equities"},
		{ID: "konex", URL: url("konex_code.mst"), Member: ".mst", Format: format.Konex{},
			NameField: "name", CodeField: "short_code", MarketTag: "KONEX", Description: "KONEX listed equities"},
		{ID: "idxcode", URL: url("idxcode.mst"), Member: ".mst", Format: format.SectorIndex{},
			NameField: "name", CodeField: "index_code", MarketTag: "KRX_INDEX", Description: "sector indices"},
		{ID: "elw", URL: url("elw_code.mst"), Member: ".mst", Format: format.Elw{},
			NameField: "name", CodeField: "short_code", MarketTag: "ELW", Description: "equity-linked warrants"},
		{ID: "fo_idx", URL: url("fo_idx_code_mts.mst"), Member: ".mst", Format: format.IndexFutureOption{},
			NameField: "name", CodeField: "short_code", MarketTag: "KRX_FO", Description: "index futures and options"},
		{ID: "fo_stk", URL: url("fo_stk_code_mts.mst"), Member: ".mst", Format: format.StockFutureOption{},
			NameField: "name", CodeField: "short_code", MarketTag: "KRX_FO", Description: "stock futures and options"},
		{ID: "fo_com", URL: url("fo_com_code.mst"), Member: ".mst", Format: format.CommodityFuture{},
			NameField: "name", CodeField: "short_code", MarketTag: "KRX_COMMODITY", Description: "commodity futures"},
		{ID: "fo_eurex", URL: url("fo_eurex_code.mst"), Member: ".mst", Format: format.EurexOption{},
			NameField: "name", CodeField: "short_code", MarketTag: "EUREX", Description: "KRX-EUREX night options"},
		{ID: "bond", URL: url("bond_code.mst"), Member: ".mst", Format: format.Bond{},
			NameField: "name", CodeField: "std_code", MarketTag: "KRX_BOND", Description: "listed bonds"},
		{ID: "ffcode", URL: url("ffcode.mst"), Member: ".mst", Format: format.OverseasFuture{},
			NameField: "name", CodeField: "series_code", MarketTag: "OVERSEAS_FUTURES", Description: "overseas futures"},
	}

	for _, ex := range overseasExchanges {
		descs = append(descs, Descriptor{
			ID:          ex.id,
			URL:         url(ex.id + "mst.cod"),
			Member:      ".cod",
			Format:      format.OverseasStock{},
			NameField:   "korea_name",
			CodeField:   "symbol",
			MarketTag:   ex.market,
			Description: ex.market + " listed equities",
		})
	}
	return descs
}

// DefaultTools returns the lookup tools and the masters feeding each one.
func DefaultTools() []Tool {
	overseas := make([]string, len(overseasExchanges))
	for i, ex := range overseasExchanges {
		overseas[i] = ex.id
	}

	return []Tool{
		{ID: "auth", Model: "auth_master", Label: "Authentication"},
		{ID: "domestic_stock", Model: "domestic_stock_master", Label: "Domestic stocks",
			Masters: []string{"kospi", "kosdaq", "konex", "idxcode"}},
		{ID: "etfetn", Model: "etfetn_master", Label: "ETF / ETN",
			Masters: []string{"kospi", "kosdaq"}},
		{ID: "elw", Model: "elw_master", Label: "ELW",
			Masters: []string{"elw"}},
		{ID: "domestic_futureoption", Model: "domestic_futureoption_master", Label: "Domestic futures and options",
			Masters: []string{"fo_idx", "fo_stk", "fo_com", "fo_eurex"}},
		{ID: "domestic_bond", Model: "domestic_bond_master", Label: "Domestic bonds",
			Masters: []string{"bond"}},
		{ID: "overseas_stock", Model: "overseas_stock_master", Label: "Overseas stocks",
			Masters: overseas},
		{ID: "overseas_futureoption", Model: "overseas_futureoption_master", Label: "Overseas futures and options",
			Masters: []string{"ffcode"}},
	}
}

// DefaultCatalog builds the production catalogue.
func DefaultCatalog(baseURL string) (*Catalog, error) {
	return NewCatalog(DefaultDescriptors(baseURL), DefaultTools())
}
