package core

import (
	"testing"

	"github.com/JonMunkholm/mastersync/internal/format"
	"github.com/JonMunkholm/mastersync/internal/master"
)

func TestNormalize(t *testing.T) {
	d := master.Descriptor{ID: "kospi", NameField: "name", CodeField: "short_code", MarketTag: "KOSPI"}

	rows := []format.Row{
		{"name": " 삼성 전자 ", "short_code": " 005930 ", "market": "ignored"},
		{"name": "SK하이닉스", "short_code": "000660"},
		{"name": "nan", "short_code": "000001"},
		{"name": "현대차", "short_code": "None"},
		{"name": "   ", "short_code": "000002"},
		{"name": "NaN", "short_code": "null"},
		{"short_code": "000003"},
		{"name": "삼성　전자", "short_code": "005930"},
	}

	got := Normalize(rows, d)
	want := []master.Instrument{
		{Name: "삼성전자", Code: "005930", Market: "KOSPI"},
		{Name: "SK하이닉스", Code: "000660", Market: "KOSPI"},
		{Name: "삼성전자", Code: "005930", Market: "KOSPI"},
	}

	if len(got) != len(want) {
		t.Fatalf("Normalize() = %d records, want %d: %+v", len(got), len(want), got)
	}
	for i, w := range want {
		if got[i].Instrument != w {
			t.Errorf("record %d = %+v, want %+v", i, got[i].Instrument, w)
		}
		if got[i].MasterID != "kospi" {
			t.Errorf("record %d master = %q", i, got[i].MasterID)
		}
	}
}

func TestNormalize_AllFormats(t *testing.T) {
	c, err := master.DefaultCatalog("")
	if err != nil {
		t.Fatal(err)
	}

	for _, tool := range c.Tools() {
		for _, id := range tool.Masters {
			d, _ := c.Master(id)
			row := format.Row{}
			for _, col := range d.Format.Columns() {
				row[col] = "X1"
			}
			recs := Normalize([]format.Row{row}, d)
			if len(recs) != 1 {
				t.Errorf("%s: Normalize() kept %d rows, want 1", id, len(recs))
				continue
			}
			if recs[0].Market != d.MarketTag {
				t.Errorf("%s: market = %q, want %q", id, recs[0].Market, d.MarketTag)
			}
		}
	}
}
