package format

import (
	"strings"
	"testing"
)

// ============================================================================
// Parser Benchmarks
// ============================================================================

// kospiText builds n KOSPI lines with double-width names.
func kospiText(n int) string {
	line := stockLine("005930", "KR7005930003", "삼성전자", KospiTail, map[string]string{"group_code": "ST"})
	return strings.Repeat(line+"\r\n", n)
}

// BenchmarkKospi_Parse benchmarks the widest fixed-width layout.
// The full KOSPI master is roughly 2,500 lines.
func BenchmarkKospi_Parse(b *testing.B) {
	in := Input{Text: kospiText(2500)}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if res := (Kospi{}).Parse(in); res.Status != StatusRows {
			b.Fatalf("Parse() status = %v", res.Status)
		}
	}
}

// BenchmarkLine_Width benchmarks legacy column counting on mixed text.
func BenchmarkLine_Width(b *testing.B) {
	l := NewLine("KODEX 200선물인버스2X 삼성전자우")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		l.Width()
	}
}

// BenchmarkIndexFutureOption_Parse benchmarks the pipe-delimited layout.
func BenchmarkIndexFutureOption_Parse(b *testing.B) {
	in := Input{Text: strings.Repeat("F|101W09|KR4101W90009|코스피200 F 202409|0|0|W09|K2I|코스피200\r\n", 1000)}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		(IndexFutureOption{}).Parse(in)
	}
}
