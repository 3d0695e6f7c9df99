package core

import (
	"strings"
	"unicode"

	"github.com/JonMunkholm/mastersync/internal/format"
	"github.com/JonMunkholm/mastersync/internal/master"
)

// placeholders are values the publishers use for "no value".
var placeholders = map[string]bool{
	"":     true,
	"nan":  true,
	"NaN":  true,
	"None": true,
	"null": true,
}

// Normalize reduces parsed rows to (name, code, market) records for d.
// Rows with an empty or placeholder name or code are dropped. The market is
// always d.MarketTag. Duplicates are kept.
func Normalize(rows []format.Row, d master.Descriptor) []master.Record {
	out := make([]master.Record, 0, len(rows))
	for _, row := range rows {
		name := stripSpace(row[d.NameField])
		code := strings.TrimSpace(row[d.CodeField])
		if placeholders[name] || placeholders[code] {
			continue
		}
		out = append(out, master.Record{
			MasterID: d.ID,
			Instrument: master.Instrument{
				Name:   name,
				Code:   code,
				Market: d.MarketTag,
			},
		})
	}
	return out
}

// stripSpace removes every whitespace rune, including ideographic spaces.
func stripSpace(s string) string {
	if strings.IndexFunc(s, unicode.IsSpace) < 0 {
		return s
	}
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
