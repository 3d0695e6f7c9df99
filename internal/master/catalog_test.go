package master

import (
	"strings"
	"testing"

	"github.com/JonMunkholm/mastersync/internal/format"
)

func TestDefaultCatalog(t *testing.T) {
	c, err := DefaultCatalog("https://example.test/master/")
	if err != nil {
		t.Fatalf("DefaultCatalog() error = %v", err)
	}

	if got := c.MasterCount(); got != 22 {
		t.Errorf("MasterCount() = %d, want 22", got)
	}

	tests := []struct {
		tool    string
		model   string
		masters []string
	}{
		{"auth", "auth_master", nil},
		{"domestic_stock", "domestic_stock_master", []string{"kospi", "kosdaq", "konex", "idxcode"}},
		{"etfetn", "etfetn_master", []string{"kospi", "kosdaq"}},
		{"elw", "elw_master", []string{"elw"}},
		{"domestic_futureoption", "domestic_futureoption_master", []string{"fo_idx", "fo_stk", "fo_com", "fo_eurex"}},
		{"domestic_bond", "domestic_bond_master", []string{"bond"}},
		{"overseas_futureoption", "overseas_futureoption_master", []string{"ffcode"}},
	}

	for _, tt := range tests {
		t.Run(tt.tool, func(t *testing.T) {
			tool, ok := c.Tool(tt.tool)
			if !ok {
				t.Fatalf("Tool(%q) not found", tt.tool)
			}
			if tool.Model != tt.model {
				t.Errorf("Model = %q, want %q", tool.Model, tt.model)
			}
			if strings.Join(tool.Masters, ",") != strings.Join(tt.masters, ",") {
				t.Errorf("Masters = %v, want %v", tool.Masters, tt.masters)
			}
		})
	}

	overseas, _ := c.Tool("overseas_stock")
	if len(overseas.Masters) != 11 {
		t.Errorf("overseas_stock masters = %d, want 11", len(overseas.Masters))
	}

	kospi, _ := c.Master("kospi")
	if kospi.URL != "https://example.test/master/kospi_code.mst.zip" {
		t.Errorf("kospi URL = %q", kospi.URL)
	}
	nas, _ := c.Master("nas")
	if nas.MarketTag != "NASDAQ" || nas.CodeField != "symbol" {
		t.Errorf("nas descriptor = %+v", nas)
	}
}

func TestNewCatalog_Invalid(t *testing.T) {
	good := Descriptor{ID: "kospi", URL: "http://x/kospi.zip", Format: format.Kospi{},
		NameField: "name", CodeField: "short_code", MarketTag: "KOSPI"}

	tests := []struct {
		name    string
		descs   []Descriptor
		tools   []Tool
		wantErr string
	}{
		{
			name:    "unknown field",
			descs:   []Descriptor{{ID: "kospi", URL: "u", Format: format.Kospi{}, NameField: "nope", CodeField: "short_code", MarketTag: "K"}},
			wantErr: `field "nope"`,
		},
		{
			name:    "bad id",
			descs:   []Descriptor{{ID: "Bad-Id", URL: "u", Format: format.Kospi{}, MarketTag: "K"}},
			wantErr: "not a plain identifier",
		},
		{
			name:    "duplicate master",
			descs:   []Descriptor{good, good},
			wantErr: `duplicate master "kospi"`,
		},
		{
			name:    "unknown master",
			descs:   []Descriptor{good},
			tools:   []Tool{{ID: "stock", Model: "stock_master", Masters: []string{"kosdaq"}}},
			wantErr: `unknown master "kosdaq"`,
		},
		{
			name:    "model injection",
			descs:   []Descriptor{good},
			tools:   []Tool{{ID: "stock", Model: "stock; drop table x"}},
			wantErr: "model",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCatalog(tt.descs, tt.tools)
			if err == nil {
				t.Fatal("NewCatalog() error = nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestCatalog_ToolIsolation(t *testing.T) {
	c, err := DefaultCatalog("")
	if err != nil {
		t.Fatal(err)
	}

	tool, _ := c.Tool("etfetn")
	tool.Masters[0] = "mutated"

	again, _ := c.Tool("etfetn")
	if again.Masters[0] != "kospi" {
		t.Errorf("catalog mutated through returned tool: %v", again.Masters)
	}
	if !again.Includes("kosdaq") || again.Includes("elw") {
		t.Errorf("Includes() wrong for %v", again.Masters)
	}

	models := c.Models()
	if len(models) != 8 || models[0] != "auth_master" {
		t.Errorf("Models() = %v", models)
	}
}
