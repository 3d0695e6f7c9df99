package fetch

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"golang.org/x/text/encoding/korean"
)

func cp949(t *testing.T, s string) []byte {
	t.Helper()
	b, err := korean.EUCKR.NewEncoder().Bytes([]byte(s))
	if err != nil {
		t.Fatalf("encode cp949: %v", err)
	}
	return b
}

func TestReadText_EncodingFallback(t *testing.T) {
	tests := []struct {
		name     string
		raw      func(t *testing.T) []byte
		wantText string
		wantEnc  string
	}{
		{
			name:     "cp949",
			raw:      func(t *testing.T) []byte { return cp949(t, "005930|삼성전자\n") },
			wantText: "005930|삼성전자\n",
			wantEnc:  "cp949",
		},
		{
			name:     "utf-8 with BOM",
			raw:      func(t *testing.T) []byte { return append([]byte{0xEF, 0xBB, 0xBF}, "AAPL\t애플\n"...) },
			wantText: "AAPL\t애플\n",
			wantEnc:  "utf-8-sig",
		},
		{
			name:     "utf-8 without BOM",
			raw:      func(t *testing.T) []byte { return []byte("AAPL\t애플\n") },
			wantText: "AAPL\t애플\n",
			wantEnc:  "utf-8",
		},
		{
			name:     "latin-1",
			raw:      func(t *testing.T) []byte { return []byte("caf\xe9\n") },
			wantText: "café\n",
			wantEnc:  "iso-8859-1",
		},
		{
			name:     "ascii decodes as cp949",
			raw:      func(t *testing.T) []byte { return []byte("plain ascii\n") },
			wantText: "plain ascii\n",
			wantEnc:  "cp949",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "master.tmp")
			if err := os.WriteFile(path, tt.raw(t), 0o644); err != nil {
				t.Fatalf("write fixture: %v", err)
			}

			text, enc, err := ReadText(path)
			if err != nil {
				t.Fatalf("ReadText() error = %v", err)
			}
			if text != tt.wantText {
				t.Errorf("text = %q, want %q", text, tt.wantText)
			}
			if enc != tt.wantEnc {
				t.Errorf("encoding = %q, want %q", enc, tt.wantEnc)
			}
		})
	}
}

func TestReadText_MissingFile(t *testing.T) {
	_, _, err := ReadText(filepath.Join(t.TempDir(), "absent.tmp"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("ReadText() error = %v, want os.ErrNotExist", err)
	}
}

func TestIsWansung(t *testing.T) {
	if !isWansung(cp949(t, "삼성전자")) {
		t.Error("KS X 1001 text should be accepted")
	}
	// 0x8141 is a CP949 unified Hangul extension code point.
	if isWansung([]byte{0x81, 0x41}) {
		t.Error("CP949 extension should be rejected")
	}
}

func TestEncodingNames(t *testing.T) {
	want := []string{"cp949", "euc-kr", "utf-8", "utf-8-sig", "iso-8859-1", "latin1"}
	if got := EncodingNames(); !reflect.DeepEqual(got, want) {
		t.Errorf("EncodingNames() = %v, want %v", got, want)
	}
}
