package tlv

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// mustHex decodes spaced hex fixtures.
func mustHex(t *testing.T, parts ...string) []byte {
	t.Helper()
	raw, err := hex.DecodeString(strings.ReplaceAll(strings.Join(parts, ""), " ", ""))
	if err != nil {
		t.Fatalf("bad fixture: %v", err)
	}
	return raw
}

func TestDescribe(t *testing.T) {
	rawData := mustHex(t,
		"6F 10",                // FCI Template
		"84 07 A0000000031010", // DF Name
		"A5 05",                // Proprietary Template
		"50 03 414243",         // Label "ABC"
	)

	got, err := Describe(rawData)
	if err != nil {
		t.Fatalf("Describe failed: %v", err)
	}

	expectedLines := []string{
		"6F",
		"  84 (7): A0000000031010",
		"  A5",
		`    50 (3): 414243 ("ABC")`,
	}

	if diff := cmp.Diff(expectedLines, strings.Split(got, "\n")); diff != "" {
		t.Errorf("Describe mismatch (-want +got):\n%s", diff)
	}
}

func TestDescribe_Errors(t *testing.T) {
	t.Run("Empty data", func(t *testing.T) {
		if _, err := Describe(nil); err == nil {
			t.Error("Expected error for empty data, got nil")
		}
	})

	t.Run("Truncated length", func(t *testing.T) {
		if _, err := Describe(mustHex(t, "84 05 0102")); err == nil {
			t.Error("Expected error for truncated TLV, got nil")
		}
	})
}

func TestDescribe_ResponseShapes(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"Primitive binary", mustHex(t, "5A 02 1234"), "5A (2): 1234"},
		{"Empty value", mustHex(t, "9F36 00"), "9F36 (0): -"},
		{"Text value", mustHex(t, "50 04 56495341"), `50 (4): 56495341 ("VISA")`},
		{"Two siblings", mustHex(t, "5A 01 12", "5F24 01 01"), "5A (1): 12\n5F24 (1): 01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Describe(tt.data)
			if err != nil {
				t.Fatalf("Describe: %v", err)
			}
			if got != tt.want {
				t.Errorf("Describe() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMakeSafeASCII(t *testing.T) {
	got := MakeSafeASCII([]byte{'V', 'I', 'S', 'A', 0x00, 0x7F})
	if got != "VISA.." {
		t.Errorf("MakeSafeASCII() = %q, want %q", got, "VISA..")
	}
}
