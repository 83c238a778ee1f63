package models

import (
	"encoding/json"
	"strings"
	"testing"
)

const sampleFeed = `{
	"alice": [12345.67, "https://example.com/alice", [["AAPL", 10, "long hold"], ["MSFT", 5]]],
	"bob": ["9876.54", "https://example.com/bob", []],
	"carol": [3.0, "https://example.com/carol", "not-holdings"],
	"dave": [500, "https://example.com/dave", [["TSLA", 2, ""]]]
}`

func TestSnapshot_UnmarshalPositionalRecords(t *testing.T) {
	s := NewSnapshot()
	if err := json.Unmarshal([]byte(sampleFeed), s); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	alice, ok := s.Get("alice")
	if !ok {
		t.Fatal("alice missing")
	}
	if alice.TotalValue != 12345.67 {
		t.Errorf("alice value = %v, want 12345.67", alice.TotalValue)
	}
	if alice.ReferenceLink != "https://example.com/alice" {
		t.Errorf("alice link = %q", alice.ReferenceLink)
	}
	if len(alice.Holdings) != 2 {
		t.Fatalf("alice holdings = %d, want 2", len(alice.Holdings))
	}
	if alice.Holdings[0].Symbol != "AAPL" || alice.Holdings[0].Quantity != 10 || alice.Holdings[0].Note != "long hold" {
		t.Errorf("alice holding 0 = %+v", alice.Holdings[0])
	}
	// Two-element holding: note defaults to empty
	if alice.Holdings[1].Symbol != "MSFT" || alice.Holdings[1].Note != "" {
		t.Errorf("alice holding 1 = %+v", alice.Holdings[1])
	}
}

func TestSnapshot_StringTotalValue(t *testing.T) {
	s := NewSnapshot()
	if err := json.Unmarshal([]byte(sampleFeed), s); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	bob, ok := s.Get("bob")
	if !ok {
		t.Fatal("bob missing")
	}
	if bob.TotalValue != 9876.54 {
		t.Errorf("bob value = %v, want 9876.54 (string coerced)", bob.TotalValue)
	}
	if len(bob.Holdings) != 0 {
		t.Errorf("bob holdings = %d, want 0", len(bob.Holdings))
	}
}

func TestSnapshot_MalformedRecordSkippedNotFatal(t *testing.T) {
	s := NewSnapshot()
	if err := json.Unmarshal([]byte(sampleFeed), s); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if _, ok := s.Get("carol"); ok {
		t.Error("carol should have been skipped")
	}
	if len(s.Skipped) != 1 || s.Skipped[0] != "carol" {
		t.Errorf("Skipped = %v, want [carol]", s.Skipped)
	}
	// Records after the malformed one still decode
	if _, ok := s.Get("dave"); !ok {
		t.Error("dave missing, decoding stopped at malformed record")
	}
}

func TestSnapshot_PreservesKeyOrder(t *testing.T) {
	s := NewSnapshot()
	if err := json.Unmarshal([]byte(sampleFeed), s); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	want := []string{"alice", "bob", "dave"}
	got := s.Usernames()
	if len(got) != len(want) {
		t.Fatalf("usernames = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("usernames[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSnapshot_MarshalRoundTripKeepsOrder(t *testing.T) {
	s := NewSnapshot()
	s.Set("zed", PortfolioRecord{TotalValue: 100, ReferenceLink: "l1"})
	s.Set("amy", PortfolioRecord{TotalValue: 200, ReferenceLink: "l2", Holdings: []Holding{{Symbol: "NVDA", Quantity: 1, Note: "n"}}})

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	// zed was inserted first and must serialize first
	if strings.Index(string(data), `"zed"`) > strings.Index(string(data), `"amy"`) {
		t.Errorf("key order lost: %s", data)
	}

	back := NewSnapshot()
	if err := json.Unmarshal(data, back); err != nil {
		t.Fatalf("round trip unmarshal failed: %v", err)
	}
	if back.Len() != 2 {
		t.Fatalf("round trip len = %d, want 2", back.Len())
	}
	amy, _ := back.Get("amy")
	if len(amy.Holdings) != 1 || amy.Holdings[0].Symbol != "NVDA" {
		t.Errorf("round trip holdings = %+v", amy.Holdings)
	}
}

func TestPortfolioRecord_TooFewElements(t *testing.T) {
	var r PortfolioRecord
	err := json.Unmarshal([]byte(`[100, "link"]`), &r)
	if err == nil {
		t.Fatal("expected error for 2-element record")
	}
}

func TestPortfolioRecord_Symbols(t *testing.T) {
	r := PortfolioRecord{Holdings: []Holding{
		{Symbol: "AAPL"}, {Symbol: "MSFT"}, {Symbol: "AAPL"},
	}}
	set := r.Symbols()
	if len(set) != 2 {
		t.Errorf("symbol set size = %d, want 2 (duplicates collapse)", len(set))
	}
	if !set["AAPL"] || !set["MSFT"] {
		t.Errorf("symbol set = %v", set)
	}
}
