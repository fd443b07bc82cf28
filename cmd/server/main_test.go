package main

import "testing"

func TestLoadBidderTokens_ParsesTokenList(t *testing.T) {
	t.Setenv("BIDDER_TOKENS", "tok-a:user-1:alice,tok-b:user-2")

	tokens := loadBidderTokens()

	if len(tokens) != 2 {
		t.Fatalf("len(tokens) = %d, want 2", len(tokens))
	}
	if got := tokens["tok-a"]; got.UserID != "user-1" || got.Username != "alice" {
		t.Errorf("tok-a = %+v, want {user-1 alice}", got)
	}
	if got := tokens["tok-b"]; got.UserID != "user-2" || got.Username != "" {
		t.Errorf("tok-b = %+v, want {user-2 \"\"}", got)
	}
}

func TestLoadBidderTokens_EmptyEnvYieldsEmptyMap(t *testing.T) {
	t.Setenv("BIDDER_TOKENS", "")

	tokens := loadBidderTokens()

	if len(tokens) != 0 {
		t.Errorf("len(tokens) = %d, want 0", len(tokens))
	}
}

func TestLoadBidderTokens_SkipsMalformedEntries(t *testing.T) {
	t.Setenv("BIDDER_TOKENS", "justtoken,tok-c:user-3")

	tokens := loadBidderTokens()

	if len(tokens) != 1 {
		t.Fatalf("len(tokens) = %d, want 1", len(tokens))
	}
	if _, ok := tokens["justtoken"]; ok {
		t.Errorf("malformed entry without a userId should be skipped")
	}
	if got, ok := tokens["tok-c"]; !ok || got.UserID != "user-3" {
		t.Errorf("tok-c = %+v, ok=%v, want {user-3} ok=true", got, ok)
	}
}
