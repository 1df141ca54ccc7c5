package sources

import (
	"testing"
	"time"

	"github.com/hypexbt/hypexbt/internal/twitter"
)

func TestParseTokenEvents(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tweets := []twitter.Tweet{
		{ID: "1", Text: "New token launch! Mega Coin ($MEGA) is now available on LiquidLaunch", CreatedAt: base},
		{ID: "2", Text: "gm everyone, great day to trade", CreatedAt: base.Add(time.Hour)},
		{ID: "3", Text: "$TINY just added and trading now!", CreatedAt: base.Add(2 * time.Hour)},
		{ID: "4", Text: "launch party tonight, no ticker here", CreatedAt: base.Add(3 * time.Hour)},
	}

	events := ParseTokenEvents(tweets, "launch", launchKeywords)
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}

	// newest first
	if events[0].Symbol != "TINY" || events[1].Symbol != "MEGA" {
		t.Fatalf("order/symbols wrong: %q, %q", events[0].Symbol, events[1].Symbol)
	}
	if events[1].Name != "Mega Coin" {
		t.Errorf("name extraction: got %q, want %q", events[1].Name, "Mega Coin")
	}
	if events[0].Name != "TINY" {
		t.Errorf("fallback name: got %q, want symbol", events[0].Name)
	}
	for _, ev := range events {
		if ev.Type != "launch" {
			t.Errorf("event type = %q, want launch", ev.Type)
		}
	}
}

func TestParseTokenEventsGraduations(t *testing.T) {
	tweets := []twitter.Tweet{
		{ID: "1", Text: "$ALPHA has graduated and is now trading on Hyperliquid!"},
		{ID: "2", Text: "$BETA launch is live"},
	}

	events := ParseTokenEvents(tweets, "graduation", graduationKeywords)
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].Symbol != "ALPHA" {
		t.Errorf("symbol = %q, want ALPHA", events[0].Symbol)
	}
}

func TestParseTokenEventsUppercasesSymbols(t *testing.T) {
	tweets := []twitter.Tweet{
		{ID: "1", Text: "new token $wif now available"},
	}
	events := ParseTokenEvents(tweets, "launch", launchKeywords)
	if len(events) != 1 || events[0].Symbol != "WIF" {
		t.Fatalf("expected uppercased WIF, got %+v", events)
	}
}
