package twitter

import (
	"net/http"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestClampTweet(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"short", "gm", "gm"},
		{"exact", strings.Repeat("a", 280), strings.Repeat("a", 280)},
		{"over", strings.Repeat("a", 300), strings.Repeat("a", 277) + "..."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ClampTweet(tc.in)
			if got != tc.want {
				t.Fatalf("ClampTweet: got %d chars, want %d", len(got), len(tc.want))
			}
		})
	}
}

func TestClampTweetCountsRunes(t *testing.T) {
	in := strings.Repeat("é", 300)
	got := ClampTweet(in)
	if n := utf8.RuneCountInString(got); n != 280 {
		t.Fatalf("rune count = %d, want 280", n)
	}
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("expected ellipsis suffix")
	}
}

func TestAPIErrorBusiness(t *testing.T) {
	cases := []struct {
		status int
		want   bool
	}{
		{http.StatusForbidden, true},
		{http.StatusBadRequest, true},
		{http.StatusTooManyRequests, false},
		{http.StatusInternalServerError, false},
		{http.StatusBadGateway, false},
	}
	for _, tc := range cases {
		e := &APIError{StatusCode: tc.status}
		if e.Business() != tc.want {
			t.Errorf("status %d: Business() = %v, want %v", tc.status, e.Business(), tc.want)
		}
	}
}
