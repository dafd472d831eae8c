package tracking

import (
	"encoding/base64"
	"errors"
	"net/url"
	"testing"
	"time"
)

func TestPixelTokenRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		token Token
	}{
		{"simple", Token{QueueID: "Q1", CampaignID: "C1", RecipientEmail: "a@b.com"}},
		{"plus addressing", Token{QueueID: "Q2", CampaignID: "C2", RecipientEmail: "user+tag@example.co.uk"}},
		{"unicode local part", Token{QueueID: "Q3", CampaignID: "C3", RecipientEmail: "josé@example.com"}},
		{"ids with separators", Token{QueueID: "queue|42", CampaignID: "camp&c=9", RecipientEmail: "x@y.z"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := tt.token.PixelQuery(time.Now())
			got, err := DecodePixelToken(q)
			if err != nil {
				t.Fatalf("DecodePixelToken() error = %v", err)
			}
			if got != tt.token {
				t.Errorf("round trip = %+v, want %+v", got, tt.token)
			}
		})
	}
}

func TestClickTokenRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		token Token
	}{
		{"plain url", Token{QueueID: "Q1", CampaignID: "C1", TargetURL: "https://example.com/x"}},
		{"url with query", Token{QueueID: "Q1", CampaignID: "C1", TargetURL: "https://example.com/p?a=1&b=two three"}},
		{"url with fragment", Token{QueueID: "Q1", CampaignID: "C1", TargetURL: "https://example.com/p#section-2"}},
		{"unicode path", Token{QueueID: "Q1", CampaignID: "C1", TargetURL: "https://example.com/über"}},
		{"relative url", Token{QueueID: "Q1", CampaignID: "C1", TargetURL: "/local/path"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := tt.token.ClickQuery(time.Now())
			got, err := DecodeClickToken(q)
			if err != nil {
				t.Fatalf("DecodeClickToken() error = %v", err)
			}
			if got != tt.token {
				t.Errorf("round trip = %+v, want %+v", got, tt.token)
			}
		})
	}
}

// Encoding the same fields twice must yield different URLs (cache busting),
// but both must decode back to identical tokens.
func TestTimestampVariesButDoesNotAffectDecode(t *testing.T) {
	tok := Token{QueueID: "Q1", CampaignID: "C1", RecipientEmail: "a@b.com"}

	q1 := tok.PixelQuery(time.UnixMilli(1000))
	q2 := tok.PixelQuery(time.UnixMilli(2000))
	if q1.Get("t") == q2.Get("t") {
		t.Errorf("timestamps should differ: %q vs %q", q1.Get("t"), q2.Get("t"))
	}

	// Absent or garbage timestamp still decodes.
	q1.Del("t")
	q2.Set("t", "not-a-number")
	for _, q := range []url.Values{q1, q2} {
		got, err := DecodePixelToken(q)
		if err != nil {
			t.Fatalf("DecodePixelToken() error = %v", err)
		}
		if got != tok {
			t.Errorf("decode = %+v, want %+v", got, tok)
		}
	}
}

func TestDecodeBase64Variants(t *testing.T) {
	// Email with bytes that encode differently across alphabets, and
	// lengths that produce padding.
	email := "j?s>e@example.com"
	tests := []struct {
		name string
		enc  *base64.Encoding
	}{
		{"url padded", base64.URLEncoding},
		{"url raw", base64.RawURLEncoding},
		{"std padded", base64.StdEncoding},
		{"std raw", base64.RawStdEncoding},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := url.Values{
				"q": {"Q1"},
				"c": {"C1"},
				"e": {tt.enc.EncodeToString([]byte(email))},
			}
			got, err := DecodePixelToken(q)
			if err != nil {
				t.Fatalf("DecodePixelToken() error = %v", err)
			}
			if got.RecipientEmail != email {
				t.Errorf("RecipientEmail = %q, want %q", got.RecipientEmail, email)
			}
		})
	}
}

func TestDecodeFailures(t *testing.T) {
	tests := []struct {
		name string
		q    url.Values
	}{
		{"empty query", url.Values{}},
		{"missing queue id", url.Values{"c": {"C1"}, "e": {"YUBiLmNvbQ=="}}},
		{"missing campaign id", url.Values{"q": {"Q1"}, "e": {"YUBiLmNvbQ=="}}},
		{"missing payload", url.Values{"q": {"Q1"}, "c": {"C1"}}},
		{"payload not base64", url.Values{"q": {"Q1"}, "c": {"C1"}, "e": {"!!not-base64!!"}}},
		{"payload decodes empty", url.Values{"q": {"Q1"}, "c": {"C1"}, "e": {""}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodePixelToken(tt.q); !errors.Is(err, ErrDecode) {
				t.Errorf("DecodePixelToken() error = %v, want ErrDecode", err)
			}
		})
	}

	// Same contract on the click side.
	if _, err := DecodeClickToken(url.Values{"q": {"Q1"}, "c": {"C1"}, "u": {"%%%"}}); !errors.Is(err, ErrDecode) {
		t.Errorf("DecodeClickToken() error = %v, want ErrDecode", err)
	}
}
