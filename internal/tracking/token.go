// Package tracking implements the engagement tracking core: the reversible
// token codec carried in pixel and click URLs, the HTML link rewriter, and
// the HTTP handlers that serve the pixel and click endpoints.
package tracking

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// Query parameter names carried on tracking URLs.
const (
	paramQueue     = "q" // queue id (one outbound message instance)
	paramCampaign  = "c" // campaign id
	paramEmail     = "e" // base64 recipient email (pixel links)
	paramTarget    = "u" // base64 target URL (click links)
	paramTimestamp = "t" // request-time value, cache busting only
)

// ErrDecode reports a tracking token that could not be parsed. Callers must
// treat it as non-fatal and still return a valid response to the requester.
var ErrDecode = errors.New("invalid tracking token")

// ErrValidation reports a missing required input on a generation call.
var ErrValidation = errors.New("missing required parameter")

// Token is the event context embedded in a tracking URL. It is
// self-contained: the service keeps no record correlating tokens to
// messages. The encoding is reversible but unauthenticated — holders of a
// token can forge one, and downstream systems must not trust these fields
// without independent validation.
type Token struct {
	QueueID        string
	CampaignID     string
	RecipientEmail string // pixel links
	TargetURL      string // click links
}

// PixelQuery encodes the token as pixel-link query parameters. The
// timestamp makes repeated encodings of the same fields produce distinct
// URLs so mail clients that cache images by URL re-request the pixel; it
// carries no validity meaning and is ignored on decode.
func (t Token) PixelQuery(now time.Time) url.Values {
	return url.Values{
		paramQueue:     {t.QueueID},
		paramCampaign:  {t.CampaignID},
		paramEmail:     {encodeField(t.RecipientEmail)},
		paramTimestamp: {strconv.FormatInt(now.UnixMilli(), 10)},
	}
}

// ClickQuery encodes the token as click-link query parameters.
func (t Token) ClickQuery(now time.Time) url.Values {
	return url.Values{
		paramQueue:     {t.QueueID},
		paramCampaign:  {t.CampaignID},
		paramTarget:    {encodeField(t.TargetURL)},
		paramTimestamp: {strconv.FormatInt(now.UnixMilli(), 10)},
	}
}

// DecodePixelToken is the inverse of PixelQuery. A missing or stale
// timestamp does not fail the decode.
func DecodePixelToken(q url.Values) (Token, error) {
	t := Token{QueueID: q.Get(paramQueue), CampaignID: q.Get(paramCampaign)}
	if t.QueueID == "" || t.CampaignID == "" {
		return Token{}, fmt.Errorf("%w: missing queue or campaign id", ErrDecode)
	}
	email, err := decodeField(q.Get(paramEmail))
	if err != nil {
		return Token{}, fmt.Errorf("%w: recipient email: %v", ErrDecode, err)
	}
	t.RecipientEmail = email
	return t, nil
}

// DecodeClickToken is the inverse of ClickQuery.
func DecodeClickToken(q url.Values) (Token, error) {
	t := Token{QueueID: q.Get(paramQueue), CampaignID: q.Get(paramCampaign)}
	if t.QueueID == "" || t.CampaignID == "" {
		return Token{}, fmt.Errorf("%w: missing queue or campaign id", ErrDecode)
	}
	target, err := decodeField(q.Get(paramTarget))
	if err != nil {
		return Token{}, fmt.Errorf("%w: target url: %v", ErrDecode, err)
	}
	t.TargetURL = target
	return t, nil
}

func encodeField(s string) string {
	return base64.URLEncoding.EncodeToString([]byte(s))
}

// decodeField reverses encodeField. Mail clients and link scanners strip
// padding or substitute the standard alphabet, so all four base64 variants
// are accepted.
func decodeField(s string) (string, error) {
	if s == "" {
		return "", errors.New("empty value")
	}
	for _, enc := range []*base64.Encoding{
		base64.URLEncoding,
		base64.RawURLEncoding,
		base64.StdEncoding,
		base64.RawStdEncoding,
	} {
		if b, err := enc.DecodeString(s); err == nil {
			if decoded := string(b); decoded != "" {
				return decoded, nil
			}
			return "", errors.New("empty payload")
		}
	}
	return "", errors.New("not base64")
}
