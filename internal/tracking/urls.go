package tracking

import (
	"fmt"
	"time"
)

// Service URL paths. The wrapper skips links that already point at the
// click path, so these are shared with the handler's route table.
const (
	PixelPath = "/track/pixel"
	ClickPath = "/track/click"
)

// PixelURL builds the open-tracking pixel URL for one outbound message.
// All three identifiers are required.
func PixelURL(base, queueID, campaignID, email string) (string, error) {
	if queueID == "" || campaignID == "" || email == "" {
		return "", fmt.Errorf("%w: queueId, campaignId, email", ErrValidation)
	}
	t := Token{QueueID: queueID, CampaignID: campaignID, RecipientEmail: email}
	return base + PixelPath + "?" + t.PixelQuery(time.Now()).Encode(), nil
}

// ClickURL builds the click-tracking URL wrapping target.
func ClickURL(base, queueID, campaignID, target string) string {
	t := Token{QueueID: queueID, CampaignID: campaignID, TargetURL: target}
	return base + ClickPath + "?" + t.ClickQuery(time.Now()).Encode()
}
