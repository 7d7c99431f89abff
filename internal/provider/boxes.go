package provider

import (
	"context"
	"fmt"
	"strings"
)

// platformEOS is the only set-top box platform that speaks the broker protocol.
const platformEOS = "EOS"

// householdPlaceholder is replaced in the personalization URL.
const householdPlaceholder = "{household_id}"

// SettopBox is a box registered to the household.
type SettopBox struct {
	DeviceID string
	Name     string
}

type deviceEntry struct {
	DeviceID     string `json:"deviceId"`
	PlatformType string `json:"platformType"`
	Settings     struct {
		DeviceFriendlyName string `json:"deviceFriendlyName"`
	} `json:"settings"`
}

// FetchSettopBoxes lists the household's EOS boxes.
//
// Requires a session (SetSession). Entries for other platforms are skipped.
func (c *Client) FetchSettopBoxes(ctx context.Context) ([]SettopBox, error) {
	if c.personalizationURL == "" {
		return nil, fmt.Errorf("%w: personalization URL not configured", ErrConnection)
	}
	s := c.currentSession()
	if s.HouseholdID == "" {
		return nil, ErrNotAuthenticated
	}

	endpoint := strings.ReplaceAll(c.personalizationURL, householdPlaceholder, s.HouseholdID)

	var entries []deviceEntry
	if err := c.getJSON(ctx, endpoint, &entries); err != nil {
		return nil, err
	}

	boxes := make([]SettopBox, 0, len(entries))
	for _, e := range entries {
		if e.PlatformType != platformEOS || e.DeviceID == "" {
			continue
		}
		boxes = append(boxes, SettopBox{DeviceID: e.DeviceID, Name: e.Settings.DeviceFriendlyName})
	}
	return boxes, nil
}
