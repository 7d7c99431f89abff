package provider

import (
	"context"
	"fmt"

	"github.com/nerrad567/boxsync/internal/catalog"
)

// Image asset types in the channel list.
const (
	assetTypeStream = "imageStream"
	assetTypeLogo   = "station-logo-small"
)

type channelsResponse struct {
	Channels []struct {
		Title            string `json:"title"`
		ChannelNumber    any    `json:"channelNumber"`
		StationSchedules []struct {
			Station struct {
				ServiceID string `json:"serviceId"`
				Images    []struct {
					AssetType string `json:"assetType"`
					URL       string `json:"url"`
				} `json:"images"`
			} `json:"station"`
		} `json:"stationSchedules"`
	} `json:"channels"`
}

// FetchChannels retrieves the channel list.
//
// Channels without a station schedule or service ID are skipped.
// FetchChannels satisfies catalog.Fetcher.
func (c *Client) FetchChannels(ctx context.Context) ([]catalog.ChannelInfo, error) {
	var resp channelsResponse
	if err := c.getJSON(ctx, c.baseURL+"/channels", &resp); err != nil {
		return nil, err
	}

	out := make([]catalog.ChannelInfo, 0, len(resp.Channels))
	for _, ch := range resp.Channels {
		if len(ch.StationSchedules) == 0 {
			continue
		}
		station := ch.StationSchedules[0].Station
		if station.ServiceID == "" {
			continue
		}

		info := catalog.ChannelInfo{
			ServiceID:     station.ServiceID,
			Title:         ch.Title,
			ChannelNumber: channelNumber(ch.ChannelNumber),
		}
		for _, img := range station.Images {
			switch img.AssetType {
			case assetTypeStream:
				info.StreamImageURL = img.URL
			case assetTypeLogo:
				info.LogoImageURL = img.URL
			}
		}
		out = append(out, info)
	}
	return out, nil
}

// channelNumber renders the channel number, which the service sends as
// either a JSON number or a string.
func channelNumber(v any) string {
	switch n := v.(type) {
	case nil:
		return ""
	case string:
		return n
	case float64:
		return fmt.Sprintf("%d", int64(n))
	default:
		return fmt.Sprint(n)
	}
}
