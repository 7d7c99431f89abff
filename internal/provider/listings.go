package provider

import (
	"context"
	"fmt"
	"net/url"
)

type listingsResponse struct {
	Listings []struct {
		Program Program `json:"program"`
	} `json:"listings"`
}

// Program is the programme metadata of a listing.
type Program struct {
	Title  string `json:"title"`
	Images []struct {
		URL string `json:"url"`
	} `json:"images"`
}

// ImageURL returns the first image URL, or "".
func (p Program) ImageURL() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0].URL
}

// listing returns the first programme matching the query.
func (c *Client) listing(ctx context.Context, query url.Values) (Program, error) {
	var resp listingsResponse
	if err := c.getJSON(ctx, c.baseURL+"/listings/?"+query.Encode(), &resp); err != nil {
		return Program{}, err
	}
	if len(resp.Listings) == 0 {
		return Program{}, fmt.Errorf("%w: %s", ErrNoListing, query.Encode())
	}
	return resp.Listings[0].Program, nil
}

// Recording returns the programme for a recording or replay event id.
func (c *Client) Recording(ctx context.Context, id string) (Program, error) {
	return c.listing(ctx, url.Values{"byScCridImi": {id}})
}

// RecordingTitle returns the title of a recording or replay event.
func (c *Client) RecordingTitle(ctx context.Context, id string) (string, error) {
	p, err := c.Recording(ctx, id)
	if err != nil {
		return "", err
	}
	return p.Title, nil
}

// RecordingImage returns the first image URL of a recording or replay event.
func (c *Client) RecordingImage(ctx context.Context, id string) (string, error) {
	p, err := c.Recording(ctx, id)
	if err != nil {
		return "", err
	}
	return p.ImageURL(), nil
}

// ProgramTitle returns the title of the event airing on a channel.
func (c *Client) ProgramTitle(ctx context.Context, channelID, eventID string) (string, error) {
	p, err := c.listing(ctx, url.Values{"byStationId": {channelID}, "byScCridImi": {eventID}})
	if err != nil {
		return "", err
	}
	return p.Title, nil
}
