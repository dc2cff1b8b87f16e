package catalog

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/oauth2"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// ParseGoogleSheetURL extracts the spreadsheet id from the URL formats
// Google Sheets produces:
//
//	https://docs.google.com/spreadsheets/d/SHEET_ID/edit#gid=GID
//	https://docs.google.com/spreadsheets/d/SHEET_ID/edit
//	https://docs.google.com/spreadsheets/d/SHEET_ID
func ParseGoogleSheetURL(urlStr string) (sheetID string, ok bool) {
	u, err := url.Parse(urlStr)
	if err != nil {
		return "", false
	}
	host := strings.ToLower(u.Host)
	if host != "docs.google.com" && host != "spreadsheets.google.com" {
		return "", false
	}
	matches := regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9\-_]+)`).FindStringSubmatch(u.Path)
	if len(matches) < 2 || matches[1] == "" {
		return "", false
	}
	return matches[1], true
}

// LoadGoogleSheet fetches a point catalog from a Google Sheet via the
// Sheets API. readRange defaults to A1:Z10000 of the first sheet; apiKey
// authorizes read access to link-shared sheets.
func LoadGoogleSheet(ctx context.Context, apiKey, sheetID, readRange string) (*Result, error) {
	return loadGoogleSheet(ctx, option.WithAPIKey(apiKey), sheetID, readRange)
}

// LoadGoogleSheetOAuth fetches a point catalog using an OAuth access token,
// for sheets that are not link-shared.
func LoadGoogleSheetOAuth(ctx context.Context, accessToken, sheetID, readRange string) (*Result, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
	return loadGoogleSheet(ctx, option.WithTokenSource(ts), sheetID, readRange)
}

func loadGoogleSheet(ctx context.Context, auth option.ClientOption, sheetID, readRange string) (*Result, error) {
	if readRange == "" {
		readRange = "A1:Z10000"
	}
	svc, err := sheets.NewService(ctx, auth)
	if err != nil {
		return nil, fmt.Errorf("catalog: sheets service: %w", err)
	}

	resp, err := svc.Spreadsheets.Values.Get(sheetID, readRange).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("catalog: fetch sheet %q: %w", sheetID, err)
	}

	rows := make([][]string, 0, len(resp.Values))
	for _, raw := range resp.Values {
		row := make([]string, 0, len(raw))
		for _, cell := range raw {
			row = append(row, fmt.Sprint(cell))
		}
		rows = append(rows, row)
	}
	return fromRows(rows)
}
