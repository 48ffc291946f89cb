// Package challonge reports completed async races to Challonge
// brackets via the v1 REST API.
package challonge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/TreZc0/hyrule-town-hall-sub000/clients"
	"github.com/TreZc0/hyrule-town-hall-sub000/internal/aggregator"
	"github.com/TreZc0/hyrule-town-hall-sub000/internal/models"
)

const defaultBaseURL = "https://api.challonge.com"

// Client talks to the Challonge API. The api key rides as a query
// parameter per their v1 auth scheme.
type Client struct {
	base   *clients.BaseClient
	apiKey string
}

func NewClient(apiKey string) *Client {
	base := clients.NewBaseClient(defaultBaseURL)
	base.SetHeader("Content-Type", "application/json")
	return &Client{base: base, apiKey: apiKey}
}

func (c *Client) Name() string { return "challonge" }

// Report marks the winner on the race's Challonge match. The match link
// is stored as "<tournament>/<match id>"; races without one are
// skipped.
func (c *Client) Report(ctx context.Context, race *models.Race, results []aggregator.Result) error {
	if race.ChallongeMatch == nil || *race.ChallongeMatch == "" {
		log.Debug().Str("race_id", race.ID.String()).Msg("race has no Challonge match, skipping")
		return nil
	}
	if len(results) == 0 {
		return fmt.Errorf("no results to report")
	}

	tournament, matchID, err := splitMatchLink(*race.ChallongeMatch)
	if err != nil {
		return err
	}

	winnerID, err := c.resolveParticipant(ctx, tournament, results[0].Entrant.Name)
	if err != nil {
		return fmt.Errorf("failed to resolve Challonge participant for %q: %w", results[0].Entrant.Name, err)
	}

	payload := map[string]any{
		"match": map[string]any{
			"winner_id":  winnerID,
			"scores_csv": "1-0",
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal match update: %w", err)
	}

	endpoint := fmt.Sprintf("/v1/tournaments/%s/matches/%s.json?api_key=%s", tournament, matchID, c.apiKey)
	if _, err := c.base.Put(ctx, endpoint, bytes.NewReader(body)); err != nil {
		return fmt.Errorf("failed to update match %s: %w", matchID, err)
	}

	log.Info().
		Str("tournament", tournament).
		Str("match_id", matchID).
		Int64("winner_id", winnerID).
		Msg("reported match to Challonge")
	return nil
}

func splitMatchLink(link string) (tournament, matchID string, err error) {
	parts := strings.SplitN(link, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("malformed Challonge match link %q, want tournament/match", link)
	}
	return parts[0], parts[1], nil
}

// resolveParticipant matches the winning entrant by display name
// against the tournament's participant list.
func (c *Client) resolveParticipant(ctx context.Context, tournament, name string) (int64, error) {
	endpoint := fmt.Sprintf("/v1/tournaments/%s/participants.json?api_key=%s", tournament, c.apiKey)
	resp, err := c.base.Get(ctx, endpoint)
	if err != nil {
		return 0, err
	}

	var rows []struct {
		Participant struct {
			ID          int64  `json:"id"`
			Name        string `json:"name"`
			DisplayName string `json:"display_name"`
		} `json:"participant"`
	}
	if err := json.Unmarshal(resp, &rows); err != nil {
		return 0, fmt.Errorf("failed to decode participants: %w", err)
	}

	for _, row := range rows {
		if row.Participant.Name == name || row.Participant.DisplayName == name {
			return row.Participant.ID, nil
		}
	}
	return 0, fmt.Errorf("no participant named %q in tournament %s", name, tournament)
}
