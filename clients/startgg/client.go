// Package startgg reports completed async races to start.gg brackets.
package startgg

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/TreZc0/hyrule-town-hall-sub000/clients"
	"github.com/TreZc0/hyrule-town-hall-sub000/internal/aggregator"
	"github.com/TreZc0/hyrule-town-hall-sub000/internal/models"
)

const defaultBaseURL = "https://api.start.gg"

// Client talks to the start.gg GraphQL API.
type Client struct {
	base *clients.BaseClient
}

func NewClient(token string) *Client {
	base := clients.NewBaseClient(defaultBaseURL)
	base.SetHeader("Authorization", "Bearer "+token)
	base.SetHeader("Content-Type", "application/json")
	return &Client{base: base}
}

func (c *Client) Name() string { return "startgg" }

// Report marks the winner on the race's start.gg set. Races without a
// linked set are skipped.
func (c *Client) Report(ctx context.Context, race *models.Race, results []aggregator.Result) error {
	if race.StartggSet == nil || *race.StartggSet == "" {
		log.Debug().Str("race_id", race.ID.String()).Msg("race has no start.gg set, skipping")
		return nil
	}
	if len(results) == 0 {
		return fmt.Errorf("no results to report")
	}
	winner := results[0]

	entrantID, err := c.resolveEntrant(ctx, *race.StartggSet, winner.Entrant.Name)
	if err != nil {
		return fmt.Errorf("failed to resolve start.gg entrant for %q: %w", winner.Entrant.Name, err)
	}

	if err := c.reportSet(ctx, *race.StartggSet, entrantID); err != nil {
		return fmt.Errorf("failed to report set %s: %w", *race.StartggSet, err)
	}
	return nil
}

type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

func (c *Client) gql(ctx context.Context, query string, variables map[string]any, out any) error {
	body, err := json.Marshal(gqlRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("failed to marshal query: %w", err)
	}

	resp, err := c.base.Post(ctx, "/gql/alpha", bytes.NewReader(body))
	if err != nil {
		return err
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(resp, &envelope); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if len(envelope.Errors) > 0 {
		return fmt.Errorf("graphql error: %s", envelope.Errors[0].Message)
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("failed to decode data: %w", err)
		}
	}
	return nil
}

// resolveEntrant looks up the set's slots and matches the winning
// entrant by display name.
func (c *Client) resolveEntrant(ctx context.Context, setID, name string) (string, error) {
	const query = `query SetSlots($setId: ID!) {
  set(id: $setId) {
    slots {
      entrant { id name }
    }
  }
}`

	var data struct {
		Set struct {
			Slots []struct {
				Entrant *struct {
					ID   json.Number `json:"id"`
					Name string      `json:"name"`
				} `json:"entrant"`
			} `json:"slots"`
		} `json:"set"`
	}
	if err := c.gql(ctx, query, map[string]any{"setId": setID}, &data); err != nil {
		return "", err
	}

	for _, slot := range data.Set.Slots {
		if slot.Entrant != nil && slot.Entrant.Name == name {
			return slot.Entrant.ID.String(), nil
		}
	}
	return "", fmt.Errorf("no entrant named %q on set %s", name, setID)
}

func (c *Client) reportSet(ctx context.Context, setID, winnerEntrantID string) error {
	const mutation = `mutation ReportSet($setId: ID!, $winnerId: ID!) {
  reportBracketSet(setId: $setId, winnerId: $winnerId) { id state }
}`

	if err := c.gql(ctx, mutation, map[string]any{"setId": setID, "winnerId": winnerEntrantID}, nil); err != nil {
		return err
	}

	log.Info().
		Str("set_id", setID).
		Str("winner_entrant", winnerEntrantID).
		Msg("reported set to start.gg")
	return nil
}
