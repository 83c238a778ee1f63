package app

import (
	"context"
	"fmt"
	"time"

	"github.com/mcurrie/stockboard/internal/interfaces"
	"github.com/mcurrie/stockboard/internal/models"
)

// errorPayload wraps a query failure as a user-visible response.
func errorPayload(err error) *models.Notification {
	return &models.Notification{
		Title:       "⚠️ Something went wrong",
		Description: err.Error(),
		Timestamp:   time.Now(),
	}
}

// RegisterCommands wires the on-demand query commands onto a gateway-capable
// chat client. Query failures come back as error payloads, never silence.
func (a *App) RegisterCommands(ctx context.Context, chat interfaces.ChatClient) error {
	err := chat.RegisterCommand(ctx, "leaderboard", "Show the current leaderboard", nil,
		interfaces.CommandHandler{
			Run: func(ctx context.Context, args map[string]string) (*models.Notification, error) {
				payload, err := a.ReportService.LeaderboardPayload(ctx)
				if err != nil {
					return errorPayload(err), nil
				}
				return payload, nil
			},
		})
	if err != nil {
		return fmt.Errorf("failed to register leaderboard command: %w", err)
	}

	err = chat.RegisterCommand(ctx, "userinfo", "Show a user's portfolio and history",
		[]interfaces.CommandParam{
			{Name: "username", Description: "Leaderboard username", Required: true, Autocomplete: true},
		},
		interfaces.CommandHandler{
			Run: func(ctx context.Context, args map[string]string) (*models.Notification, error) {
				payload, err := a.ReportService.UserInfoPayload(ctx, args["username"])
				if err != nil {
					return errorPayload(err), nil
				}
				return payload, nil
			},
			Candidates: func(ctx context.Context, partial string) ([]string, error) {
				return a.ReportService.UsernameCandidates(ctx, partial)
			},
		})
	if err != nil {
		return fmt.Errorf("failed to register userinfo command: %w", err)
	}

	return nil
}
