// Package interfaces defines service contracts for Stockboard
package interfaces

import (
	"context"
	"time"

	"github.com/mcurrie/stockboard/internal/models"
)

// Notifier delivers assembled notification payloads to a chat channel.
// Channel IDs are logical names (e.g. "leaderboard", "stocks") resolved by
// the implementation.
type Notifier interface {
	SendNotification(ctx context.Context, channelID string, payload *models.Notification) error
}

// CommandParam describes one parameter of a registered chat command.
type CommandParam struct {
	Name        string
	Description string
	Required    bool
	// Autocomplete marks the parameter as autocompleted; the platform calls
	// back through the registered CommandHandler's Candidates function.
	Autocomplete bool
}

// CommandHandler services one registered chat command.
type CommandHandler struct {
	// Run builds the response payload for an invocation. Failures must
	// return a descriptive payload to the requester, not silence.
	Run func(ctx context.Context, args map[string]string) (*models.Notification, error)
	// Candidates returns autocomplete suggestions for a partial input.
	Candidates func(ctx context.Context, partial string) ([]string, error)
}

// ChatClient is the full chat-platform boundary: delivery plus the command
// surface. Implementations live outside this system; tests use mocks.
type ChatClient interface {
	Notifier

	// RegisterCommand registers a slash-style command with the platform.
	RegisterCommand(ctx context.Context, name, description string, params []CommandParam, handler CommandHandler) error
}

// ChartRenderer renders a time-series chart to image bytes. The reference
// series and markers are optional.
type ChartRenderer interface {
	Render(title string, series []models.NamedSeries, reference *models.NamedSeries, markers []models.ChartMarker) ([]byte, error)
}

// MarketDataSource fetches a reference index time series for a symbol and
// date range. Implementations cache by (symbol, start, end) with a TTL.
type MarketDataSource interface {
	FetchSeries(ctx context.Context, symbol string, start, end time.Time) ([]models.SeriesPoint, error)
}
