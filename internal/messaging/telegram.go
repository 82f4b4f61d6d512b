package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"cheaphours/internal/selection"
)

// Telegram posts the selected ranges through the Bot API.
type Telegram struct {
	botToken string
	chatID   string
	baseURL  string
	location *time.Location
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegram constructs the Telegram target.
func NewTelegram(botToken, chatID, baseURL string, loc *time.Location, timeout time.Duration, logger zerolog.Logger) *Telegram {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}
	if loc == nil {
		loc = time.Local
	}

	return &Telegram{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		location: loc,
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "telegram_target").Logger(),
	}
}

func (n *Telegram) Name() string { return "telegram" }

// Send calls sendMessage with one line per range.
func (n *Telegram) Send(ctx context.Context, sel *selection.Selection) (Status, error) {
	status := Status{Target: n.Name(), Total: 1}
	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    renderMessage(sel, n.location),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return status, fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return status, fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return status, fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return status, fmt.Errorf("%w: telegram status %d", ErrRejected, resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return status, fmt.Errorf("%w: telegram returned ok=false", ErrRejected)
		}
	}

	status.Delivered, status.OK = 1, true
	n.logger.Info().Str("ranges", sel.String()).Msg("schedule sent (telegram)")
	return status, nil
}

func renderMessage(sel *selection.Selection, loc *time.Location) string {
	builder := strings.Builder{}
	builder.WriteString("[Cheap hours]\n")
	if sel.Len() == 0 {
		builder.WriteString("No hours selected.\n")
		return builder.String()
	}
	for r := range sel.All() {
		builder.WriteString(fmt.Sprintf("%s - %s\n",
			r.Start.In(loc).Format("Mon 02.01. 15:04"),
			r.End.In(loc).Format("15:04")))
	}
	builder.WriteString(fmt.Sprintf("Total: %.0f h\n", sel.Hours()))
	return builder.String()
}

var _ Target = (*Telegram)(nil)
