package telegram

import (
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Client sends doctor notifications through the Bot API.
type Client struct {
	api *tgbotapi.BotAPI
}

// NewClient authorizes the bot against api.telegram.org.
func NewClient(token string) (*Client, error) {
	return NewClientWithEndpoint(token, tgbotapi.APIEndpoint, &http.Client{Timeout: 10 * time.Second})
}

// NewClientWithEndpoint is NewClient with a custom endpoint format
// ("https://host/bot%s/%s") and HTTP client, e.g. for a local Bot API server.
func NewClientWithEndpoint(token, endpoint string, httpClient *http.Client) (*Client, error) {
	api, err := tgbotapi.NewBotAPIWithClient(token, endpoint, httpClient)
	if err != nil {
		return nil, fmt.Errorf("failed to authorize telegram bot: %w", err)
	}
	return &Client{api: api}, nil
}

func (c *Client) SendMessage(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := c.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	return nil
}

func (c *Client) SendDocument(chatID int64, fileData []byte, fileName string) error {
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{
		Name:  fileName,
		Bytes: fileData,
	})
	if _, err := c.api.Send(doc); err != nil {
		return fmt.Errorf("failed to send telegram document: %w", err)
	}
	return nil
}
