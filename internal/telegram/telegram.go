package telegram

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"czreality/server/config"
	"czreality/server/internal/models"
)

// maxNotifiedDeals caps how many listings one notification spells out.
const maxNotifiedDeals = 10

type Service struct {
	logger *logrus.Logger
	client *http.Client
	config config.TelegramConfig
}

func NewService(cfg config.TelegramConfig, logger *logrus.Logger) *Service {
	return &Service{
		logger: logger,
		config: cfg,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// SendMessage sends a message to the configured Telegram chat
func (s *Service) SendMessage(message string) error {
	if !s.config.Enabled {
		return nil
	}

	if s.config.BotToken == "" {
		return errors.New("Telegram bot token is not configured")
	}

	if s.config.ChatID == "" {
		return errors.New("Telegram chat ID is not configured")
	}

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", s.config.BotToken)
	payload := map[string]interface{}{
		"chat_id":    s.config.ChatID,
		"text":       message,
		"parse_mode": "HTML",
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal message payload: %v", err)
	}

	resp, err := s.client.Post(url, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to send message to Telegram API: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		switch resp.StatusCode {
		case http.StatusUnauthorized:
			return errors.New("invalid bot token - please check your token from @BotFather")
		case http.StatusBadRequest:
			return fmt.Errorf("invalid chat ID or message format: %s", string(body))
		case http.StatusForbidden:
			return errors.New("bot was blocked by the user or chat")
		case http.StatusNotFound:
			return errors.New("bot not found - please check your token from @BotFather")
		default:
			return fmt.Errorf("Telegram API error (status %d): %s", resp.StatusCode, string(body))
		}
	}

	return nil
}

// NotifyBestDeals reports the newly discovered best deals of a run.
// Notification failures are logged, never fatal to the run.
func (s *Service) NotifyBestDeals(enriched []models.EnrichedListing) {
	if !s.config.Enabled {
		return
	}

	var deals []models.EnrichedListing
	for _, listing := range enriched {
		if listing.IsBestDeal && listing.IsNew {
			deals = append(deals, listing)
		}
	}
	if len(deals) == 0 {
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🏠 <b>%d new best deal(s) found</b>\n", len(deals))
	for i, deal := range deals {
		if i == maxNotifiedDeals {
			fmt.Fprintf(&b, "\n…and %d more", len(deals)-maxNotifiedDeals)
			break
		}
		b.WriteString("\n")
		fmt.Fprintf(&b, "<b>%s</b>\n", deal.Name)
		if deal.Price != nil {
			fmt.Fprintf(&b, "%d CZK", *deal.Price)
			if deal.PricePerSqm != nil {
				fmt.Fprintf(&b, " (%d CZK/m²)", *deal.PricePerSqm)
			}
			b.WriteString("\n")
		}
		if deal.Locality != "" {
			fmt.Fprintf(&b, "%s\n", deal.Locality)
		}
		if deal.URL != "" {
			fmt.Fprintf(&b, "%s\n", deal.URL)
		}
	}

	if err := s.SendMessage(b.String()); err != nil {
		s.logger.WithError(err).Error("Failed to send best deal notification")
		return
	}
	s.logger.WithField("deals", len(deals)).Info("Sent best deal notification")
}
