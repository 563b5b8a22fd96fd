package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/example/trader-bot/internal/gateway"
	"github.com/example/trader-bot/internal/ledger"
)

// AlertScanner watches paid orders for restricted items in bulk and posts a
// single public alert per order. Alerted order IDs are persisted so restarts
// never re-alert.
type AlertScanner struct {
	ledger         ledger.Store
	gw             gateway.ChatGateway
	alertChannelID string
	keywords       []string
	minQuantity    int
	trackerPath    string
}

func NewAlertScanner(
	store ledger.Store,
	gw gateway.ChatGateway,
	alertChannelID string,
	keywords []string,
	minQuantity int,
	trackerPath string,
) *AlertScanner {
	return &AlertScanner{
		ledger:         store,
		gw:             gw,
		alertChannelID: alertChannelID,
		keywords:       keywords,
		minQuantity:    minQuantity,
		trackerPath:    trackerPath,
	}
}

// Run scans on every tick until ctx is canceled.
func (s *AlertScanner) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Scan(ctx); err != nil {
				log.Printf("[AlertScanner] Scan failed: %v", err)
			}
		}
	}
}

// Scan walks the ledger and alerts on every confirmed, paid order whose
// restricted-item quantity meets the threshold.
func (s *AlertScanner) Scan(ctx context.Context) error {
	all, err := s.ledger.All(ctx)
	if err != nil {
		return err
	}

	alerted, err := s.loadTracker()
	if err != nil {
		return err
	}

	changed := false
	for userID, orders := range all {
		for _, order := range orders {
			if alerted[order.OrderID] {
				continue
			}
			if !order.Confirmed || !order.Paid {
				continue
			}
			if s.restrictedCount(order.Items) < s.minQuantity {
				continue
			}

			content := fmt.Sprintf(
				"@everyone stay frosty! <@%s> has just bought enough boom to waltz through your front door!",
				userID,
			)
			if _, err := s.gw.PostToChannel(ctx, s.alertChannelID, content); err != nil {
				log.Printf("[AlertScanner] Failed to post alert for order %s: %v", order.OrderID, err)
				continue
			}
			alerted[order.OrderID] = true
			changed = true
		}
	}

	if changed {
		return s.saveTracker(alerted)
	}
	return nil
}

// restrictedCount sums quantities of items whose name contains any keyword.
func (s *AlertScanner) restrictedCount(items []ledger.Item) int {
	total := 0
	for _, item := range items {
		name := strings.ToLower(item.Item)
		for _, keyword := range s.keywords {
			if strings.Contains(name, strings.ToLower(keyword)) {
				total += item.Quantity
				break
			}
		}
	}
	return total
}

func (s *AlertScanner) loadTracker() (map[string]bool, error) {
	alerted := make(map[string]bool)

	data, err := os.ReadFile(s.trackerPath)
	if os.IsNotExist(err) {
		return alerted, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read alert tracker: %w", err)
	}

	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("failed to parse alert tracker: %w", err)
	}
	for _, id := range ids {
		alerted[id] = true
	}
	return alerted, nil
}

func (s *AlertScanner) saveTracker(alerted map[string]bool) error {
	ids := make([]string, 0, len(alerted))
	for id := range alerted {
		ids = append(ids, id)
	}

	data, err := json.MarshalIndent(ids, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.trackerPath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(s.trackerPath, data, 0o644)
}
