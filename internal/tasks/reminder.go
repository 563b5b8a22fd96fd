package tasks

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/example/trader-bot/internal/gateway"
	"github.com/example/trader-bot/internal/ledger"
)

// Reminder periodically scans the ledger for orders that have sat in a
// non-terminal state for too long and nudges staff once per sweep. Every
// sweep outcome is appended to a flat audit log.
type Reminder struct {
	ledger         ledger.Store
	gw             gateway.ChatGateway
	staffChannelID string
	mentionRoleIDs []string
	maxAge         time.Duration
	logPath        string
	now            func() time.Time
}

func NewReminder(
	store ledger.Store,
	gw gateway.ChatGateway,
	staffChannelID string,
	mentionRoleIDs []string,
	maxAge time.Duration,
	logPath string,
) *Reminder {
	return &Reminder{
		ledger:         store,
		gw:             gw,
		staffChannelID: staffChannelID,
		mentionRoleIDs: mentionRoleIDs,
		maxAge:         maxAge,
		logPath:        logPath,
		now:            time.Now,
	}
}

// Run sweeps immediately, then on every tick until ctx is canceled.
func (r *Reminder) Run(ctx context.Context, interval time.Duration) {
	if err := r.Sweep(ctx); err != nil {
		log.Printf("[Reminder] Sweep failed: %v", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Sweep(ctx); err != nil {
				log.Printf("[Reminder] Sweep failed: %v", err)
			}
		}
	}
}

// Sweep posts at most one reminder, no matter how many orders are stale.
func (r *Reminder) Sweep(ctx context.Context) error {
	log.Println("[Reminder] Scanning for incomplete orders...")

	all, err := r.ledger.All(ctx)
	if err != nil {
		r.logEvent("Reminder scan failed: " + err.Error())
		return err
	}

	cutoff := r.now().Add(-r.maxAge)
	for _, orders := range all {
		for _, order := range orders {
			if order.Terminal() || !order.CreatedAt.Before(cutoff) {
				continue
			}

			content := r.mentions() + "Please check for any incomplete trader orders!"
			if _, err := r.gw.PostToChannel(ctx, r.staffChannelID, content); err != nil {
				r.logEvent("Reminder post failed: " + err.Error())
				return err
			}
			r.logEvent("Reminder sent for incomplete trader orders.")
			return nil
		}
	}
	return nil
}

func (r *Reminder) mentions() string {
	if len(r.mentionRoleIDs) == 0 {
		return ""
	}
	parts := make([]string, len(r.mentionRoleIDs))
	for i, id := range r.mentionRoleIDs {
		parts[i] = fmt.Sprintf("<@&%s>", id)
	}
	return strings.Join(parts, " ") + "\n"
}

// logEvent appends a timestamped line to the reminder audit log. Failures
// here are logged and swallowed so a full disk never stops the sweep.
func (r *Reminder) logEvent(message string) {
	if r.logPath == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(r.logPath), 0o755); err != nil {
		log.Printf("[Reminder] Failed to create log dir: %v", err)
		return
	}
	f, err := os.OpenFile(r.logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		log.Printf("[Reminder] Failed to open log file: %v", err)
		return
	}
	defer f.Close()

	timestamp := r.now().Format("2006-01-02 15:04:05")
	fmt.Fprintf(f, "[%s] %s\n", timestamp, message)
}
