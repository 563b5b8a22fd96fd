package lifecycle

import (
	"fmt"
	"strings"

	"github.com/example/trader-bot/internal/ledger"
)

// fmtCoins renders an amount with thousands separators, e.g. "$1,000".
func fmtCoins(n int) string {
	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}
	digits := fmt.Sprintf("%d", n)
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return sign + "$" + b.String()
}

func mention(userID string) string {
	return "<@" + userID + ">"
}

func renderItems(items []ledger.Item) string {
	var b strings.Builder
	for _, it := range items {
		variant := ""
		if it.Variant != "" && !strings.EqualFold(it.Variant, "Default") {
			variant = fmt.Sprintf(" (%s)", it.Variant)
		}
		fmt.Fprintf(&b, "- %dx %s%s = %s\n", it.Quantity, it.Item, variant, fmtCoins(it.Subtotal))
	}
	return b.String()
}

func renderOrderSummary(rec *ledger.Record) string {
	var header string
	switch rec.Type {
	case ledger.TypeSell:
		header = fmt.Sprintf("%s would like to sell the following items:", mention(rec.UserID))
	case ledger.TypeTradePost:
		header = fmt.Sprintf("Trade Post order from %s:", mention(rec.UserID))
	default:
		header = fmt.Sprintf("New buy order from %s:", mention(rec.UserID))
	}
	return fmt.Sprintf("%s\n%sTotal: %s\nConfirm this order when it is ready.",
		header, renderItems(rec.Items), fmtCoins(rec.Total))
}

func renderConfirmedSummary(staffID, summary string) string {
	return fmt.Sprintf("Confirmed by %s — order is ready for the trader.\n%s", mention(staffID), summary)
}

func renderPaymentRequest(staffID string, total int) string {
	return fmt.Sprintf("Your order is ready! Please pay %s %s to complete the order, then confirm this message.",
		mention(staffID), fmtCoins(total))
}

func renderPaymentClaimed(staffID string, total int) string {
	return fmt.Sprintf("Payment of %s to %s claimed — waiting for the trader to hand off your order.",
		fmtCoins(total), mention(staffID))
}

func renderFulfillmentRequest(staffID, buyerID string) string {
	return fmt.Sprintf("%s payment has been sent from %s for their trader order. Select a storage location (or skip) to hand it off.",
		mention(staffID), mention(buyerID))
}

func renderPickupInstructions(location, accessCode string) string {
	return fmt.Sprintf("Your order is stored at %s. Access code: %s. Confirm this message once you have picked it up.",
		location, accessCode)
}

func renderSkipCompletion() string {
	return "Your order is complete! The trader has delivered your items directly."
}

func renderClosingNotice(buyerID, orderID string) string {
	return fmt.Sprintf("%s has picked up order %s. Order complete.", mention(buyerID), orderID)
}
