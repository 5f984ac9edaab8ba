package bot

import (
	"fmt"
	"strings"

	"order-display/models"
)

func statusLabel(status string) string {
	switch status {
	case models.OrderStatusInProgress:
		return "🕒 In progress"
	case models.OrderStatusCompleted:
		return "✅ Completed"
	case "preparing":
		return "👨‍🍳 Preparing"
	case "ready":
		return "🔔 Ready for pickup"
	case "cancelled":
		return "❌ Cancelled"
	default:
		return status
	}
}

func money(v float64) string { return fmt.Sprintf("$%.2f", v) }

// escapeMarkdown escapes the characters legacy Markdown treats as markup.
func escapeMarkdown(s string) string {
	return strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[").Replace(s)
}

// BuildOrderCard returns the admin chat text for a completed order.
func BuildOrderCard(o *models.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🧾 *Order %s*\n", escapeMarkdown(o.OrderID))
	fmt.Fprintf(&b, "Status: %s\n\n", statusLabel(o.Status))
	for _, it := range o.Items {
		fmt.Fprintf(&b, "• %s × %d — %s\n", escapeMarkdown(it.Name), it.Quantity, money(it.Total))
	}
	fmt.Fprintf(&b, "\nSubtotal: %s\n", money(o.Subtotal))
	fmt.Fprintf(&b, "Tax: %s\n", money(o.Tax))
	if o.Discount != 0 {
		fmt.Fprintf(&b, "Discount: -%s\n", money(o.Discount))
	}
	fmt.Fprintf(&b, "*Total: %s*", money(o.Total))
	if o.PaymentMethod != "" {
		fmt.Fprintf(&b, "\nPaid by %s", escapeMarkdown(o.PaymentMethod))
		if o.ReceivedAmount != nil {
			fmt.Fprintf(&b, ", received %s", money(*o.ReceivedAmount))
		}
		if o.Change != nil {
			fmt.Fprintf(&b, ", change %s", money(*o.Change))
		}
	}
	return b.String()
}

// BuildStatusCard returns the admin chat text for a status broadcast.
func BuildStatusCard(u models.StatusUpdate) string {
	text := fmt.Sprintf("📣 *Order %s*\nStatus: %s", escapeMarkdown(u.OrderID), statusLabel(u.Status))
	if u.EstimatedTime != "" {
		text += "\nETA: " + escapeMarkdown(u.EstimatedTime)
	}
	if u.Message != "" {
		text += "\n" + escapeMarkdown(u.Message)
	}
	return text
}
