// Package notify decouples the ledger from outbound notification
// delivery. The ledger publishes events after a successful commit; a
// delivery backend (email, push) consumes them asynchronously. A publish
// failure never affects the committed operation.
package notify

import (
	"github.com/hashvault/mining-server/internal/utils"
)

// Event kinds
const (
	EventUnitPurchase       = "unit_purchase"
	EventSharePurchase      = "share_purchase"
	EventUnitSale           = "unit_sale"
	EventShareSale          = "share_sale"
	EventWithdrawalRequest  = "withdrawal_request"
	EventWithdrawalDecision = "withdrawal_decision"
	EventBalanceCredit      = "balance_credit"
)

// Event describes a completed ledger operation for delivery to the user.
type Event struct {
	UserID  string
	Kind    string
	Payload map[string]interface{}
}

// Notifier consumes ledger events.
type Notifier interface {
	Publish(event Event)
}

// LogNotifier writes events to the application log. It stands in for a
// real delivery backend and is the default in development.
type LogNotifier struct {
	log *utils.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(log *utils.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

// Publish logs the event asynchronously.
func (n *LogNotifier) Publish(event Event) {
	go func() {
		n.log.Info("notification for user %s: %s %v", event.UserID, event.Kind, event.Payload)
	}()
}

// NopNotifier drops all events. Used in tests that are not about
// notifications.
type NopNotifier struct{}

// Publish discards the event.
func (NopNotifier) Publish(Event) {}
