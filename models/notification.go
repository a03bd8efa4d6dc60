package models

import (
	"time"
)

type NotificationType string

const (
	NotifyPaymentLink         NotificationType = "PAYMENT_LINK"
	NotifyPaymentConfirmation NotificationType = "PAYMENT_CONFIRMATION"
	NotifyEventCancellation   NotificationType = "EVENT_CANCELLATION"
	NotifyTransferConfirmed   NotificationType = "TRANSFER_CONFIRMATION"
)

// Notification is the message published to the notification queue for
// downstream email delivery. Delivery is at-least-once and fire-and-forget
// from the saga's point of view.
type Notification struct {
	NotificationID string           `json:"notificationId"`
	Subject        string           `json:"subject"`
	Message        string           `json:"message"`
	RecipientEmail string           `json:"recipientEmailAddress"`
	Type           NotificationType `json:"notificationType"`
	Timestamp      time.Time        `json:"timestamp"`
}
