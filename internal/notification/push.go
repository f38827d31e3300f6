package notification

import (
	"context"
	"log"

	authrepo "github.com/jan-janssen/gmailsorter/internal/auth/repository"
	emailusecase "github.com/jan-janssen/gmailsorter/internal/email/usecase"
	"github.com/jan-janssen/gmailsorter/pkg/fcm"
)

// DeviceSender delivers one notification to many device tokens and returns
// the tokens that could not be reached.
type DeviceSender interface {
	SendToDevices(ctx context.Context, tokens []string, notification fcm.NotificationData) ([]string, error)
}

var _ emailusecase.Notifier = (*PushNotifier)(nil)

// PushNotifier sends sorter summaries to a user's registered devices.
type PushNotifier struct {
	devices authrepo.DeviceRepository
	sender  DeviceSender
}

func NewPushNotifier(devices authrepo.DeviceRepository, sender DeviceSender) *PushNotifier {
	return &PushNotifier{devices: devices, sender: sender}
}

// NotifyUser pushes to every device of the user and drops the tokens that
// failed delivery.
func (n *PushNotifier) NotifyUser(ctx context.Context, userID uint, title, body string, data map[string]string) {
	tokens, err := n.devices.Tokens(userID)
	if err != nil {
		log.Printf("[FCM] Error getting FCM tokens for user %d: %v", userID, err)
		return
	}
	if len(tokens) == 0 {
		log.Printf("[FCM] No tokens found for user %d, skipping push notification", userID)
		return
	}

	failedTokens, err := n.sender.SendToDevices(ctx, tokens, fcm.NotificationData{
		Title: title,
		Body:  body,
		Data:  data,
	})
	if err != nil {
		log.Printf("[FCM] Error sending notifications: %v", err)
		return
	}
	log.Printf("[FCM] Sent to %d of %d devices of user %d", len(tokens)-len(failedTokens), len(tokens), userID)

	if pruned, err := n.devices.Prune(failedTokens); err != nil {
		log.Printf("[FCM] Failed to prune tokens: %v", err)
	} else if pruned > 0 {
		log.Printf("[FCM] Pruned %d unreachable devices", pruned)
	}
}
