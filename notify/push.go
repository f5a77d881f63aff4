package notify

import (
	"context"
	"fmt"
	"io"

	"github.com/SherClockHolmes/webpush-go"

	"roommatch/models"
)

// Pusher delivers one payload to one subscription and reports the push
// service's HTTP status.
type Pusher interface {
	Push(ctx context.Context, sub models.PushSubscription, payload []byte) (int, error)
}

// WebPusher sends VAPID-signed web push messages.
type WebPusher struct {
	PublicKey  string
	PrivateKey string
	Subscriber string
	TTL        int
	HTTPClient webpush.HTTPClient
}

func NewWebPusher(publicKey, privateKey, subscriber string) *WebPusher {
	return &WebPusher{PublicKey: publicKey, PrivateKey: privateKey, Subscriber: subscriber, TTL: 30}
}

func (w *WebPusher) Push(ctx context.Context, sub models.PushSubscription, payload []byte) (int, error) {
	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys:     webpush.Keys{P256dh: sub.P256dh, Auth: sub.Auth},
	}, &webpush.Options{
		HTTPClient:      w.HTTPClient,
		Subscriber:      w.Subscriber,
		VAPIDPublicKey:  w.PublicKey,
		VAPIDPrivateKey: w.PrivateKey,
		TTL:             w.TTL,
	})
	if err != nil {
		return 0, fmt.Errorf("webpush: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

// GenerateVAPIDKeys returns a fresh public/private key pair.
func GenerateVAPIDKeys() (publicKey, privateKey string, err error) {
	privateKey, publicKey, err = webpush.GenerateVAPIDKeys()
	return publicKey, privateKey, err
}
