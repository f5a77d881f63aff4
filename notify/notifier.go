package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"roommatch/logging"
	"roommatch/models"
	"roommatch/store"
)

// TypeProfilesAdded announces new roommate profiles.
const TypeProfilesAdded = "profiles:added"

type ProfilesAddedPayload struct {
	UserIDs []string `json:"userIds"`
	Names   []string `json:"names"`
}

type pushMessage struct {
	Title string         `json:"title"`
	Body  string         `json:"body"`
	Data  map[string]any `json:"data,omitempty"`
}

// Notifier dispatches push tasks and, on the worker side, delivers them.
type Notifier struct {
	dispatcher Dispatcher
	subs       store.PushSubscriptions
	pusher     Pusher
	logger     logging.Logger
}

// NewNotifier registers the notifier's handlers on d.
func NewNotifier(d Dispatcher, subs store.PushSubscriptions, pusher Pusher, logger logging.Logger) *Notifier {
	n := &Notifier{dispatcher: d, subs: subs, pusher: pusher, logger: logger}
	d.Register(TypeProfilesAdded, n.handleProfilesAdded)
	return n
}

// ProfilesAdded queues a notification for everyone except the added users.
func (n *Notifier) ProfilesAdded(ctx context.Context, added []models.Profile) error {
	if len(added) == 0 {
		return nil
	}
	p := ProfilesAddedPayload{}
	for _, a := range added {
		p.UserIDs = append(p.UserIDs, a.Identity())
		p.Names = append(p.Names, a.Name)
	}
	b, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("notify: marshal payload: %w", err)
	}
	return n.dispatcher.Dispatch(ctx, Task{Type: TypeProfilesAdded, Payload: b})
}

func (n *Notifier) handleProfilesAdded(ctx context.Context, t Task) error {
	var p ProfilesAddedPayload
	if err := json.Unmarshal(t.Payload, &p); err != nil {
		// Malformed payloads will never succeed; drop them.
		n.logger.Error(ctx, "bad profiles:added payload", "error", err)
		return nil
	}
	skip := make(map[string]bool, len(p.UserIDs))
	for _, id := range p.UserIDs {
		skip[id] = true
	}

	msg, err := json.Marshal(pushMessage{
		Title: "New roommate match",
		Body:  profilesAddedBody(p.Names),
		Data:  map[string]any{"url": "/matches", "userIds": p.UserIDs},
	})
	if err != nil {
		return err
	}

	subs, err := n.subs.All(ctx)
	if err != nil {
		return fmt.Errorf("notify: list subscriptions: %w", err)
	}
	sent := 0
	for _, sub := range subs {
		if skip[sub.UserID] {
			continue
		}
		status, err := n.pusher.Push(ctx, sub, msg)
		switch {
		case err != nil:
			n.logger.Warn(ctx, "push failed", "userId", sub.UserID, "error", err)
		case status == http.StatusGone || status == http.StatusNotFound:
			n.logger.Info(ctx, "push subscription expired", "userId", sub.UserID)
			if err := n.subs.Delete(ctx, sub.UserID); err != nil {
				n.logger.Warn(ctx, "failed to delete expired subscription", "userId", sub.UserID, "error", err)
			}
		case status >= 400:
			n.logger.Warn(ctx, "push rejected", "userId", sub.UserID, "status", status)
		default:
			sent++
		}
	}
	n.logger.Info(ctx, "profiles:added delivered", "added", len(p.UserIDs), "sent", sent)
	return nil
}

func profilesAddedBody(names []string) string {
	switch len(names) {
	case 0:
		return "New people are looking for roommates"
	case 1:
		return nonEmpty(names[0]) + " just joined. See how compatible you are!"
	default:
		return fmt.Sprintf("%s and %d others just joined", nonEmpty(names[0]), len(names)-1)
	}
}

func nonEmpty(name string) string {
	if strings.TrimSpace(name) == "" {
		return "Someone"
	}
	return name
}
