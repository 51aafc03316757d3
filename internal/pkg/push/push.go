package push

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// Notifier delivers an out-of-band notification to a user's devices.
type Notifier interface {
	Notify(ctx context.Context, userID, title, body string, data map[string]string) error
}

// Noop is used when push is disabled
type Noop struct{}

func (Noop) Notify(context.Context, string, string, string, map[string]string) error { return nil }

type sender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// FCM sends notifications through Firebase Cloud Messaging. Each device
// subscribes to its user's topic at login.
type FCM struct {
	client sender
}

// NewFCM initializes the Firebase Admin SDK and returns a messaging notifier
func NewFCM(ctx context.Context, serviceAccountPath string) (*FCM, error) {
	opt := option.WithCredentialsFile(serviceAccountPath)
	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting firebase messaging client: %w", err)
	}

	return &FCM{client: client}, nil
}

// Topic is the FCM topic a user's devices subscribe to
func Topic(userID string) string {
	return "user_" + userID
}

func (f *FCM) Notify(ctx context.Context, userID, title, body string, data map[string]string) error {
	_, err := f.client.Send(ctx, &messaging.Message{
		Topic: Topic(userID),
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
	})
	if err != nil {
		return fmt.Errorf("push to %s: %w", userID, err)
	}
	return nil
}
