package service

import (
	"context"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
)

// FCMService sends push notifications to admin devices via Firebase Cloud Messaging.
type FCMService struct {
	client *messaging.Client
}

// NewFCMService returns nil if Firebase is not configured; a nil *FCMService drops every push.
func NewFCMService(serviceAccountPath string) *FCMService {
	if serviceAccountPath == "" {
		return nil
	}
	ctx := context.Background()
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(serviceAccountPath))
	if err != nil {
		log.Error().Err(err).Msg("[FCM] failed to init Firebase app")
		return nil
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		log.Error().Err(err).Msg("[FCM] failed to get messaging client")
		return nil
	}
	return &FCMService{client: client}
}

// SendToTokens pushes one notification to every token. Data values must be strings.
func (s *FCMService) SendToTokens(ctx context.Context, tokens []string, title, body string, data map[string]string) error {
	if s == nil || len(tokens) == 0 {
		return nil
	}
	msg := &messaging.MulticastMessage{
		Tokens: tokens,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
		Android: &messaging.AndroidConfig{
			Priority:     "high",
			Notification: &messaging.AndroidNotification{Sound: "default"},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{Aps: &messaging.Aps{Sound: "default"}},
		},
	}
	resp, err := s.client.SendEachForMulticast(ctx, msg)
	if err != nil {
		log.Error().Err(err).Msg("[FCM] multicast failed")
		return err
	}
	if resp.FailureCount > 0 {
		log.Warn().Int("failed", resp.FailureCount).Int("sent", resp.SuccessCount).Msg("[FCM] some pushes failed")
	}
	return nil
}
