package gateway

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/errorutils"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"bus-tracker/internal/notify/domain"
	"bus-tracker/internal/shared/models"
)

// MaxBatchSize is the most tokens FCM accepts in one multicast.
const MaxBatchSize = 500

type multicastSender interface {
	SendEachForMulticast(ctx context.Context, msg *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// FCM is the push gateway backed by Firebase Cloud Messaging.
type FCM struct {
	client    multicastSender
	batchSize int
	invalid   func(error) bool
}

func NewFCM(ctx context.Context, cfg *models.PushConfig) (*FCM, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("init messaging client: %w", err)
	}

	return newFCM(client, cfg.BatchSize), nil
}

func newFCM(client multicastSender, batchSize int) *FCM {
	if batchSize <= 0 || batchSize > MaxBatchSize {
		batchSize = MaxBatchSize
	}
	return &FCM{client: client, batchSize: batchSize, invalid: IsPermanent}
}

// Multicast sends msg to tokens in batches. Results follow the order of tokens.
// A failed batch fails the whole call, since the caller cannot tell which
// tokens were reached.
func (g *FCM) Multicast(ctx context.Context, tokens []string, msg domain.Message) ([]domain.DeliveryResult, error) {
	results := make([]domain.DeliveryResult, 0, len(tokens))

	for start := 0; start < len(tokens); start += g.batchSize {
		end := start + g.batchSize
		if end > len(tokens) {
			end = len(tokens)
		}
		batch := tokens[start:end]

		resp, err := g.client.SendEachForMulticast(ctx, buildMessage(batch, msg))
		if err != nil {
			return nil, fmt.Errorf("multicast batch %d-%d: %w", start, end, err)
		}

		for i, token := range batch {
			res := domain.DeliveryResult{Token: token, Status: domain.StatusTransient}
			if i < len(resp.Responses) && resp.Responses[i] != nil {
				r := resp.Responses[i]
				switch {
				case r.Success:
					res.Status = domain.StatusDelivered
				case g.invalid(r.Error):
					res.Status, res.Err = domain.StatusInvalid, r.Error
				default:
					res.Err = r.Error
				}
			}
			results = append(results, res)
		}
	}

	return results, nil
}

// IsPermanent reports whether FCM will never deliver to the token again.
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}
	return messaging.IsUnregistered(err) || errorutils.IsInvalidArgument(err) || messaging.IsSenderIDMismatch(err)
}

func buildMessage(tokens []string, msg domain.Message) *messaging.MulticastMessage {
	return &messaging.MulticastMessage{
		Tokens: tokens,
		Data:   msg.Data,
		Notification: &messaging.Notification{
			Title: msg.Title,
			Body:  msg.Body,
		},
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				ChannelID: msg.Channel,
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Category: msg.Channel,
					Sound:    "default",
				},
			},
		},
	}
}
