package app

import (
	"context"
	"fmt"
	"strings"

	"bus-tracker/internal/notify/domain"
	"bus-tracker/internal/shared/middleware"
	"bus-tracker/internal/shared/util"
	"bus-tracker/internal/shared/validation"
)

// Relay announces trip starts to a vehicle's audience and the management
// broadcast, and prunes tokens the gateway rejects.
type Relay struct {
	resolver *Resolver
	gateway  domain.Gateway
	pruner   *Pruner
	channel  string
	logger   *util.Logger
}

func NewRelay(resolver *Resolver, gateway domain.Gateway, pruner *Pruner, channel string, logger *util.Logger) *Relay {
	return &Relay{
		resolver: resolver,
		gateway:  gateway,
		pruner:   pruner,
		channel:  channel,
		logger:   logger,
	}
}

// target is a token and every uid that holds it.
type target struct {
	token string
	uids  []string
}

// Relay fails only when the directory or the gateway as a whole fails.
// Per-token failures are counted, never returned.
func (r *Relay) Relay(ctx context.Context, ev domain.Event) (domain.Report, error) {
	instance := "NotificationRelay.Relay"

	vehicleID := util.NormalizeVehicleID(ev.VehicleID)
	if vehicleID == "" {
		return domain.Report{}, domain.ErrMissingVehicleID
	}

	byVehicle, err := r.resolver.ResolveByVehicle(ctx, vehicleID)
	if err != nil {
		return domain.Report{}, err
	}
	managers, err := r.resolver.ResolveByRole(ctx, middleware.RoleManagement)
	if err != nil {
		return domain.Report{}, err
	}

	excluded := make(map[string]bool)
	if t := strings.TrimSpace(ev.ExcludeToken); t != "" {
		excluded[t] = true
	}

	initiator := strings.TrimSpace(ev.InitiatedBy)
	if initiator != "" {
		// The initiator may be outside the audience (a driver) and still
		// share a device token with someone in it.
		rec, err := r.resolver.ResolveUser(ctx, initiator)
		if err != nil {
			return domain.Report{}, err
		}
		if rec != nil {
			for _, t := range rec.Tokens {
				excluded[t] = true
			}
		}
	}

	recipients := append(byVehicle, managers...)
	for _, rec := range recipients {
		if rec.UID == initiator {
			for _, t := range rec.Tokens {
				excluded[t] = true
			}
		}
	}

	targets := collectTargets(recipients, excluded)
	if len(targets) == 0 {
		r.logger.Info(instance, fmt.Sprintf("no recipients for vehicle %s", vehicleID))
		return domain.Report{}, nil
	}

	msg := domain.Message{
		Title:   fmt.Sprintf("Bus %s is now live", vehicleID),
		Body:    tripStartBody(ev.DriverLabel),
		Channel: r.channel,
		Data: map[string]string{
			"type":      domain.MessageTypeBusStart,
			"vehicleId": vehicleID,
		},
	}

	report, err := r.deliver(ctx, targets, msg)
	if err != nil {
		return report, err
	}

	r.logger.OK(instance, fmt.Sprintf("vehicle %s: attempted=%d succeeded=%d pruned=%d",
		vehicleID, report.Attempted, report.Succeeded, report.Pruned))
	return report, nil
}

// SendDirect delivers one message to every token of a single user.
func (r *Relay) SendDirect(ctx context.Context, req domain.DirectRequest) (domain.Report, error) {
	if strings.TrimSpace(req.RecipientUID) == "" {
		return domain.Report{}, domain.ErrMissingRecipientUID
	}
	if err := validation.Struct(req); err != nil {
		return domain.Report{}, err
	}

	rec, err := r.resolver.ResolveUser(ctx, req.RecipientUID)
	if err != nil {
		return domain.Report{}, err
	}
	if rec == nil {
		return domain.Report{}, fmt.Errorf("%w: %s", domain.ErrRecipientNotFound, req.RecipientUID)
	}

	targets := collectTargets([]domain.Recipient{*rec}, nil)
	if len(targets) == 0 {
		return domain.Report{}, nil
	}

	data := make(map[string]string, len(req.Data)+1)
	for k, v := range req.Data {
		data[k] = v
	}
	if _, ok := data["type"]; !ok {
		data["type"] = domain.MessageTypeDirect
	}

	return r.deliver(ctx, targets, domain.Message{
		Title:   req.Title,
		Body:    req.Body,
		Data:    data,
		Channel: r.channel,
	})
}

func (r *Relay) deliver(ctx context.Context, targets []target, msg domain.Message) (domain.Report, error) {
	instance := "NotificationRelay.deliver"

	tokens := make([]string, len(targets))
	owners := make(map[string][]string, len(targets))
	for i, t := range targets {
		tokens[i] = t.token
		owners[t.token] = t.uids
	}

	report := domain.Report{Attempted: len(tokens)}

	results, err := r.gateway.Multicast(ctx, tokens, msg)
	if err != nil {
		r.logger.Error(instance, fmt.Sprintf("multicast to %d token(s) failed", len(tokens)), err)
		return report, fmt.Errorf("%w: %w", domain.ErrGateway, err)
	}

	invalid := make(map[string][]string)
	for _, res := range results {
		switch res.Status {
		case domain.StatusDelivered:
			report.Succeeded++
		case domain.StatusInvalid:
			for _, uid := range owners[res.Token] {
				invalid[uid] = append(invalid[uid], res.Token)
			}
		default:
			r.logger.Warn(instance, fmt.Sprintf("transient failure for token %s: %v", shortToken(res.Token), res.Err))
		}
	}

	if len(invalid) > 0 {
		report.Pruned = r.pruner.PruneAll(ctx, invalid)
	}
	return report, nil
}

// collectTargets flattens recipients into unique tokens, skipping excluded ones.
// Order follows the recipients so multicast batches are stable.
func collectTargets(recipients []domain.Recipient, excluded map[string]bool) []target {
	index := make(map[string]int)
	var out []target

	for _, rec := range recipients {
		for _, t := range rec.Tokens {
			if excluded[t] {
				continue
			}
			if i, ok := index[t]; ok {
				if !contains(out[i].uids, rec.UID) {
					out[i].uids = append(out[i].uids, rec.UID)
				}
				continue
			}
			index[t] = len(out)
			out = append(out, target{token: t, uids: []string{rec.UID}})
		}
	}
	return out
}

func tripStartBody(driverLabel string) string {
	if label := strings.TrimSpace(driverLabel); label != "" {
		return fmt.Sprintf("%s started the trip. Tap to follow it live.", label)
	}
	return "Live tracking has started. Tap to follow it live."
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func shortToken(t string) string {
	if len(t) <= 8 {
		return t
	}
	return t[:8] + "..."
}
