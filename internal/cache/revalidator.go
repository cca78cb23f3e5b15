// revalidator.go implements tag-based revalidation. Writes name the data they
// touched as tags ("members:{orgId}") and every cache that derives from that
// data registers a handler for the tag kind.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/helporbit/helporbit/internal/safego"
	"github.com/helporbit/helporbit/internal/telemetry"
)

// Tag kinds
const (
	KindOrganization = "organization"
	KindMembers      = "members"
	KindInvitations  = "invitations"
	KindTickets      = "tickets"
	KindUser         = "user"
)

func OrganizationTag(orgID string) string { return KindOrganization + ":" + orgID }
func MembersTag(orgID string) string      { return KindMembers + ":" + orgID }
func InvitationsTag(orgID string) string  { return KindInvitations + ":" + orgID }
func TicketsTag(orgID string) string      { return KindTickets + ":" + orgID }
func UserTag(userID string) string        { return KindUser + ":" + userID }

// SplitTag splits "kind:id". A tag without a colon is all kind.
func SplitTag(tag string) (kind, id string) {
	kind, id, _ = strings.Cut(tag, ":")
	return kind, id
}

// Revalidator invalidates cached data named by tags.
type Revalidator interface {
	RevalidateTags(ctx context.Context, tags ...string) error
}

// LocalRevalidator dispatches tags to handlers registered in this process.
type LocalRevalidator struct {
	mu       sync.RWMutex
	handlers map[string][]func(id string)
}

// NewLocalRevalidator creates a revalidator with no handlers.
func NewLocalRevalidator() *LocalRevalidator {
	return &LocalRevalidator{handlers: make(map[string][]func(string))}
}

// Handle registers fn for every tag of kind.
func (r *LocalRevalidator) Handle(kind string, fn func(id string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[kind] = append(r.handlers[kind], fn)
}

// RevalidateTags runs the handlers of each tag. Tags with no handler are
// ignored.
func (r *LocalRevalidator) RevalidateTags(_ context.Context, tags ...string) error {
	for _, tag := range tags {
		kind, id := SplitTag(tag)
		r.mu.RLock()
		handlers := r.handlers[kind]
		r.mu.RUnlock()
		for _, fn := range handlers {
			fn(id)
		}
		telemetry.RevalidationsTotal.WithLabelValues(kind).Inc()
	}
	return nil
}

// publisher is the part of redis.UniversalClient the revalidator writes with.
type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

type revalidationMessage struct {
	Origin string   `json:"origin"`
	Tags   []string `json:"tags"`
}

// RedisRevalidator revalidates locally and broadcasts the tags on a Redis
// pub/sub channel so every other instance revalidates too.
type RedisRevalidator struct {
	local   *LocalRevalidator
	pub     publisher
	client  redis.UniversalClient
	channel string
	origin  string
}

// NewRedisRevalidator wraps local. Call Run to receive other instances' tags.
func NewRedisRevalidator(client redis.UniversalClient, channel string, local *LocalRevalidator) *RedisRevalidator {
	return &RedisRevalidator{
		local:   local,
		pub:     client,
		client:  client,
		channel: channel,
		origin:  uuid.New().String(),
	}
}

// RevalidateTags applies tags locally, then publishes them. Local
// invalidation happens even when publishing fails.
func (r *RedisRevalidator) RevalidateTags(ctx context.Context, tags ...string) error {
	if len(tags) == 0 {
		return nil
	}
	_ = r.local.RevalidateTags(ctx, tags...)

	payload, err := json.Marshal(revalidationMessage{Origin: r.origin, Tags: tags})
	if err != nil {
		return fmt.Errorf("failed to encode revalidation: %w", err)
	}
	if err := r.pub.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish revalidation: %w", err)
	}
	return nil
}

// handleMessage applies tags published by another instance.
func (r *RedisRevalidator) handleMessage(ctx context.Context, payload string) {
	var msg revalidationMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		slog.Warn("dropping malformed revalidation message", "error", err)
		return
	}
	if msg.Origin == r.origin {
		return
	}
	_ = r.local.RevalidateTags(ctx, msg.Tags...)
}

// Run subscribes to the channel until ctx is cancelled.
func (r *RedisRevalidator) Run(ctx context.Context) {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	slog.Info("listening for cache revalidations", "channel", r.channel)
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			r.handleMessage(ctx, msg.Payload)
		}
	}
}

// Start runs the subscriber in a recovered background goroutine.
func (r *RedisRevalidator) Start(ctx context.Context) {
	safego.Go("cache-revalidation-subscriber", func() { r.Run(ctx) })
}
