package cache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitTag(t *testing.T) {
	kind, id := SplitTag(MembersTag("org-1"))
	assert.Equal(t, KindMembers, kind)
	assert.Equal(t, "org-1", id)

	kind, id = SplitTag("everything")
	assert.Equal(t, "everything", kind)
	assert.Empty(t, id)
}

func TestLocalRevalidator_DispatchesByKind(t *testing.T) {
	r := NewLocalRevalidator()
	var members, orgs []string
	r.Handle(KindMembers, func(id string) { members = append(members, id) })
	r.Handle(KindOrganization, func(id string) { orgs = append(orgs, id) })

	err := r.RevalidateTags(context.Background(),
		MembersTag("o1"), OrganizationTag("o1"), TicketsTag("o1"), MembersTag("o2"))
	require.NoError(t, err)

	assert.Equal(t, []string{"o1", "o2"}, members)
	assert.Equal(t, []string{"o1"}, orgs)
}

func TestLocalRevalidator_InvalidatesCache(t *testing.T) {
	c, _ := newTestCache(t, 10)
	c.Set("o1:0:50", 1)
	c.Set("o2:0:50", 2)

	r := NewLocalRevalidator()
	r.Handle(KindMembers, func(orgID string) { c.InvalidatePrefix(orgID + ":") })
	require.NoError(t, r.RevalidateTags(context.Background(), MembersTag("o1")))

	_, ok := c.Get("o1:0:50")
	assert.False(t, ok)
	_, ok = c.Get("o2:0:50")
	assert.True(t, ok)
}

type fakePublisher struct {
	channel string
	payload []byte
	err     error
}

func (p *fakePublisher) Publish(_ context.Context, channel string, message interface{}) *redis.IntCmd {
	p.channel = channel
	p.payload = message.([]byte)
	return redis.NewIntResult(1, p.err)
}

func newTestRedisRevalidator() (*RedisRevalidator, *fakePublisher, *[]string) {
	local := NewLocalRevalidator()
	seen := &[]string{}
	local.Handle(KindMembers, func(id string) { *seen = append(*seen, id) })
	pub := &fakePublisher{}
	return &RedisRevalidator{local: local, pub: pub, channel: "helporbit:revalidate", origin: "me"}, pub, seen
}

func TestRedisRevalidator_PublishesAndAppliesLocally(t *testing.T) {
	r, pub, seen := newTestRedisRevalidator()

	require.NoError(t, r.RevalidateTags(context.Background(), MembersTag("o1")))

	assert.Equal(t, []string{"o1"}, *seen)
	assert.Equal(t, "helporbit:revalidate", pub.channel)
	var msg revalidationMessage
	require.NoError(t, json.Unmarshal(pub.payload, &msg))
	assert.Equal(t, "me", msg.Origin)
	assert.Equal(t, []string{"members:o1"}, msg.Tags)
}

func TestRedisRevalidator_PublishFailureStillInvalidatesLocally(t *testing.T) {
	r, pub, seen := newTestRedisRevalidator()
	pub.err = errors.New("connection refused")

	err := r.RevalidateTags(context.Background(), MembersTag("o1"))
	assert.Error(t, err)
	assert.Equal(t, []string{"o1"}, *seen)
}

func TestRedisRevalidator_NoTags(t *testing.T) {
	r, pub, _ := newTestRedisRevalidator()
	require.NoError(t, r.RevalidateTags(context.Background()))
	assert.Nil(t, pub.payload)
}

func TestRedisRevalidator_HandleMessage(t *testing.T) {
	r, _, seen := newTestRedisRevalidator()
	ctx := context.Background()

	r.handleMessage(ctx, `{"origin":"other","tags":["members:o9"]}`)
	r.handleMessage(ctx, `{"origin":"me","tags":["members:o8"]}`)
	r.handleMessage(ctx, `not json`)

	assert.Equal(t, []string{"o9"}, *seen, "own and malformed messages are ignored")
}
