package services

import (
	"context"
	"io"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helporbit/helporbit/internal/db/models"
)

type ticketFixture struct {
	env    *testEnv
	org    *models.Organization
	owner  Actor
	member Actor
	guest  Actor
}

func newTicketFixture(t *testing.T) *ticketFixture {
	t.Helper()
	env := newTestEnv(t)
	f := &ticketFixture{
		env:    env,
		owner:  env.user(t, "Owner", "owner@example.com"),
		member: env.user(t, "Member", "member@example.com"),
		guest:  env.user(t, "Guest", "guest@example.com"),
	}
	f.org = env.org(t, f.owner, "acme")
	env.join(t, f.org, f.member, models.RoleMember)
	env.join(t, f.org, f.guest, models.RoleGuest)
	return f
}

func (f *ticketFixture) ticket(t *testing.T, actor Actor, in CreateTicketInput) *models.Ticket {
	t.Helper()
	tk, err := f.env.svc.Tickets.Create(context.Background(), actor, f.org.ID, in)
	require.NoError(t, err)
	return tk
}

func TestTicketCreate_Defaults(t *testing.T) {
	f := newTicketFixture(t)
	tk := f.ticket(t, f.member, CreateTicketInput{Title: "  Printer on fire  "})

	assert.Equal(t, "Printer on fire", tk.Title)
	assert.Equal(t, models.TicketStatusOpen, tk.Status)
	assert.Equal(t, models.TicketPriorityMedium, tk.Priority)
	assert.Equal(t, "question", tk.Type)
	assert.Equal(t, models.Tags{}, tk.Tags)
	assert.Equal(t, f.member.UserID, tk.RequesterID)
	assert.Nil(t, tk.AssigneeID)
	assert.Nil(t, tk.ResolvedAt)
}

func TestTicketCreate_TagsRoundTrip(t *testing.T) {
	f := newTicketFixture(t)
	ctx := context.Background()
	tags := []string{"billing", "vip", "billing"}
	tk := f.ticket(t, f.member, CreateTicketInput{Title: "Invoice", Tags: tags, Priority: models.TicketPriorityHigh, Type: "incident"})

	got, err := f.env.svc.Tickets.Get(ctx, f.guest, f.org.ID, tk.ID)
	require.NoError(t, err)
	assert.Equal(t, models.Tags(tags), got.Tags, "order and duplicates are kept")
	assert.Equal(t, models.TicketPriorityHigh, got.Priority)
	assert.Equal(t, "incident", got.Type)
}

func TestTicketCreate_Validation(t *testing.T) {
	f := newTicketFixture(t)
	ctx := context.Background()

	_, err := f.env.svc.Tickets.Create(ctx, f.member, f.org.ID, CreateTicketInput{Title: "   "})
	assert.Contains(t, fieldErrors(t, err), "title")

	_, err = f.env.svc.Tickets.Create(ctx, f.member, f.org.ID, CreateTicketInput{Title: "x", Priority: "critical"})
	assert.Contains(t, fieldErrors(t, err), "priority")

	_, err = f.env.svc.Tickets.Create(ctx, f.guest, f.org.ID, CreateTicketInput{Title: "x"})
	assert.ErrorIs(t, err, ErrPermission)

	outsider := f.env.user(t, "Olga", "olga@example.com")
	_, err = f.env.svc.Tickets.Create(ctx, outsider, f.org.ID, CreateTicketInput{Title: "x"})
	assert.ErrorIs(t, err, ErrPermission)
}

func TestTicketAssign(t *testing.T) {
	f := newTicketFixture(t)
	ctx := context.Background()
	tk := f.ticket(t, f.member, CreateTicketInput{Title: "Help"})
	memberRow := f.env.memberOf(t, f.org, f.member)

	assigned, err := f.env.svc.Tickets.Assign(ctx, f.owner, f.org.ID, tk.ID, &memberRow.ID)
	require.NoError(t, err)
	require.NotNil(t, assigned.AssigneeID)
	assert.Equal(t, memberRow.ID, *assigned.AssigneeID)

	// A member of another organization is not assignable.
	other := f.env.org(t, f.owner, "globex")
	foreign := f.env.memberOf(t, other, f.owner)
	_, err = f.env.svc.Tickets.Assign(ctx, f.owner, f.org.ID, tk.ID, &foreign.ID)
	assert.Contains(t, fieldErrors(t, err), "assignee_id")

	cleared, err := f.env.svc.Tickets.Assign(ctx, f.owner, f.org.ID, tk.ID, nil)
	require.NoError(t, err)
	assert.Nil(t, cleared.AssigneeID)
}

func TestTicketUpdateStatus_StampsResolvedAtOnce(t *testing.T) {
	f := newTicketFixture(t)
	ctx := context.Background()
	tk := f.ticket(t, f.member, CreateTicketInput{Title: "Help"})

	f.env.clock.Advance(time.Hour)
	resolved, err := f.env.svc.Tickets.UpdateStatus(ctx, f.member, f.org.ID, tk.ID, models.TicketStatusResolved)
	require.NoError(t, err)
	require.NotNil(t, resolved.ResolvedAt)
	firstResolved := *resolved.ResolvedAt
	assert.True(t, firstResolved.Equal(f.env.clock.Now()))

	f.env.clock.Advance(time.Hour)
	again, err := f.env.svc.Tickets.UpdateStatus(ctx, f.member, f.org.ID, tk.ID, models.TicketStatusResolved)
	require.NoError(t, err)
	assert.True(t, again.ResolvedAt.Equal(firstResolved))

	_, err = f.env.svc.Tickets.UpdateStatus(ctx, f.member, f.org.ID, tk.ID, "done")
	assert.Contains(t, fieldErrors(t, err), "status")

	_, err = f.env.svc.Tickets.UpdateStatus(ctx, f.guest, f.org.ID, tk.ID, models.TicketStatusClosed)
	assert.ErrorIs(t, err, ErrPermission)
}

func TestTicketUpdate(t *testing.T) {
	f := newTicketFixture(t)
	ctx := context.Background()
	due := f.env.clock.Now().Add(72 * time.Hour)
	tk := f.ticket(t, f.member, CreateTicketInput{Title: "Help", DueDate: &due, Tags: []string{"a"}})

	title := "Help me"
	tags := []string{"b", "c"}
	urgent := models.TicketPriorityUrgent
	updated, err := f.env.svc.Tickets.Update(ctx, f.member, f.org.ID, tk.ID, UpdateTicketInput{
		Title:    &title,
		Tags:     &tags,
		Priority: &urgent,
		ClearDue: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "Help me", updated.Title)
	assert.Equal(t, models.Tags{"b", "c"}, updated.Tags)
	assert.Equal(t, models.TicketPriorityUrgent, updated.Priority)
	assert.Nil(t, updated.DueDate)

	_, err = f.env.svc.Tickets.Update(ctx, f.member, f.org.ID, "not-a-uuid", UpdateTicketInput{Title: &title})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTicketList_FiltersAndSort(t *testing.T) {
	f := newTicketFixture(t)
	ctx := context.Background()

	low := f.ticket(t, f.member, CreateTicketInput{Title: "Slow laptop", Priority: models.TicketPriorityLow})
	f.env.clock.Advance(time.Minute)
	urgent := f.ticket(t, f.owner, CreateTicketInput{Title: "Outage", Description: "API is down", Priority: models.TicketPriorityUrgent})
	f.env.clock.Advance(time.Minute)
	medium := f.ticket(t, f.member, CreateTicketInput{Title: "Password question"})
	_, err := f.env.svc.Tickets.UpdateStatus(ctx, f.owner, f.org.ID, urgent.ID, models.TicketStatusInProgress)
	require.NoError(t, err)

	ids := func(p *TicketPage) []string {
		out := make([]string, len(p.Tickets))
		for i, tk := range p.Tickets {
			out[i] = tk.ID
		}
		return out
	}

	all, err := f.env.svc.Tickets.List(ctx, f.guest, f.org.ID, ListTicketsInput{})
	require.NoError(t, err)
	assert.Equal(t, 3, all.Total)
	assert.Equal(t, []string{medium.ID, urgent.ID, low.ID}, ids(all), "newest first by default")

	byPriority, err := f.env.svc.Tickets.List(ctx, f.guest, f.org.ID, ListTicketsInput{Sort: "priority"})
	require.NoError(t, err)
	assert.Equal(t, []string{urgent.ID, medium.ID, low.ID}, ids(byPriority))

	mine, err := f.env.svc.Tickets.List(ctx, f.member, f.org.ID, ListTicketsInput{RequesterID: "me"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{low.ID, medium.ID}, ids(mine))

	inProgress, err := f.env.svc.Tickets.List(ctx, f.member, f.org.ID, ListTicketsInput{Status: models.TicketStatusInProgress})
	require.NoError(t, err)
	assert.Equal(t, []string{urgent.ID}, ids(inProgress))

	search, err := f.env.svc.Tickets.List(ctx, f.member, f.org.ID, ListTicketsInput{Search: "api IS"})
	require.NoError(t, err)
	assert.Equal(t, []string{urgent.ID}, ids(search))

	paged, err := f.env.svc.Tickets.List(ctx, f.member, f.org.ID, ListTicketsInput{Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, 3, paged.Total)
	assert.Equal(t, []string{urgent.ID}, ids(paged))

	_, err = f.env.svc.Tickets.List(ctx, f.member, f.org.ID, ListTicketsInput{Sort: "title"})
	assert.Contains(t, fieldErrors(t, err), "sort")
}

func TestTicketStats(t *testing.T) {
	f := newTicketFixture(t)
	ctx := context.Background()

	a := f.ticket(t, f.member, CreateTicketInput{Title: "a"})
	b := f.ticket(t, f.member, CreateTicketInput{Title: "b"})
	f.ticket(t, f.member, CreateTicketInput{Title: "c"})
	_, err := f.env.svc.Tickets.UpdateStatus(ctx, f.member, f.org.ID, a.ID, models.TicketStatusInProgress)
	require.NoError(t, err)
	_, err = f.env.svc.Tickets.UpdateStatus(ctx, f.member, f.org.ID, b.ID, models.TicketStatusResolved)
	require.NoError(t, err)

	stats, err := f.env.svc.Tickets.Stats(ctx, f.guest, f.org.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TicketStats{Total: 3, Open: 1, InProgress: 1, Resolved: 1}, *stats)
}

func TestTicket_CrossOrganizationIsNotFound(t *testing.T) {
	f := newTicketFixture(t)
	ctx := context.Background()
	tk := f.ticket(t, f.member, CreateTicketInput{Title: "Help"})
	other := f.env.org(t, f.owner, "globex")

	_, err := f.env.svc.Tickets.Get(ctx, f.owner, other.ID, tk.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTicketComments(t *testing.T) {
	f := newTicketFixture(t)
	ctx := context.Background()
	tk := f.ticket(t, f.member, CreateTicketInput{Title: "Help"})

	public, err := f.env.svc.Tickets.AddComment(ctx, f.member, f.org.ID, tk.ID, AddCommentInput{Body: "Any update?"})
	require.NoError(t, err)
	assert.Equal(t, "Member", public.AuthorName)

	f.env.clock.Advance(time.Second)
	internal, err := f.env.svc.Tickets.AddComment(ctx, f.owner, f.org.ID, tk.ID, AddCommentInput{Body: "Escalating", Internal: true})
	require.NoError(t, err)

	_, err = f.env.svc.Tickets.AddComment(ctx, f.guest, f.org.ID, tk.ID, AddCommentInput{Body: "hi"})
	assert.ErrorIs(t, err, ErrPermission)
	_, err = f.env.svc.Tickets.AddComment(ctx, f.member, f.org.ID, tk.ID, AddCommentInput{Body: "  "})
	assert.Contains(t, fieldErrors(t, err), "body")

	staff, err := f.env.svc.Tickets.ListComments(ctx, f.member, f.org.ID, tk.ID)
	require.NoError(t, err)
	require.Len(t, staff, 2)
	assert.Equal(t, public.ID, staff[0].ID)
	assert.Equal(t, "Owner", staff[1].AuthorName)

	guestView, err := f.env.svc.Tickets.ListComments(ctx, f.guest, f.org.ID, tk.ID)
	require.NoError(t, err)
	require.Len(t, guestView, 1)
	assert.Equal(t, public.ID, guestView[0].ID)

	assert.ErrorIs(t, f.env.svc.Tickets.DeleteComment(ctx, f.member, f.org.ID, tk.ID, internal.ID), ErrPermission)
	require.NoError(t, f.env.svc.Tickets.DeleteComment(ctx, f.member, f.org.ID, tk.ID, public.ID))
	require.NoError(t, f.env.svc.Tickets.DeleteComment(ctx, f.owner, f.org.ID, tk.ID, internal.ID))
	assert.ErrorIs(t, f.env.svc.Tickets.DeleteComment(ctx, f.owner, f.org.ID, tk.ID, internal.ID), ErrNotFound)
}

func countFiles(t *testing.T, dir string) int {
	t.Helper()
	n := 0
	err := filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			n++
		}
		return nil
	})
	require.NoError(t, err)
	return n
}

func TestTicketAttachments(t *testing.T) {
	f := newTicketFixture(t)
	ctx := context.Background()
	tk := f.ticket(t, f.member, CreateTicketInput{Title: "Logs attached"})

	att, err := f.env.svc.Tickets.UploadAttachment(ctx, f.member, f.org.ID, tk.ID, UploadInput{
		FileName:    "../../etc/server log.txt",
		ContentType: "text/plain",
		Size:        -1,
		Body:        strings.NewReader("line one\nline two\n"),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(18), att.SizeBytes)
	assert.NotEmpty(t, att.Checksum)
	assert.NotContains(t, att.FileName, "/")
	assert.True(t, strings.HasPrefix(att.StoragePath, "orgs/"+f.org.ID+"/tickets/"+tk.ID+"/"+att.ID+"/"))

	list, err := f.env.svc.Tickets.ListAttachments(ctx, f.guest, f.org.ID, tk.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)

	_, url, err := f.env.svc.Tickets.AttachmentURL(ctx, f.guest, f.org.ID, tk.ID, att.ID)
	require.NoError(t, err)
	assert.Empty(t, url, "local storage is streamed by the API")

	_, rc, err := f.env.svc.Tickets.OpenAttachment(ctx, f.guest, f.org.ID, tk.ID, att.ID)
	require.NoError(t, err)
	content, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two\n", string(content))

	assert.ErrorIs(t, f.env.svc.Tickets.DeleteAttachment(ctx, f.guest, f.org.ID, tk.ID, att.ID), ErrPermission)
	require.NoError(t, f.env.svc.Tickets.DeleteAttachment(ctx, f.member, f.org.ID, tk.ID, att.ID))
	assert.Zero(t, countFiles(t, f.env.dir))
}

func TestTicketAttachments_SizeLimit(t *testing.T) {
	f := newTicketFixture(t)
	ctx := context.Background()
	tk := f.ticket(t, f.member, CreateTicketInput{Title: "Big file"})
	big := strings.Repeat("x", 1<<10+1)

	_, err := f.env.svc.Tickets.UploadAttachment(ctx, f.member, f.org.ID, tk.ID, UploadInput{
		FileName: "big.bin", Size: int64(len(big)), Body: strings.NewReader(big),
	})
	assert.Contains(t, fieldErrors(t, err), "file", "declared size is checked up front")

	_, err = f.env.svc.Tickets.UploadAttachment(ctx, f.member, f.org.ID, tk.ID, UploadInput{
		FileName: "big.bin", Size: -1, Body: strings.NewReader(big),
	})
	assert.Contains(t, fieldErrors(t, err), "file", "undeclared size is enforced while streaming")
	assert.Zero(t, countFiles(t, f.env.dir), "a rejected upload leaves nothing behind")

	exact := strings.Repeat("x", 1<<10)
	att, err := f.env.svc.Tickets.UploadAttachment(ctx, f.member, f.org.ID, tk.ID, UploadInput{
		FileName: "exact.bin", Size: -1, Body: strings.NewReader(exact),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1<<10), att.SizeBytes)
}

func TestTicketDelete_RemovesStoredFiles(t *testing.T) {
	f := newTicketFixture(t)
	ctx := context.Background()
	tk := f.ticket(t, f.member, CreateTicketInput{Title: "Cleanup"})

	for _, name := range []string{"a.txt", "b.txt"} {
		_, err := f.env.svc.Tickets.UploadAttachment(ctx, f.member, f.org.ID, tk.ID, UploadInput{
			FileName: name, Size: -1, Body: strings.NewReader(name),
		})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, countFiles(t, f.env.dir))

	assert.ErrorIs(t, f.env.svc.Tickets.Delete(ctx, f.member, f.org.ID, tk.ID), ErrPermission)
	require.NoError(t, f.env.svc.Tickets.Delete(ctx, f.owner, f.org.ID, tk.ID))
	assert.Zero(t, countFiles(t, f.env.dir))

	_, err := f.env.svc.Tickets.Get(ctx, f.owner, f.org.ID, tk.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
