package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/helporbit/helporbit/internal/auth"
	"github.com/helporbit/helporbit/internal/cache"
	"github.com/helporbit/helporbit/internal/db/models"
	"github.com/helporbit/helporbit/internal/storage"
	"github.com/helporbit/helporbit/internal/telemetry"
)

const defaultTicketType = "question"

// TicketService manages tickets with their comments and attachments.
type TicketService struct {
	base
	tickets     TicketStore
	comments    CommentStore
	attachments AttachmentStore
	users       UserStore

	storage        storage.Storage
	storageBackend string
	maxUploadBytes int64
	urlTTL         time.Duration
}

func newTicketService(b base, deps Dependencies, opts Options) *TicketService {
	urlTTL := opts.AttachmentURLTTL
	if urlTTL <= 0 {
		urlTTL = 15 * time.Minute
	}
	return &TicketService{
		base:           b,
		tickets:        deps.Stores.Tickets,
		comments:       deps.Stores.Comments,
		attachments:    deps.Stores.Attachments,
		users:          deps.Stores.Users,
		storage:        deps.Storage,
		storageBackend: opts.StorageBackend,
		maxUploadBytes: opts.MaxAttachmentBytes,
		urlTTL:         urlTTL,
	}
}

// CreateTicketInput is the body of a ticket create request.
type CreateTicketInput struct {
	Title       string                `json:"title" validate:"required,max=200"`
	Description string                `json:"description" validate:"max=20000"`
	Priority    models.TicketPriority `json:"priority" validate:"omitempty,ticket_priority"`
	Type        string                `json:"type" validate:"max=50"`
	Tags        []string              `json:"tags" validate:"max=20,dive,required,max=50"`
	AssigneeID  *string               `json:"assignee_id" validate:"omitempty,uuid"`
	DueDate     *time.Time            `json:"due_date"`
}

// UpdateTicketInput changes the non-nil fields. Status and assignee have
// their own operations.
type UpdateTicketInput struct {
	Title       *string                `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string                `json:"description" validate:"omitempty,max=20000"`
	Priority    *models.TicketPriority `json:"priority" validate:"omitempty,ticket_priority"`
	Type        *string                `json:"type" validate:"omitempty,max=50"`
	Tags        *[]string              `json:"tags" validate:"omitempty,max=20,dive,required,max=50"`
	DueDate     *time.Time             `json:"due_date"`
	ClearDue    bool                   `json:"clear_due_date"`
}

// ListTicketsInput filters and pages a ticket list.
type ListTicketsInput struct {
	Status     models.TicketStatus   `form:"status" validate:"omitempty,ticket_status"`
	Priority   models.TicketPriority `form:"priority" validate:"omitempty,ticket_priority"`
	AssigneeID string                `form:"assignee_id" validate:"omitempty,uuid"`
	// RequesterID "me" stands for the actor.
	RequesterID string `form:"requester_id" validate:"omitempty,uuid|eq=me"`
	Search      string `form:"q" validate:"max=200"`
	Sort        string `form:"sort" validate:"omitempty,oneof=created_at -created_at updated_at -updated_at priority -priority"`
	Limit       int    `form:"limit"`
	Offset      int    `form:"offset"`
}

// TicketPage is one page of a filtered ticket list.
type TicketPage struct {
	Tickets []*models.Ticket `json:"tickets"`
	Total   int              `json:"total"`
	Limit   int              `json:"limit"`
	Offset  int              `json:"offset"`
}

// Create opens a ticket requested by the actor.
func (s *TicketService) Create(ctx context.Context, actor Actor, orgID string, in CreateTicketInput) (*models.Ticket, error) {
	if _, err := s.authorize(ctx, actor, orgID, auth.CategoryTicket, auth.ActionCreate); err != nil {
		return nil, err
	}
	in.Title = strings.TrimSpace(in.Title)
	if err := validate(in); err != nil {
		return nil, err
	}
	if in.AssigneeID != nil {
		if err := s.checkAssignee(ctx, orgID, *in.AssigneeID); err != nil {
			return nil, err
		}
	}

	now := s.now()
	t := &models.Ticket{
		ID:             uuid.New().String(),
		OrganizationID: orgID,
		Title:          in.Title,
		Description:    in.Description,
		Status:         models.TicketStatusOpen,
		Priority:       in.Priority,
		Type:           strings.TrimSpace(in.Type),
		Tags:           models.Tags(in.Tags),
		RequesterID:    actor.UserID,
		AssigneeID:     in.AssigneeID,
		DueDate:        in.DueDate,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if t.Priority == "" {
		t.Priority = models.TicketPriorityMedium
	}
	if t.Type == "" {
		t.Type = defaultTicketType
	}
	if t.Tags == nil {
		t.Tags = models.Tags{}
	}
	if err := s.tickets.Create(ctx, t); err != nil {
		return nil, err
	}

	telemetry.TicketOperationsTotal.WithLabelValues("create").Inc()
	s.revalidate(ctx, cache.TicketsTag(orgID))
	return t, nil
}

// Get returns one ticket of the organization.
func (s *TicketService) Get(ctx context.Context, actor Actor, orgID, ticketID string) (*models.Ticket, error) {
	if _, err := s.authorize(ctx, actor, orgID, auth.CategoryTicket, auth.ActionRead); err != nil {
		return nil, err
	}
	return s.load(ctx, orgID, ticketID)
}

func (s *TicketService) load(ctx context.Context, orgID, ticketID string) (*models.Ticket, error) {
	if _, err := uuid.Parse(ticketID); err != nil {
		return nil, ErrNotFound
	}
	t, err := s.tickets.GetByID(ctx, orgID, ticketID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrNotFound
	}
	return t, nil
}

// List returns a filtered page of tickets.
func (s *TicketService) List(ctx context.Context, actor Actor, orgID string, in ListTicketsInput) (*TicketPage, error) {
	if _, err := s.authorize(ctx, actor, orgID, auth.CategoryTicket, auth.ActionRead); err != nil {
		return nil, err
	}
	if err := validate(in); err != nil {
		return nil, err
	}
	limit, offset := page(in.Limit, in.Offset, 25, 100)
	filter := models.TicketFilter{
		OrganizationID: orgID,
		Status:         in.Status,
		Priority:       in.Priority,
		AssigneeID:     in.AssigneeID,
		RequesterID:    in.RequesterID,
		Search:         strings.TrimSpace(in.Search),
		Limit:          limit,
		Offset:         offset,
		Sort:           in.Sort,
	}
	if filter.RequesterID == "me" {
		filter.RequesterID = actor.UserID
	}

	tickets, total, err := s.tickets.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &TicketPage{Tickets: tickets, Total: total, Limit: limit, Offset: offset}, nil
}

// Update edits a ticket's content fields.
func (s *TicketService) Update(ctx context.Context, actor Actor, orgID, ticketID string, in UpdateTicketInput) (*models.Ticket, error) {
	if _, err := s.authorize(ctx, actor, orgID, auth.CategoryTicket, auth.ActionUpdate); err != nil {
		return nil, err
	}
	if err := validate(in); err != nil {
		return nil, err
	}
	t, err := s.load(ctx, orgID, ticketID)
	if err != nil {
		return nil, err
	}

	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return nil, invalidField("title", "is required")
		}
		t.Title = title
	}
	if in.Description != nil {
		t.Description = *in.Description
	}
	if in.Priority != nil {
		t.Priority = *in.Priority
	}
	if in.Type != nil {
		t.Type = strings.TrimSpace(*in.Type)
		if t.Type == "" {
			t.Type = defaultTicketType
		}
	}
	if in.Tags != nil {
		t.Tags = models.Tags(*in.Tags)
		if t.Tags == nil {
			t.Tags = models.Tags{}
		}
	}
	if in.ClearDue {
		t.DueDate = nil
	} else if in.DueDate != nil {
		t.DueDate = in.DueDate
	}
	t.UpdatedAt = s.now()

	return t, s.save(ctx, t, "update")
}

// Assign sets or clears (assigneeID nil) the ticket's assignee, which must
// be a member of the same organization.
func (s *TicketService) Assign(ctx context.Context, actor Actor, orgID, ticketID string, assigneeID *string) (*models.Ticket, error) {
	if _, err := s.authorize(ctx, actor, orgID, auth.CategoryTicket, auth.ActionUpdate); err != nil {
		return nil, err
	}
	t, err := s.load(ctx, orgID, ticketID)
	if err != nil {
		return nil, err
	}
	if assigneeID != nil && *assigneeID == "" {
		assigneeID = nil
	}
	if assigneeID != nil {
		if err := s.checkAssignee(ctx, orgID, *assigneeID); err != nil {
			return nil, err
		}
	}
	t.AssigneeID = assigneeID
	t.UpdatedAt = s.now()

	return t, s.save(ctx, t, "assign")
}

// UpdateStatus moves the ticket to status. Entering resolved stamps
// ResolvedAt.
func (s *TicketService) UpdateStatus(ctx context.Context, actor Actor, orgID, ticketID string, status models.TicketStatus) (*models.Ticket, error) {
	if _, err := s.authorize(ctx, actor, orgID, auth.CategoryTicket, auth.ActionUpdate); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, invalidField("status", "must be one of: open, in_progress, waiting_for_customer, resolved, closed")
	}
	t, err := s.load(ctx, orgID, ticketID)
	if err != nil {
		return nil, err
	}
	t.SetStatus(status, s.now())

	return t, s.save(ctx, t, "status")
}

func (s *TicketService) save(ctx context.Context, t *models.Ticket, action string) error {
	if err := s.tickets.Update(ctx, t); err != nil {
		return translate(err)
	}
	telemetry.TicketOperationsTotal.WithLabelValues(action).Inc()
	s.revalidate(ctx, cache.TicketsTag(t.OrganizationID))
	return nil
}

func (s *TicketService) checkAssignee(ctx context.Context, orgID, memberID string) error {
	if _, err := uuid.Parse(memberID); err != nil {
		return invalidField("assignee_id", "must be a member of this organization")
	}
	m, err := s.members.GetByID(ctx, orgID, memberID)
	if err != nil {
		return err
	}
	if m == nil {
		return invalidField("assignee_id", "must be a member of this organization")
	}
	return nil
}

// Delete removes a ticket and the stored files of its attachments.
func (s *TicketService) Delete(ctx context.Context, actor Actor, orgID, ticketID string) error {
	if _, err := s.authorize(ctx, actor, orgID, auth.CategoryTicket, auth.ActionDelete); err != nil {
		return err
	}
	t, err := s.load(ctx, orgID, ticketID)
	if err != nil {
		return err
	}
	atts, err := s.attachments.List(ctx, t.ID)
	if err != nil {
		return err
	}
	if err := s.tickets.Delete(ctx, orgID, t.ID); err != nil {
		return translate(err)
	}
	for _, a := range atts {
		s.removeObject(ctx, a)
	}

	telemetry.TicketOperationsTotal.WithLabelValues("delete").Inc()
	s.revalidate(ctx, cache.TicketsTag(orgID))
	return nil
}

// Stats counts the organization's tickets. The four counts run concurrently.
func (s *TicketService) Stats(ctx context.Context, actor Actor, orgID string) (*models.TicketStats, error) {
	if _, err := s.authorize(ctx, actor, orgID, auth.CategoryTicket, auth.ActionRead); err != nil {
		return nil, err
	}

	stats := &models.TicketStats{}
	g, gctx := errgroup.WithContext(ctx)
	count := func(dst *int, status models.TicketStatus) {
		g.Go(func() error {
			n, err := s.tickets.Count(gctx, orgID, status)
			if err != nil {
				return err
			}
			*dst = n
			return nil
		})
	}
	count(&stats.Total, "")
	count(&stats.Open, models.TicketStatusOpen)
	count(&stats.InProgress, models.TicketStatusInProgress)
	count(&stats.Resolved, models.TicketStatusResolved)
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to compute ticket stats: %w", err)
	}
	return stats, nil
}

// AddCommentInput is the body of a comment.
type AddCommentInput struct {
	Body     string `json:"body" validate:"required,max=20000"`
	Internal bool   `json:"internal"`
}

// AddComment posts a comment on a ticket. Internal comments need a role
// above guest.
func (s *TicketService) AddComment(ctx context.Context, actor Actor, orgID, ticketID string, in AddCommentInput) (*models.TicketComment, error) {
	m, err := s.authorize(ctx, actor, orgID, auth.CategoryTicket, auth.ActionUpdate)
	if err != nil {
		return nil, err
	}
	in.Body = strings.TrimSpace(in.Body)
	if err := validate(in); err != nil {
		return nil, err
	}
	if in.Internal && m.Role == models.RoleGuest {
		return nil, ErrPermission
	}
	t, err := s.load(ctx, orgID, ticketID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	c := &models.TicketComment{
		ID:         uuid.New().String(),
		TicketID:   t.ID,
		AuthorID:   actor.UserID,
		Body:       in.Body,
		IsInternal: in.Internal,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.comments.Create(ctx, c); err != nil {
		return nil, err
	}
	if u, err := s.users.GetUserByID(ctx, actor.UserID); err == nil && u != nil {
		c.AuthorName = u.Name
	}

	telemetry.TicketOperationsTotal.WithLabelValues("comment").Inc()
	s.revalidate(ctx, cache.TicketsTag(orgID))
	return c, nil
}

// ListComments returns a ticket's comments in posting order. Guests do not
// see internal comments.
func (s *TicketService) ListComments(ctx context.Context, actor Actor, orgID, ticketID string) ([]*models.TicketComment, error) {
	m, err := s.authorize(ctx, actor, orgID, auth.CategoryTicket, auth.ActionRead)
	if err != nil {
		return nil, err
	}
	t, err := s.load(ctx, orgID, ticketID)
	if err != nil {
		return nil, err
	}
	return s.comments.List(ctx, t.ID, m.Role != models.RoleGuest)
}

// DeleteComment removes a comment. Authors may delete their own; anyone
// else needs ticket delete permission.
func (s *TicketService) DeleteComment(ctx context.Context, actor Actor, orgID, ticketID, commentID string) error {
	m, err := s.membership(ctx, actor, orgID)
	if err != nil {
		return err
	}
	t, err := s.load(ctx, orgID, ticketID)
	if err != nil {
		return err
	}
	if _, err := uuid.Parse(commentID); err != nil {
		return ErrNotFound
	}
	c, err := s.comments.GetByID(ctx, t.ID, commentID)
	if err != nil {
		return err
	}
	if c == nil {
		return ErrNotFound
	}
	if c.AuthorID != actor.UserID && !auth.Can(m.Role, auth.CategoryTicket, auth.ActionDelete) {
		return ErrPermission
	}
	if err := s.comments.Delete(ctx, t.ID, c.ID); err != nil {
		return translate(err)
	}
	s.revalidate(ctx, cache.TicketsTag(orgID))
	return nil
}

// UploadInput describes one attachment upload. Size is the declared length,
// or -1 when unknown; the stream is limited either way.
type UploadInput struct {
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
}

var errUploadTooLarge = errors.New("upload exceeds the size limit")

// limitedReader fails once more than n bytes have been read.
type limitedReader struct {
	r io.Reader
	n int64
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.n < 0 {
		return 0, errUploadTooLarge
	}
	if int64(len(p)) > l.n+1 {
		p = p[:l.n+1]
	}
	n, err := l.r.Read(p)
	l.n -= int64(n)
	if l.n < 0 {
		return n, errUploadTooLarge
	}
	return n, err
}

func (s *TicketService) tooLarge() *ValidationError {
	return invalidField("file", fmt.Sprintf("must be at most %d MB", s.maxUploadBytes>>20))
}

// UploadAttachment streams a file into the storage backend under
// orgs/{org}/tickets/{ticket}/{attachment}/{file} and records it.
func (s *TicketService) UploadAttachment(ctx context.Context, actor Actor, orgID, ticketID string, in UploadInput) (*models.TicketAttachment, error) {
	if _, err := s.authorize(ctx, actor, orgID, auth.CategoryTicket, auth.ActionUpdate); err != nil {
		return nil, err
	}
	t, err := s.load(ctx, orgID, ticketID)
	if err != nil {
		return nil, err
	}
	if in.Body == nil {
		return nil, invalidField("file", "is required")
	}
	if s.maxUploadBytes > 0 && in.Size > s.maxUploadBytes {
		return nil, s.tooLarge()
	}

	contentType := in.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	name := storage.SanitizeFileName(in.FileName)
	a := &models.TicketAttachment{
		ID:             uuid.New().String(),
		TicketID:       t.ID,
		UploaderID:     actor.UserID,
		FileName:       name,
		ContentType:    contentType,
		StorageBackend: s.storageBackend,
		CreatedAt:      s.now(),
	}
	a.StoragePath = storage.AttachmentPath(orgID, t.ID, a.ID, name)

	body := in.Body
	if s.maxUploadBytes > 0 {
		body = &limitedReader{r: in.Body, n: s.maxUploadBytes}
	}
	res, err := s.storage.Upload(ctx, a.StoragePath, body, contentType)
	if err != nil {
		if errors.Is(err, errUploadTooLarge) {
			s.removeObject(ctx, a)
			return nil, s.tooLarge()
		}
		return nil, fmt.Errorf("failed to store attachment: %w", err)
	}
	a.SizeBytes = res.Size
	a.Checksum = res.Checksum

	if err := s.attachments.Create(ctx, a); err != nil {
		s.removeObject(ctx, a)
		return nil, err
	}

	s.logger.Info("attachment uploaded",
		"org_id", orgID, "ticket_id", t.ID, "attachment_id", a.ID, "size", a.SizeBytes)
	telemetry.TicketOperationsTotal.WithLabelValues("attach").Inc()
	s.revalidate(ctx, cache.TicketsTag(orgID))
	return a, nil
}

// ListAttachments returns a ticket's attachments.
func (s *TicketService) ListAttachments(ctx context.Context, actor Actor, orgID, ticketID string) ([]*models.TicketAttachment, error) {
	if _, err := s.authorize(ctx, actor, orgID, auth.CategoryTicket, auth.ActionRead); err != nil {
		return nil, err
	}
	t, err := s.load(ctx, orgID, ticketID)
	if err != nil {
		return nil, err
	}
	return s.attachments.List(ctx, t.ID)
}

func (s *TicketService) attachment(ctx context.Context, actor Actor, orgID, ticketID, attachmentID string, action auth.Action) (*models.Member, *models.TicketAttachment, error) {
	m, err := s.membership(ctx, actor, orgID)
	if err != nil {
		return nil, nil, err
	}
	if action == auth.ActionRead && !auth.Can(m.Role, auth.CategoryTicket, auth.ActionRead) {
		return nil, nil, ErrPermission
	}
	t, err := s.load(ctx, orgID, ticketID)
	if err != nil {
		return nil, nil, err
	}
	if _, err := uuid.Parse(attachmentID); err != nil {
		return nil, nil, ErrNotFound
	}
	a, err := s.attachments.GetByID(ctx, t.ID, attachmentID)
	if err != nil {
		return nil, nil, err
	}
	if a == nil {
		return nil, nil, ErrNotFound
	}
	return m, a, nil
}

// AttachmentURL returns a time-limited download URL for an attachment, or ""
// when the backend cannot sign URLs and the API must stream the file.
func (s *TicketService) AttachmentURL(ctx context.Context, actor Actor, orgID, ticketID, attachmentID string) (*models.TicketAttachment, string, error) {
	_, a, err := s.attachment(ctx, actor, orgID, ticketID, attachmentID, auth.ActionRead)
	if err != nil {
		return nil, "", err
	}
	url, err := s.storage.GetURL(ctx, a.StoragePath, s.urlTTL)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, "", ErrNotFound
		}
		return nil, "", err
	}
	return a, url, nil
}

// OpenAttachment streams an attachment's content. The caller closes it.
func (s *TicketService) OpenAttachment(ctx context.Context, actor Actor, orgID, ticketID, attachmentID string) (*models.TicketAttachment, io.ReadCloser, error) {
	_, a, err := s.attachment(ctx, actor, orgID, ticketID, attachmentID, auth.ActionRead)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.storage.Download(ctx, a.StoragePath)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}
	return a, rc, nil
}

// DeleteAttachment removes an attachment. Uploaders may delete their own;
// anyone else needs ticket delete permission.
func (s *TicketService) DeleteAttachment(ctx context.Context, actor Actor, orgID, ticketID, attachmentID string) error {
	m, a, err := s.attachment(ctx, actor, orgID, ticketID, attachmentID, auth.ActionDelete)
	if err != nil {
		return err
	}
	if a.UploaderID != actor.UserID && !auth.Can(m.Role, auth.CategoryTicket, auth.ActionDelete) {
		return ErrPermission
	}
	if err := s.attachments.Delete(ctx, a.TicketID, a.ID); err != nil {
		return translate(err)
	}
	s.removeObject(ctx, a)
	s.revalidate(ctx, cache.TicketsTag(orgID))
	return nil
}

func (s *TicketService) removeObject(ctx context.Context, a *models.TicketAttachment) {
	if err := s.storage.Delete(ctx, a.StoragePath); err != nil {
		s.logger.Warn("failed to delete stored attachment",
			"attachment_id", a.ID, "path", a.StoragePath, "error", err)
	}
}
