// Package memstore is an in-memory implementation of the service store
// interfaces for tests. It enforces the same uniqueness rules, owner
// protection and pending-only invitation transitions as the PostgreSQL
// schema, and returns the same repository sentinel errors.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/helporbit/helporbit/internal/db/models"
	"github.com/helporbit/helporbit/internal/db/repositories"
)

// Store holds every table behind one lock.
type Store struct {
	mu            sync.Mutex
	users         map[string]*models.User
	orgs          map[string]*models.Organization
	members       map[string]*models.Member
	invitations   map[string]*models.Invitation
	tickets       map[string]*models.Ticket
	comments      map[string]*models.TicketComment
	attachments   map[string]*models.TicketAttachment
	verifications map[string]*models.Verification
	auditLogs     []*models.AuditLog
}

// New returns an empty store.
func New() *Store {
	return &Store{
		users:         map[string]*models.User{},
		orgs:          map[string]*models.Organization{},
		members:       map[string]*models.Member{},
		invitations:   map[string]*models.Invitation{},
		tickets:       map[string]*models.Ticket{},
		comments:      map[string]*models.TicketComment{},
		attachments:   map[string]*models.TicketAttachment{},
		verifications: map[string]*models.Verification{},
	}
}

// Users returns the users table view.
func (s *Store) Users() Users { return Users{s} }

// Organizations returns the organizations table view.
func (s *Store) Organizations() Organizations { return Organizations{s} }

// Members returns the members table view.
func (s *Store) Members() Members { return Members{s} }

// Invitations returns the invitations table view.
func (s *Store) Invitations() Invitations { return Invitations{s} }

// Tickets returns the tickets table view.
func (s *Store) Tickets() Tickets { return Tickets{s} }

// Comments returns the ticket comments table view.
func (s *Store) Comments() Comments { return Comments{s} }

// Attachments returns the ticket attachments table view.
func (s *Store) Attachments() Attachments { return Attachments{s} }

// Verifications returns the verification tokens table view.
func (s *Store) Verifications() Verifications { return Verifications{s} }

// AuditLogs returns the audit trail view.
func (s *Store) AuditLogs() AuditLogs { return AuditLogs{s} }

func clone[T any](v *T) *T {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// ---------------------------------------------------------------------------
// Users
// ---------------------------------------------------------------------------

type Users struct{ s *Store }

func (u Users) CreateUser(_ context.Context, user *models.User) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	for _, existing := range u.s.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return repositories.ErrDuplicateEmail
		}
	}
	u.s.users[user.ID] = clone(user)
	return nil
}

func (u Users) GetUserByID(_ context.Context, id string) (*models.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	return clone(u.s.users[id]), nil
}

func (u Users) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	return clone(u.s.userByEmail(email)), nil
}

func (s *Store) userByEmail(email string) *models.User {
	for _, user := range s.users {
		if strings.EqualFold(user.Email, email) {
			return user
		}
	}
	return nil
}

func (u Users) update(id string, fn func(*models.User)) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	user, ok := u.s.users[id]
	if !ok {
		return repositories.ErrNotFound
	}
	fn(user)
	return nil
}

func (u Users) UpdatePassword(_ context.Context, id, hash string, now time.Time) error {
	return u.update(id, func(user *models.User) { user.PasswordHash = hash; user.UpdatedAt = now })
}

func (u Users) MarkEmailVerified(_ context.Context, id string, now time.Time) error {
	return u.update(id, func(user *models.User) { user.EmailVerified = true; user.UpdatedAt = now })
}

func (u Users) SetActiveOrganization(_ context.Context, id string, orgID *string, now time.Time) error {
	return u.update(id, func(user *models.User) { user.ActiveOrganizationID = clone(orgID); user.UpdatedAt = now })
}

// ---------------------------------------------------------------------------
// Organizations
// ---------------------------------------------------------------------------

type Organizations struct{ s *Store }

func (o Organizations) CreateWithOwner(_ context.Context, org *models.Organization, owner *models.Member) error {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	for _, existing := range o.s.orgs {
		if existing.Slug == org.Slug {
			return repositories.ErrDuplicateSlug
		}
	}
	o.s.orgs[org.ID] = clone(org)
	m := clone(owner)
	m.OrganizationID = org.ID
	o.s.members[m.ID] = m
	return nil
}

func (o Organizations) GetByID(_ context.Context, id string) (*models.Organization, error) {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	return clone(o.s.orgs[id]), nil
}

func (o Organizations) GetBySlug(_ context.Context, slug string) (*models.Organization, error) {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	for _, org := range o.s.orgs {
		if org.Slug == slug {
			return clone(org), nil
		}
	}
	return nil, nil
}

func (o Organizations) SlugExists(ctx context.Context, slug string) (bool, error) {
	org, err := o.GetBySlug(ctx, slug)
	return org != nil, err
}

func (o Organizations) Update(_ context.Context, org *models.Organization) error {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	if _, ok := o.s.orgs[org.ID]; !ok {
		return repositories.ErrNotFound
	}
	for _, existing := range o.s.orgs {
		if existing.ID != org.ID && existing.Slug == org.Slug {
			return repositories.ErrDuplicateSlug
		}
	}
	o.s.orgs[org.ID] = clone(org)
	return nil
}

// Delete cascades to members, invitations and tickets like the schema does.
func (o Organizations) Delete(_ context.Context, id string) error {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	if _, ok := o.s.orgs[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(o.s.orgs, id)
	for mid, m := range o.s.members {
		if m.OrganizationID == id {
			delete(o.s.members, mid)
		}
	}
	for iid, inv := range o.s.invitations {
		if inv.OrganizationID == id {
			delete(o.s.invitations, iid)
		}
	}
	for tid, t := range o.s.tickets {
		if t.OrganizationID == id {
			o.s.deleteTicket(tid)
		}
	}
	for _, user := range o.s.users {
		if user.ActiveOrganizationID != nil && *user.ActiveOrganizationID == id {
			user.ActiveOrganizationID = nil
		}
	}
	return nil
}

func (o Organizations) SearchPublic(_ context.Context, term string, limit, offset int) ([]*models.Organization, error) {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	term = strings.ToLower(term)
	out := make([]*models.Organization, 0)
	for _, org := range o.s.orgs {
		if !org.IsPublic {
			continue
		}
		if strings.Contains(strings.ToLower(org.Name), term) ||
			strings.Contains(strings.ToLower(org.Slug), term) ||
			strings.Contains(strings.ToLower(org.Metadata.Domain()), term) {
			out = append(out, clone(org))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return window(out, limit, offset), nil
}

func (o Organizations) ListForUser(_ context.Context, userID string) ([]*models.UserMembership, error) {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	out := make([]*models.UserMembership, 0)
	for _, m := range o.s.members {
		if m.UserID != userID {
			continue
		}
		org := o.s.orgs[m.OrganizationID]
		if org == nil {
			continue
		}
		out = append(out, &models.UserMembership{
			MemberID:         m.ID,
			OrganizationID:   org.ID,
			OrganizationName: org.Name,
			OrganizationSlug: org.Slug,
			Logo:             clone(org.Logo),
			Role:             m.Role,
			CreatedAt:        m.CreatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrganizationName < out[j].OrganizationName })
	return out, nil
}

func window[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return items[:0]
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// ---------------------------------------------------------------------------
// Members
// ---------------------------------------------------------------------------

type Members struct{ s *Store }

func (s *Store) memberOf(orgID, userID string) *models.Member {
	for _, m := range s.members {
		if m.OrganizationID == orgID && m.UserID == userID {
			return m
		}
	}
	return nil
}

func (mb Members) Create(_ context.Context, m *models.Member) error {
	mb.s.mu.Lock()
	defer mb.s.mu.Unlock()
	if mb.s.memberOf(m.OrganizationID, m.UserID) != nil {
		return repositories.ErrDuplicateMember
	}
	mb.s.members[m.ID] = clone(m)
	return nil
}

func (mb Members) GetByID(_ context.Context, orgID, memberID string) (*models.Member, error) {
	mb.s.mu.Lock()
	defer mb.s.mu.Unlock()
	m := mb.s.members[memberID]
	if m == nil || m.OrganizationID != orgID {
		return nil, nil
	}
	return clone(m), nil
}

func (mb Members) GetByUser(_ context.Context, orgID, userID string) (*models.Member, error) {
	mb.s.mu.Lock()
	defer mb.s.mu.Unlock()
	return clone(mb.s.memberOf(orgID, userID)), nil
}

func (mb Members) GetByEmail(_ context.Context, orgID, email string) (*models.Member, error) {
	mb.s.mu.Lock()
	defer mb.s.mu.Unlock()
	user := mb.s.userByEmail(email)
	if user == nil {
		return nil, nil
	}
	return clone(mb.s.memberOf(orgID, user.ID)), nil
}

func (mb Members) List(_ context.Context, orgID string, opts models.MemberListOptions) ([]*models.MemberWithUser, error) {
	mb.s.mu.Lock()
	defer mb.s.mu.Unlock()
	out := make([]*models.MemberWithUser, 0)
	for _, m := range mb.s.members {
		if m.OrganizationID != orgID {
			continue
		}
		mw := &models.MemberWithUser{Member: *m}
		if user := mb.s.users[m.UserID]; user != nil {
			mw.UserName = user.Name
			mw.UserEmail = user.Email
			mw.UserImage = clone(user.Image)
			mw.EmailVerified = user.EmailVerified
		}
		out = append(out, mw)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if opts.Descending {
			a, b = b, a
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return window(out, opts.Limit, opts.Offset), nil
}

func (mb Members) Count(_ context.Context, orgID string) (int, error) {
	mb.s.mu.Lock()
	defer mb.s.mu.Unlock()
	n := 0
	for _, m := range mb.s.members {
		if m.OrganizationID == orgID {
			n++
		}
	}
	return n, nil
}

func (s *Store) owners(orgID string) int {
	n := 0
	for _, m := range s.members {
		if m.OrganizationID == orgID && m.Role == models.RoleOwner {
			n++
		}
	}
	return n
}

func (mb Members) UpdateRole(_ context.Context, orgID, memberID string, role models.Role) error {
	mb.s.mu.Lock()
	defer mb.s.mu.Unlock()
	m := mb.s.members[memberID]
	if m == nil || m.OrganizationID != orgID {
		return repositories.ErrNotFound
	}
	if m.Role == models.RoleOwner && role != models.RoleOwner && mb.s.owners(orgID) <= 1 {
		return repositories.ErrLastOwner
	}
	m.Role = role
	return nil
}

func (mb Members) Delete(_ context.Context, orgID, memberID string) error {
	mb.s.mu.Lock()
	defer mb.s.mu.Unlock()
	m := mb.s.members[memberID]
	if m == nil || m.OrganizationID != orgID {
		return repositories.ErrNotFound
	}
	if m.Role == models.RoleOwner && mb.s.owners(orgID) <= 1 {
		return repositories.ErrLastOwner
	}
	delete(mb.s.members, memberID)
	return nil
}

// ---------------------------------------------------------------------------
// Invitations
// ---------------------------------------------------------------------------

type Invitations struct{ s *Store }

func (iv Invitations) Create(_ context.Context, inv *models.Invitation) error {
	iv.s.mu.Lock()
	defer iv.s.mu.Unlock()
	iv.s.invitations[inv.ID] = clone(inv)
	return nil
}

func (iv Invitations) GetByID(_ context.Context, id string) (*models.Invitation, error) {
	iv.s.mu.Lock()
	defer iv.s.mu.Unlock()
	return clone(iv.s.invitations[id]), nil
}

func (s *Store) details(inv *models.Invitation) *models.InvitationDetails {
	d := &models.InvitationDetails{Invitation: *inv}
	if org := s.orgs[inv.OrganizationID]; org != nil {
		d.OrganizationName = org.Name
		d.OrganizationSlug = org.Slug
	}
	if inv.InviterID != nil {
		if m := s.members[*inv.InviterID]; m != nil {
			if user := s.users[m.UserID]; user != nil {
				d.InviterName = clone(&user.Name)
				d.InviterEmail = clone(&user.Email)
			}
		}
	}
	return d
}

func (iv Invitations) GetDetails(_ context.Context, id string) (*models.InvitationDetails, error) {
	iv.s.mu.Lock()
	defer iv.s.mu.Unlock()
	inv := iv.s.invitations[id]
	if inv == nil {
		return nil, nil
	}
	return iv.s.details(inv), nil
}

func (iv Invitations) list(keep func(*models.Invitation) bool) []*models.InvitationDetails {
	iv.s.mu.Lock()
	defer iv.s.mu.Unlock()
	out := make([]*models.InvitationDetails, 0)
	for _, inv := range iv.s.invitations {
		if keep(inv) {
			out = append(out, iv.s.details(inv))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (iv Invitations) ListByOrganization(_ context.Context, orgID string) ([]*models.InvitationDetails, error) {
	return iv.list(func(inv *models.Invitation) bool { return inv.OrganizationID == orgID }), nil
}

func (iv Invitations) ListPendingByEmail(_ context.Context, email string) ([]*models.InvitationDetails, error) {
	return iv.list(func(inv *models.Invitation) bool {
		return inv.Status == models.InvitationStatusPending && strings.EqualFold(inv.Email, email)
	}), nil
}

func (iv Invitations) FindPending(_ context.Context, orgID, email string) (*models.Invitation, error) {
	iv.s.mu.Lock()
	defer iv.s.mu.Unlock()
	var newest *models.Invitation
	for _, inv := range iv.s.invitations {
		if inv.OrganizationID != orgID || inv.Status != models.InvitationStatusPending || !strings.EqualFold(inv.Email, email) {
			continue
		}
		if newest == nil || inv.CreatedAt.After(newest.CreatedAt) {
			newest = inv
		}
	}
	return clone(newest), nil
}

func (s *Store) transition(id string, status models.InvitationStatus, now time.Time) error {
	inv := s.invitations[id]
	if inv == nil || !inv.Status.CanTransitionTo(status) {
		return repositories.ErrNotPending
	}
	inv.Status = status
	inv.UpdatedAt = now
	return nil
}

func (iv Invitations) UpdateStatus(_ context.Context, id string, status models.InvitationStatus, now time.Time) error {
	iv.s.mu.Lock()
	defer iv.s.mu.Unlock()
	return iv.s.transition(id, status, now)
}

var roleRank = map[models.Role]int{models.RoleOwner: 0, models.RoleAdmin: 1, models.RoleMember: 2, models.RoleGuest: 3}

// Accept mirrors the repository upsert: an existing membership is only
// ever raised.
func (iv Invitations) Accept(_ context.Context, id string, member *models.Member, now time.Time) (*models.Member, error) {
	iv.s.mu.Lock()
	defer iv.s.mu.Unlock()
	if err := iv.s.transition(id, models.InvitationStatusAccepted, now); err != nil {
		return nil, err
	}
	if existing := iv.s.memberOf(member.OrganizationID, member.UserID); existing != nil {
		if roleRank[member.Role] < roleRank[existing.Role] {
			existing.Role = member.Role
		}
		return clone(existing), nil
	}
	iv.s.members[member.ID] = clone(member)
	return clone(member), nil
}

// ---------------------------------------------------------------------------
// Tickets
// ---------------------------------------------------------------------------

type Tickets struct{ s *Store }

func cloneTicket(t *models.Ticket) *models.Ticket {
	if t == nil {
		return nil
	}
	c := *t
	c.Tags = append(models.Tags{}, t.Tags...)
	c.AssigneeID = clone(t.AssigneeID)
	c.DueDate = clone(t.DueDate)
	c.ResolvedAt = clone(t.ResolvedAt)
	return &c
}

func (tk Tickets) Create(_ context.Context, t *models.Ticket) error {
	tk.s.mu.Lock()
	defer tk.s.mu.Unlock()
	tk.s.tickets[t.ID] = cloneTicket(t)
	return nil
}

func (tk Tickets) GetByID(_ context.Context, orgID, id string) (*models.Ticket, error) {
	tk.s.mu.Lock()
	defer tk.s.mu.Unlock()
	t := tk.s.tickets[id]
	if t == nil || t.OrganizationID != orgID {
		return nil, nil
	}
	return cloneTicket(t), nil
}

// priorityRank matches the repository ordering: ascending puts urgent first.
var priorityRank = map[models.TicketPriority]int{
	models.TicketPriorityUrgent: 0, models.TicketPriorityHigh: 1,
	models.TicketPriorityMedium: 2, models.TicketPriorityLow: 3,
}

func (tk Tickets) List(_ context.Context, f models.TicketFilter) ([]*models.Ticket, int, error) {
	tk.s.mu.Lock()
	defer tk.s.mu.Unlock()
	search := strings.ToLower(f.Search)
	out := make([]*models.Ticket, 0)
	for _, t := range tk.s.tickets {
		switch {
		case t.OrganizationID != f.OrganizationID,
			f.Status != "" && t.Status != f.Status,
			f.Priority != "" && t.Priority != f.Priority,
			f.AssigneeID != "" && (t.AssigneeID == nil || *t.AssigneeID != f.AssigneeID),
			f.RequesterID != "" && t.RequesterID != f.RequesterID,
			search != "" && !strings.Contains(strings.ToLower(t.Title), search) &&
				!strings.Contains(strings.ToLower(t.Description), search):
			continue
		}
		out = append(out, cloneTicket(t))
	}

	desc := f.Sort == "" || strings.HasPrefix(f.Sort, "-")
	key := strings.TrimPrefix(f.Sort, "-")
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if desc {
			a, b = b, a
		}
		switch key {
		case "updated_at":
			if !a.UpdatedAt.Equal(b.UpdatedAt) {
				return a.UpdatedAt.Before(b.UpdatedAt)
			}
		case "priority":
			if priorityRank[a.Priority] != priorityRank[b.Priority] {
				return priorityRank[a.Priority] < priorityRank[b.Priority]
			}
		default:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
		}
		return a.ID < b.ID
	})
	return window(out, f.Limit, f.Offset), len(out), nil
}

func (tk Tickets) Update(_ context.Context, t *models.Ticket) error {
	tk.s.mu.Lock()
	defer tk.s.mu.Unlock()
	current := tk.s.tickets[t.ID]
	if current == nil || current.OrganizationID != t.OrganizationID {
		return repositories.ErrNotFound
	}
	tk.s.tickets[t.ID] = cloneTicket(t)
	return nil
}

func (tk Tickets) Delete(_ context.Context, orgID, id string) error {
	tk.s.mu.Lock()
	defer tk.s.mu.Unlock()
	t := tk.s.tickets[id]
	if t == nil || t.OrganizationID != orgID {
		return repositories.ErrNotFound
	}
	tk.s.deleteTicket(id)
	return nil
}

func (s *Store) deleteTicket(id string) {
	delete(s.tickets, id)
	for cid, c := range s.comments {
		if c.TicketID == id {
			delete(s.comments, cid)
		}
	}
	for aid, a := range s.attachments {
		if a.TicketID == id {
			delete(s.attachments, aid)
		}
	}
}

func (tk Tickets) Count(_ context.Context, orgID string, status models.TicketStatus) (int, error) {
	tk.s.mu.Lock()
	defer tk.s.mu.Unlock()
	n := 0
	for _, t := range tk.s.tickets {
		if t.OrganizationID == orgID && (status == "" || t.Status == status) {
			n++
		}
	}
	return n, nil
}

// ---------------------------------------------------------------------------
// Comments and attachments
// ---------------------------------------------------------------------------

type Comments struct{ s *Store }

func (cm Comments) withAuthor(c *models.TicketComment) *models.TicketComment {
	out := clone(c)
	if user := cm.s.users[c.AuthorID]; user != nil {
		out.AuthorName = user.Name
	}
	return out
}

func (cm Comments) Create(_ context.Context, c *models.TicketComment) error {
	cm.s.mu.Lock()
	defer cm.s.mu.Unlock()
	cm.s.comments[c.ID] = clone(c)
	return nil
}

func (cm Comments) GetByID(_ context.Context, ticketID, id string) (*models.TicketComment, error) {
	cm.s.mu.Lock()
	defer cm.s.mu.Unlock()
	c := cm.s.comments[id]
	if c == nil || c.TicketID != ticketID {
		return nil, nil
	}
	return cm.withAuthor(c), nil
}

func (cm Comments) List(_ context.Context, ticketID string, includeInternal bool) ([]*models.TicketComment, error) {
	cm.s.mu.Lock()
	defer cm.s.mu.Unlock()
	out := make([]*models.TicketComment, 0)
	for _, c := range cm.s.comments {
		if c.TicketID == ticketID && (includeInternal || !c.IsInternal) {
			out = append(out, cm.withAuthor(c))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (cm Comments) Delete(_ context.Context, ticketID, id string) error {
	cm.s.mu.Lock()
	defer cm.s.mu.Unlock()
	c := cm.s.comments[id]
	if c == nil || c.TicketID != ticketID {
		return repositories.ErrNotFound
	}
	delete(cm.s.comments, id)
	return nil
}

type Attachments struct{ s *Store }

func (at Attachments) Create(_ context.Context, a *models.TicketAttachment) error {
	at.s.mu.Lock()
	defer at.s.mu.Unlock()
	at.s.attachments[a.ID] = clone(a)
	return nil
}

func (at Attachments) GetByID(_ context.Context, ticketID, id string) (*models.TicketAttachment, error) {
	at.s.mu.Lock()
	defer at.s.mu.Unlock()
	a := at.s.attachments[id]
	if a == nil || a.TicketID != ticketID {
		return nil, nil
	}
	return clone(a), nil
}

func (at Attachments) List(_ context.Context, ticketID string) ([]*models.TicketAttachment, error) {
	at.s.mu.Lock()
	defer at.s.mu.Unlock()
	out := make([]*models.TicketAttachment, 0)
	for _, a := range at.s.attachments {
		if a.TicketID == ticketID {
			out = append(out, clone(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (at Attachments) Delete(_ context.Context, ticketID, id string) error {
	at.s.mu.Lock()
	defer at.s.mu.Unlock()
	a := at.s.attachments[id]
	if a == nil || a.TicketID != ticketID {
		return repositories.ErrNotFound
	}
	delete(at.s.attachments, id)
	return nil
}

// ---------------------------------------------------------------------------
// Verifications
// ---------------------------------------------------------------------------

type Verifications struct{ s *Store }

func (vf Verifications) Create(_ context.Context, v *models.Verification) error {
	vf.s.mu.Lock()
	defer vf.s.mu.Unlock()
	vf.s.verifications[v.ID] = clone(v)
	return nil
}

func (vf Verifications) GetByTokenHash(_ context.Context, purpose models.VerificationPurpose, hash string) (*models.Verification, error) {
	vf.s.mu.Lock()
	defer vf.s.mu.Unlock()
	for _, v := range vf.s.verifications {
		if v.Purpose == purpose && v.TokenHash == hash {
			return clone(v), nil
		}
	}
	return nil, nil
}

func (vf Verifications) Consume(_ context.Context, id string, now time.Time) error {
	vf.s.mu.Lock()
	defer vf.s.mu.Unlock()
	v := vf.s.verifications[id]
	if v == nil || v.ConsumedAt != nil {
		return repositories.ErrTokenConsumed
	}
	v.ConsumedAt = &now
	return nil
}

// ---------------------------------------------------------------------------
// Audit logs
// ---------------------------------------------------------------------------

type AuditLogs struct{ s *Store }

func (al AuditLogs) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	al.s.mu.Lock()
	defer al.s.mu.Unlock()
	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	al.s.auditLogs = append(al.s.auditLogs, clone(log))
	return nil
}

func (al AuditLogs) ListByOrganization(_ context.Context, orgID string, f repositories.AuditFilters, limit, offset int) ([]*models.AuditLog, int, error) {
	al.s.mu.Lock()
	defer al.s.mu.Unlock()
	matched := make([]*models.AuditLog, 0)
	for i := len(al.s.auditLogs) - 1; i >= 0; i-- {
		l := al.s.auditLogs[i]
		switch {
		case l.OrganizationID == nil || *l.OrganizationID != orgID:
		case f.Action != nil && l.Action != *f.Action:
		case f.ResourceType != nil && (l.ResourceType == nil || *l.ResourceType != *f.ResourceType):
		case f.UserID != nil && (l.UserID == nil || *l.UserID != *f.UserID):
		case f.Since != nil && l.CreatedAt.Before(*f.Since):
		default:
			matched = append(matched, clone(l))
		}
	}
	total := len(matched)
	if offset >= total {
		return []*models.AuditLog{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}
