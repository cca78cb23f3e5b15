package models

import (
	"reflect"
	"testing"
	"time"
)

// ---------------------------------------------------------------------------
// Role
// ---------------------------------------------------------------------------

func TestRole_Valid(t *testing.T) {
	for _, r := range Roles {
		if !r.Valid() {
			t.Errorf("Role(%q).Valid() = false, want true", r)
		}
	}
	for _, r := range []Role{"", "superuser", "Owner"} {
		if r.Valid() {
			t.Errorf("Role(%q).Valid() = true, want false", r)
		}
	}
}

func TestRole_IsManager(t *testing.T) {
	want := map[Role]bool{RoleOwner: true, RoleAdmin: true, RoleMember: false, RoleGuest: false}
	for r, w := range want {
		if got := r.IsManager(); got != w {
			t.Errorf("Role(%q).IsManager() = %v, want %v", r, got, w)
		}
	}
}

// ---------------------------------------------------------------------------
// InvitationStatus transitions
// ---------------------------------------------------------------------------

func TestInvitationStatus_CanTransitionTo(t *testing.T) {
	all := []InvitationStatus{
		InvitationStatusPending, InvitationStatusAccepted,
		InvitationStatusRejected, InvitationStatusCancelled,
	}
	for _, from := range all {
		for _, to := range all {
			want := from == InvitationStatusPending && to != InvitationStatusPending
			if got := from.CanTransitionTo(to); got != want {
				t.Errorf("%s -> %s = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestInvitationStatus_IsTerminal(t *testing.T) {
	if InvitationStatusPending.IsTerminal() {
		t.Error("pending should not be terminal")
	}
	for _, s := range []InvitationStatus{InvitationStatusAccepted, InvitationStatusRejected, InvitationStatusCancelled} {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
}

// ---------------------------------------------------------------------------
// Invitation.IsExpired
// ---------------------------------------------------------------------------

func TestInvitation_IsExpired(t *testing.T) {
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	inv := &Invitation{Status: InvitationStatusPending, ExpiresAt: created.Add(48 * time.Hour)}

	if inv.IsExpired(created.Add(47 * time.Hour)) {
		t.Error("IsExpired() should be false before expiry")
	}
	if inv.IsExpired(created.Add(48 * time.Hour)) {
		t.Error("IsExpired() should be false exactly at expiry")
	}
	if !inv.IsExpired(created.Add(49 * time.Hour)) {
		t.Error("IsExpired() should be true after expiry")
	}
	if inv.Status != InvitationStatusPending {
		t.Errorf("IsExpired() must not change status, got %s", inv.Status)
	}

	inv.Status = InvitationStatusAccepted
	if inv.IsExpired(created.Add(49 * time.Hour)) {
		t.Error("IsExpired() should be false for non-pending invitations")
	}
}

// ---------------------------------------------------------------------------
// Ticket tags and status
// ---------------------------------------------------------------------------

func TestTags_RoundTripKeepsOrderAndDuplicates(t *testing.T) {
	in := []string{"billing", "urgent", "billing", "vip"}
	s, err := EncodeTags(in)
	if err != nil {
		t.Fatalf("EncodeTags() error: %v", err)
	}
	if s != `["billing","urgent","billing","vip"]` {
		t.Errorf("EncodeTags() = %s", s)
	}
	out, err := DecodeTags(s)
	if err != nil {
		t.Fatalf("DecodeTags() error: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Errorf("round trip = %v, want %v", out, in)
	}
}

func TestTags_NilAndEmpty(t *testing.T) {
	s, err := EncodeTags(nil)
	if err != nil || s != "[]" {
		t.Errorf("EncodeTags(nil) = %q, %v; want [] nil", s, err)
	}
	out, err := DecodeTags("")
	if err != nil || out == nil || len(out) != 0 {
		t.Errorf("DecodeTags(\"\") = %v, %v; want empty slice", out, err)
	}
	if _, err := DecodeTags("{not json"); err == nil {
		t.Error("DecodeTags() expected error for malformed input")
	}
}

func TestTags_ScanValue(t *testing.T) {
	var tags Tags
	if err := tags.Scan([]byte(`["a","b"]`)); err != nil {
		t.Fatalf("Scan() error: %v", err)
	}
	v, err := tags.Value()
	if err != nil {
		t.Fatalf("Value() error: %v", err)
	}
	if v != `["a","b"]` {
		t.Errorf("Value() = %v", v)
	}
	if err := tags.Scan(42); err == nil {
		t.Error("Scan(int) expected error")
	}
}

func TestTicket_SetStatusStampsResolvedAtOnce(t *testing.T) {
	first := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	tk := &Ticket{Status: TicketStatusOpen}

	tk.SetStatus(TicketStatusInProgress, first)
	if tk.ResolvedAt != nil {
		t.Fatal("ResolvedAt should stay nil until resolved")
	}

	tk.SetStatus(TicketStatusResolved, first.Add(time.Hour))
	if tk.ResolvedAt == nil || !tk.ResolvedAt.Equal(first.Add(time.Hour)) {
		t.Fatalf("ResolvedAt = %v, want %v", tk.ResolvedAt, first.Add(time.Hour))
	}

	tk.SetStatus(TicketStatusResolved, first.Add(2*time.Hour))
	if !tk.ResolvedAt.Equal(first.Add(time.Hour)) {
		t.Error("re-setting resolved must not restamp ResolvedAt")
	}
	if !tk.UpdatedAt.Equal(first.Add(2 * time.Hour)) {
		t.Errorf("UpdatedAt = %v", tk.UpdatedAt)
	}
}

func TestTicketEnums(t *testing.T) {
	if !TicketStatusWaitingForCustomer.Valid() || TicketStatus("done").Valid() {
		t.Error("TicketStatus.Valid() mismatch")
	}
	if !TicketPriorityUrgent.Valid() || TicketPriority("critical").Valid() {
		t.Error("TicketPriority.Valid() mismatch")
	}
}

// ---------------------------------------------------------------------------
// OrganizationMetadata
// ---------------------------------------------------------------------------

func TestOrganizationMetadata_ScanValue(t *testing.T) {
	var m OrganizationMetadata
	if err := m.Scan([]byte(`{"domain":"acme.com","color":"#f60"}`)); err != nil {
		t.Fatalf("Scan() error: %v", err)
	}
	if m.Domain() != "acme.com" {
		t.Errorf("Domain() = %q", m.Domain())
	}
	if err := m.Scan(nil); err != nil || len(m) != 0 {
		t.Errorf("Scan(nil) = %v, %v", m, err)
	}
	var empty OrganizationMetadata
	v, err := empty.Value()
	if err != nil || string(v.([]byte)) != "{}" {
		t.Errorf("Value() of nil = %v, %v", v, err)
	}
}

// ---------------------------------------------------------------------------
// Verification
// ---------------------------------------------------------------------------

func TestVerification_Usable(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	v := &Verification{ExpiresAt: now.Add(time.Hour)}
	if !v.Usable(now) {
		t.Error("fresh token should be usable")
	}
	if v.Usable(now.Add(2 * time.Hour)) {
		t.Error("expired token should not be usable")
	}
	v.ConsumedAt = &now
	if v.Usable(now) {
		t.Error("consumed token should not be usable")
	}
}
