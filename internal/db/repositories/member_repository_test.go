package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"github.com/helporbit/helporbit/internal/db/models"
)

var memberCols = []string{"id", "user_id", "organization_id", "role", "created_at"}
var memberWithUserCols = []string{
	"id", "user_id", "organization_id", "role", "created_at",
	"name", "email", "image", "email_verified",
}

func memberRow(id string, role models.Role) *sqlmock.Rows {
	return sqlmock.NewRows(memberCols).AddRow(id, "user-"+id, "org-1", string(role), time.Now())
}

func ownerRows(ids ...string) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"id"})
	for _, id := range ids {
		rows.AddRow(id)
	}
	return rows
}

func newMemberRepo(t *testing.T) (*MemberRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewMemberRepository(db), mock
}

// ---------------------------------------------------------------------------
// Create
// ---------------------------------------------------------------------------

func TestCreateMember_Success(t *testing.T) {
	repo, mock := newMemberRepo(t)
	mock.ExpectExec("INSERT INTO members").
		WithArgs("mem-2", "user-2", "org-1", "member", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	m := &models.Member{ID: "mem-2", UserID: "user-2", OrganizationID: "org-1", Role: models.RoleMember, CreatedAt: time.Now()}
	if err := repo.Create(context.Background(), m); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCreateMember_Duplicate(t *testing.T) {
	repo, mock := newMemberRepo(t)
	mock.ExpectExec("INSERT INTO members").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "members_user_organization_key"})

	err := repo.Create(context.Background(), &models.Member{ID: "m", UserID: "u", OrganizationID: "o"})
	if !errors.Is(err, ErrDuplicateMember) {
		t.Fatalf("err = %v, want ErrDuplicateMember", err)
	}
}

// ---------------------------------------------------------------------------
// Lookups
// ---------------------------------------------------------------------------

func TestGetMemberByUser_Found(t *testing.T) {
	repo, mock := newMemberRepo(t)
	mock.ExpectQuery("FROM members WHERE organization_id = \\$1 AND user_id = \\$2").
		WithArgs("org-1", "user-mem-1").
		WillReturnRows(memberRow("mem-1", models.RoleAdmin))

	m, err := repo.GetByUser(context.Background(), "org-1", "user-mem-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m == nil || m.Role != models.RoleAdmin {
		t.Errorf("member = %+v", m)
	}
}

func TestGetMemberByID_NotFound(t *testing.T) {
	repo, mock := newMemberRepo(t)
	mock.ExpectQuery("FROM members WHERE organization_id").
		WillReturnRows(sqlmock.NewRows(memberCols))

	m, err := repo.GetByID(context.Background(), "org-1", "ghost")
	if err != nil || m != nil {
		t.Fatalf("GetByID() = %v, %v; want nil, nil", m, err)
	}
}

func TestGetMemberByEmail_DBError(t *testing.T) {
	repo, mock := newMemberRepo(t)
	mock.ExpectQuery("JOIN users u").WillReturnError(errDB)

	if _, err := repo.GetByEmail(context.Background(), "org-1", "a@b.c"); !errors.Is(err, errDB) {
		t.Fatalf("err = %v, want errDB", err)
	}
}

// ---------------------------------------------------------------------------
// List / Count
// ---------------------------------------------------------------------------

func TestListMembers_Descending(t *testing.T) {
	repo, mock := newMemberRepo(t)
	mock.ExpectQuery("ORDER BY m.created_at DESC").
		WithArgs("org-1", 10, 0).
		WillReturnRows(sqlmock.NewRows(memberWithUserCols).
			AddRow("mem-2", "user-2", "org-1", "member", time.Now(), "Bob", "bob@acme.com", nil, false).
			AddRow("mem-1", "user-1", "org-1", "owner", time.Now(), "Alice", "alice@acme.com", nil, true))

	members, err := repo.List(context.Background(), "org-1", models.MemberListOptions{Limit: 10, Descending: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(members) != 2 || members[0].UserName != "Bob" {
		t.Errorf("members = %+v", members)
	}
}

func TestCountMembers(t *testing.T) {
	repo, mock := newMemberRepo(t)
	mock.ExpectQuery("SELECT COUNT").
		WithArgs("org-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	n, err := repo.Count(context.Background(), "org-1")
	if err != nil || n != 3 {
		t.Fatalf("Count() = %d, %v; want 3, nil", n, err)
	}
}

// ---------------------------------------------------------------------------
// UpdateRole / Delete (owner-preserving)
// ---------------------------------------------------------------------------

func TestUpdateRole_DemoteSoleOwner(t *testing.T) {
	repo, mock := newMemberRepo(t)
	mock.ExpectBegin()
	mock.ExpectQuery("role = 'owner' FOR UPDATE").WithArgs("org-1").WillReturnRows(ownerRows("mem-1"))
	mock.ExpectQuery("AND id = \\$2 FOR UPDATE").WithArgs("org-1", "mem-1").WillReturnRows(memberRow("mem-1", models.RoleOwner))
	mock.ExpectRollback()

	err := repo.UpdateRole(context.Background(), "org-1", "mem-1", models.RoleAdmin)
	if !errors.Is(err, ErrLastOwner) {
		t.Fatalf("err = %v, want ErrLastOwner", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestUpdateRole_DemoteOneOfTwoOwners(t *testing.T) {
	repo, mock := newMemberRepo(t)
	mock.ExpectBegin()
	mock.ExpectQuery("role = 'owner' FOR UPDATE").WillReturnRows(ownerRows("mem-1", "mem-2"))
	mock.ExpectQuery("AND id = \\$2 FOR UPDATE").WillReturnRows(memberRow("mem-1", models.RoleOwner))
	mock.ExpectExec("UPDATE members SET role").
		WithArgs("org-1", "mem-1", "admin").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.UpdateRole(context.Background(), "org-1", "mem-1", models.RoleAdmin); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestUpdateRole_MemberNotFound(t *testing.T) {
	repo, mock := newMemberRepo(t)
	mock.ExpectBegin()
	mock.ExpectQuery("role = 'owner' FOR UPDATE").WillReturnRows(ownerRows("mem-1"))
	mock.ExpectQuery("AND id = \\$2 FOR UPDATE").WillReturnRows(sqlmock.NewRows(memberCols))
	mock.ExpectRollback()

	err := repo.UpdateRole(context.Background(), "org-1", "ghost", models.RoleGuest)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestDeleteMember_SoleOwner(t *testing.T) {
	repo, mock := newMemberRepo(t)
	mock.ExpectBegin()
	mock.ExpectQuery("role = 'owner' FOR UPDATE").WillReturnRows(ownerRows("mem-1"))
	mock.ExpectQuery("AND id = \\$2 FOR UPDATE").WillReturnRows(memberRow("mem-1", models.RoleOwner))
	mock.ExpectRollback()

	if err := repo.Delete(context.Background(), "org-1", "mem-1"); !errors.Is(err, ErrLastOwner) {
		t.Fatalf("err = %v, want ErrLastOwner", err)
	}
}

func TestDeleteMember_RegularMember(t *testing.T) {
	repo, mock := newMemberRepo(t)
	mock.ExpectBegin()
	mock.ExpectQuery("role = 'owner' FOR UPDATE").WillReturnRows(ownerRows("mem-1"))
	mock.ExpectQuery("AND id = \\$2 FOR UPDATE").WillReturnRows(memberRow("mem-3", models.RoleMember))
	mock.ExpectExec("DELETE FROM members").
		WithArgs("org-1", "mem-3").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.Delete(context.Background(), "org-1", "mem-3"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDeleteMember_BeginError(t *testing.T) {
	repo, mock := newMemberRepo(t)
	mock.ExpectBegin().WillReturnError(errDB)

	if err := repo.Delete(context.Background(), "org-1", "mem-3"); !errors.Is(err, errDB) {
		t.Fatalf("err = %v, want errDB", err)
	}
}
