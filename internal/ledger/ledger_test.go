package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
)

var errLedger = errors.New("ledger failure")

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock
}

func TestLikeOnInsertsOnce(t *testing.T) {
	mock := newMock(t)
	svc := NewService(mock)

	mock.ExpectExec(`INSERT INTO likes`).
		WithArgs("user-2", "post-1").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO likes`).
		WithArgs("user-2", "post-1").
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	inserted, err := svc.LikeOn(context.Background(), "user-2", "post-1")
	if err != nil || !inserted {
		t.Fatalf("first like: inserted=%v err=%v", inserted, err)
	}
	inserted, err = svc.LikeOn(context.Background(), "user-2", "post-1")
	if err != nil || inserted {
		t.Fatalf("conflicting like should be a no-op: inserted=%v err=%v", inserted, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestLikeOnForeignKeyViolations(t *testing.T) {
	mock := newMock(t)
	svc := NewService(mock)

	mock.ExpectExec(`INSERT INTO likes`).
		WithArgs("user-2", "gone").
		WillReturnError(&pgconn.PgError{Code: "23503", ConstraintName: "likes_post_fk"})
	mock.ExpectExec(`INSERT INTO likes`).
		WithArgs("ghost", "post-1").
		WillReturnError(&pgconn.PgError{Code: "23503", ConstraintName: "likes_user_fk"})
	mock.ExpectExec(`INSERT INTO likes`).
		WithArgs("user-2", "post-1").
		WillReturnError(&pgconn.PgError{Code: "23503", ConstraintName: "other_fk"})

	if _, err := svc.LikeOn(context.Background(), "user-2", "gone"); !errors.Is(err, ErrPostNotFound) {
		t.Fatalf("expected ErrPostNotFound, got %v", err)
	}
	if _, err := svc.LikeOn(context.Background(), "ghost", "post-1"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("unknown liker must not report a missing post, got %v", err)
	}
	_, err := svc.LikeOn(context.Background(), "user-2", "post-1")
	if errors.Is(err, ErrPostNotFound) || errors.Is(err, ErrUserNotFound) || err == nil {
		t.Fatalf("unrecognised constraint must surface as is, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestLikeOffAndCount(t *testing.T) {
	mock := newMock(t)
	svc := NewService(mock)

	mock.ExpectExec(`DELETE FROM likes`).
		WithArgs("user-2", "post-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM likes`).
		WithArgs("post-1").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(0))

	removed, err := svc.LikeOff(context.Background(), "user-2", "post-1")
	if err != nil || !removed {
		t.Fatalf("unlike: removed=%v err=%v", removed, err)
	}
	n, err := svc.CountLikes(context.Background(), "post-1")
	if err != nil || n != 0 {
		t.Fatalf("count: %d %v", n, err)
	}
}

func TestLikeOffError(t *testing.T) {
	mock := newMock(t)
	svc := NewService(mock)

	mock.ExpectExec(`DELETE FROM likes`).WillReturnError(errLedger)
	if _, err := svc.LikeOff(context.Background(), "user-2", "post-1"); !errors.Is(err, errLedger) {
		t.Fatalf("expected errLedger, got %v", err)
	}
}

func TestRepostRemovalAndCount(t *testing.T) {
	mock := newMock(t)
	svc := NewService(mock)

	mock.ExpectExec(`DELETE FROM posts`).
		WithArgs("user-2", "post-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM posts WHERE original_post_id`).
		WithArgs("post-1").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(0))

	removed, err := svc.RepostOff(context.Background(), "user-2", "post-1")
	if err != nil || !removed {
		t.Fatalf("repost off: %v %v", removed, err)
	}
	n, err := svc.CountReposts(context.Background(), "post-1")
	if err != nil || n != 0 {
		t.Fatalf("count reposts: %d %v", n, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRepostOffError(t *testing.T) {
	mock := newMock(t)
	svc := NewService(mock)

	mock.ExpectExec(`DELETE FROM posts`).WillReturnError(errLedger)
	if _, err := svc.RepostOff(context.Background(), "user-2", "post-1"); !errors.Is(err, errLedger) {
		t.Fatalf("expected errLedger, got %v", err)
	}
}

func TestCounts(t *testing.T) {
	mock := newMock(t)
	svc := NewService(mock)

	mock.ExpectQuery(`SELECT\s+\(SELECT COUNT\(\*\) FROM likes`).
		WithArgs("post-1", "user-2").
		WillReturnRows(pgxmock.NewRows([]string{"likes", "reposts", "comments", "liked"}).AddRow(3, 1, 2, true))

	c, err := svc.Counts(context.Background(), "post-1", "user-2")
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	want := Counts{LikeCount: 3, RepostCount: 1, CommentCount: 2, IsLiked: true}
	if c != want {
		t.Fatalf("counts = %+v, want %+v", c, want)
	}
}
