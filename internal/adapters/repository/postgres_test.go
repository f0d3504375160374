package repository

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/okian/rehearsal/internal/domain/availability"
	. "github.com/smartystreets/goconvey/convey"
)

const (
	groupA = "0b9f6f4e-3c1a-4c53-9d57-4f1f1a2b3c4d"
	userA  = "5a4c2f0e-8b7d-4e6f-a1b2-c3d4e5f60718"
	userB  = "7e1d3c5b-9a8f-4b2c-8d6e-0f1a2b3c4d5e"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	ids := 0
	store := NewPostgresStore(sqlx.NewDb(db, "postgres"), WithIDGenerator(func() string {
		ids++
		return []string{"row-1", "row-2", "row-3"}[ids-1]
	}))
	return store, mock
}

func TestPostgresStore_Members(t *testing.T) {
	Convey("Given a postgres store", t, func() {
		ctx := context.Background()
		store, mock := newMockStore(t)

		Convey("When the group has members", func() {
			mock.ExpectQuery(regexp.QuoteMeta("SELECT user_id FROM group_members WHERE group_id = $1")).
				WithArgs(groupA).
				WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow(userA).AddRow(userB))

			members, err := store.Members(ctx, groupA)

			Convey("Then they are returned in query order", func() {
				So(err, ShouldBeNil)
				So(members, ShouldResemble, []string{userA, userB})
				So(mock.ExpectationsWereMet(), ShouldBeNil)
			})
		})

		Convey("When the group has no rows", func() {
			mock.ExpectQuery(regexp.QuoteMeta("FROM group_members WHERE group_id = $1")).
				WithArgs(groupA).
				WillReturnRows(sqlmock.NewRows([]string{"user_id"}))

			_, err := store.Members(ctx, groupA)

			Convey("Then ErrNotFound is returned", func() {
				So(errors.Is(err, ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When the group id is spelled in upper case", func() {
			mock.ExpectQuery(regexp.QuoteMeta("SELECT user_id FROM group_members WHERE group_id = $1")).
				WithArgs(groupA).
				WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow(userA))

			members, err := store.Members(ctx, strings.ToUpper(groupA))

			Convey("Then the canonical spelling is queried", func() {
				So(err, ShouldBeNil)
				So(members, ShouldResemble, []string{userA})
				So(mock.ExpectationsWereMet(), ShouldBeNil)
			})
		})

		Convey("When the group id is not a uuid", func() {
			_, err := store.Members(ctx, "band")

			Convey("Then no query is issued and ErrInvalidID is returned", func() {
				So(errors.Is(err, ErrInvalidID), ShouldBeTrue)
				So(mock.ExpectationsWereMet(), ShouldBeNil)
			})
		})

		Convey("When the query fails", func() {
			mock.ExpectQuery(regexp.QuoteMeta("FROM group_members")).WillReturnError(errors.New("boom"))

			_, err := store.Members(ctx, groupA)

			Convey("Then the error is wrapped with the operation", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "repository: members")
			})
		})
	})
}

func TestPostgresStore_Membership(t *testing.T) {
	Convey("Given a postgres store", t, func() {
		ctx := context.Background()
		store, mock := newMockStore(t)

		Convey("When checking membership", func() {
			mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
				WithArgs(groupA, userA).
				WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

			ok, err := store.IsMember(ctx, groupA, userA)

			Convey("Then the flag is scanned", func() {
				So(err, ShouldBeNil)
				So(ok, ShouldBeTrue)
			})
		})

		Convey("When listing a user's groups", func() {
			mock.ExpectQuery(regexp.QuoteMeta("SELECT group_id FROM group_members WHERE user_id = $1")).
				WithArgs(userA).
				WillReturnRows(sqlmock.NewRows([]string{"group_id"}).AddRow(groupA))

			groups, err := store.GroupsOf(ctx, userA)

			Convey("Then the ids are returned", func() {
				So(err, ShouldBeNil)
				So(groups, ShouldResemble, []string{groupA})
			})
		})

		Convey("When checking membership with mixed-case ids", func() {
			mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
				WithArgs(groupA, userA).
				WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

			ok, err := store.IsMember(ctx, " "+strings.ToUpper(groupA), strings.ToUpper(userA))

			Convey("Then both ids are canonicalized before the query", func() {
				So(err, ShouldBeNil)
				So(ok, ShouldBeTrue)
				So(mock.ExpectationsWereMet(), ShouldBeNil)
			})
		})

		Convey("When adding a member", func() {
			mock.ExpectExec(regexp.QuoteMeta("INSERT INTO group_members")).
				WithArgs("row-1", groupA, userB).
				WillReturnResult(sqlmock.NewResult(0, 1))

			err := store.AddMember(ctx, groupA, userB)

			Convey("Then the insert carries a generated row id", func() {
				So(err, ShouldBeNil)
				So(mock.ExpectationsWereMet(), ShouldBeNil)
			})
		})
	})
}

func TestPostgresStore_Availability(t *testing.T) {
	Convey("Given a postgres store", t, func() {
		ctx := context.Background()
		store, mock := newMockStore(t)

		Convey("When fetching availability", func() {
			rows := sqlmock.NewRows([]string{"user_id", "day_of_week", "start_time", "end_time", "is_recurring"}).
				AddRow(userA, int64(1), "18:00:00", "20:00:00", true).
				AddRow(userB, int64(1), time.Date(0, 1, 1, 19, 0, 0, 0, time.UTC), "21:00:00", true)
			mock.ExpectQuery(regexp.QuoteMeta("WHERE user_id = ANY($1) AND is_recurring")).
				WithArgs(sqlmock.AnyArg()).
				WillReturnRows(rows)

			out, err := store.Availability(ctx, []string{userA, userB})

			Convey("Then TIME columns scan into clocks", func() {
				So(err, ShouldBeNil)
				So(out, ShouldHaveLength, 2)
				So(out[0], ShouldResemble, availability.Record{
					UserID:    userA,
					Day:       availability.Monday,
					Start:     availability.MustClock(18, 0),
					End:       availability.MustClock(20, 0),
					Recurring: true,
				})
				So(out[1].Start, ShouldEqual, availability.MustClock(19, 0))
			})
		})

		Convey("When a stored day is outside the week", func() {
			rows := sqlmock.NewRows([]string{"user_id", "day_of_week", "start_time", "end_time", "is_recurring"}).
				AddRow(userA, int64(256), "18:00:00", "20:00:00", true)
			mock.ExpectQuery(regexp.QuoteMeta("WHERE user_id = ANY($1) AND is_recurring")).
				WithArgs(sqlmock.AnyArg()).
				WillReturnRows(rows)

			out, err := store.Availability(ctx, []string{userA})

			Convey("Then the row is rejected instead of wrapping to Monday", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "day_of_week 256")
				So(errors.Is(err, availability.ErrInvalidInterval), ShouldBeFalse)
				So(out, ShouldBeNil)
			})
		})

		Convey("When ids arrive in upper case", func() {
			rows := sqlmock.NewRows([]string{"user_id", "day_of_week", "start_time", "end_time", "is_recurring"}).
				AddRow(userA, int64(1), "18:00:00", "20:00:00", true)
			mock.ExpectQuery(regexp.QuoteMeta("WHERE user_id = ANY($1) AND is_recurring")).
				WithArgs(sqlmock.AnyArg()).
				WillReturnRows(rows)

			out, err := store.Availability(ctx, []string{strings.ToUpper(userA)})

			Convey("Then the query still succeeds", func() {
				So(err, ShouldBeNil)
				So(out, ShouldHaveLength, 1)
				So(mock.ExpectationsWereMet(), ShouldBeNil)
			})
		})

		Convey("When no users are given", func() {
			out, err := store.Availability(ctx, nil)

			Convey("Then nothing is queried", func() {
				So(err, ShouldBeNil)
				So(out, ShouldBeEmpty)
				So(mock.ExpectationsWereMet(), ShouldBeNil)
			})
		})

		Convey("When replacing a week", func() {
			records := []availability.Record{
				{Day: availability.Tuesday, Start: availability.MustClock(18, 0), End: availability.MustClock(20, 0), Recurring: true},
				{Day: availability.Friday, Start: availability.MustClock(9, 30), End: availability.MustClock(11, 0), Recurring: true},
			}
			mock.ExpectBegin()
			mock.ExpectExec(regexp.QuoteMeta("DELETE FROM availability WHERE user_id = $1")).
				WithArgs(userA).
				WillReturnResult(sqlmock.NewResult(0, 3))
			mock.ExpectExec(regexp.QuoteMeta("INSERT INTO availability")).
				WithArgs("row-1", userA, 2, "18:00:00", "20:00:00", true).
				WillReturnResult(sqlmock.NewResult(0, 1))
			mock.ExpectExec(regexp.QuoteMeta("INSERT INTO availability")).
				WithArgs("row-2", userA, 5, "09:30:00", "11:00:00", true).
				WillReturnResult(sqlmock.NewResult(0, 1))
			mock.ExpectCommit()

			err := store.ReplaceAvailability(ctx, userA, records)

			Convey("Then the delete and inserts commit together", func() {
				So(err, ShouldBeNil)
				So(mock.ExpectationsWereMet(), ShouldBeNil)
			})
		})

		Convey("When an insert fails", func() {
			mock.ExpectBegin()
			mock.ExpectExec(regexp.QuoteMeta("DELETE FROM availability")).WillReturnResult(sqlmock.NewResult(0, 0))
			mock.ExpectExec(regexp.QuoteMeta("INSERT INTO availability")).WillReturnError(errors.New("constraint"))
			mock.ExpectRollback()

			err := store.ReplaceAvailability(ctx, userA, []availability.Record{
				{Day: availability.Monday, Start: availability.MustClock(8, 0), End: availability.MustClock(9, 0), Recurring: true},
			})

			Convey("Then the transaction rolls back", func() {
				So(err, ShouldNotBeNil)
				So(mock.ExpectationsWereMet(), ShouldBeNil)
			})
		})
	})
}

func TestPostgresStore_Admin(t *testing.T) {
	Convey("Given a postgres store", t, func() {
		ctx := context.Background()
		store, mock := newMockStore(t)

		Convey("When migrating", func() {
			mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS group_members")).WillReturnResult(sqlmock.NewResult(0, 0))
			mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS availability")).WillReturnResult(sqlmock.NewResult(0, 0))
			mock.ExpectExec(regexp.QuoteMeta("CREATE INDEX IF NOT EXISTS availability_user_idx")).WillReturnResult(sqlmock.NewResult(0, 0))

			Convey("Then every statement runs in order", func() {
				So(store.Migrate(ctx), ShouldBeNil)
				So(mock.ExpectationsWereMet(), ShouldBeNil)
			})
		})

		Convey("When a migration statement fails", func() {
			mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE")).WillReturnError(errors.New("permission denied"))

			Convey("Then Migrate reports it", func() {
				So(store.Migrate(ctx), ShouldNotBeNil)
			})
		})
	})
}

func TestCanonicalID(t *testing.T) {
	Convey("Given ids in different spellings", t, func() {
		Convey("Then uuids fold to lower case without braces or padding", func() {
			So(CanonicalID(strings.ToUpper(userA)), ShouldEqual, userA)
			So(CanonicalID("  "+userA+"\n"), ShouldEqual, userA)
			So(CanonicalID("{"+userA+"}"), ShouldEqual, userA)
			So(CanonicalID("urn:uuid:"+userA), ShouldEqual, userA)
		})

		Convey("Then other ids are only trimmed", func() {
			So(CanonicalID(" Band "), ShouldEqual, "Band")
		})
	})
}
