package availability_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/okian/rehearsal/internal/domain/availability"
	. "github.com/smartystreets/goconvey/convey"
)

func TestWeekday(t *testing.T) {
	Convey("Given the fixed weekday mapping", t, func() {
		Convey("Then Sunday is 0 and Saturday is 6", func() {
			So(availability.Sunday.String(), ShouldEqual, "Sunday")
			So(availability.Saturday.String(), ShouldEqual, "Saturday")
			So(int(availability.Saturday), ShouldEqual, 6)
		})

		Convey("And Weekdays lists all seven in order", func() {
			days := availability.Weekdays()
			So(len(days), ShouldEqual, 7)
			for i, d := range days {
				So(int(d), ShouldEqual, i)
			}
		})

		Convey("And out-of-range days are rejected", func() {
			_, err := availability.ParseWeekday(7)
			So(errors.Is(err, availability.ErrInvalidInterval), ShouldBeTrue)
			_, err = availability.ParseWeekday(-1)
			So(err, ShouldNotBeNil)
			So(availability.Weekday(9).Valid(), ShouldBeFalse)
			So(availability.Weekday(9).String(), ShouldEqual, "Weekday(9)")
		})
	})
}

func TestClock(t *testing.T) {
	Convey("Given clock strings", t, func() {
		Convey("When parsing HH:MM", func() {
			c, err := availability.ParseClock("18:30")
			So(err, ShouldBeNil)
			So(c.String(), ShouldEqual, "18:30")
		})

		Convey("When parsing HH:MM:SS", func() {
			c, err := availability.ParseClock("07:05:09")
			So(err, ShouldBeNil)
			So(c.String(), ShouldEqual, "07:05:09")
		})

		Convey("When parsing 24:00", func() {
			c, err := availability.ParseClock("24:00")
			So(err, ShouldBeNil)
			So(c, ShouldEqual, availability.EndOfDay)
		})

		Convey("When parsing malformed input", func() {
			for _, s := range []string{"", "7:00", "24:01", "12:60", "ab:cd", "12"} {
				_, err := availability.ParseClock(s)
				So(errors.Is(err, availability.ErrInvalidClock), ShouldBeTrue)
			}
		})
	})

	Convey("Given JSON values", t, func() {
		Convey("Then clocks round-trip as strings", func() {
			var c availability.Clock
			So(json.Unmarshal([]byte(`"09:15"`), &c), ShouldBeNil)
			b, err := json.Marshal(c)
			So(err, ShouldBeNil)
			So(string(b), ShouldEqual, `"09:15"`)
		})

		Convey("Then numbers are rejected", func() {
			var c availability.Clock
			So(json.Unmarshal([]byte(`915`), &c), ShouldNotBeNil)
		})
	})

	Convey("Given SQL TIME values", t, func() {
		Convey("When scanning a time.Time", func() {
			var c availability.Clock
			So(c.Scan(time.Date(0, 1, 1, 19, 45, 0, 0, time.UTC)), ShouldBeNil)
			So(c.String(), ShouldEqual, "19:45")
		})

		Convey("When scanning text with fractional seconds", func() {
			var c availability.Clock
			So(c.Scan([]byte("06:00:00.000")), ShouldBeNil)
			So(c.String(), ShouldEqual, "06:00")
		})

		Convey("When scanning NULL", func() {
			var c availability.Clock
			So(c.Scan(nil), ShouldNotBeNil)
		})

		Convey("When writing a value", func() {
			v, err := availability.MustClock(8, 5).Value()
			So(err, ShouldBeNil)
			So(v, ShouldEqual, "08:05:00")
		})
	})
}

func TestRecordValidate(t *testing.T) {
	base := availability.Record{
		UserID:    "u1",
		Day:       availability.Monday,
		Start:     availability.MustClock(18, 0),
		End:       availability.MustClock(20, 0),
		Recurring: true,
	}

	Convey("Given a well-formed record", t, func() {
		Convey("Then it validates in both modes", func() {
			So(base.Validate(false), ShouldBeNil)
			So(base.Validate(true), ShouldBeNil)
		})
	})

	Convey("Given a zero-length record", t, func() {
		r := base
		r.End = r.Start

		Convey("Then permissive mode accepts it", func() {
			So(r.Validate(false), ShouldBeNil)
		})

		Convey("And strict mode rejects it with a typed error", func() {
			err := r.Validate(true)
			var invalid *availability.InvalidIntervalError
			So(errors.As(err, &invalid), ShouldBeTrue)
			So(invalid.Reason, ShouldEqual, "zero-length interval")
		})
	})

	Convey("Given an inverted record", t, func() {
		r := base
		r.Start, r.End = r.End, r.Start

		Convey("Then both modes reject it", func() {
			So(errors.Is(r.Validate(false), availability.ErrInvalidInterval), ShouldBeTrue)
			So(errors.Is(r.Validate(true), availability.ErrInvalidInterval), ShouldBeTrue)
		})
	})

	Convey("Given a record with an out-of-range day", t, func() {
		r := base
		r.Day = availability.Weekday(7)

		Convey("Then it is rejected", func() {
			err := r.Validate(false)
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "day_of_week")
		})
	})

	Convey("Given a record without a user", t, func() {
		r := base
		r.UserID = ""

		Convey("Then it is rejected", func() {
			So(errors.Is(r.Validate(false), availability.ErrInvalidInterval), ShouldBeTrue)
		})
	})

	Convey("Given a mixed batch", t, func() {
		bad := base
		bad.Day = 8
		Convey("Then ValidateAll reports the first invalid record", func() {
			So(availability.ValidateAll([]availability.Record{base, bad}, false), ShouldNotBeNil)
			So(availability.ValidateAll([]availability.Record{base}, false), ShouldBeNil)
		})
	})
}

func TestByDay(t *testing.T) {
	Convey("Given records on several days", t, func() {
		records := []availability.Record{
			{UserID: "a", Day: availability.Monday},
			{UserID: "b", Day: availability.Friday},
			{UserID: "c", Day: availability.Monday},
			{UserID: "d", Day: availability.Weekday(11)},
		}
		buckets := availability.ByDay(records)

		Convey("Then each bucket keeps input order and invalid days are dropped", func() {
			So(buckets[availability.Monday], ShouldHaveLength, 2)
			So(buckets[availability.Monday][0].UserID, ShouldEqual, "a")
			So(buckets[availability.Monday][1].UserID, ShouldEqual, "c")
			So(buckets[availability.Friday], ShouldHaveLength, 1)
			So(buckets[availability.Sunday], ShouldBeEmpty)
		})
	})
}
