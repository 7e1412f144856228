package model_test

import (
	"errors"
	"io"
	"testing"

	"github.com/okian/leadflow/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestAttributesFieldAccess(t *testing.T) {
	convey.Convey("Given empty attributes", t, func() {
		var a model.Attributes

		convey.Convey("When every schema field is set through Set", func() {
			for _, f := range model.Fields {
				a.Set(f, string(f)+"-value")
			}

			convey.Convey("Then Get returns each value and the struct fields agree", func() {
				for _, f := range model.Fields {
					convey.So(a.Get(f), convey.ShouldEqual, string(f)+"-value")
				}
				convey.So(a.Name, convey.ShouldEqual, "name-value")
				convey.So(a.Engagement, convey.ShouldEqual, "engagement-value")
			})
		})

		convey.Convey("When an unknown field is used", func() {
			a.Set(model.Field("fax"), "x")

			convey.Convey("Then nothing changes and Get returns empty", func() {
				convey.So(a, convey.ShouldResemble, model.Attributes{})
				convey.So(a.Get(model.Field("fax")), convey.ShouldEqual, "")
			})
		})
	})
}

func TestAttributesValidate(t *testing.T) {
	convey.Convey("Given attribute sets", t, func() {
		convey.Convey("When name and email are present", func() {
			err := model.Attributes{Name: "Ann", Email: "ann@x.com"}.Validate()

			convey.Convey("Then they are valid", func() {
				convey.So(err, convey.ShouldBeNil)
			})
		})

		convey.Convey("When email is not an address", func() {
			err := model.Attributes{Name: "Ann", Email: "not-an-email"}.Validate()

			convey.Convey("Then no format check applies", func() {
				convey.So(err, convey.ShouldBeNil)
			})
		})

		convey.Convey("When email is empty", func() {
			err := model.Attributes{Name: "Ann", Company: "Acme"}.Validate()

			convey.Convey("Then a ValidationError names the field", func() {
				var verr *model.ValidationError
				convey.So(errors.As(err, &verr), convey.ShouldBeTrue)
				convey.So(verr.Fields, convey.ShouldResemble, []string{"email"})
				convey.So(errors.Is(err, model.ErrValidation), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "missing required email")
			})
		})

		convey.Convey("When both required fields are empty", func() {
			err := model.Attributes{}.Validate()

			convey.Convey("Then both are listed in schema order", func() {
				var verr *model.ValidationError
				convey.So(errors.As(err, &verr), convey.ShouldBeTrue)
				convey.So(verr.Fields, convey.ShouldResemble, []string{"name", "email"})
			})
		})
	})
}

func TestParseError(t *testing.T) {
	convey.Convey("Given a parse error with a cause", t, func() {
		err := error(&model.ParseError{Reason: "read input", Err: io.ErrUnexpectedEOF})

		convey.Convey("Then it matches both the sentinel and the cause", func() {
			convey.So(errors.Is(err, model.ErrParse), convey.ShouldBeTrue)
			convey.So(errors.Is(err, io.ErrUnexpectedEOF), convey.ShouldBeTrue)
			convey.So(err.Error(), convey.ShouldEqual, "parse error: read input: unexpected EOF")
		})
	})

	convey.Convey("Given a parse error without a cause", t, func() {
		err := error(&model.ParseError{Reason: "missing header row"})

		convey.Convey("Then it still matches the sentinel", func() {
			convey.So(errors.Is(err, model.ErrParse), convey.ShouldBeTrue)
			convey.So(err.Error(), convey.ShouldEqual, "parse error: missing header row")
		})
	})
}

func TestScoreFilter(t *testing.T) {
	convey.Convey("Given filter names", t, func() {
		convey.Convey("When parsing known names in any case", func() {
			for in, want := range map[string]model.ScoreFilter{
				"":       model.FilterAll,
				"ALL":    model.FilterAll,
				" High ": model.FilterHigh,
				"medium": model.FilterMedium,
				"low":    model.FilterLow,
			} {
				got, err := model.ParseScoreFilter(in)
				convey.So(err, convey.ShouldBeNil)
				convey.So(got, convey.ShouldEqual, want)
			}
		})

		convey.Convey("When parsing an unknown name", func() {
			_, err := model.ParseScoreFilter("hot")

			convey.Convey("Then it is rejected", func() {
				convey.So(errors.Is(err, model.ErrUnknownFilter), convey.ShouldBeTrue)
			})
		})
	})

	convey.Convey("Given scores around the band thresholds", t, func() {
		convey.So(model.FilterHigh.Matches(70), convey.ShouldBeTrue)
		convey.So(model.FilterHigh.Matches(69), convey.ShouldBeFalse)
		convey.So(model.FilterMedium.Matches(69), convey.ShouldBeTrue)
		convey.So(model.FilterMedium.Matches(40), convey.ShouldBeTrue)
		convey.So(model.FilterMedium.Matches(39), convey.ShouldBeFalse)
		convey.So(model.FilterLow.Matches(39), convey.ShouldBeTrue)
		convey.So(model.FilterLow.Matches(40), convey.ShouldBeFalse)
		convey.So(model.FilterAll.Matches(0), convey.ShouldBeTrue)
		convey.So(model.FilterAll.Matches(100), convey.ShouldBeTrue)

		convey.Convey("Then BandOf agrees with Matches for every score", func() {
			for score := 0; score <= 100; score++ {
				convey.So(model.BandOf(score).Matches(score), convey.ShouldBeTrue)
			}
		})
	})
}

func TestNormalizePhone(t *testing.T) {
	convey.Convey("Given phone numbers", t, func() {
		convey.So(model.NormalizePhone("", "US"), convey.ShouldEqual, "")
		convey.So(model.NormalizePhone("   ", "US"), convey.ShouldEqual, "")
		convey.So(model.NormalizePhone("+1 650-253-0000", "US"), convey.ShouldEqual, "+16502530000")
		convey.So(model.NormalizePhone("(650) 253-0000", "US"), convey.ShouldEqual, "+16502530000")

		convey.Convey("Then unparsable or invalid numbers are kept as entered", func() {
			convey.So(model.NormalizePhone(" call me ", "US"), convey.ShouldEqual, "call me")
			convey.So(model.NormalizePhone("+1234567890", "US"), convey.ShouldEqual, "+1234567890")
		})
	})
}
