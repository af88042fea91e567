package catalog

import (
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/darasa/core"
)

func TestNewCourseValidate(t *testing.T) {
	valid := NewCourse{
		Title:        "Intro to Go",
		Category:     "Programming",
		Difficulty:   DifficultyBeginner,
		InstructorID: "i1",
		IsFree:       true,
		PassingScore: 70,
	}

	tests := []struct {
		name    string
		mutate  func(nc *NewCourse)
		wantErr bool
	}{
		{name: "valid free course", mutate: func(nc *NewCourse) {}},
		{name: "valid paid course", mutate: func(nc *NewCourse) { nc.IsFree = false; nc.Price = 29.99 }},
		{name: "paid course without price", mutate: func(nc *NewCourse) { nc.IsFree = false }, wantErr: true},
		{name: "missing title", mutate: func(nc *NewCourse) { nc.Title = "  " }, wantErr: true},
		{name: "unknown difficulty", mutate: func(nc *NewCourse) { nc.Difficulty = "guru" }, wantErr: true},
		{name: "passing score above 100", mutate: func(nc *NewCourse) { nc.PassingScore = 101 }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nc := valid
			tt.mutate(&nc)
			err := nc.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestNewCourseValidateNormalizes(t *testing.T) {
	nc := NewCourse{
		Title:        "  Intro to Go  ",
		Category:     "  Programming ",
		Difficulty:   DifficultyBeginner,
		InstructorID: "i1",
		IsFree:       true,
	}
	assert.NoError(t, nc.Validate())
	assert.Equal(t, "Intro to Go", nc.Title)
	assert.Equal(t, "programming", nc.Category)
}

func TestUpdateCourseValidate(t *testing.T) {
	paid := false
	price := 0.0
	low := -1

	t.Run("paid flip without price", func(t *testing.T) {
		uc := UpdateCourse{IsFree: &paid, Price: &price}
		err := uc.Validate()
		var vErr *core.ValidationError
		if assert.True(t, errors.As(err, &vErr)) {
			assert.Equal(t, "price", vErr.Fields[0].Field)
		}
	})
	t.Run("passing score out of range", func(t *testing.T) {
		uc := UpdateCourse{PassingScore: &low}
		err := uc.Validate()
		var vErr *core.ValidationError
		if assert.True(t, errors.As(err, &vErr)) {
			assert.Equal(t, "passing_score", vErr.Fields[0].Field)
		}
	})
	t.Run("empty update is valid", func(t *testing.T) {
		uc := UpdateCourse{}
		assert.NoError(t, uc.Validate())
	})
}

func TestNewReviewValidate(t *testing.T) {
	tests := []struct {
		name   string
		rating int
		ok     bool
	}{
		{name: "minimum rating", rating: 1, ok: true},
		{name: "maximum rating", rating: 5, ok: true},
		{name: "zero rating", rating: 0, ok: false},
		{name: "rating above maximum", rating: 6, ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nr := NewReview{Rating: tt.rating, Comment: "solid course"}
			err := nr.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestGroupSections(t *testing.T) {
	lessons := []Lesson{
		{ID: "l1", Section: "Basics", Order: 1},
		{ID: "l2", Section: "Basics", Order: 2},
		{ID: "l3", Section: "Advanced", Order: 3},
		{ID: "l4", Section: "Basics", Order: 4},
		{ID: "l5", Order: 5},
	}
	sections := GroupSections(lessons)

	labels := make([]string, len(sections))
	for i, s := range sections {
		labels[i] = s.Label
	}
	// labels keep their first-seen order
	if want := []string{"Basics", "Advanced", ""}; !reflect.DeepEqual(labels, want) {
		t.Fatalf("section labels = %v, want %v", labels, want)
	}
	if got := len(sections[0].Lessons); got != 3 {
		t.Errorf("Basics has %d lessons, want 3", got)
	}
	if sections[0].Lessons[2].ID != "l4" {
		t.Errorf("late Basics lesson = %s, want l4", sections[0].Lessons[2].ID)
	}
}

func TestGroupSectionsEmpty(t *testing.T) {
	if got := GroupSections(nil); got != nil {
		t.Fatalf("GroupSections(nil) = %v, want nil", got)
	}
}
