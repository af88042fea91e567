package track

import (
	"math"
	"time"

	"github.com/trezcool/darasa/core"
)

// Progress is one user's completion state for one course. Percentage is
// always derived from the completed set and the total, never stored
// independently; it only decreases on an explicit reset.
type Progress struct {
	UserID      string    `json:"user_id"`
	CourseID    string    `json:"course_id"`
	Completed   []string  `json:"completed"` // lesson ids, set semantics
	Total       int       `json:"total"`
	Percentage  int       `json:"percentage"` // derived
	LastVisited string    `json:"last_visited"`
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

// Percentage derives the completion percentage; an empty course is 0%,
// not a division error.
func Percentage(completed, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(completed) / float64(total) * 100))
}

func (p Progress) IsCompleted(lessonID string) bool {
	for _, id := range p.Completed {
		if id == lessonID {
			return true
		}
	}
	return false
}

// withCompleted returns a copy with the lesson added to the completed
// set and the percentage recomputed. The receiver is never mutated;
// cached values are read-only.
func (p Progress) withCompleted(lessonID string) Progress {
	if p.IsCompleted(lessonID) {
		return p
	}
	completed := make([]string, 0, len(p.Completed)+1)
	completed = append(completed, p.Completed...)
	completed = append(completed, lessonID)
	p.Completed = completed
	p.Percentage = Percentage(len(completed), p.Total)
	return p
}

// reset clears the completed set, the one sanctioned way percentage
// goes down.
func (p Progress) reset() Progress {
	p.Completed = nil
	p.Percentage = 0
	return p
}

// Note is a user's free-text note on one lesson; at most one exists per
// (user, lesson) pair.
type Note struct {
	UserID    string    `json:"user_id"`
	LessonID  string    `json:"lesson_id"`
	Content   string    `json:"content"`
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// NewNote contains the content for a note upsert.
type NewNote struct {
	Content string `json:"content" validate:"required,max=10000"`
}

func (nn *NewNote) Validate() error {
	nn.Content = core.CleanString(nn.Content)
	return core.Validate.Struct(nn)
}
