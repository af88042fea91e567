package track

import (
	"context"

	"github.com/trezcool/darasa/core"
)

func progressPath(userID string) string { return "users/" + userID + "/progress" }
func notesPath(userID string) string    { return "users/" + userID + "/notes" }

// ProgressKey is the cache key for one user's progress in one course;
// subscribers use it with cache.KindProgress.
func ProgressKey(userID, courseID string) string { return userID + "/" + courseID }

// NoteKey is the cache key for one user's note on one lesson;
// subscribers use it with cache.KindNote.
func NoteKey(userID, lessonID string) string { return userID + "/" + lessonID }

// fetchProgress loads one user's progress for one course. Not-found is a
// valid empty progress (nothing completed yet), not an error.
func fetchProgress(ctx context.Context, ds core.DocumentStore, userID, courseID string) (Progress, error) {
	doc, err := ds.GetDocument(ctx, progressPath(userID), courseID)
	if err != nil {
		if err == core.ErrDocNotFound {
			return Progress{UserID: userID, CourseID: courseID}, nil
		}
		return Progress{}, err
	}
	return docToProgress(doc, userID, courseID), nil
}

func fetchNote(ctx context.Context, ds core.DocumentStore, userID, lessonID string) (Note, error) {
	doc, err := ds.GetDocument(ctx, notesPath(userID), lessonID)
	if err != nil {
		if err == core.ErrDocNotFound {
			return Note{UserID: userID, LessonID: lessonID}, nil
		}
		return Note{}, err
	}
	return Note{
		UserID:    userID,
		LessonID:  lessonID,
		Content:   doc.Str("content"),
		UpdatedAt: doc.Time("updated_at"),
	}, nil
}

func docToProgress(doc core.Document, userID, courseID string) Progress {
	completed := doc.Strings("completed")
	total := doc.Int("total")
	return Progress{
		UserID:      userID,
		CourseID:    courseID,
		Completed:   completed,
		Total:       total,
		Percentage:  Percentage(len(completed), total),
		LastVisited: doc.Str("last_visited"),
		UpdatedAt:   doc.Time("updated_at"),
	}
}

func progressFields(p Progress) map[string]interface{} {
	return map[string]interface{}{
		"completed":    p.Completed,
		"total":        p.Total,
		"last_visited": p.LastVisited,
		"updated_at":   p.UpdatedAt,
	}
}
