package cache

import (
	"context"
	"fmt"
	"log/slog"
)

// SafeInvalidatePattern safely invalidates cache pattern with logging
func SafeInvalidatePattern(ctx context.Context, helper *CacheHelper, pattern string) {
	if err := helper.InvalidatePattern(ctx, pattern); err != nil {
		slog.ErrorContext(ctx, "Failed to invalidate cache pattern",
			"error", err,
			"pattern", pattern)
	}
}

// SafeDelete safely deletes cache keys with logging
func SafeDelete(ctx context.Context, helper *CacheHelper, keys ...string) {
	if err := helper.Delete(ctx, keys...); err != nil {
		slog.ErrorContext(ctx, "Failed to delete cache keys",
			"error", err,
			"keys", keys)
	}
}

// InvalidateSubjectCache drops a subject, its rosters and every list or schedule derived from it
func InvalidateSubjectCache(ctx context.Context, cm *CacheManager, subjectID uint) {
	SafeDelete(ctx, cm.Subject,
		fmt.Sprintf("id:%d", subjectID),
		fmt.Sprintf("students:%d", subjectID))

	SafeInvalidatePattern(ctx, cm.Subject, "list:*")
	SafeInvalidatePattern(ctx, cm.Subject, "student:*")
	SafeInvalidatePattern(ctx, cm.Stats, "*")
}

// InvalidateStudentSubjects drops the cached subject lists of one student
func InvalidateStudentSubjects(ctx context.Context, cm *CacheManager, studentID string) {
	SafeInvalidatePattern(ctx, cm.Subject, fmt.Sprintf("student:%s:*", studentID))
}

// InvalidateEnrollmentCache drops what a roster change affects: the subject, its
// roster and the subject lists of the students that joined or left
func InvalidateEnrollmentCache(ctx context.Context, cm *CacheManager, subjectID uint, studentIDs ...string) {
	SafeDelete(ctx, cm.Subject,
		fmt.Sprintf("id:%d", subjectID),
		fmt.Sprintf("students:%d", subjectID))
	SafeInvalidatePattern(ctx, cm.Subject, "list:*")
	for _, id := range studentIDs {
		InvalidateStudentSubjects(ctx, cm, id)
	}
	SafeInvalidatePattern(ctx, cm.Stats, "*")
}

// InvalidateLocationCache drops a location and the subjects that embed it
func InvalidateLocationCache(ctx context.Context, cm *CacheManager, locationID uint) {
	SafeDelete(ctx, cm.Location, fmt.Sprintf("id:%d", locationID))
	SafeInvalidatePattern(ctx, cm.Location, "list:*")
	SafeInvalidatePattern(ctx, cm.Subject, "*")
}

// InvalidateStats drops cached dashboard aggregates after attendance changes
func InvalidateStats(ctx context.Context, cm *CacheManager) {
	SafeInvalidatePattern(ctx, cm.Stats, "*")
}
