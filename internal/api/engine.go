package api

import "github.com/google/uuid"

// JobEngine is the slice of the job engine the handlers need: submitting
// work and probing what is currently in flight.
type JobEngine interface {
	EnqueueIngestion(taskID uuid.UUID, sourceRef string) error
	EnqueueSearch(searchID uuid.UUID) error
	EnqueueNotification(notificationID uuid.UUID) error

	CurrentIngestionJob() (uuid.UUID, bool)
	CurrentSearchJob() (uuid.UUID, bool)
	CurrentNotificationJob() (uuid.UUID, bool)
}
