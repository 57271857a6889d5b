package store

import (
	"context"
	"time"

	"github.com/fiend365gdsv/SQMS/internal/models"
)

// TokenStore is the durable-store surface the queue engine depends on.
// Max aggregates return 0 when no rows qualify. Day parameters are
// midnight-aligned service days.
type TokenStore interface {
	CreateDoctor(ctx context.Context, name string) (models.Doctor, error)
	FindDoctor(ctx context.Context, doctorID string) (models.Doctor, error)
	ListDoctors(ctx context.Context) ([]models.Doctor, error)
	UpdateDoctorAvailability(ctx context.Context, doctorID string, available bool) (models.Doctor, error)

	CreatePatient(ctx context.Context, patient models.Patient) (models.Patient, error)
	FindPatient(ctx context.Context, patientID string) (models.Patient, error)

	InsertToken(ctx context.Context, token models.Token) (models.Token, error)
	UpdateToken(ctx context.Context, token models.Token) (models.Token, error)
	FindToken(ctx context.Context, tokenID string) (models.Token, error)

	MaxQueueOrder(ctx context.Context, doctorID string) (int64, error)
	MaxTokenNumber(ctx context.Context, doctorID string, day time.Time) (int, error)

	FirstWaitingByOrder(ctx context.Context, doctorID string) (models.Token, bool, error)
	AllWaiting(ctx context.Context, doctorID string) ([]models.Token, error)
	PendingOnDay(ctx context.Context, doctorID string, day time.Time) ([]models.Token, error)
	CompletedOnDay(ctx context.Context, doctorID string, day time.Time) ([]models.Token, error)
	ServedOnDay(ctx context.Context, doctorID string, day time.Time) ([]models.Token, error)
	StaleCalled(ctx context.Context, cutoff time.Time, limit int) ([]models.Token, error)
}
