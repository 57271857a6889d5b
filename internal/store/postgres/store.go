package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/fiend365gdsv/SQMS/internal/models"
	"github.com/fiend365gdsv/SQMS/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const tokenColumns = `token_id, doctor_id, patient_id, token_number, queue_order, status, missed_count, created_at, called_at, served_at, service_seconds, service_day`

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) CreateDoctor(ctx context.Context, name string) (models.Doctor, error) {
	var doctor models.Doctor
	row := s.pool.QueryRow(ctx, `
		INSERT INTO doctors (doctor_id, name, available)
		VALUES ($1, $2, TRUE)
		RETURNING doctor_id, name, available
	`, uuid.NewString(), name)
	if err := row.Scan(&doctor.DoctorID, &doctor.Name, &doctor.Available); err != nil {
		return models.Doctor{}, err
	}
	return doctor, nil
}

func (s *Store) FindDoctor(ctx context.Context, doctorID string) (models.Doctor, error) {
	var doctor models.Doctor
	row := s.pool.QueryRow(ctx, `
		SELECT doctor_id, name, available
		FROM doctors
		WHERE doctor_id = $1
	`, doctorID)
	if err := row.Scan(&doctor.DoctorID, &doctor.Name, &doctor.Available); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Doctor{}, store.ErrDoctorNotFound
		}
		return models.Doctor{}, err
	}
	return doctor, nil
}

func (s *Store) ListDoctors(ctx context.Context) ([]models.Doctor, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT doctor_id, name, available
		FROM doctors
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var doctors []models.Doctor
	for rows.Next() {
		var doctor models.Doctor
		if err := rows.Scan(&doctor.DoctorID, &doctor.Name, &doctor.Available); err != nil {
			return nil, err
		}
		doctors = append(doctors, doctor)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return doctors, nil
}

func (s *Store) UpdateDoctorAvailability(ctx context.Context, doctorID string, available bool) (models.Doctor, error) {
	var doctor models.Doctor
	row := s.pool.QueryRow(ctx, `
		UPDATE doctors
		SET available = $2
		WHERE doctor_id = $1
		RETURNING doctor_id, name, available
	`, doctorID, available)
	if err := row.Scan(&doctor.DoctorID, &doctor.Name, &doctor.Available); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Doctor{}, store.ErrDoctorNotFound
		}
		return models.Doctor{}, err
	}
	return doctor, nil
}

func (s *Store) CreatePatient(ctx context.Context, patient models.Patient) (models.Patient, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO patients (patient_id, name, age, contact)
		VALUES ($1, $2, $3, $4)
		RETURNING patient_id, name, age, contact
	`, uuid.NewString(), patient.Name, patient.Age, patient.Contact)
	var saved models.Patient
	if err := row.Scan(&saved.PatientID, &saved.Name, &saved.Age, &saved.Contact); err != nil {
		return models.Patient{}, err
	}
	return saved, nil
}

func (s *Store) FindPatient(ctx context.Context, patientID string) (models.Patient, error) {
	var patient models.Patient
	row := s.pool.QueryRow(ctx, `
		SELECT patient_id, name, age, contact
		FROM patients
		WHERE patient_id = $1
	`, patientID)
	if err := row.Scan(&patient.PatientID, &patient.Name, &patient.Age, &patient.Contact); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Patient{}, store.ErrPatientNotFound
		}
		return models.Patient{}, err
	}
	return patient, nil
}

func (s *Store) InsertToken(ctx context.Context, token models.Token) (models.Token, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO tokens (
			token_id, doctor_id, patient_id, token_number, queue_order,
			status, missed_count, created_at, service_seconds, service_day
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING `+tokenColumns+`
	`, uuid.NewString(), token.DoctorID, token.PatientID, token.TokenNumber, token.QueueOrder,
		token.Status, token.MissedCount, token.CreatedAt, token.ServiceSeconds, token.ServiceDay)
	return scanToken(row)
}

func (s *Store) UpdateToken(ctx context.Context, token models.Token) (models.Token, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE tokens
		SET queue_order = $2,
			status = $3,
			missed_count = $4,
			called_at = $5,
			served_at = $6,
			service_seconds = $7
		WHERE token_id = $1
		RETURNING `+tokenColumns+`
	`, token.TokenID, token.QueueOrder, token.Status, token.MissedCount,
		nullTime(token.CalledAt), nullTime(token.ServedAt), token.ServiceSeconds)
	saved, err := scanToken(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Token{}, store.ErrTokenNotFound
		}
		return models.Token{}, err
	}
	return saved, nil
}

func (s *Store) FindToken(ctx context.Context, tokenID string) (models.Token, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+tokenColumns+`
		FROM tokens
		WHERE token_id = $1
	`, tokenID)
	token, err := scanToken(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Token{}, store.ErrTokenNotFound
		}
		return models.Token{}, err
	}
	return token, nil
}

func (s *Store) MaxQueueOrder(ctx context.Context, doctorID string) (int64, error) {
	var max int64
	row := s.pool.QueryRow(ctx, `
		SELECT COALESCE(MAX(queue_order), 0)
		FROM tokens
		WHERE doctor_id = $1
	`, doctorID)
	if err := row.Scan(&max); err != nil {
		return 0, err
	}
	return max, nil
}

func (s *Store) MaxTokenNumber(ctx context.Context, doctorID string, day time.Time) (int, error) {
	var max int
	row := s.pool.QueryRow(ctx, `
		SELECT COALESCE(MAX(token_number), 0)
		FROM tokens
		WHERE doctor_id = $1 AND service_day = $2
	`, doctorID, day)
	if err := row.Scan(&max); err != nil {
		return 0, err
	}
	return max, nil
}

func (s *Store) FirstWaitingByOrder(ctx context.Context, doctorID string) (models.Token, bool, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+tokenColumns+`
		FROM tokens
		WHERE doctor_id = $1 AND status = 'waiting'
		ORDER BY queue_order ASC
		LIMIT 1
	`, doctorID)
	token, err := scanToken(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Token{}, false, nil
		}
		return models.Token{}, false, err
	}
	return token, true, nil
}

func (s *Store) AllWaiting(ctx context.Context, doctorID string) ([]models.Token, error) {
	return s.queryTokens(ctx, `
		SELECT `+tokenColumns+`
		FROM tokens
		WHERE doctor_id = $1 AND status = 'waiting'
		ORDER BY queue_order ASC
	`, doctorID)
}

func (s *Store) PendingOnDay(ctx context.Context, doctorID string, day time.Time) ([]models.Token, error) {
	return s.queryTokens(ctx, `
		SELECT `+tokenColumns+`
		FROM tokens
		WHERE doctor_id = $1 AND service_day = $2 AND status IN ('waiting', 'called')
		ORDER BY queue_order ASC
	`, doctorID, day)
}

func (s *Store) CompletedOnDay(ctx context.Context, doctorID string, day time.Time) ([]models.Token, error) {
	return s.queryTokens(ctx, `
		SELECT `+tokenColumns+`
		FROM tokens
		WHERE doctor_id = $1 AND service_day = $2 AND status = 'served'
		ORDER BY served_at ASC
	`, doctorID, day)
}

func (s *Store) ServedOnDay(ctx context.Context, doctorID string, day time.Time) ([]models.Token, error) {
	return s.queryTokens(ctx, `
		SELECT `+tokenColumns+`
		FROM tokens
		WHERE doctor_id = $1 AND service_day = $2 AND status = 'served'
		ORDER BY served_at DESC
	`, doctorID, day)
}

func (s *Store) StaleCalled(ctx context.Context, cutoff time.Time, limit int) ([]models.Token, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.queryTokens(ctx, `
		SELECT `+tokenColumns+`
		FROM tokens
		WHERE status = 'called' AND called_at <= $1
		ORDER BY called_at ASC
		LIMIT $2
	`, cutoff, limit)
}

func (s *Store) queryTokens(ctx context.Context, query string, args ...interface{}) ([]models.Token, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []models.Token
	for rows.Next() {
		token, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tokens, nil
}

func scanToken(row pgx.Row) (models.Token, error) {
	var token models.Token
	var calledAtNull sql.NullTime
	var servedAtNull sql.NullTime
	if err := row.Scan(&token.TokenID, &token.DoctorID, &token.PatientID, &token.TokenNumber,
		&token.QueueOrder, &token.Status, &token.MissedCount, &token.CreatedAt,
		&calledAtNull, &servedAtNull, &token.ServiceSeconds, &token.ServiceDay); err != nil {
		return models.Token{}, err
	}
	token.CalledAt = nullTimePtr(calledAtNull)
	token.ServedAt = nullTimePtr(servedAtNull)
	return token, nil
}

func nullTimePtr(value sql.NullTime) *time.Time {
	if !value.Valid {
		return nil
	}
	t := value.Time
	return &t
}

func nullTime(value *time.Time) sql.NullTime {
	if value == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *value, Valid: true}
}
