package queue

import (
	"context"
	"sync"
	"time"

	"github.com/fiend365gdsv/SQMS/internal/models"
	"github.com/fiend365gdsv/SQMS/internal/store"
)

// Notifier receives a signal after every durable queue mutation for a doctor.
type Notifier interface {
	Notify(doctorID string)
}

type Options struct {
	DefaultServiceSeconds int
	ServiceWindow         int
	Now                   func() time.Time
}

// Engine owns token lifecycle and ordering for per-doctor queues. Mutations
// that compute a next sequence value are serialized per doctor; operations on
// different doctors never block each other.
type Engine struct {
	store                 store.TokenStore
	notifier              Notifier
	defaultServiceSeconds int
	serviceWindow         int
	now                   func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

type WaitingEntry struct {
	Token      models.Token `json:"token"`
	Position   int          `json:"position"`
	EtaSeconds int          `json:"eta_seconds"`
}

func New(st store.TokenStore, notifier Notifier, options Options) *Engine {
	defaultSeconds := options.DefaultServiceSeconds
	if defaultSeconds <= 0 {
		defaultSeconds = 180
	}
	window := options.ServiceWindow
	if window <= 0 {
		window = 30
	}
	now := options.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		store:                 st,
		notifier:              notifier,
		defaultServiceSeconds: defaultSeconds,
		serviceWindow:         window,
		now:                   now,
		locks:                 make(map[string]*sync.Mutex),
	}
}

func (e *Engine) doctorLock(doctorID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	lock, ok := e.locks[doctorID]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[doctorID] = lock
	}
	return lock
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func (e *Engine) Enqueue(ctx context.Context, doctorID, patientID string) (models.Token, error) {
	if _, err := e.store.FindDoctor(ctx, doctorID); err != nil {
		return models.Token{}, err
	}
	if _, err := e.store.FindPatient(ctx, patientID); err != nil {
		return models.Token{}, err
	}

	lock := e.doctorLock(doctorID)
	lock.Lock()
	defer lock.Unlock()

	now := e.now()
	day := startOfDay(now)

	maxOrder, err := e.store.MaxQueueOrder(ctx, doctorID)
	if err != nil {
		return models.Token{}, err
	}
	maxNumber, err := e.store.MaxTokenNumber(ctx, doctorID, day)
	if err != nil {
		return models.Token{}, err
	}

	token, err := e.store.InsertToken(ctx, models.Token{
		DoctorID:    doctorID,
		PatientID:   patientID,
		TokenNumber: maxNumber + 1,
		QueueOrder:  maxOrder + 1,
		Status:      models.StatusWaiting,
		MissedCount: 0,
		CreatedAt:   now,
		ServiceDay:  day,
	})
	if err != nil {
		return models.Token{}, err
	}

	e.notifier.Notify(doctorID)
	return token, nil
}

func (e *Engine) CallNext(ctx context.Context, doctorID string) (models.Token, error) {
	if _, err := e.store.FindDoctor(ctx, doctorID); err != nil {
		return models.Token{}, err
	}

	lock := e.doctorLock(doctorID)
	lock.Lock()
	defer lock.Unlock()

	token, found, err := e.store.FirstWaitingByOrder(ctx, doctorID)
	if err != nil {
		return models.Token{}, err
	}
	if !found {
		return models.Token{}, store.ErrQueueEmpty
	}

	now := e.now()
	token.Status = models.StatusCalled
	token.CalledAt = &now

	saved, err := e.store.UpdateToken(ctx, token)
	if err != nil {
		return models.Token{}, err
	}

	e.notifier.Notify(doctorID)
	return saved, nil
}

func (e *Engine) MarkServed(ctx context.Context, tokenID string) (models.Token, error) {
	token, err := e.store.FindToken(ctx, tokenID)
	if err != nil {
		return models.Token{}, err
	}

	lock := e.doctorLock(token.DoctorID)
	lock.Lock()
	defer lock.Unlock()

	// re-read under the lock; a concurrent transition may have landed first
	token, err = e.store.FindToken(ctx, tokenID)
	if err != nil {
		return models.Token{}, err
	}
	if !store.ValidTransition("serve", token.Status) {
		return models.Token{}, store.ErrInvalidTransition
	}

	now := e.now()
	token.Status = models.StatusServed
	token.ServedAt = &now
	if token.CalledAt != nil {
		seconds := int(now.Sub(*token.CalledAt) / time.Second)
		if seconds < 0 {
			seconds = 0
		}
		token.ServiceSeconds = seconds
	}

	saved, err := e.store.UpdateToken(ctx, token)
	if err != nil {
		return models.Token{}, err
	}

	e.notifier.Notify(saved.DoctorID)
	return saved, nil
}

// MarkAbsentAndRequeue moves a token to the back of its doctor's queue while
// keeping the patient-visible token number stable.
func (e *Engine) MarkAbsentAndRequeue(ctx context.Context, tokenID string) (models.Token, error) {
	token, err := e.store.FindToken(ctx, tokenID)
	if err != nil {
		return models.Token{}, err
	}

	lock := e.doctorLock(token.DoctorID)
	lock.Lock()
	defer lock.Unlock()

	token, err = e.store.FindToken(ctx, tokenID)
	if err != nil {
		return models.Token{}, err
	}
	if !store.ValidTransition("absent", token.Status) {
		return models.Token{}, store.ErrInvalidTransition
	}

	maxOrder, err := e.store.MaxQueueOrder(ctx, token.DoctorID)
	if err != nil {
		return models.Token{}, err
	}

	token.Status = models.StatusWaiting
	token.QueueOrder = maxOrder + 1
	token.MissedCount++
	token.CalledAt = nil

	saved, err := e.store.UpdateToken(ctx, token)
	if err != nil {
		return models.Token{}, err
	}

	e.notifier.Notify(saved.DoctorID)
	return saved, nil
}

func (e *Engine) WaitingList(ctx context.Context, doctorID string) ([]models.Token, error) {
	if _, err := e.store.FindDoctor(ctx, doctorID); err != nil {
		return nil, err
	}
	return e.store.AllWaiting(ctx, doctorID)
}

func (e *Engine) PendingTokens(ctx context.Context, doctorID string) ([]models.Token, error) {
	if _, err := e.store.FindDoctor(ctx, doctorID); err != nil {
		return nil, err
	}
	return e.store.PendingOnDay(ctx, doctorID, startOfDay(e.now()))
}

func (e *Engine) CompletedTokens(ctx context.Context, doctorID string) ([]models.Token, error) {
	if _, err := e.store.FindDoctor(ctx, doctorID); err != nil {
		return nil, err
	}
	return e.store.CompletedOnDay(ctx, doctorID, startOfDay(e.now()))
}

// AverageServiceSecondsToday returns the mean service duration over the most
// recently served tokens of the current day, capped at the rolling window and
// excluding non-positive samples. Falls back to the configured default when no
// sample qualifies.
func (e *Engine) AverageServiceSecondsToday(ctx context.Context, doctorID string) (int, error) {
	if _, err := e.store.FindDoctor(ctx, doctorID); err != nil {
		return 0, err
	}
	served, err := e.store.ServedOnDay(ctx, doctorID, startOfDay(e.now()))
	if err != nil {
		return 0, err
	}

	sum := 0
	count := 0
	for _, token := range served {
		if count >= e.serviceWindow {
			break
		}
		if token.ServiceSeconds <= 0 {
			continue
		}
		sum += token.ServiceSeconds
		count++
	}
	if count == 0 {
		return e.defaultServiceSeconds, nil
	}
	return sum / count, nil
}

// EstimateWait pairs each waiting token with its 1-based position and a linear
// ETA of position-ahead times the doctor's rolling average service duration.
func (e *Engine) EstimateWait(ctx context.Context, doctorID string) ([]WaitingEntry, int, error) {
	waiting, err := e.WaitingList(ctx, doctorID)
	if err != nil {
		return nil, 0, err
	}
	average, err := e.AverageServiceSecondsToday(ctx, doctorID)
	if err != nil {
		return nil, 0, err
	}

	entries := make([]WaitingEntry, 0, len(waiting))
	for i, token := range waiting {
		entries = append(entries, WaitingEntry{
			Token:      token,
			Position:   i + 1,
			EtaSeconds: i * average,
		})
	}
	return entries, average, nil
}

// RequeueStale applies the absence transition to tokens left in CALLED longer
// than grace. Per-token failures are skipped so one bad row cannot stall the
// scan.
func (e *Engine) RequeueStale(ctx context.Context, grace time.Duration, limit int) (int, error) {
	if grace <= 0 {
		return 0, nil
	}
	if limit <= 0 {
		limit = 100
	}
	stale, err := e.store.StaleCalled(ctx, e.now().Add(-grace), limit)
	if err != nil {
		return 0, err
	}
	processed := 0
	for _, token := range stale {
		if _, err := e.MarkAbsentAndRequeue(ctx, token.TokenID); err != nil {
			continue
		}
		processed++
	}
	return processed, nil
}

func (e *Engine) RegisterDoctor(ctx context.Context, name string) (models.Doctor, error) {
	return e.store.CreateDoctor(ctx, name)
}

func (e *Engine) Doctors(ctx context.Context) ([]models.Doctor, error) {
	return e.store.ListDoctors(ctx)
}

func (e *Engine) SetDoctorAvailability(ctx context.Context, doctorID string, available bool) (models.Doctor, error) {
	return e.store.UpdateDoctorAvailability(ctx, doctorID, available)
}

func (e *Engine) RegisterPatient(ctx context.Context, patient models.Patient) (models.Patient, error) {
	return e.store.CreatePatient(ctx, patient)
}
