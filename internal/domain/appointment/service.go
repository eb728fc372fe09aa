package appointment

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/now"

	"github.com/inderhuila/sportsmed/internal/domain/athlete"
	"github.com/inderhuila/sportsmed/internal/domain/catalog"
	"github.com/inderhuila/sportsmed/pkg/dates"
)

// AthleteGetter is satisfied by *athlete.Service.
type AthleteGetter interface {
	Get(ctx context.Context, id uuid.UUID) (*athlete.Athlete, error)
}

// ItemResolver is satisfied by *catalog.Service.
type ItemResolver interface {
	ItemID(ctx context.Context, catalogName, code string) (uuid.UUID, error)
}

// Period names accepted by Range.
const (
	PeriodToday = "today"
	PeriodWeek  = "week"
	PeriodMonth = "month"
)

type Service struct {
	repo     Repository
	athletes AthleteGetter
	items    ItemResolver
	calendar *now.Config
	clock    func() time.Time
}

// NewService computes day boundaries in loc, the clinic's time zone. Weeks
// start on Monday.
func NewService(repo Repository, athletes AthleteGetter, items ItemResolver, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		repo:     repo,
		athletes: athletes,
		items:    items,
		calendar: &now.Config{WeekStartDay: time.Monday, TimeLocation: loc},
		clock:    time.Now,
	}
}

func (s *Service) validate(a *Appointment) error {
	a.Notes = strings.TrimSpace(a.Notes)
	switch {
	case a.AthleteID == uuid.Nil:
		return fmt.Errorf("%w: athlete_id is required", ErrInvalid)
	case a.Date.IsZero():
		return fmt.Errorf("%w: date is required", ErrInvalid)
	case a.Time == nil:
		return fmt.Errorf("%w: time is required", ErrInvalid)
	case a.TypeID == uuid.Nil:
		return fmt.Errorf("%w: type_id is required", ErrInvalid)
	}
	return nil
}

// Create books an appointment for an existing athlete. A missing status is
// set to the "scheduled" catalog item.
func (s *Service) Create(ctx context.Context, a *Appointment) error {
	if err := s.validate(a); err != nil {
		return err
	}
	if _, err := s.athletes.Get(ctx, a.AthleteID); err != nil {
		return err
	}
	if a.StatusID == uuid.Nil {
		id, err := s.items.ItemID(ctx, catalog.AppointmentStatus, DefaultStatusCode)
		if err != nil {
			return fmt.Errorf("resolve default appointment status: %w", err)
		}
		a.StatusID = id
	}
	return s.repo.Create(ctx, a)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetByID(ctx, id)
}

// Update changes date, time, type, status and notes. The athlete of an
// appointment never changes.
func (s *Service) Update(ctx context.Context, a *Appointment) error {
	cur, err := s.repo.GetByID(ctx, a.ID)
	if err != nil {
		return err
	}
	a.AthleteID = cur.AthleteID
	if a.StatusID == uuid.Nil {
		a.StatusID = cur.StatusID
	}
	if err := s.validate(a); err != nil {
		return err
	}
	return s.repo.Update(ctx, a)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) List(ctx context.Context, f Filter, limit, offset int) ([]*Appointment, int, error) {
	if f.From != nil && f.To != nil && f.To.Before(f.From.Time) {
		return nil, 0, fmt.Errorf("%w: to must not be before from", ErrInvalid)
	}
	return s.repo.List(ctx, f, limit, offset)
}

func (s *Service) ListByAthlete(ctx context.Context, athleteID uuid.UUID) ([]*Appointment, error) {
	if _, err := s.athletes.Get(ctx, athleteID); err != nil {
		return nil, err
	}
	return s.repo.ListByAthlete(ctx, athleteID)
}

// Range returns the first and last calendar day of period around the
// current clinic time.
func (s *Service) Range(period string) (from, to dates.Date, err error) {
	n := s.calendar.With(s.clock().In(s.calendar.TimeLocation))
	switch period {
	case PeriodToday, "":
		return dates.NewDate(n.BeginningOfDay()), dates.NewDate(n.EndOfDay()), nil
	case PeriodWeek:
		return dates.NewDate(n.BeginningOfWeek()), dates.NewDate(n.EndOfWeek()), nil
	case PeriodMonth:
		return dates.NewDate(n.BeginningOfMonth()), dates.NewDate(n.EndOfMonth()), nil
	default:
		return dates.Date{}, dates.Date{}, fmt.Errorf("%w: period must be today, week or month", ErrInvalid)
	}
}

// todayLimit bounds how many of today's appointments Today reads.
const todayLimit = 500

// Today groups the current clinic day's appointments by athlete. Athletes
// are ordered by their earliest appointment.
func (s *Service) Today(ctx context.Context) ([]*DayAgenda, error) {
	from, to, err := s.Range(PeriodToday)
	if err != nil {
		return nil, err
	}
	appts, _, err := s.repo.List(ctx, Filter{From: &from, To: &to}, todayLimit, 0)
	if err != nil {
		return nil, err
	}

	byAthlete := make(map[uuid.UUID]*DayAgenda)
	var order []uuid.UUID
	for _, a := range appts {
		day, ok := byAthlete[a.AthleteID]
		if !ok {
			ath, err := s.athletes.Get(ctx, a.AthleteID)
			if err != nil {
				return nil, fmt.Errorf("load athlete %s: %w", a.AthleteID, err)
			}
			day = &DayAgenda{Athlete: ath}
			byAthlete[a.AthleteID] = day
			order = append(order, a.AthleteID)
		}
		day.Appointments = append(day.Appointments, a)
	}

	out := make([]*DayAgenda, 0, len(order))
	for _, id := range order {
		day := byAthlete[id]
		sort.SliceStable(day.Appointments, func(i, j int) bool {
			return clockBefore(day.Appointments[i].Time, day.Appointments[j].Time)
		})
		out = append(out, day)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return clockBefore(out[i].Appointments[0].Time, out[j].Appointments[0].Time)
	})
	return out, nil
}

func clockBefore(a, b *dates.Clock) bool {
	if a == nil || b == nil {
		return b != nil
	}
	return a.Before(*b)
}
