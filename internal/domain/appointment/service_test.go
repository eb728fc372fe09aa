package appointment

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inderhuila/sportsmed/internal/domain/athlete"
	"github.com/inderhuila/sportsmed/internal/domain/catalog"
	"github.com/inderhuila/sportsmed/pkg/dates"
)

type mockRepo struct {
	store map[uuid.UUID]*Appointment
}

func newMockRepo() *mockRepo {
	return &mockRepo{store: map[uuid.UUID]*Appointment{}}
}

func (m *mockRepo) Create(_ context.Context, a *Appointment) error {
	a.ID = uuid.New()
	a.CreatedAt = time.Now()
	cp := *a
	m.store[a.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	a, ok := m.store[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *mockRepo) Update(_ context.Context, a *Appointment) error {
	if _, ok := m.store[a.ID]; !ok {
		return ErrNotFound
	}
	cp := *a
	m.store[a.ID] = &cp
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.store[id]; !ok {
		return ErrNotFound
	}
	delete(m.store, id)
	return nil
}

func (m *mockRepo) List(_ context.Context, f Filter, limit, offset int) ([]*Appointment, int, error) {
	var out []*Appointment
	for _, a := range m.store {
		if f.From != nil && a.Date.Before(f.From.Time) {
			continue
		}
		if f.To != nil && a.Date.After(f.To.Time) {
			continue
		}
		if f.StatusID != nil && a.StatusID != *f.StatusID {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date.Time) {
			return out[i].Date.Before(out[j].Date.Time)
		}
		return out[i].Time.Before(*out[j].Time)
	})
	total := len(out)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return out[offset:end], total, nil
}

func (m *mockRepo) ListByAthlete(_ context.Context, athleteID uuid.UUID) ([]*Appointment, error) {
	var out []*Appointment
	for _, a := range m.store {
		if a.AthleteID == athleteID {
			out = append(out, a)
		}
	}
	return out, nil
}

type fakeAthletes map[uuid.UUID]*athlete.Athlete

func (f fakeAthletes) Get(_ context.Context, id uuid.UUID) (*athlete.Athlete, error) {
	a, ok := f[id]
	if !ok {
		return nil, athlete.ErrNotFound
	}
	return a, nil
}

type fakeItems struct{ scheduled uuid.UUID }

func (f fakeItems) ItemID(_ context.Context, catalogName, code string) (uuid.UUID, error) {
	if catalogName == catalog.AppointmentStatus && code == DefaultStatusCode {
		return f.scheduled, nil
	}
	return uuid.Nil, catalog.ErrItemNotFound
}

var bogota = time.FixedZone("COT", -5*3600)

type fixture struct {
	svc       *Service
	repo      *mockRepo
	athletes  fakeAthletes
	scheduled uuid.UUID
}

func newFixture(t *testing.T, at time.Time) *fixture {
	t.Helper()
	f := &fixture{repo: newMockRepo(), athletes: fakeAthletes{}, scheduled: uuid.New()}
	f.svc = NewService(f.repo, f.athletes, fakeItems{scheduled: f.scheduled}, bogota)
	f.svc.clock = func() time.Time { return at }
	return f
}

func (f *fixture) addAthlete(name string) *athlete.Athlete {
	a := &athlete.Athlete{ID: uuid.New(), FirstNames: name, LastNames: "Test"}
	f.athletes[a.ID] = a
	return a
}

func clock(t *testing.T, s string) *dates.Clock {
	t.Helper()
	c, err := dates.ParseClock(s)
	require.NoError(t, err)
	return &c
}

func day(t *testing.T, s string) dates.Date {
	t.Helper()
	d, err := dates.ParseDate(s)
	require.NoError(t, err)
	return d
}

func TestService_Create(t *testing.T) {
	f := newFixture(t, time.Now())
	ctx := context.Background()
	ath := f.addAthlete("Camila")

	a := &Appointment{AthleteID: ath.ID, Date: day(t, "2026-04-10"), Time: clock(t, "08:30"), TypeID: uuid.New()}
	require.NoError(t, f.svc.Create(ctx, a))
	assert.Equal(t, f.scheduled, a.StatusID)

	err := f.svc.Create(ctx, &Appointment{AthleteID: uuid.New(), Date: day(t, "2026-04-10"), Time: clock(t, "09:00"), TypeID: uuid.New()})
	assert.ErrorIs(t, err, athlete.ErrNotFound)

	err = f.svc.Create(ctx, &Appointment{AthleteID: ath.ID, Time: clock(t, "09:00"), TypeID: uuid.New()})
	assert.ErrorIs(t, err, ErrInvalid)

	err = f.svc.Create(ctx, &Appointment{AthleteID: ath.ID, Date: day(t, "2026-04-10"), TypeID: uuid.New()})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestService_UpdateKeepsAthleteAndStatus(t *testing.T) {
	f := newFixture(t, time.Now())
	ctx := context.Background()
	ath := f.addAthlete("Juan")
	a := &Appointment{AthleteID: ath.ID, Date: day(t, "2026-04-10"), Time: clock(t, "08:30"), TypeID: uuid.New()}
	require.NoError(t, f.svc.Create(ctx, a))

	upd := &Appointment{ID: a.ID, AthleteID: uuid.New(), Date: day(t, "2026-04-11"), Time: clock(t, "10:00"), TypeID: a.TypeID}
	require.NoError(t, f.svc.Update(ctx, upd))
	assert.Equal(t, ath.ID, upd.AthleteID)
	assert.Equal(t, f.scheduled, upd.StatusID)

	err := f.svc.Update(ctx, &Appointment{ID: uuid.New(), Date: day(t, "2026-04-11"), Time: clock(t, "10:00"), TypeID: a.TypeID})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_TodayUsesClinicDay(t *testing.T) {
	// 23:30 in Bogotá is already the next day in UTC.
	f := newFixture(t, time.Date(2026, 4, 10, 23, 30, 0, 0, bogota))
	ctx := context.Background()
	ana := f.addAthlete("Ana")
	beto := f.addAthlete("Beto")
	carla := f.addAthlete("Carla")

	typ := uuid.New()
	for _, a := range []*Appointment{
		{AthleteID: ana.ID, Date: day(t, "2026-04-10"), Time: clock(t, "15:00"), TypeID: typ},
		{AthleteID: ana.ID, Date: day(t, "2026-04-10"), Time: clock(t, "09:00"), TypeID: typ},
		{AthleteID: beto.ID, Date: day(t, "2026-04-10"), Time: clock(t, "07:45"), TypeID: typ},
		{AthleteID: carla.ID, Date: day(t, "2026-04-11"), Time: clock(t, "08:00"), TypeID: typ},
	} {
		require.NoError(t, f.svc.Create(ctx, a))
	}

	days, err := f.svc.Today(ctx)
	require.NoError(t, err)
	require.Len(t, days, 2)
	assert.Equal(t, beto.ID, days[0].Athlete.ID)
	assert.Equal(t, ana.ID, days[1].Athlete.ID)
	require.Len(t, days[1].Appointments, 2)
	assert.Equal(t, "09:00", days[1].Appointments[0].Time.String())
	assert.Equal(t, "15:00", days[1].Appointments[1].Time.String())
}

func TestService_Range(t *testing.T) {
	// Wednesday.
	f := newFixture(t, time.Date(2026, 4, 15, 10, 0, 0, 0, bogota))

	from, to, err := f.svc.Range(PeriodWeek)
	require.NoError(t, err)
	assert.Equal(t, "2026-04-13", from.String())
	assert.Equal(t, "2026-04-19", to.String())

	from, to, err = f.svc.Range(PeriodMonth)
	require.NoError(t, err)
	assert.Equal(t, "2026-04-01", from.String())
	assert.Equal(t, "2026-04-30", to.String())

	from, to, err = f.svc.Range(PeriodToday)
	require.NoError(t, err)
	assert.Equal(t, from, to)

	_, _, err = f.svc.Range("year")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestService_ListRejectsInvertedRange(t *testing.T) {
	f := newFixture(t, time.Now())
	from, to := day(t, "2026-04-10"), day(t, "2026-04-01")
	_, _, err := f.svc.List(context.Background(), Filter{From: &from, To: &to}, 10, 0)
	assert.ErrorIs(t, err, ErrInvalid)
}
