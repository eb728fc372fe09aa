package history

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inderhuila/sportsmed/internal/domain/athlete"
	"github.com/inderhuila/sportsmed/internal/domain/catalog"
	"github.com/inderhuila/sportsmed/internal/platform/blobstore"
	"github.com/inderhuila/sportsmed/pkg/dates"
)

type mockRepo struct {
	athletes    map[uuid.UUID]*athlete.Athlete
	histories   map[uuid.UUID]*ClinicalHistory
	sections    map[uuid.UUID]*Sections
	files       map[uuid.UUID]*File
	failInsert  bool
	createdInTx []uuid.UUID
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		athletes:  map[uuid.UUID]*athlete.Athlete{},
		histories: map[uuid.UUID]*ClinicalHistory{},
		sections:  map[uuid.UUID]*Sections{},
		files:     map[uuid.UUID]*File{},
	}
}

func (m *mockRepo) Create(_ context.Context, h *ClinicalHistory) error {
	if _, ok := m.athletes[h.AthleteID]; !ok {
		return ErrInvalid
	}
	h.ID = uuid.New()
	h.CreatedAt = time.Now()
	h.UpdatedAt = h.CreatedAt
	cp := *h
	m.histories[h.ID] = &cp
	m.createdInTx = append(m.createdInTx, h.ID)
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*ClinicalHistory, error) {
	h, ok := m.histories[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *h
	return &cp, nil
}

func (m *mockRepo) List(_ context.Context, f Filter, limit, offset int) ([]*ClinicalHistory, int, error) {
	var all []*ClinicalHistory
	for _, h := range m.histories {
		if f.AthleteID != nil && h.AthleteID != *f.AthleteID {
			continue
		}
		cp := *h
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].OpenedOn.After(all[j].OpenedOn.Time) })
	total := len(all)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (m *mockRepo) UpdateStatus(_ context.Context, id, statusID uuid.UUID) (*ClinicalHistory, error) {
	h, ok := m.histories[id]
	if !ok {
		return nil, ErrNotFound
	}
	h.StatusID = statusID
	cp := *h
	return &cp, nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.histories[id]; !ok {
		return ErrNotFound
	}
	delete(m.histories, id)
	delete(m.sections, id)
	for fid, f := range m.files {
		if f.HistoryID == id {
			delete(m.files, fid)
		}
	}
	return nil
}

func (m *mockRepo) InsertSections(_ context.Context, historyID uuid.UUID, s *Sections) error {
	if m.failInsert {
		return errors.New("insert history section 3: boom")
	}
	for i := range s.Diagnoses {
		s.Diagnoses[i].ID = uuid.New()
	}
	cp := *s
	m.sections[historyID] = &cp
	return nil
}

func (m *mockRepo) LoadSections(_ context.Context, historyID uuid.UUID) (*Sections, error) {
	s, ok := m.sections[historyID]
	if !ok {
		return &Sections{}, nil
	}
	cp := *s
	return &cp, nil
}

func (m *mockRepo) Header(_ context.Context, historyID uuid.UUID) (*Bundle, error) {
	h, ok := m.histories[historyID]
	if !ok {
		return nil, ErrNotFound
	}
	a := m.athletes[h.AthleteID]
	cp := *h
	return &Bundle{
		History: &cp,
		Status:  "Abierta",
		Athlete: AthleteSummary{
			ID: a.ID, DocumentType: "Cédula de ciudadanía", DocumentNumber: a.DocumentNumber,
			FirstNames: a.FirstNames, LastNames: a.LastNames, BirthDate: a.BirthDate, Sex: "Femenino",
			Sport: a.Sport, Email: a.Email,
		},
	}, nil
}

func (m *mockRepo) CreateFile(_ context.Context, f *File) error {
	if _, ok := m.histories[f.HistoryID]; !ok {
		return ErrNotFound
	}
	f.ID = uuid.New()
	f.CreatedAt = time.Now()
	cp := *f
	m.files[f.ID] = &cp
	return nil
}

func (m *mockRepo) GetFile(_ context.Context, id uuid.UUID) (*File, error) {
	f, ok := m.files[id]
	if !ok {
		return nil, ErrFileNotFound
	}
	cp := *f
	return &cp, nil
}

func (m *mockRepo) ListFiles(_ context.Context, historyID uuid.UUID) ([]*File, error) {
	var out []*File
	for _, f := range m.files {
		if f.HistoryID == historyID {
			cp := *f
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockRepo) DeleteFile(_ context.Context, id uuid.UUID) error {
	if _, ok := m.files[id]; !ok {
		return ErrFileNotFound
	}
	delete(m.files, id)
	return nil
}

// fakeTx undoes the histories created by fn when it fails.
type fakeTx struct {
	repo  *mockRepo
	calls int
}

func (f *fakeTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	f.calls++
	f.repo.createdInTx = nil
	if err := fn(ctx); err != nil {
		for _, id := range f.repo.createdInTx {
			delete(f.repo.histories, id)
			delete(f.repo.sections, id)
		}
		return err
	}
	return nil
}

type stubAthletes struct{ repo *mockRepo }

func (s stubAthletes) Get(_ context.Context, id uuid.UUID) (*athlete.Athlete, error) {
	a, ok := s.repo.athletes[id]
	if !ok {
		return nil, athlete.ErrNotFound
	}
	return a, nil
}

type stubItems map[string]uuid.UUID

func (s stubItems) ItemID(_ context.Context, catalogName, code string) (uuid.UUID, error) {
	id, ok := s[catalogName+"/"+code]
	if !ok {
		return uuid.Nil, catalog.ErrItemNotFound
	}
	return id, nil
}

var (
	openStatus   = uuid.New()
	closedStatus = uuid.New()
)

func testItems() stubItems {
	return stubItems{
		catalog.HistoryStatus + "/ABIERTA": openStatus,
		catalog.HistoryStatus + "/CERRADA": closedStatus,
	}
}

func newTestService() (*Service, *mockRepo, *blobstore.MemoryStore) {
	repo := newMockRepo()
	files := blobstore.NewMemoryStore(blobstore.DefaultMaxFileSize)
	svc := NewService(repo, &fakeTx{repo: repo}, stubAthletes{repo}, testItems(), files,
		NewPDFRenderer(time.UTC), zerolog.Nop())
	svc.now = func() time.Time { return time.Date(2026, 4, 15, 10, 0, 0, 0, time.UTC) }
	return svc, repo, files
}

func seedAthlete(repo *mockRepo, doc string) *athlete.Athlete {
	birth, _ := dates.ParseDate("2002-05-20")
	a := &athlete.Athlete{
		ID: uuid.New(), DocumentNumber: doc, FirstNames: "María José", LastNames: "Cárdenas",
		BirthDate: birth, Sport: "Atletismo", Email: "mj@example.com",
	}
	repo.athletes[a.ID] = a
	return a
}

func fptr(f float64) *float64 { return &f }
func iptr(i int) *int         { return &i }

func fullRequest(athleteID uuid.UUID) *CompleteRequest {
	return &CompleteRequest{
		AthleteID: athleteID,
		Sections: Sections{
			ConsultationReason: &ConsultationReason{AppointmentType: "Control", Reason: "  Dolor en rodilla  "},
			PersonalHistory:    []PersonalHistory{{CIE11Code: "CA23", DiseaseName: "Asma"}},
			Allergies:          []Allergy{{AllergyType: "Medicamento", Description: "Penicilina"}},
			SystemsReview:      []SystemReview{{System: "Cardiovascular", Status: "Normal"}},
			VitalSigns:         &VitalSigns{HeightCM: fptr(170), WeightKG: fptr(65), HeartRate: iptr(58)},
			Diagnoses:          []Diagnosis{{CIE11Code: "FB56", Name: "Tendinopatía rotuliana"}},
			TreatmentPlan:      &TreatmentPlan{MedicalIndications: "Reposo relativo"},
			SpecialistReferrals: []SpecialistReferral{
				{Specialist: "Ortopedia", Reason: "Valoración"},
				{Specialist: "Fisiatría", Reason: "Plan de rehabilitación", Priority: PriorityUrgent},
			},
		},
	}
}

func TestService_CreateComplete(t *testing.T) {
	svc, repo, _ := newTestService()
	a := seedAthlete(repo, "900123456")
	req := fullRequest(a.ID)

	h, err := svc.CreateComplete(context.Background(), req)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, h.ID)
	assert.Equal(t, openStatus, h.StatusID)
	assert.Equal(t, "2026-04-15", h.OpenedOn.String())

	assert.Equal(t, "Dolor en rodilla", req.ConsultationReason.Reason)
	assert.Equal(t, SystemNormal, req.SystemsReview[0].Status)
	require.NotNil(t, req.VitalSigns.BMI)
	assert.InDelta(t, 22.49, *req.VitalSigns.BMI, 0.001)
	assert.Equal(t, PriorityNormal, req.SpecialistReferrals[0].Priority)
	assert.Equal(t, PriorityUrgent, req.SpecialistReferrals[1].Priority)

	b, err := svc.GetBundle(context.Background(), h.ID)
	require.NoError(t, err)
	assert.Equal(t, "900123456", b.Athlete.DocumentNumber)
	assert.Len(t, b.Sections.Diagnoses, 1)
}

func TestService_CreateComplete_Validation(t *testing.T) {
	svc, repo, _ := newTestService()
	a := seedAthlete(repo, "900123456")
	ctx := context.Background()

	_, err := svc.CreateComplete(ctx, &CompleteRequest{})
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = svc.CreateComplete(ctx, &CompleteRequest{AthleteID: uuid.New()})
	assert.ErrorIs(t, err, athlete.ErrNotFound)

	req := fullRequest(a.ID)
	req.SystemsReview[0].Status = "regular"
	_, err = svc.CreateComplete(ctx, req)
	assert.ErrorIs(t, err, ErrInvalid)

	req = fullRequest(a.ID)
	req.SpecialistReferrals[0].Priority = "Alta"
	_, err = svc.CreateComplete(ctx, req)
	assert.ErrorIs(t, err, ErrInvalid)

	req = fullRequest(a.ID)
	req.Diagnoses = append(req.Diagnoses, Diagnosis{CIE11Code: "X"})
	_, err = svc.CreateComplete(ctx, req)
	assert.ErrorContains(t, err, "diagnoses[1].name is required")

	assert.Empty(t, repo.histories)
}

func TestService_CreateComplete_RollsBack(t *testing.T) {
	svc, repo, _ := newTestService()
	a := seedAthlete(repo, "900123456")
	repo.failInsert = true

	_, err := svc.CreateComplete(context.Background(), fullRequest(a.ID))
	require.Error(t, err)
	assert.Empty(t, repo.histories)
}

func TestSections_NormalizeDropsEmptySingles(t *testing.T) {
	s := Sections{
		ConsultationReason: &ConsultationReason{Reason: "  "},
		VitalSigns:         &VitalSigns{},
		TreatmentPlan:      &TreatmentPlan{FollowUpPlan: " "},
	}
	require.NoError(t, s.Normalize())
	assert.Nil(t, s.ConsultationReason)
	assert.Nil(t, s.VitalSigns)
	assert.Nil(t, s.TreatmentPlan)
	assert.True(t, s.Empty())
}

func TestVitalSigns_ComputeBMI(t *testing.T) {
	v := VitalSigns{HeightCM: fptr(180), WeightKG: fptr(81)}
	v.ComputeBMI()
	require.NotNil(t, v.BMI)
	assert.Equal(t, 25.0, *v.BMI)

	given := VitalSigns{HeightCM: fptr(180), WeightKG: fptr(81), BMI: fptr(30)}
	given.ComputeBMI()
	assert.Equal(t, 30.0, *given.BMI)

	noHeight := VitalSigns{WeightKG: fptr(81)}
	noHeight.ComputeBMI()
	assert.Nil(t, noHeight.BMI)
}

func TestService_UpdateStatus(t *testing.T) {
	svc, repo, _ := newTestService()
	a := seedAthlete(repo, "900123456")
	ctx := context.Background()
	h, err := svc.CreateComplete(ctx, fullRequest(a.ID))
	require.NoError(t, err)

	got, err := svc.UpdateStatus(ctx, h.ID, StatusUpdate{StatusCode: "cerrada"})
	require.NoError(t, err)
	assert.Equal(t, closedStatus, got.StatusID)

	_, err = svc.UpdateStatus(ctx, h.ID, StatusUpdate{StatusCode: "PERDIDA"})
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = svc.UpdateStatus(ctx, h.ID, StatusUpdate{})
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = svc.UpdateStatus(ctx, uuid.New(), StatusUpdate{StatusID: &openStatus})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_GetOwner(t *testing.T) {
	svc, repo, _ := newTestService()
	a := seedAthlete(repo, "900123456")
	h, err := svc.CreateComplete(context.Background(), fullRequest(a.ID))
	require.NoError(t, err)

	o, err := svc.GetOwner(context.Background(), h.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, o.AthleteID)
	assert.Equal(t, "900123456", o.DocumentNumber)
	assert.Equal(t, "María José Cárdenas", o.FullName)
	assert.Equal(t, "mj@example.com", o.Email)

	_, err = svc.GetOwner(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_ListByAthlete(t *testing.T) {
	svc, repo, _ := newTestService()
	a := seedAthlete(repo, "900123456")
	b := seedAthlete(repo, "900123457")
	ctx := context.Background()
	for _, id := range []uuid.UUID{a.ID, a.ID, b.ID} {
		_, err := svc.CreateComplete(ctx, &CompleteRequest{AthleteID: id})
		require.NoError(t, err)
	}

	items, total, err := svc.ListByAthlete(ctx, a.ID, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, items, 2)

	_, _, err = svc.ListByAthlete(ctx, uuid.New(), 10, 0)
	assert.ErrorIs(t, err, athlete.ErrNotFound)
}

func TestService_Files(t *testing.T) {
	svc, repo, store := newTestService()
	a := seedAthlete(repo, "900123456")
	ctx := context.Background()
	h, err := svc.CreateComplete(ctx, &CompleteRequest{AthleteID: a.ID})
	require.NoError(t, err)

	upload := &blobstore.Upload{
		Meta:    blobstore.Metadata{FileName: "rx-rodilla.pdf", ContentType: "application/pdf"},
		Content: bytes.NewReader([]byte("%PDF-1.4 rx")),
	}
	f, err := svc.AddFile(ctx, h.ID, "", upload)
	require.NoError(t, err)
	assert.Equal(t, "general", f.Category)
	assert.Equal(t, int64(11), f.Size)
	assert.Equal(t, 1, store.Len())

	rc, meta, err := svc.OpenFile(ctx, h.ID, f.ID)
	require.NoError(t, err)
	rc.Close()
	assert.Equal(t, "rx-rodilla.pdf", meta.FileName)

	_, _, err = svc.OpenFile(ctx, uuid.New(), f.ID)
	assert.ErrorIs(t, err, ErrFileNotFound)

	require.NoError(t, svc.Delete(ctx, h.ID))
	assert.Equal(t, 0, store.Len())
	assert.Empty(t, repo.files)
}

func TestService_AddFile_UnknownHistory(t *testing.T) {
	svc, _, store := newTestService()
	upload := &blobstore.Upload{
		Meta:    blobstore.Metadata{FileName: "a.pdf", ContentType: "application/pdf"},
		Content: bytes.NewReader([]byte("%PDF-1.4")),
	}
	_, err := svc.AddFile(context.Background(), uuid.New(), "lab", upload)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, store.Len())

	_, err = svc.AddFile(context.Background(), uuid.New(), "lab", nil)
	assert.ErrorIs(t, err, blobstore.ErrMissingFile)
}

func TestService_RenderPDF(t *testing.T) {
	svc, repo, _ := newTestService()
	a := seedAthlete(repo, "900123456")
	h, err := svc.CreateComplete(context.Background(), fullRequest(a.ID))
	require.NoError(t, err)

	out, doc, err := svc.RenderPDF(context.Background(), h.ID)
	require.NoError(t, err)
	assert.Equal(t, "900123456", doc)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
}
