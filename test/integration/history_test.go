package integration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inderhuila/sportsmed/internal/domain/catalog"
	"github.com/inderhuila/sportsmed/internal/domain/history"
)

func TestHistory_CompleteRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newStack(t, "hist")
	a := s.createAthlete(t, "1020304050")
	h := s.createHistory(t, a.ID)

	assert.Equal(t, s.itemID(t, catalog.HistoryStatus, history.DefaultStatusCode), h.StatusID)

	b, err := s.histories.GetBundle(ctx, h.ID)
	require.NoError(t, err)
	assert.Equal(t, "1020304050", b.Athlete.DocumentNumber)
	assert.Equal(t, "Abierta", b.Status)
	require.NotNil(t, b.Sections.ConsultationReason)
	assert.Equal(t, "Control pretemporada", b.Sections.ConsultationReason.Reason)
	require.NotNil(t, b.Sections.VitalSigns)
	require.NotNil(t, b.Sections.VitalSigns.BMI)
	assert.InDelta(t, 20.55, *b.Sections.VitalSigns.BMI, 0.001)
	require.Len(t, b.Sections.Diagnoses, 1)
	assert.Equal(t, "QA00", b.Sections.Diagnoses[0].CIE11Code)

	owner, err := s.histories.GetOwner(ctx, h.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, owner.AthleteID)
	assert.Equal(t, "laura@example.org", owner.Email)
}

func TestHistory_StatusUpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	s := newStack(t, "hist_status")
	a := s.createAthlete(t, "1098765432")
	h := s.createHistory(t, a.ID)

	updated, err := s.histories.UpdateStatus(ctx, h.ID, history.StatusUpdate{StatusCode: "cerrada"})
	require.NoError(t, err)
	assert.Equal(t, s.itemID(t, catalog.HistoryStatus, "CERRADA"), updated.StatusID)

	list, total, err := s.histories.ListByAthlete(ctx, a.ID, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, list, 1)

	require.NoError(t, s.histories.Delete(ctx, h.ID))
	_, err = s.histories.Get(ctx, h.ID)
	assert.ErrorIs(t, err, history.ErrNotFound)
}
