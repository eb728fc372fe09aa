package pdf

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocument_Bytes(t *testing.T) {
	d := New(Options{
		Title:       "HISTORIA CLÍNICA DEPORTIVA",
		FooterLines: []string{"Documento generado automáticamente"},
		GeneratedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	})
	d.Field("Deportista", "José Núñez")
	d.Field("Documento", "")
	n := d.Section("Evaluación inicial")
	d.Paragraph("Dolor en rodilla derecha tras entrenamiento.")
	d.Bullet("Esguince de tobillo (NA00)")
	d.Space(3)

	assert.Equal(t, 1, n)
	assert.Equal(t, 1, d.Sections())

	out, err := d.Bytes()
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
	assert.True(t, bytes.Contains(out, []byte("%%EOF")))
}

func TestDocument_SectionNumbering(t *testing.T) {
	d := New(Options{})
	assert.Equal(t, 1, d.Section("uno"))
	assert.Equal(t, 2, d.Section("dos"))
	d.Paragraph("   ")
	_, err := d.Bytes()
	require.NoError(t, err)
}
