package history

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/inderhuila/sportsmed/internal/platform/pdf"
	"github.com/inderhuila/sportsmed/pkg/dates"
)

const documentTitle = "HISTORIA CLÍNICA DEPORTIVA"

var footerLines = []string{
	"Documento generado automáticamente por Sistema INDER",
	"Este documento tiene valor legal y debe ser archivado según normativa vigente.",
}

// PDFRenderer lays a Bundle out as the printable clinical history.
type PDFRenderer struct {
	loc *time.Location
	now func() time.Time
}

// NewPDFRenderer stamps generation times in loc.
func NewPDFRenderer(loc *time.Location) *PDFRenderer {
	if loc == nil {
		loc = time.UTC
	}
	return &PDFRenderer{loc: loc, now: time.Now}
}

func (r *PDFRenderer) Render(b *Bundle) ([]byte, error) {
	if b == nil || b.History == nil {
		return nil, fmt.Errorf("%w: empty bundle", ErrInvalid)
	}
	at := r.now().In(r.loc)
	doc := pdf.New(pdf.Options{
		Title:       documentTitle,
		Creator:     "Sistema INDER",
		FooterLines: footerLines,
		GeneratedAt: at,
	})

	a := b.Athlete
	doc.Field("Deportista", strings.TrimSpace(a.FirstNames+" "+a.LastNames))
	doc.Field("Documento", strings.TrimSpace(a.DocumentType+" "+a.DocumentNumber))
	doc.Field("Fecha de nacimiento", formatDate(a.BirthDate))
	doc.Field("Sexo", a.Sex)
	if a.Sport != "" {
		doc.Field("Deporte", a.Sport)
	}
	doc.Field("Fecha de apertura", formatDate(b.History.OpenedOn))
	doc.Field("Estado", b.Status)
	doc.Space(3)

	s := b.Sections
	if s == nil {
		s = &Sections{}
	}
	writeEvaluation(doc, s)
	writeBackground(doc, s)
	writeSystemsReview(doc, s)
	writeVitals(doc, s)
	writeTests(doc, s)
	writeDiagnosis(doc, s)
	writePlan(doc, s)
	return doc.Bytes()
}

func writeEvaluation(doc *pdf.Document, s *Sections) {
	if s.ConsultationReason == nil {
		return
	}
	c := s.ConsultationReason
	doc.Section("Evaluación inicial")
	doc.Field("Tipo de cita", c.AppointmentType)
	doc.Field("Motivo de consulta", c.Reason)
	doc.Field("Enfermedad actual", c.CurrentIllness)
}

func writeBackground(doc *pdf.Document, s *Sections) {
	if len(s.PersonalHistory)+len(s.FamilyHistory)+len(s.SportsInjuries)+len(s.PriorSurgeries)+
		len(s.Allergies)+len(s.Medications)+len(s.Vaccinations) == 0 {
		return
	}
	doc.Section("Antecedentes médicos")

	if len(s.PersonalHistory) > 0 {
		doc.Subheading("Antecedentes personales:")
		for _, p := range s.PersonalHistory {
			doc.Bullet(join(" - ", p.DiseaseName+code(p.CIE11Code), p.Notes))
		}
	}
	if len(s.FamilyHistory) > 0 {
		doc.Subheading("Antecedentes familiares:")
		for _, f := range s.FamilyHistory {
			doc.Bullet(join(" - ", f.Relative+": "+f.DiseaseName+code(f.CIE11Code), f.Notes))
		}
	}
	if len(s.SportsInjuries) > 0 {
		doc.Subheading("Lesiones deportivas:")
		for _, j := range s.SportsInjuries {
			doc.Bullet(join(" - ", j.InjuryType, formatDatePtr(j.InjuryDate), j.Treatment, j.Notes))
		}
	}
	if len(s.PriorSurgeries) > 0 {
		doc.Subheading("Cirugías previas:")
		for _, p := range s.PriorSurgeries {
			doc.Bullet(join(" - ", p.SurgeryType, formatDatePtr(p.SurgeryDate), p.Notes))
		}
	}
	if len(s.Allergies) > 0 {
		doc.Subheading("Alergias:")
		for _, a := range s.Allergies {
			doc.Bullet(join(" - ", a.AllergyType, a.Description, a.Reaction))
		}
	}
	if len(s.Medications) > 0 {
		doc.Subheading("Medicación actual:")
		for _, m := range s.Medications {
			doc.Bullet(join(" - ", m.Name, m.Dose, m.Frequency, m.Duration, m.Indication))
		}
	}
	if len(s.Vaccinations) > 0 {
		names := make([]string, 0, len(s.Vaccinations))
		for _, v := range s.Vaccinations {
			names = append(names, v.VaccineName)
		}
		doc.Field("Vacunas", strings.Join(names, ", "))
	}
}

func writeSystemsReview(doc *pdf.Document, s *Sections) {
	if len(s.SystemsReview) == 0 && len(s.PhysicalExams) == 0 {
		return
	}
	doc.Section("Revisión por sistemas")
	for _, r := range s.SystemsReview {
		doc.Field(r.System, join(" - ", r.Status, r.Findings))
	}
	if len(s.PhysicalExams) > 0 {
		doc.Subheading("Examen físico:")
		for _, e := range s.PhysicalExams {
			doc.Field(e.System, e.Findings)
		}
	}
}

func writeVitals(doc *pdf.Document, s *Sections) {
	v := s.VitalSigns
	if v == nil {
		return
	}
	doc.Section("Exploración física - signos vitales")
	doc.Field("Estatura", withUnit(formatFloat(v.HeightCM), "cm"))
	doc.Field("Peso", withUnit(formatFloat(v.WeightKG), "kg"))
	doc.Field("IMC", formatFloat(v.BMI))
	doc.Field("Frecuencia cardíaca", withUnit(formatInt(v.HeartRate), "lpm"))
	pressure := ""
	if v.Systolic != nil && v.Diastolic != nil {
		pressure = fmt.Sprintf("%d/%d mmHg", *v.Systolic, *v.Diastolic)
	}
	doc.Field("Presión arterial", pressure)
	doc.Field("Frecuencia respiratoria", withUnit(formatInt(v.RespiratoryRate), "rpm"))
	doc.Field("Temperatura", withUnit(formatFloat(v.TemperatureC), "°C"))
	doc.Field("Saturación O2", withUnit(formatInt(v.OxygenSaturation), "%"))
}

func writeTests(doc *pdf.Document, s *Sections) {
	if len(s.ComplementaryTests) == 0 {
		return
	}
	doc.Section("Pruebas complementarias")
	for _, t := range s.ComplementaryTests {
		doc.Subheading(fmt.Sprintf("%s (%s)", t.TestName+code(t.CUPSCode), t.Category))
		doc.Field("Resultado", t.Result)
	}
}

func writeDiagnosis(doc *pdf.Document, s *Sections) {
	if len(s.Diagnoses) == 0 {
		return
	}
	doc.Section("Diagnóstico")
	for _, d := range s.Diagnoses {
		if d.ObjectiveAnalysis != "" {
			doc.Field("Análisis objetivo", d.ObjectiveAnalysis)
		}
		if d.DiagnosticImpression != "" {
			doc.Field("Impresión diagnóstica", d.DiagnosticImpression)
		}
	}
	doc.Subheading("Diagnósticos clínicos:")
	for _, d := range s.Diagnoses {
		label := d.Name
		if d.CIE11Code != "" {
			label += " (CIE-11: " + d.CIE11Code + ")"
		}
		doc.Bullet(join(" - ", label, d.Notes))
	}
}

func writePlan(doc *pdf.Document, s *Sections) {
	if s.TreatmentPlan == nil && len(s.SpecialistReferrals) == 0 {
		return
	}
	doc.Section("Plan de tratamiento")
	if p := s.TreatmentPlan; p != nil {
		if p.MedicalIndications != "" {
			doc.Subheading("Indicaciones médicas:")
			doc.Paragraph(p.MedicalIndications)
		}
		if p.TrainingRecommendations != "" {
			doc.Subheading("Recomendaciones de entrenamiento:")
			doc.Paragraph(p.TrainingRecommendations)
		}
		if p.FollowUpPlan != "" {
			doc.Subheading("Plan de seguimiento:")
			doc.Paragraph(p.FollowUpPlan)
		}
	}
	if len(s.SpecialistReferrals) > 0 {
		doc.Subheading("Remisiones a especialistas:")
		for _, r := range s.SpecialistReferrals {
			doc.Bullet(fmt.Sprintf("%s - %s", r.Specialist, priorityLabel(r.Priority)))
			doc.Field("Motivo", r.Reason)
			doc.Field("Fecha", formatDatePtr(r.ReferralDate))
		}
	}
}

func priorityLabel(p string) string {
	if p == PriorityUrgent {
		return "URGENTE"
	}
	return PriorityNormal
}

func code(c string) string {
	if c == "" {
		return ""
	}
	return " (" + c + ")"
}

// join concatenates the non-empty parts with sep.
func join(sep string, parts ...string) string {
	out := parts[:0:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}

func formatDate(d dates.Date) string {
	if d.IsZero() {
		return ""
	}
	return d.Format("02/01/2006")
}

func formatDatePtr(d *dates.Date) string {
	if d == nil {
		return ""
	}
	return formatDate(*d)
}

func formatFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

func formatInt(i *int) string {
	if i == nil {
		return ""
	}
	return strconv.Itoa(*i)
}

func withUnit(value, unit string) string {
	if value == "" {
		return ""
	}
	if unit == "%" {
		return value + unit
	}
	return value + " " + unit
}
