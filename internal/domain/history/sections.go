package history

import (
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/inderhuila/sportsmed/pkg/dates"
)

// Referral priorities.
const (
	PriorityNormal = "Normal"
	PriorityUrgent = "Urgente"
)

// Systems review statuses.
const (
	SystemNormal   = "normal"
	SystemAbnormal = "anormal"
)

type PersonalHistory struct {
	ID          uuid.UUID `json:"id"`
	CIE11Code   string    `json:"cie11_code,omitempty"`
	DiseaseName string    `json:"disease_name"`
	Notes       string    `json:"notes,omitempty"`
}

type FamilyHistory struct {
	ID          uuid.UUID `json:"id"`
	Relative    string    `json:"relative"`
	CIE11Code   string    `json:"cie11_code,omitempty"`
	DiseaseName string    `json:"disease_name"`
	Notes       string    `json:"notes,omitempty"`
}

type SportsInjury struct {
	ID         uuid.UUID   `json:"id"`
	InjuryType string      `json:"injury_type"`
	InjuryDate *dates.Date `json:"injury_date,omitempty"`
	Treatment  string      `json:"treatment,omitempty"`
	Notes      string      `json:"notes,omitempty"`
}

type PriorSurgery struct {
	ID          uuid.UUID   `json:"id"`
	SurgeryType string      `json:"surgery_type"`
	SurgeryDate *dates.Date `json:"surgery_date,omitempty"`
	Notes       string      `json:"notes,omitempty"`
}

type Allergy struct {
	ID          uuid.UUID `json:"id"`
	AllergyType string    `json:"allergy_type"`
	Description string    `json:"description,omitempty"`
	Reaction    string    `json:"reaction,omitempty"`
}

type Medication struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Dose       string    `json:"dose,omitempty"`
	Frequency  string    `json:"frequency,omitempty"`
	Duration   string    `json:"duration,omitempty"`
	Indication string    `json:"indication,omitempty"`
}

type Vaccination struct {
	ID             uuid.UUID   `json:"id"`
	VaccineName    string      `json:"vaccine_name"`
	AdministeredOn *dates.Date `json:"administered_on,omitempty"`
	NextDoseOn     *dates.Date `json:"next_dose_on,omitempty"`
}

type SystemReview struct {
	ID       uuid.UUID `json:"id"`
	System   string    `json:"system"`
	Status   string    `json:"status"`
	Findings string    `json:"findings,omitempty"`
}

type VitalSigns struct {
	ID               uuid.UUID `json:"id"`
	HeightCM         *float64  `json:"height_cm,omitempty"`
	WeightKG         *float64  `json:"weight_kg,omitempty"`
	HeartRate        *int      `json:"heart_rate,omitempty"`
	Systolic         *int      `json:"systolic,omitempty"`
	Diastolic        *int      `json:"diastolic,omitempty"`
	RespiratoryRate  *int      `json:"respiratory_rate,omitempty"`
	TemperatureC     *float64  `json:"temperature_c,omitempty"`
	OxygenSaturation *int      `json:"oxygen_saturation,omitempty"`
	BMI              *float64  `json:"bmi,omitempty"`
}

// ComputeBMI fills BMI from height and weight when it is missing.
func (v *VitalSigns) ComputeBMI() {
	if v.BMI != nil || v.HeightCM == nil || v.WeightKG == nil || *v.HeightCM <= 0 {
		return
	}
	m := *v.HeightCM / 100
	bmi := math.Round(*v.WeightKG/(m*m)*100) / 100
	v.BMI = &bmi
}

func (v *VitalSigns) empty() bool {
	return v.HeightCM == nil && v.WeightKG == nil && v.HeartRate == nil && v.Systolic == nil &&
		v.Diastolic == nil && v.RespiratoryRate == nil && v.TemperatureC == nil &&
		v.OxygenSaturation == nil && v.BMI == nil
}

type PhysicalExam struct {
	ID       uuid.UUID `json:"id"`
	System   string    `json:"system"`
	Findings string    `json:"findings,omitempty"`
}

type ComplementaryTest struct {
	ID       uuid.UUID `json:"id"`
	Category string    `json:"category"`
	TestName string    `json:"test_name"`
	CUPSCode string    `json:"cups_code,omitempty"`
	Result   string    `json:"result,omitempty"`
}

type Diagnosis struct {
	ID                   uuid.UUID `json:"id"`
	CIE11Code            string    `json:"cie11_code,omitempty"`
	Name                 string    `json:"name"`
	Notes                string    `json:"notes,omitempty"`
	ObjectiveAnalysis    string    `json:"objective_analysis,omitempty"`
	DiagnosticImpression string    `json:"diagnostic_impression,omitempty"`
}

type TreatmentPlan struct {
	ID                      uuid.UUID `json:"id"`
	MedicalIndications      string    `json:"medical_indications,omitempty"`
	TrainingRecommendations string    `json:"training_recommendations,omitempty"`
	FollowUpPlan            string    `json:"follow_up_plan,omitempty"`
}

func (p *TreatmentPlan) empty() bool {
	return p.MedicalIndications == "" && p.TrainingRecommendations == "" && p.FollowUpPlan == ""
}

type SpecialistReferral struct {
	ID           uuid.UUID   `json:"id"`
	Specialist   string      `json:"specialist"`
	Reason       string      `json:"reason"`
	Priority     string      `json:"priority"`
	ReferralDate *dates.Date `json:"referral_date,omitempty"`
}

type ConsultationReason struct {
	ID              uuid.UUID `json:"id"`
	AppointmentType string    `json:"appointment_type,omitempty"`
	Reason          string    `json:"reason"`
	CurrentIllness  string    `json:"current_illness,omitempty"`
}

// Sections groups the fifteen parts of a clinical history. Single-valued
// parts are pointers; nil means "not recorded".
type Sections struct {
	ConsultationReason  *ConsultationReason  `json:"consultation_reason,omitempty"`
	PersonalHistory     []PersonalHistory    `json:"personal_history"`
	FamilyHistory       []FamilyHistory      `json:"family_history"`
	SportsInjuries      []SportsInjury       `json:"sports_injuries"`
	PriorSurgeries      []PriorSurgery       `json:"prior_surgeries"`
	Allergies           []Allergy            `json:"allergies"`
	Medications         []Medication         `json:"medications"`
	Vaccinations        []Vaccination        `json:"vaccinations"`
	SystemsReview       []SystemReview       `json:"systems_review"`
	VitalSigns          *VitalSigns          `json:"vital_signs,omitempty"`
	PhysicalExams       []PhysicalExam       `json:"physical_exams"`
	ComplementaryTests  []ComplementaryTest  `json:"complementary_tests"`
	Diagnoses           []Diagnosis          `json:"diagnoses"`
	TreatmentPlan       *TreatmentPlan       `json:"treatment_plan,omitempty"`
	SpecialistReferrals []SpecialistReferral `json:"specialist_referrals"`
}

func clean(s *string) { *s = strings.TrimSpace(*s) }

func required(section string, i int, field, value string) error {
	if value == "" {
		return fmt.Errorf("%w: %s[%d].%s is required", ErrInvalid, section, i, field)
	}
	return nil
}

// Normalize trims text, applies defaults and checks required fields. Empty
// single-valued sections are dropped.
func (s *Sections) Normalize() error {
	if r := s.ConsultationReason; r != nil {
		clean(&r.AppointmentType)
		clean(&r.Reason)
		clean(&r.CurrentIllness)
		if r.Reason == "" && r.AppointmentType == "" && r.CurrentIllness == "" {
			s.ConsultationReason = nil
		} else if err := required("consultation_reason", 0, "reason", r.Reason); err != nil {
			return err
		}
	}
	for i := range s.PersonalHistory {
		p := &s.PersonalHistory[i]
		clean(&p.CIE11Code)
		clean(&p.DiseaseName)
		if err := required("personal_history", i, "disease_name", p.DiseaseName); err != nil {
			return err
		}
	}
	for i := range s.FamilyHistory {
		f := &s.FamilyHistory[i]
		clean(&f.Relative)
		clean(&f.CIE11Code)
		clean(&f.DiseaseName)
		if err := required("family_history", i, "relative", f.Relative); err != nil {
			return err
		}
		if err := required("family_history", i, "disease_name", f.DiseaseName); err != nil {
			return err
		}
	}
	for i := range s.SportsInjuries {
		clean(&s.SportsInjuries[i].InjuryType)
		if err := required("sports_injuries", i, "injury_type", s.SportsInjuries[i].InjuryType); err != nil {
			return err
		}
	}
	for i := range s.PriorSurgeries {
		clean(&s.PriorSurgeries[i].SurgeryType)
		if err := required("prior_surgeries", i, "surgery_type", s.PriorSurgeries[i].SurgeryType); err != nil {
			return err
		}
	}
	for i := range s.Allergies {
		clean(&s.Allergies[i].AllergyType)
		if err := required("allergies", i, "allergy_type", s.Allergies[i].AllergyType); err != nil {
			return err
		}
	}
	for i := range s.Medications {
		clean(&s.Medications[i].Name)
		if err := required("medications", i, "name", s.Medications[i].Name); err != nil {
			return err
		}
	}
	for i := range s.Vaccinations {
		v := &s.Vaccinations[i]
		clean(&v.VaccineName)
		if err := required("vaccinations", i, "vaccine_name", v.VaccineName); err != nil {
			return err
		}
		if v.AdministeredOn != nil && v.NextDoseOn != nil && v.NextDoseOn.Before(v.AdministeredOn.Time) {
			return fmt.Errorf("%w: vaccinations[%d].next_dose_on must not be before administered_on", ErrInvalid, i)
		}
	}
	for i := range s.SystemsReview {
		r := &s.SystemsReview[i]
		clean(&r.System)
		r.Status = strings.ToLower(strings.TrimSpace(r.Status))
		if err := required("systems_review", i, "system", r.System); err != nil {
			return err
		}
		if r.Status != SystemNormal && r.Status != SystemAbnormal {
			return fmt.Errorf("%w: systems_review[%d].status must be %q or %q", ErrInvalid, i, SystemNormal, SystemAbnormal)
		}
	}
	if v := s.VitalSigns; v != nil {
		if v.empty() {
			s.VitalSigns = nil
		} else {
			v.ComputeBMI()
		}
	}
	for i := range s.PhysicalExams {
		clean(&s.PhysicalExams[i].System)
		if err := required("physical_exams", i, "system", s.PhysicalExams[i].System); err != nil {
			return err
		}
	}
	for i := range s.ComplementaryTests {
		c := &s.ComplementaryTests[i]
		clean(&c.Category)
		clean(&c.TestName)
		if err := required("complementary_tests", i, "category", c.Category); err != nil {
			return err
		}
		if err := required("complementary_tests", i, "test_name", c.TestName); err != nil {
			return err
		}
	}
	for i := range s.Diagnoses {
		clean(&s.Diagnoses[i].Name)
		if err := required("diagnoses", i, "name", s.Diagnoses[i].Name); err != nil {
			return err
		}
	}
	if p := s.TreatmentPlan; p != nil {
		clean(&p.MedicalIndications)
		clean(&p.TrainingRecommendations)
		clean(&p.FollowUpPlan)
		if p.empty() {
			s.TreatmentPlan = nil
		}
	}
	for i := range s.SpecialistReferrals {
		r := &s.SpecialistReferrals[i]
		clean(&r.Specialist)
		clean(&r.Reason)
		clean(&r.Priority)
		if r.Priority == "" {
			r.Priority = PriorityNormal
		}
		if r.Priority != PriorityNormal && r.Priority != PriorityUrgent {
			return fmt.Errorf("%w: specialist_referrals[%d].priority must be %q or %q", ErrInvalid, i, PriorityNormal, PriorityUrgent)
		}
		if err := required("specialist_referrals", i, "specialist", r.Specialist); err != nil {
			return err
		}
		if err := required("specialist_referrals", i, "reason", r.Reason); err != nil {
			return err
		}
	}
	return nil
}

// Empty reports whether no section holds data.
func (s *Sections) Empty() bool {
	return s.ConsultationReason == nil && s.VitalSigns == nil && s.TreatmentPlan == nil &&
		len(s.PersonalHistory) == 0 && len(s.FamilyHistory) == 0 && len(s.SportsInjuries) == 0 &&
		len(s.PriorSurgeries) == 0 && len(s.Allergies) == 0 && len(s.Medications) == 0 &&
		len(s.Vaccinations) == 0 && len(s.SystemsReview) == 0 && len(s.PhysicalExams) == 0 &&
		len(s.ComplementaryTests) == 0 && len(s.Diagnoses) == 0 && len(s.SpecialistReferrals) == 0
}
