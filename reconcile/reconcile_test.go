package reconcile

import (
	"testing"
)

func f(v float64) *float64 { return &v }

func emptyForm(company, clientType string) FormValues {
	return FormValues{
		Company:    company,
		ClientType: clientType,
		Scalars:    map[string]string{},
		Sets:       map[string][]string{},
		Volumes:    map[string]VolumeInput{},
	}
}

func TestResolveVolumeExactWins(t *testing.T) {
	got, notice := ResolveVolume(VolumeInput{Exact: f(150), Range: "<2.5k"})
	if got == nil || *got != 150 {
		t.Errorf("ResolveVolume got = %v, want 150", got)
	}
	if !notice {
		t.Error("Expected a notice when the range selection is ignored")
	}
}

func TestResolveVolumeZeroExactUsesRange(t *testing.T) {
	got, notice := ResolveVolume(VolumeInput{Exact: f(0), Range: "5-10k"})
	if got == nil || *got != 7500 {
		t.Errorf("ResolveVolume got = %v, want 7500", got)
	}
	if notice {
		t.Error("No notice expected when exact value is absent")
	}
}

func TestResolveVolumeAbsent(t *testing.T) {
	got, _ := ResolveVolume(VolumeInput{})
	if got != nil {
		t.Errorf("ResolveVolume got = %v, want nil", *got)
	}
}

func TestResolveVolumeUnknownRange(t *testing.T) {
	got, _ := ResolveVolume(VolumeInput{Range: "100k+"})
	if got != nil {
		t.Errorf("Unknown range label must resolve to absent, got %v", *got)
	}
}

func TestRangeMidpointTable(t *testing.T) {
	want := map[string]float64{
		"<2.5k":  1250,
		"2.5-5k": 3750,
		"5-10k":  7500,
		"10-20k": 15000,
		"20-50k": 35000,
		"50k+":   50000,
		"20k+":   20000,
	}
	if len(RangeMidpoints) != len(want) {
		t.Fatalf("RangeMidpoints has %d entries, want %d", len(RangeMidpoints), len(want))
	}
	for label, mid := range want {
		if RangeMidpoints[label] != mid {
			t.Errorf("RangeMidpoints[%q] = %v, want %v", label, RangeMidpoints[label], mid)
		}
	}
}

func TestNewEntityFullPayload(t *testing.T) {
	// Префилла нет: каждое объявленное поле присутствует в результате,
	// незаполненные - явным nil.
	form := emptyForm("NewCo", "Broker")
	form.Scalars["notes"] = "first contact"

	p := BuildSubmission(DefaultSchema, form, nil)

	if p.Company != "NewCo" || p.ClientType != "Broker" {
		t.Errorf("Key fields missing: %q %q", p.Company, p.ClientType)
	}
	for _, field := range DefaultSchema.Fields {
		switch field.Kind {
		case Scalar, Set:
			if _, ok := p.Texts[field.Name]; !ok {
				t.Errorf("Field %s missing from payload", field.Name)
			}
		case Volume:
			if _, ok := p.Numbers[field.Name]; !ok {
				t.Errorf("Field %s missing from payload", field.Name)
			}
		}
	}
	if p.Texts["notes"] == nil || *p.Texts["notes"] != "first contact" {
		t.Error("Entered value must be carried for a new entity")
	}
	if p.Texts["client_status"] != nil {
		t.Error("Blank field must be an explicit null for a new entity")
	}
}

func TestUnchangedScalarIsNull(t *testing.T) {
	prefill := NewPrefill()
	prefill.Scalars["decision_makers"] = "Head of desk"

	form := emptyForm("Acme Corp", "Customer")
	form.Scalars["decision_makers"] = "Head of desk"

	p := BuildSubmission(DefaultSchema, form, prefill)
	if p.Texts["decision_makers"] != nil {
		t.Errorf("Unchanged scalar must be null, got %q", *p.Texts["decision_makers"])
	}
}

func TestEmptyStringEqualsAbsent(t *testing.T) {
	// Пустая строка и отсутствующее значение эквивалентны при сравнении.
	prefill := NewPrefill()

	form := emptyForm("Acme Corp", "Customer")
	form.Scalars["decision_makers"] = ""

	p := BuildSubmission(DefaultSchema, form, prefill)
	if p.Texts["decision_makers"] != nil {
		t.Error("Blank vs absent must count as unchanged")
	}
}

func TestChangedScalarCarriesNewValue(t *testing.T) {
	prefill := NewPrefill()
	prefill.Scalars["client_status"] = "Prospect"

	form := emptyForm("Acme Corp", "Customer")
	form.Scalars["client_status"] = "Client"

	p := BuildSubmission(DefaultSchema, form, prefill)
	if p.Texts["client_status"] == nil || *p.Texts["client_status"] != "Client" {
		t.Errorf("Changed scalar must carry the new value, got %v", p.Texts["client_status"])
	}
}

func TestSetComparisonIgnoresOrderAndDuplicates(t *testing.T) {
	prefill := NewPrefill()
	prefill.Sets["barriers"] = []string{"Fees", "Margin"}

	form := emptyForm("Acme Corp", "Customer")
	form.Sets["barriers"] = []string{"Margin", "Fees", "Fees"}

	p := BuildSubmission(DefaultSchema, form, prefill)
	if p.Texts["barriers"] != nil {
		t.Errorf("Permuted/duplicated set must count as unchanged, got %q", *p.Texts["barriers"])
	}
}

func TestChangedSetIsJoined(t *testing.T) {
	// Сценарий из жизни: к barriers={"Fees"} добавили "Margin".
	prefill := NewPrefill()
	prefill.Sets["barriers"] = []string{"Fees"}
	prefill.Scalars["notes"] = "existing note"

	form := emptyForm("Acme Corp", "Customer")
	form.Sets["barriers"] = []string{"Fees", "Margin"}
	form.Scalars["notes"] = "existing note"

	p := BuildSubmission(DefaultSchema, form, prefill)

	if p.Texts["barriers"] == nil || *p.Texts["barriers"] != "Fees, Margin" {
		t.Errorf("barriers = %v, want \"Fees, Margin\"", p.Texts["barriers"])
	}
	if p.Texts["notes"] != nil {
		t.Error("Untouched notes must be null")
	}
	if p.Texts["sensitivities"] != nil || p.Numbers["eua_volume"] != nil {
		t.Error("All untouched fields must be null")
	}
	if p.Company != "Acme Corp" || p.ClientType != "Customer" {
		t.Error("Key fields must always be populated")
	}
}

func TestUnchangedVolumeIsNull(t *testing.T) {
	prefill := NewPrefill()
	prefill.Volumes["eua_volume"] = f(7500)

	form := emptyForm("Acme Corp", "Customer")
	form.Volumes["eua_volume"] = VolumeInput{Range: "5-10k"}

	p := BuildSubmission(DefaultSchema, form, prefill)
	if p.Numbers["eua_volume"] != nil {
		t.Errorf("Volume resolving to the stored value must be null, got %v", *p.Numbers["eua_volume"])
	}
}

func TestChangedVolumeCarriesResolvedValue(t *testing.T) {
	prefill := NewPrefill()
	prefill.Volumes["go_volume"] = f(1250)

	form := emptyForm("Acme Corp", "Customer")
	form.Volumes["go_volume"] = VolumeInput{Exact: f(4000), Range: "20k+"}

	p := BuildSubmission(DefaultSchema, form, prefill)
	if p.Numbers["go_volume"] == nil || *p.Numbers["go_volume"] != 4000 {
		t.Errorf("go_volume = %v, want 4000", p.Numbers["go_volume"])
	}
	if len(p.Notices) != 1 {
		t.Errorf("Expected one exact-wins notice, got %v", p.Notices)
	}
}

func TestSplitList(t *testing.T) {
	got := SplitList(" Fees, Margin ,, Liquidity ")
	want := []string{"Fees", "Margin", "Liquidity"}
	if len(got) != len(want) {
		t.Fatalf("SplitList got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("SplitList[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if SplitList("") != nil {
		t.Error("SplitList of empty string must be nil")
	}
}
