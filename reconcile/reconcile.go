package reconcile

import (
	"fmt"
	"strings"
)

// FieldKind определяет, как поле нормализуется и сравнивается.
type FieldKind int

const (
	// Scalar - одиночное текстовое значение, пустая строка эквивалентна отсутствию.
	Scalar FieldKind = iota
	// Set - множество значений, хранится через запятую, сравнивается без
	// учёта порядка и дубликатов.
	Set
	// Volume - число, получаемое из точного значения или из диапазона.
	Volume
)

type Field struct {
	Name string
	Kind FieldKind
}

// Schema - версионируемый набор полей формы. Движок работает поверх любого
// объявленного набора, поэтому варианты формы с разными полями не требуют
// изменений в логике сверки.
type Schema struct {
	Version int
	Fields  []Field
}

// DefaultSchema - текущий вариант формы.
var DefaultSchema = Schema{
	Version: 2,
	Fields: []Field{
		{Name: "client_status", Kind: Scalar},
		{Name: "sensitivities", Kind: Set},
		{Name: "barriers", Kind: Set},
		{Name: "decision_makers", Kind: Scalar},
		{Name: "eua_volume", Kind: Volume},
		{Name: "go_volume", Kind: Volume},
		{Name: "other_product_notes", Kind: Scalar},
		{Name: "access_type", Kind: Scalar},
		{Name: "front_end", Kind: Set},
		{Name: "front_end_details", Kind: Scalar},
		{Name: "clearers", Kind: Set},
		{Name: "brokers", Kind: Set},
		{Name: "etrm", Kind: Scalar},
		{Name: "source", Kind: Scalar},
		{Name: "notes", Kind: Scalar},
	},
}

// RangeMidpoints переводит ярлык диапазона в репрезентативное значение.
var RangeMidpoints = map[string]float64{
	"<2.5k":  1250,
	"2.5-5k": 3750,
	"5-10k":  7500,
	"10-20k": 15000,
	"20-50k": 35000,
	"50k+":   50000,
	"20k+":   20000, // старый вариант диапазона для GO volume
}

// VolumeInput - пользовательский ввод объёма: точное число и/или диапазон.
type VolumeInput struct {
	Exact *float64
	Range string
}

// FormValues - состояние формы на момент отправки. Ключи карт совпадают
// с именами полей схемы.
type FormValues struct {
	Company    string
	ClientType string
	Scalars    map[string]string
	Sets       map[string][]string
	Volumes    map[string]VolumeInput
}

// Prefill - значения последней сохранённой строки для пары
// (company, client_type). nil-указатель означает "записи не было".
type Prefill struct {
	Scalars map[string]string
	Sets    map[string][]string
	Volumes map[string]*float64
}

func NewPrefill() *Prefill {
	return &Prefill{
		Scalars: map[string]string{},
		Sets:    map[string][]string{},
		Volumes: map[string]*float64{},
	}
}

// Payload - разреженный результат сверки. Каждое объявленное поле схемы
// присутствует в одной из карт; nil означает явный NULL ("без изменений").
type Payload struct {
	Company    string
	ClientType string
	Texts      map[string]*string  // скалярные поля и множества (через запятую)
	Numbers    map[string]*float64 // объёмы
	Notices    []string
}

// SplitList разбирает строку "A, B, C" в список без пустых элементов.
func SplitList(value string) []string {
	if value == "" {
		return nil
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// JoinList собирает список обратно в формат хранения.
func JoinList(items []string) string {
	return strings.Join(items, ", ")
}

// ResolveVolume применяет двухступенчатое правило: точное положительное
// значение всегда выигрывает (про игнорированный диапазон возвращается
// заметка), иначе берётся середина диапазона, иначе значение отсутствует.
// Ноль приравнивается к отсутствию ввода.
func ResolveVolume(in VolumeInput) (*float64, bool) {
	if in.Exact != nil && *in.Exact > 0 {
		v := *in.Exact
		return &v, in.Range != ""
	}
	if in.Range != "" {
		if mid, ok := RangeMidpoints[in.Range]; ok {
			return &mid, false
		}
	}
	return nil, false
}

func sameSet(a, b []string) bool {
	as := map[string]bool{}
	for _, v := range a {
		as[strings.TrimSpace(v)] = true
	}
	bs := map[string]bool{}
	for _, v := range b {
		bs[strings.TrimSpace(v)] = true
	}
	if len(as) != len(bs) {
		return false
	}
	for v := range as {
		if !bs[v] {
			return false
		}
	}
	return true
}

func sameNumber(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// BuildSubmission сверяет форму с префиллом и собирает разреженную строку.
// Чистая функция: никакого I/O, ошибок времени выполнения нет.
//
// Правила:
//   - префилла нет: новая сущность, каждое поле попадает в результат со своим
//     нормализованным значением (возможно nil);
//   - префилл есть: поле получает новое значение только если оно отличается,
//     иначе явный nil;
//   - company и client_type заполняются всегда - это ключ для восстановления
//     истории.
func BuildSubmission(schema Schema, form FormValues, prefill *Prefill) Payload {
	p := Payload{
		Company:    form.Company,
		ClientType: form.ClientType,
		Texts:      map[string]*string{},
		Numbers:    map[string]*float64{},
	}

	for _, f := range schema.Fields {
		switch f.Kind {
		case Scalar:
			value := strings.TrimSpace(form.Scalars[f.Name])
			changed := true
			if prefill != nil {
				changed = value != strings.TrimSpace(prefill.Scalars[f.Name])
			}
			if changed && value != "" {
				v := value
				p.Texts[f.Name] = &v
			} else {
				p.Texts[f.Name] = nil
			}

		case Set:
			items := form.Sets[f.Name]
			changed := true
			if prefill != nil {
				changed = !sameSet(items, prefill.Sets[f.Name])
			}
			if changed && len(items) > 0 {
				v := JoinList(items)
				p.Texts[f.Name] = &v
			} else {
				p.Texts[f.Name] = nil
			}

		case Volume:
			resolved, exactWins := ResolveVolume(form.Volumes[f.Name])
			if exactWins {
				p.Notices = append(p.Notices,
					fmt.Sprintf("using exact %s value (range selection ignored)", f.Name))
			}
			changed := true
			if prefill != nil {
				changed = !sameNumber(resolved, prefill.Volumes[f.Name])
			}
			if changed {
				p.Numbers[f.Name] = resolved
			} else {
				p.Numbers[f.Name] = nil
			}
		}
	}

	return p
}
