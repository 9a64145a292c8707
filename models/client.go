package models

import "time"

// ClientRecord - одна строка таблицы clients. Таблица append-only:
// повторная отправка для той же пары (company, client_type) создаёт новую
// строку, история восстанавливается на стороне хранилища. NULL в колонке
// означает "без изменений, взять из предыдущей версии".
type ClientRecord struct {
	UpdateID          uint      `gorm:"column:update_id;primaryKey" json:"update_id"`
	EntryDate         time.Time `gorm:"column:entry_date;autoCreateTime" json:"entry_date"`
	Company           string    `gorm:"column:company;not null" json:"company"`
	ClientType        string    `gorm:"column:client_type;not null" json:"client_type"`
	ClientStatus      *string   `gorm:"column:client_status" json:"client_status"`
	Sensitivities     *string   `gorm:"column:sensitivities" json:"sensitivities"`
	Barriers          *string   `gorm:"column:barriers" json:"barriers"`
	DecisionMakers    *string   `gorm:"column:decision_makers" json:"decision_makers"`
	OverallVolume     *float64  `gorm:"column:overall_volume" json:"overall_volume"`
	EUAVolume         *float64  `gorm:"column:eua_volume" json:"eua_volume"`
	GOVolume          *float64  `gorm:"column:go_volume" json:"go_volume"`
	PowerVolume       *float64  `gorm:"column:power_volume" json:"power_volume"`
	GasVolume         *float64  `gorm:"column:gas_volume" json:"gas_volume"`
	OtherProductNotes *string   `gorm:"column:other_product_notes" json:"other_product_notes"`
	AccessType        *string   `gorm:"column:access_type" json:"access_type"`
	FrontEnd          *string   `gorm:"column:front_end" json:"front_end"`
	FrontEndDetails   *string   `gorm:"column:front_end_details" json:"front_end_details"`
	Clearers          *string   `gorm:"column:clearers" json:"clearers"`
	Brokers           *string   `gorm:"column:brokers" json:"brokers"`
	ETRM              *string   `gorm:"column:etrm" json:"etrm"`
	Source            *string   `gorm:"column:source" json:"source"`
	Notes             *string   `gorm:"column:notes" json:"notes"`
}

func (ClientRecord) TableName() string {
	return "clients"
}

// FirmName - строка справочной таблицы all_firm_names. Колонки заполняются
// независимо, поэтому все три nullable.
type FirmName struct {
	Broker   *string `gorm:"column:broker"`
	Clearer  *string `gorm:"column:clearer"`
	Customer *string `gorm:"column:customer"`
}

func (FirmName) TableName() string {
	return "all_firm_names"
}

// Фиксированные словари формы. Значения совпадают с тем, что хранится в базе.
var (
	ClientTypes = []string{"Customer", "Clearer", "Broker"}

	ClientStatuses = []string{"Client", "Prospect", "Setting up"}

	SensitivityOptions = []string{"Margin", "Fees", "Liquidity"}

	BarrierOptions = []string{
		"ICE Default",
		"Fees",
		"Margin",
		"Liquidity",
		"IT Setup (us)",
		"IT Setup (them)",
		"Compliance",
		"Risk",
		"Onboarding/KYC",
	}

	AccessTypes = []string{"NCM", "GCM", "DMA", "API", "Sponsored Access", "Voice", "Other"}

	ETRMSystems = []string{
		"Allegro",
		"Amphora",
		"Aspect",
		"Brady (Igloo, Powerdesk, Crisk...)",
		"Comcore",
		"Eka",
		"Endure",
		"Entrade",
		"Entrader",
		"Ignite",
		"Inatech",
		"Lancelot",
		"Molecule",
		"Openlink",
		"PCI",
		"PexaOS",
		"Triplepoint",
		"Vuepoint",
	}

	SourceOptions = []string{"Meeting", "Estimate", "Call"}

	FrontEndOptions = []string{"TT", "Trayport", "Touchpoint", "Manual Entry", "CQG"}
)

// InVocabulary reports whether value is one of the allowed options.
func InVocabulary(value string, options []string) bool {
	for _, opt := range options {
		if value == opt {
			return true
		}
	}
	return false
}

// AllInVocabulary reports whether every value is one of the allowed options.
func AllInVocabulary(values []string, options []string) bool {
	for _, v := range values {
		if !InVocabulary(v, options) {
			return false
		}
	}
	return true
}
