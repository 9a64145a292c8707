package models

import (
	"errors"
	"fmt"
	"os"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("record not found")

// FirmLists - три справочных списка из all_firm_names.
type FirmLists struct {
	Companies []string `json:"companies"`
	Brokers   []string `json:"brokers"`
	Clearers  []string `json:"clearers"`
}

type Repository interface {
	InsertRecord(rec *ClientRecord) error
	GetRecord(updateID uint) (*ClientRecord, error)
	FirmNames() (FirmLists, error)
	CurrentClients() ([]ClientRecord, error)
	RecentRecords(limit int) ([]ClientRecord, error)
	Ping() error
	Close() error
}

type PostgresRepository struct {
	db *gorm.DB
}

func NewPostgresRepository() (*PostgresRepository, error) {
	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		os.Getenv("DB_HOST"),
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_NAME"),
		os.Getenv("DB_PORT"),
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&ClientRecord{}, &FirmName{}); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate database: %w", err)
	}

	// Представление "текущее состояние": одна строка на пару
	// (company, client_type), всегда самая свежая.
	viewSQL := `
		CREATE OR REPLACE VIEW client_current_view AS
		SELECT DISTINCT ON (company, client_type) *
		FROM clients
		ORDER BY company, client_type, entry_date DESC`
	if err := db.Exec(viewSQL).Error; err != nil {
		return nil, fmt.Errorf("failed to create client_current_view: %w", err)
	}

	return &PostgresRepository{db: db}, nil
}

// InsertRecord выполняет единственный INSERT на отправку формы.
// update_id и entry_date выставляются базой.
func (r *PostgresRepository) InsertRecord(rec *ClientRecord) error {
	return r.db.Create(rec).Error
}

// GetRecord возвращает одну историческую строку по её update_id.
func (r *PostgresRepository) GetRecord(updateID uint) (*ClientRecord, error) {
	var rec ClientRecord
	if err := r.db.First(&rec, updateID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// FirmNames возвращает списки фирм по ролям: broker, clearer, customer.
func (r *PostgresRepository) FirmNames() (FirmLists, error) {
	var rows []FirmName
	err := r.db.
		Table("all_firm_names").
		Distinct("broker", "clearer", "customer").
		Where("broker IS NOT NULL OR clearer IS NOT NULL OR customer IS NOT NULL").
		Order("broker, clearer, customer").
		Find(&rows).Error
	if err != nil {
		return FirmLists{}, fmt.Errorf("failed to fetch firm names: %w", err)
	}

	lists := FirmLists{}
	seen := map[string]map[string]bool{
		"broker":   {},
		"clearer":  {},
		"customer": {},
	}
	for _, row := range rows {
		if row.Broker != nil && *row.Broker != "" && !seen["broker"][*row.Broker] {
			seen["broker"][*row.Broker] = true
			lists.Brokers = append(lists.Brokers, *row.Broker)
		}
		if row.Clearer != nil && *row.Clearer != "" && !seen["clearer"][*row.Clearer] {
			seen["clearer"][*row.Clearer] = true
			lists.Clearers = append(lists.Clearers, *row.Clearer)
		}
		if row.Customer != nil && *row.Customer != "" && !seen["customer"][*row.Customer] {
			seen["customer"][*row.Customer] = true
			lists.Companies = append(lists.Companies, *row.Customer)
		}
	}
	return lists, nil
}

// CurrentClients возвращает по одной строке на живую пару (company, client_type).
// Порядок entry_date DESC - это контракт для выбора строки префилла:
// первая подходящая строка всегда самая свежая.
func (r *PostgresRepository) CurrentClients() ([]ClientRecord, error) {
	var rows []ClientRecord
	err := r.db.
		Table("client_current_view").
		Order("entry_date DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch current clients: %w", err)
	}
	return rows, nil
}

// RecentRecords возвращает limit последних отправок для блока "Recent Records".
func (r *PostgresRepository) RecentRecords(limit int) ([]ClientRecord, error) {
	var rows []ClientRecord
	err := r.db.
		Order("entry_date DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch recent records: %w", err)
	}
	return rows, nil
}

func (r *PostgresRepository) Ping() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

func (r *PostgresRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
