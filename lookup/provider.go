package lookup

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"client-data-service/models"
	"client-data-service/monitoring"
	"client-data-service/utils"

	"github.com/redis/go-redis/v9"
)

const (
	cacheKey = "reference_data:v1"
	CacheTTL = 5 * time.Minute
)

// ReferenceData - пять справочных выборок, обновляются только все вместе.
type ReferenceData struct {
	Companies []string              `json:"companies"`
	Brokers   []string              `json:"brokers"`
	Clearers  []string              `json:"clearers"`
	Clients   []models.ClientRecord `json:"clients"`
	Recent    []models.ClientRecord `json:"recent"`
}

// Source - контракт провайдера для хендлеров.
type Source interface {
	Fetch(ctx context.Context) (ReferenceData, error)
	Invalidate(ctx context.Context) error
}

// Provider читает справочные данные из базы и держит сериализованный
// снимок в Redis с TTL 5 минут. Пока снимок жив, повторные вызовы
// возвращают байт-в-байт те же данные; сброс только ручной.
type Provider struct {
	repo        models.Repository
	cache       utils.RedisClient
	recentLimit int
}

func NewProvider(repo models.Repository, cache utils.RedisClient) *Provider {
	return &Provider{
		repo:        repo,
		cache:       cache,
		recentLimit: 5,
	}
}

// Fetch возвращает справочные данные из кэша или базы. При ошибке базы
// возвращаются пустые контейнеры и сама ошибка - вызывающий показывает
// предупреждение, но всегда получает корректный результат.
func (p *Provider) Fetch(ctx context.Context) (ReferenceData, error) {
	if p.cache != nil {
		cached, err := p.cache.GetFromCache(ctx, cacheKey)
		if err == nil {
			var data ReferenceData
			if jsonErr := json.Unmarshal([]byte(cached), &data); jsonErr == nil {
				monitoring.CacheHits.Inc()
				return data, nil
			}
			// Испорченный снимок просто перечитываем из базы.
		} else if !errors.Is(err, redis.Nil) {
			log.Printf("Reference cache read failed, falling back to store: %v", err)
		}
	}
	monitoring.CacheMisses.Inc()

	data, err := p.load()
	if err != nil {
		return ReferenceData{}, err
	}

	if p.cache != nil {
		snapshot, err := json.Marshal(data)
		if err == nil {
			if err := p.cache.SetToCache(ctx, cacheKey, string(snapshot), CacheTTL); err != nil {
				log.Printf("Failed to cache reference data: %v", err)
			}
		}
	}
	return data, nil
}

// load вытягивает все пять выборок за один проход по базе.
func (p *Provider) load() (ReferenceData, error) {
	firms, err := p.repo.FirmNames()
	if err != nil {
		return ReferenceData{}, err
	}
	clients, err := p.repo.CurrentClients()
	if err != nil {
		return ReferenceData{}, err
	}
	recent, err := p.repo.RecentRecords(p.recentLimit)
	if err != nil {
		return ReferenceData{}, err
	}
	return ReferenceData{
		Companies: firms.Companies,
		Brokers:   firms.Brokers,
		Clearers:  firms.Clearers,
		Clients:   clients,
		Recent:    recent,
	}, nil
}

// Invalidate сбрасывает снимок: следующий Fetch пойдёт мимо кэша.
func (p *Provider) Invalidate(ctx context.Context) error {
	monitoring.CacheRefreshes.Inc()
	if p.cache == nil {
		return nil
	}
	return p.cache.DeleteFromCache(ctx, cacheKey)
}
