package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"client-data-service/lookup"
	"client-data-service/models"
	"client-data-service/monitoring"
	"client-data-service/reconcile"
	"client-data-service/utils"

	"github.com/gin-gonic/gin"
)

type ClientHandler struct {
	repo  models.Repository
	refs  lookup.Source
	kafka utils.KafkaProducer
	es    utils.ElasticsearchClient
}

// NewClientHandler собирает хендлер. kafka и es могут быть nil -
// сервис работает без событий и поиска.
func NewClientHandler(repo models.Repository, refs lookup.Source, kafka utils.KafkaProducer, es utils.ElasticsearchClient) *ClientHandler {
	return &ClientHandler{
		repo:  repo,
		refs:  refs,
		kafka: kafka,
		es:    es,
	}
}

// SubmissionRequest - состояние формы на момент отправки. Объёмы принимают
// точное значение и/или ярлык диапазона; additional_* - свободный ввод
// фирм, которых нет в справочнике, через запятую.
type SubmissionRequest struct {
	Company            string   `json:"company" binding:"required"`
	ClientType         string   `json:"client_type" binding:"required"`
	ClientStatus       string   `json:"client_status"`
	Sensitivities      []string `json:"sensitivities"`
	Barriers           []string `json:"barriers"`
	DecisionMakers     string   `json:"decision_makers"`
	EUAVolumeExact     *float64 `json:"eua_volume_exact" binding:"omitempty,gte=0"`
	EUAVolumeRange     string   `json:"eua_volume_range"`
	GOVolumeExact      *float64 `json:"go_volume_exact" binding:"omitempty,gte=0"`
	GOVolumeRange      string   `json:"go_volume_range"`
	OtherProductNotes  string   `json:"other_product_notes"`
	AccessType         string   `json:"access_type"`
	FrontEnd           []string `json:"front_end"`
	FrontEndDetails    string   `json:"front_end_details"`
	Clearers           []string `json:"clearers"`
	AdditionalClearers string   `json:"additional_clearers"`
	Brokers            []string `json:"brokers"`
	AdditionalBrokers  string   `json:"additional_brokers"`
	ETRM               string   `json:"etrm"`
	Source             string   `json:"source"`
	Notes              string   `json:"notes"`
}

type SubmissionResponse struct {
	UpdateID   uint      `json:"update_id"`
	EntryDate  time.Time `json:"entry_date"`
	Company    string    `json:"company"`
	ClientType string    `json:"client_type"`
	Updated    bool      `json:"updated"` // true, если была предыдущая версия
	Notices    []string  `json:"notices,omitempty"`
}

type ReferenceResponse struct {
	Companies []string `json:"companies"`
	Brokers   []string `json:"brokers"`
	Clearers  []string `json:"clearers"`
	Warning   string   `json:"warning,omitempty"`
}

type PrefillResponse struct {
	Found             bool     `json:"found"`
	ClientStatus      string   `json:"client_status,omitempty"`
	Sensitivities     []string `json:"sensitivities,omitempty"`
	Barriers          []string `json:"barriers,omitempty"`
	DecisionMakers    string   `json:"decision_makers,omitempty"`
	EUAVolume         *float64 `json:"eua_volume,omitempty"`
	GOVolume          *float64 `json:"go_volume,omitempty"`
	OtherProductNotes string   `json:"other_product_notes,omitempty"`
	AccessType        string   `json:"access_type,omitempty"`
	FrontEnd          []string `json:"front_end,omitempty"`
	FrontEndDetails   string   `json:"front_end_details,omitempty"`
	Clearers          []string `json:"clearers,omitempty"`
	Brokers           []string `json:"brokers,omitempty"`
	ETRM              string   `json:"etrm,omitempty"`
	Source            string   `json:"source,omitempty"`
	Notes             string   `json:"notes,omitempty"`
}

// SubmitClient принимает заполненную форму, сверяет её с последней
// сохранённой версией и вставляет одну новую строку. Неизменившиеся поля
// уходят в базу явным NULL.
func (h *ClientHandler) SubmitClient(c *gin.Context) {
	var req SubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := validateVocabularies(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Ошибка справочных данных не блокирует отправку: без префилла строка
	// просто сохраняется целиком, как для новой пары ключей.
	ref, err := h.refs.Fetch(c.Request.Context())
	if err != nil {
		log.Printf("Reference data unavailable during submit: %v", err)
		utils.CaptureError(err, map[string]interface{}{"endpoint": "submit"})
	}

	prefill := lookup.PrefillFor(ref.Clients, req.Company, req.ClientType)
	payload := reconcile.BuildSubmission(reconcile.DefaultSchema, formValues(&req), prefill)

	rec := recordFromPayload(payload)
	if err := h.repo.InsertRecord(rec); err != nil {
		monitoring.SubmissionsTotal.WithLabelValues("error").Inc()
		c.Error(err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to store submission"})
		return
	}
	monitoring.SubmissionsTotal.WithLabelValues("ok").Inc()

	if h.kafka != nil {
		go h.sendSubmissionEvent(rec)
	}

	c.JSON(http.StatusCreated, SubmissionResponse{
		UpdateID:   rec.UpdateID,
		EntryDate:  rec.EntryDate,
		Company:    rec.Company,
		ClientType: rec.ClientType,
		Updated:    prefill != nil,
		Notices:    payload.Notices,
	})
}

// GetReference отдаёт три справочных списка. При недоступности базы
// возвращаются пустые списки и предупреждение, но не ошибка.
func (h *ClientHandler) GetReference(c *gin.Context) {
	ref, err := h.refs.Fetch(c.Request.Context())
	resp := ReferenceResponse{
		Companies: ref.Companies,
		Brokers:   ref.Brokers,
		Clearers:  ref.Clearers,
	}
	if err != nil {
		utils.CaptureError(err, map[string]interface{}{"endpoint": "reference"})
		resp.Warning = "reference data temporarily unavailable"
	}
	c.JSON(http.StatusOK, resp)
}

// RefreshReference сбрасывает кэш справочных данных (кнопка "Refresh Data").
func (h *ClientHandler) RefreshReference(c *gin.Context) {
	if err := h.refs.Invalidate(c.Request.Context()); err != nil {
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to refresh reference data"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "refreshed"})
}

// GetPrefill возвращает значения последней версии для пары
// (company, client_type), преобразованные для заполнения формы.
func (h *ClientHandler) GetPrefill(c *gin.Context) {
	company := c.Query("company")
	clientType := c.Query("client_type")
	if company == "" || clientType == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "company and client_type are required"})
		return
	}
	if !models.InVocabulary(clientType, models.ClientTypes) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown client_type"})
		return
	}

	ref, err := h.refs.Fetch(c.Request.Context())
	if err != nil {
		utils.CaptureError(err, map[string]interface{}{"endpoint": "prefill"})
		c.JSON(http.StatusOK, PrefillResponse{Found: false})
		return
	}

	prefill := lookup.PrefillFor(ref.Clients, company, clientType)
	if prefill == nil {
		c.JSON(http.StatusOK, PrefillResponse{Found: false})
		return
	}
	c.JSON(http.StatusOK, prefillResponse(prefill))
}

// GetRecent отдаёт последние отправки для блока "Recent Records".
func (h *ClientHandler) GetRecent(c *gin.Context) {
	ref, err := h.refs.Fetch(c.Request.Context())
	if err != nil {
		utils.CaptureError(err, map[string]interface{}{"endpoint": "recent"})
	}
	if ref.Recent == nil {
		ref.Recent = []models.ClientRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"records": ref.Recent})
}

// GetRecord отдаёт одну историческую строку по update_id.
func (h *ClientHandler) GetRecord(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid record ID format"})
		return
	}

	rec, err := h.repo.GetRecord(uint(id))
	if err != nil {
		if err == models.ErrNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
			return
		}
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rec)
}

// SearchClients ищет по проекции в Elasticsearch.
func (h *ClientHandler) SearchClients(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "q is required"})
		return
	}
	if h.es == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "search is not available"})
		return
	}

	query := map[string]interface{}{
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query": q,
				"fields": []string{
					"company^2", "decision_makers", "notes",
					"other_product_notes", "front_end_details",
				},
			},
		},
	}
	results, err := h.es.SearchRecords(c.Request.Context(), utils.RecordsIndex, query)
	if err != nil {
		c.Error(err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "search failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

// Вспомогательные функции

func validateVocabularies(req *SubmissionRequest) error {
	if !models.InVocabulary(req.ClientType, models.ClientTypes) {
		return fmt.Errorf("unknown client_type %q", req.ClientType)
	}
	scalars := []struct {
		name    string
		value   string
		options []string
	}{
		{"client_status", req.ClientStatus, models.ClientStatuses},
		{"access_type", req.AccessType, models.AccessTypes},
		{"etrm", req.ETRM, models.ETRMSystems},
		{"source", req.Source, models.SourceOptions},
	}
	for _, s := range scalars {
		if s.value != "" && !models.InVocabulary(s.value, s.options) {
			return fmt.Errorf("unknown %s %q", s.name, s.value)
		}
	}
	if !models.AllInVocabulary(req.Sensitivities, models.SensitivityOptions) {
		return fmt.Errorf("unknown sensitivity value")
	}
	if !models.AllInVocabulary(req.Barriers, models.BarrierOptions) {
		return fmt.Errorf("unknown barrier value")
	}
	if !models.AllInVocabulary(req.FrontEnd, models.FrontEndOptions) {
		return fmt.Errorf("unknown front_end value")
	}
	return nil
}

// formValues переводит запрос в общее представление для движка сверки.
// Фирмы из свободного ввода добавляются к выбранным из справочника.
func formValues(req *SubmissionRequest) reconcile.FormValues {
	clearers := append([]string{}, req.Clearers...)
	clearers = append(clearers, reconcile.SplitList(req.AdditionalClearers)...)
	brokers := append([]string{}, req.Brokers...)
	brokers = append(brokers, reconcile.SplitList(req.AdditionalBrokers)...)

	return reconcile.FormValues{
		Company:    req.Company,
		ClientType: req.ClientType,
		Scalars: map[string]string{
			"client_status":       req.ClientStatus,
			"decision_makers":     req.DecisionMakers,
			"other_product_notes": req.OtherProductNotes,
			"access_type":         req.AccessType,
			"front_end_details":   req.FrontEndDetails,
			"etrm":                req.ETRM,
			"source":              req.Source,
			"notes":               req.Notes,
		},
		Sets: map[string][]string{
			"sensitivities": req.Sensitivities,
			"barriers":      req.Barriers,
			"front_end":     req.FrontEnd,
			"clearers":      clearers,
			"brokers":       brokers,
		},
		Volumes: map[string]reconcile.VolumeInput{
			"eua_volume": {Exact: req.EUAVolumeExact, Range: req.EUAVolumeRange},
			"go_volume":  {Exact: req.GOVolumeExact, Range: req.GOVolumeRange},
		},
	}
}

// recordFromPayload раскладывает разреженный результат по колонкам строки.
// Колонки, которых нет в текущем варианте формы (overall/power/gas),
// остаются NULL.
func recordFromPayload(p reconcile.Payload) *models.ClientRecord {
	return &models.ClientRecord{
		Company:           p.Company,
		ClientType:        p.ClientType,
		ClientStatus:      p.Texts["client_status"],
		Sensitivities:     p.Texts["sensitivities"],
		Barriers:          p.Texts["barriers"],
		DecisionMakers:    p.Texts["decision_makers"],
		EUAVolume:         p.Numbers["eua_volume"],
		GOVolume:          p.Numbers["go_volume"],
		OtherProductNotes: p.Texts["other_product_notes"],
		AccessType:        p.Texts["access_type"],
		FrontEnd:          p.Texts["front_end"],
		FrontEndDetails:   p.Texts["front_end_details"],
		Clearers:          p.Texts["clearers"],
		Brokers:           p.Texts["brokers"],
		ETRM:              p.Texts["etrm"],
		Source:            p.Texts["source"],
		Notes:             p.Texts["notes"],
	}
}

func prefillResponse(p *reconcile.Prefill) PrefillResponse {
	return PrefillResponse{
		Found:             true,
		ClientStatus:      p.Scalars["client_status"],
		Sensitivities:     p.Sets["sensitivities"],
		Barriers:          p.Sets["barriers"],
		DecisionMakers:    p.Scalars["decision_makers"],
		EUAVolume:         p.Volumes["eua_volume"],
		GOVolume:          p.Volumes["go_volume"],
		OtherProductNotes: p.Scalars["other_product_notes"],
		AccessType:        p.Scalars["access_type"],
		FrontEnd:          p.Sets["front_end"],
		FrontEndDetails:   p.Scalars["front_end_details"],
		Clearers:          p.Sets["clearers"],
		Brokers:           p.Sets["brokers"],
		ETRM:              p.Scalars["etrm"],
		Source:            p.Scalars["source"],
		Notes:             p.Scalars["notes"],
	}
}

func (h *ClientHandler) sendSubmissionEvent(rec *models.ClientRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	event := map[string]interface{}{
		"event":  "client_submitted",
		"record": rec,
	}
	jsonData, err := json.Marshal(event)
	if err != nil {
		log.Printf("Failed to marshal Kafka event: %v", err)
		return
	}

	if err := h.kafka.SendMessage(ctx, utils.SubmissionsTopic, []byte(rec.Company), jsonData); err != nil {
		log.Printf("Failed to send Kafka message: %v", err)
	}
}
