package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"client-data-service/models"
	"client-data-service/utils"

	"github.com/segmentio/kafka-go"
)

type SubmissionEvent struct {
	Event  string              `json:"event"`
	Record models.ClientRecord `json:"record"`
}

// SubmissionConsumer читает события отправок и строит поисковую проекцию
// в Elasticsearch. Справочный кэш он не трогает: устаревание снимается
// только ручным refresh.
type SubmissionConsumer struct {
	es       utils.ElasticsearchClient
	reader   *kafka.Reader
	shutdown chan struct{}
}

func NewSubmissionConsumer(es utils.ElasticsearchClient) *SubmissionConsumer {
	broker := os.Getenv("KAFKA_BROKER")
	if broker == "" {
		broker = "localhost:9092"
	}
	return &SubmissionConsumer{
		es: es,
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers: []string{broker},
			Topic:   utils.SubmissionsTopic,
			GroupID: "client-data-group",
			MaxWait: 10 * time.Second,
		}),
		shutdown: make(chan struct{}),
	}
}

func (c *SubmissionConsumer) Start(ctx context.Context) {
	log.Println("Starting Kafka consumer...")

	go func() {
		for {
			select {
			case <-c.shutdown:
				return
			default:
				c.processMessages(ctx)
			}
		}
	}()
}

func (c *SubmissionConsumer) Stop() {
	close(c.shutdown)
	if err := c.reader.Close(); err != nil {
		log.Printf("Error closing Kafka reader: %v", err)
	}
}

func (c *SubmissionConsumer) processMessages(ctx context.Context) {
	msg, err := c.reader.ReadMessage(ctx)
	if err != nil {
		if err == context.Canceled {
			return
		}
		log.Printf("Kafka read error: %v (will retry)", err)
		time.Sleep(5 * time.Second)
		return
	}

	var event SubmissionEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		log.Printf("Failed to unmarshal Kafka message: %v", err)
		return
	}

	switch event.Event {
	case "client_submitted":
		c.handleSubmitted(ctx, event.Record)
	default:
		log.Printf("Unknown event type: %s", event.Event)
	}
}

func (c *SubmissionConsumer) handleSubmitted(ctx context.Context, rec models.ClientRecord) {
	if c.es == nil {
		return
	}
	docID := fmt.Sprintf("%d", rec.UpdateID)
	if err := c.es.IndexRecord(ctx, utils.RecordsIndex, docID, rec); err != nil {
		log.Printf("Failed to index record in Elasticsearch: %v", err)
		return
	}
	log.Printf("Indexed submission %d for %s (%s)", rec.UpdateID, rec.Company, rec.ClientType)
}
