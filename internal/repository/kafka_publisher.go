package repository

import (
	"context"
	"time"

	"StayCast/internal/domain/models"
	domrepo "StayCast/internal/domain/repository"
	pkgkafka "StayCast/pkg/kafka"
)

// KafkaPublisher pushes selection entries and forecast points to Kafka for
// dashboards and monitoring.
type KafkaPublisher struct {
	producer       *pkgkafka.Producer
	selectionTopic string
	forecastTopic  string
}

func NewKafkaPublisher(producer *pkgkafka.Producer, selectionTopic, forecastTopic string) domrepo.Publisher {
	return &KafkaPublisher{
		producer:       producer,
		selectionTopic: selectionTopic,
		forecastTopic:  forecastTopic,
	}
}

func (p *KafkaPublisher) PublishSelection(ctx context.Context, runID string, sel models.Selection) error {
	return p.producer.Publish(ctx, p.selectionTopic, []byte(sel.Key.String()), map[string]interface{}{
		"run_id":    runID,
		"target":    sel.Key.Target,
		"frequency": string(sel.Key.Freq),
		"series_id": sel.Key.SeriesID,
		"model":     sel.Model,
		"alpha":     sel.Alpha,
		"wape":      sel.WAPE,
		"bias_pct":  sel.BiasPct,
	})
}

func (p *KafkaPublisher) PublishForecast(ctx context.Context, runID string, forecast *models.Panel) error {
	if forecast == nil || forecast.Len() == 0 {
		return nil
	}
	var msgs []pkgkafka.Message
	for _, id := range forecast.SeriesIDs() {
		s, _ := forecast.Series(id)
		key := models.SegmentKey{SeriesID: id, Target: forecast.Target(), Freq: forecast.Frequency()}
		for _, pt := range s.Points {
			msgs = append(msgs, pkgkafka.Message{
				Key: []byte(key.String()),
				Value: map[string]interface{}{
					"run_id":    runID,
					"target":    forecast.Target(),
					"frequency": string(forecast.Frequency()),
					"series_id": id,
					"ts":        pt.TS.Format(time.RFC3339),
					"value":     pt.Value,
				},
			})
		}
	}
	return p.producer.PublishBatch(ctx, p.forecastTopic, msgs)
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// NopPublisher is used when Kafka is disabled in configuration.
type NopPublisher struct{}

func (NopPublisher) PublishSelection(context.Context, string, models.Selection) error { return nil }
func (NopPublisher) PublishForecast(context.Context, string, *models.Panel) error     { return nil }
func (NopPublisher) Close() error                                                     { return nil }
