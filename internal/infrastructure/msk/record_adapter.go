// Package msk converts records delivered by an MSK event source mapping
// into outbox events.
package msk

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/aws/aws-lambda-go/events"
	"github.com/example/ec-storefront/internal/infrastructure/store"
)

// ConvertKafkaRecord decodes the base64 value of a record into the event the
// outbox relay published.
func ConvertKafkaRecord(record events.KafkaRecord) (store.Event, error) {
	raw, err := base64.StdEncoding.DecodeString(record.Value)
	if err != nil {
		return store.Event{}, fmt.Errorf("decode record value: %w", err)
	}

	var event store.Event
	if err := json.Unmarshal(raw, &event); err != nil {
		return store.Event{}, fmt.Errorf("unmarshal event: %w", err)
	}

	if event.ID == "" || event.AggregateID == "" || event.EventType == "" {
		return store.Event{}, fmt.Errorf("missing required fields: id=%q, aggregate_id=%q, event_type=%q",
			event.ID, event.AggregateID, event.EventType)
	}
	return event, nil
}

// BatchConvert converts every record in the batch. Partitions are visited in
// key order and records keep their offset order within a partition.
func BatchConvert(batch events.KafkaEvent) ([]store.Event, []error) {
	partitions := make([]string, 0, len(batch.Records))
	for key := range batch.Records {
		partitions = append(partitions, key)
	}
	sort.Strings(partitions)

	var (
		converted []store.Event
		errs      []error
	)
	for _, key := range partitions {
		for _, record := range batch.Records[key] {
			event, err := ConvertKafkaRecord(record)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s offset %d: %w", key, record.Offset, err))
				continue
			}
			converted = append(converted, event)
		}
	}
	return converted, errs
}
