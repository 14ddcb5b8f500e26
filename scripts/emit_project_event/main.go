package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"strings"

	"github.com/segmentio/kafka-go"
)

// Simulates the approval workflow: publishes a project decision to the topic
// the portal's notice consumer reads.
func main() {
	brokers := flag.String("brokers", "localhost:19092", "comma-separated kafka brokers")
	topic := flag.String("topic", "project-events", "topic")
	eventType := flag.String("type", "project_rejected", "project_approved or project_rejected")
	projectID := flag.String("project", "projX", "project id")
	reviewerID := flag.String("reviewer", "pacc1", "reviewer user id")
	recipientID := flag.String("recipient", "gp1", "recipient user id")
	reason := flag.String("reason", "", "rejection reason")
	flag.Parse()

	payload, _ := json.Marshal(map[string]string{
		"type":         *eventType,
		"project_id":   *projectID,
		"reviewer_id":  *reviewerID,
		"recipient_id": *recipientID,
		"reason":       *reason,
	})

	writer := &kafka.Writer{
		Addr:     kafka.TCP(strings.Split(*brokers, ",")...),
		Topic:    *topic,
		Balancer: &kafka.LeastBytes{},
	}
	defer writer.Close()

	if err := writer.WriteMessages(context.Background(), kafka.Message{Value: payload}); err != nil {
		log.Fatalf("Failed to publish project event: %v", err)
	}
	log.Printf("Published %s for project %s", *eventType, *projectID)
}
