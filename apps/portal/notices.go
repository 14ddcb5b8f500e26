package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/gramsetu/scheme-portal/pkg/messaging"
	"github.com/gramsetu/scheme-portal/pkg/model"
)

// ProjectEvent is the payload the approval workflow publishes when a
// district reviewer decides on a submitted project.
type ProjectEvent struct {
	Type        string `json:"type"` // "project_approved" | "project_rejected"
	ProjectID   string `json:"project_id"`
	ReviewerID  string `json:"reviewer_id"`
	RecipientID string `json:"recipient_id"`
	Reason      string `json:"reason,omitempty"`
}

// runNoticeConsumer bridges the approval workflow into messaging: each
// decision becomes a system notice in the reviewer/submitter conversation
// plus a realtime project_approved/project_rejected event.
func runNoticeConsumer(ctx context.Context, brokers []string, topic string, orch *messaging.Orchestrator) {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  "portal-notice-group",
		MinBytes: 10e3,
		MaxBytes: 10e6,
	})
	defer reader.Close()

	log.Printf("Project-event consumer starting on topic %s...", topic)
	for {
		m, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("Error reading project event: %v. Retrying in 1s...", err)
			time.Sleep(1 * time.Second)
			continue
		}

		var ev ProjectEvent
		if err := json.Unmarshal(m.Value, &ev); err != nil {
			log.Printf("Failed to unmarshal project event: %v", err)
			continue
		}

		notice, err := noticeFor(ev)
		if err != nil {
			log.Printf("Skipping project event: %v", err)
			continue
		}
		if _, err := orch.CreateSystemNotice(ctx, notice); err != nil {
			log.Printf("Failed to create system notice for project %s: %v", ev.ProjectID, err)
		}
	}
}

func noticeFor(ev ProjectEvent) (messaging.NoticeInput, error) {
	switch ev.Type {
	case "project_approved":
		return messaging.NoticeInput{
			ProjectID: ev.ProjectID,
			FromID:    ev.ReviewerID,
			ToID:      ev.RecipientID,
			Body:      fmt.Sprintf("Project %s has been approved.", ev.ProjectID),
			Kind:      model.KindApprovalNotice,
		}, nil
	case "project_rejected":
		body := fmt.Sprintf("Project %s has been rejected.", ev.ProjectID)
		if ev.Reason != "" {
			body = fmt.Sprintf("Project %s has been rejected: %s", ev.ProjectID, ev.Reason)
		}
		return messaging.NoticeInput{
			ProjectID: ev.ProjectID,
			FromID:    ev.ReviewerID,
			ToID:      ev.RecipientID,
			Body:      body,
			Kind:      model.KindRejectionNotice,
			Reason:    ev.Reason,
		}, nil
	}
	return messaging.NoticeInput{}, fmt.Errorf("unknown project event type %q", ev.Type)
}
