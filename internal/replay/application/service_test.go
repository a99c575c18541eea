package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	replay "sitewatch-cloud/internal/replay/domain"
	snapshots "sitewatch-cloud/internal/snapshots/domain"
)

type stubSource struct {
	rows []snapshots.RawSnapshot
	err  error

	siteID    string
	programID string
}

func (s *stubSource) SnapshotsForSite(_ context.Context, siteID, programID string) ([]snapshots.RawSnapshot, error) {
	s.siteID = siteID
	s.programID = programID
	return s.rows, s.err
}

func sourceRows(perDay, days int) []snapshots.RawSnapshot {
	rows := make([]snapshots.RawSnapshot, 0, perDay*days)
	for d := 0; d < days; d++ {
		for h := 0; h < perDay; h++ {
			rows = append(rows, snapshots.RawSnapshot{
				ID:             fmt.Sprintf("r%d-%d", d, h),
				SiteID:         "site-1",
				ProgramID:      "program-1",
				WakeRoundStart: fmt.Sprintf("2026-03-%02dT%02d:00:00.000Z", d+1, h),
				Payload:        json.RawMessage(`[{"device_id":"D1","position":{"x":1,"y":1}}]`),
			})
		}
	}
	return rows
}

func TestBuildSequenceFull(t *testing.T) {
	source := &stubSource{rows: sourceRows(10, 2)}
	service, err := NewService(source, DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	sequence, err := service.BuildSequence(context.Background(), "site-1", "program-1", Options{})
	if err != nil {
		t.Fatalf("build sequence: %v", err)
	}
	if len(sequence) != 20 {
		t.Fatalf("expected full sequence of 20, got %d", len(sequence))
	}
	if source.siteID != "site-1" || source.programID != "program-1" {
		t.Fatalf("expected source called with site/program, got %s/%s", source.siteID, source.programID)
	}
}

func TestBuildSequenceAggregatedUsesDefaultDensity(t *testing.T) {
	source := &stubSource{rows: sourceRows(10, 2)}
	service, err := NewService(source, DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	sequence, err := service.BuildSequence(context.Background(), "site-1", "program-1", Options{Aggregated: true})
	if err != nil {
		t.Fatalf("build sequence: %v", err)
	}
	if len(sequence) != 8 {
		t.Fatalf("expected 4 per day over 2 days, got %d", len(sequence))
	}
}

func TestBuildSequenceAggregatedOverride(t *testing.T) {
	source := &stubSource{rows: sourceRows(10, 1)}
	service, err := NewService(source, DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	sequence, err := service.BuildSequence(context.Background(), "site-1", "program-1", Options{Aggregated: true, SnapshotsPerDay: 2})
	if err != nil {
		t.Fatalf("build sequence: %v", err)
	}
	if len(sequence) != 2 {
		t.Fatalf("expected override density 2, got %d", len(sequence))
	}
}

func TestBuildSequenceNegativeDensity(t *testing.T) {
	service, err := NewService(&stubSource{}, DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	_, err = service.BuildSequence(context.Background(), "site-1", "program-1", Options{SnapshotsPerDay: -1})
	if !errors.Is(err, replay.ErrInvalidDensity) {
		t.Fatalf("expected ErrInvalidDensity, got %v", err)
	}
}

func TestBuildSequenceSourceError(t *testing.T) {
	wantErr := errors.New("store unreachable")
	service, err := NewService(&stubSource{err: wantErr}, DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	_, err = service.BuildSequence(context.Background(), "site-1", "program-1", Options{})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected source error surfaced, got %v", err)
	}
}

func TestBuildSequenceEmptySite(t *testing.T) {
	service, err := NewService(&stubSource{}, DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if _, err := service.BuildSequence(context.Background(), "", "program-1", Options{}); err == nil {
		t.Fatalf("expected error for empty site id")
	}
}

func TestNewServiceValidation(t *testing.T) {
	if _, err := NewService(nil, DefaultConfig(), nil); err == nil {
		t.Fatalf("expected error for nil source")
	}
	if _, err := NewService(&stubSource{}, Config{}, nil); err == nil {
		t.Fatalf("expected error for invalid config")
	}
}
