package domain_test

import (
	"strings"
	"testing"

	"github.com/firmbeat/recurflow/internal/domain"
)

func TestInvalidPatternError(t *testing.T) {
	err := &domain.InvalidPatternError{Reason: "monthly frequency must be a positive integer"}
	if !strings.Contains(err.Error(), "frequency") {
		t.Errorf("error message should contain the reason, got: %q", err.Error())
	}
}

func TestScheduleNotFoundError(t *testing.T) {
	err := &domain.ScheduleNotFoundError{ScheduleID: "sched-42"}
	if !strings.Contains(err.Error(), "sched-42") {
		t.Errorf("error message should contain schedule ID, got: %q", err.Error())
	}
}

func TestTemplateNotFoundError(t *testing.T) {
	err := &domain.TemplateNotFoundError{TemplateID: "tmpl-7"}
	if !strings.Contains(err.Error(), "tmpl-7") {
		t.Errorf("error message should contain template ID, got: %q", err.Error())
	}
}

func TestConflictError(t *testing.T) {
	err := &domain.ConflictError{ScheduleID: "sched-9", Version: 4}
	msg := err.Error()
	if !strings.Contains(msg, "sched-9") {
		t.Errorf("error message should contain schedule ID, got: %q", msg)
	}
	if !strings.Contains(msg, "4") {
		t.Errorf("error message should contain expected version, got: %q", msg)
	}
}

func TestAllErrorTypesImplementError(t *testing.T) {
	// Compile-time interface checks via assignment to error variables.
	var _ error = &domain.InvalidPatternError{}
	var _ error = &domain.ScheduleNotFoundError{}
	var _ error = &domain.TemplateNotFoundError{}
	var _ error = &domain.ConflictError{}
}
