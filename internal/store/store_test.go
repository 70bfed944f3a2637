package store

import (
	"context"
	"testing"

	"candidate-notifier/internal/common/config"
	"candidate-notifier/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==== Test Helper Functions ====

func testView() models.ApplicationView {
	return models.ApplicationView{
		ApplicationID: "101",
		Candidate: models.Candidate{
			ID:          "42",
			Name:        "Jane Doe",
			Email:       "jane@example.com",
			MobilePhone: "9876543210",
		},
		Requirement: models.Requirement{
			ID:         "R9",
			Title:      "Backend Engineer",
			Client:     "Acme",
			MatchScore: 0.87,
		},
	}
}

func TestNormalizeScore(t *testing.T) {
	tests := []struct {
		name  string
		raw   float64
		scale string
		want  float64
	}{
		{"fraction passthrough", 0.87, config.ScoreScaleFraction, 0.87},
		{"percent scaled", 87, config.ScoreScalePercent, 0.87},
		{"fraction clamped high", 1.4, config.ScoreScaleFraction, 1},
		{"percent clamped high", 140, config.ScoreScalePercent, 1},
		{"negative clamped", -3, config.ScoreScaleFraction, 0},
		{"unknown scale treated as fraction", 0.5, "", 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, NormalizeScore(tt.raw, tt.scale), 1e-9)
		})
	}
}

func TestMemoryStore_FindAndMark(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	s.Put(testView())

	view, err := s.FindNotifiableApplication(ctx, "42", "R9")
	require.NoError(t, err)
	assert.Equal(t, "101", view.ApplicationID)
	assert.Equal(t, "Jane", view.Candidate.FirstName)
	assert.False(t, view.EmailSent)

	require.NoError(t, s.MarkEmailSent(ctx, "101"))
	view, err = s.FindNotifiableApplication(ctx, "42", "R9")
	require.NoError(t, err)
	assert.True(t, view.EmailSent)
	assert.False(t, view.SMSSent)

	require.NoError(t, s.MarkSMSSent(ctx, "101"))
	_, err = s.FindNotifiableApplication(ctx, "42", "R9")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_MarkIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	s.Put(testView())

	require.NoError(t, s.MarkEmailSent(ctx, "101"))
	first, ok := s.Marks("101")
	require.True(t, ok)
	require.NotNil(t, first.EmailSentAt)

	require.NoError(t, s.MarkEmailSent(ctx, "101"))
	second, _ := s.Marks("101")
	assert.Equal(t, *first.EmailSentAt, *second.EmailSentAt)
	assert.Nil(t, second.SMSSentAt)
}

func TestMemoryStore_NotFound(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.FindNotifiableApplication(ctx, "1", "2")
	assert.ErrorIs(t, err, ErrNotFound)

	full := testView()
	full.EmailSent, full.SMSSent = true, true
	s.Put(full)
	_, err = s.FindNotifiableApplication(ctx, "42", "R9")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, s.MarkEmailSent(ctx, "missing"))
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	s.Put(testView())

	view, err := s.FindNotifiableApplication(ctx, "42", "R9")
	require.NoError(t, err)
	view.EmailSent = true
	view.Candidate.Email = "changed@example.com"

	again, err := s.FindNotifiableApplication(ctx, "42", "R9")
	require.NoError(t, err)
	assert.False(t, again.EmailSent)
	assert.Equal(t, "jane@example.com", again.Candidate.Email)
}
