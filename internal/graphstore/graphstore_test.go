package graphstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexelgier/minerva/internal/domain"
)

func TestSplitDate(t *testing.T) {
	year, month, err := splitDate("2026-07-31")
	require.NoError(t, err)
	assert.Equal(t, 2026, year)
	assert.Equal(t, 7, month)

	_, _, err = splitDate("not-a-date")
	assert.Error(t, err)
}

func TestToSnakeLower(t *testing.T) {
	assert.Equal(t, "concept", toSnakeLower("Concept"))
	assert.Equal(t, "feeling_emotion", toSnakeLower("FeelingEmotion"))
}

func TestEntityParams_BaseFieldsAlwaysPresent(t *testing.T) {
	now := time.Now()
	p := domain.Place{EntityBase: domain.EntityBase{UUID: "pl1", Name: "Library", CreatedAt: now}}
	params := entityParams(p)

	assert.Equal(t, "pl1", params["uuid"])
	assert.Equal(t, "Library", params["name"])
	_, hasOccupation := params["occupation"]
	assert.False(t, hasOccupation)
}

func TestEntityParams_VariantFieldsIncluded(t *testing.T) {
	person := domain.Person{
		EntityBase: domain.EntityBase{UUID: "p1", Name: "Ana"},
		Occupation: "librarian",
	}
	params := entityParams(person)
	assert.Equal(t, "librarian", params["occupation"])

	event := domain.Event{
		EntityBase: domain.EntityBase{UUID: "e1", Name: "Conference"},
		Date:       time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC),
		Duration:   2 * time.Hour,
		Location:   "Buenos Aires",
	}
	eventParams := entityParams(event)
	assert.Equal(t, "Buenos Aires", eventParams["location"])
	assert.Equal(t, (2 * time.Hour).Seconds(), eventParams["duration_seconds"])
}
