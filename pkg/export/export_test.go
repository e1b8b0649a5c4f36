package export

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func overviewFixture() Overview {
	end := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
	return Overview{
		Title: "Contract periods client-1",
		Rows: []PeriodRow{
			{Category: "Personal care", Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), End: &end},
			{Category: "Household help", Start: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)},
		},
	}
}

func TestCSVExporterRender(t *testing.T) {
	content, err := NewCSVExporter().Render(overviewFixture())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Category,Start,End", lines[0])
	assert.Equal(t, "Personal care,2024-01-01,2024-03-31", lines[1])
	assert.Equal(t, "Household help,2024-04-01,open", lines[2])
}

func TestCSVExporterRenderEmptyOverview(t *testing.T) {
	content, err := NewCSVExporter().Render(Overview{Title: "Contract periods client-2"})
	require.NoError(t, err)
	assert.Equal(t, "Category,Start,End", strings.TrimSpace(string(content)))
}

func TestPDFExporterRender(t *testing.T) {
	content, err := NewPDFExporter().Render(overviewFixture())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(content), "%PDF"))
	assert.NotEmpty(t, content)
}
