package filter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/akira-bot/deejay/internal/domain/track"
)

func TestDuplicateTrackFilter_SameURL(t *testing.T) {
	filter := NewDuplicateTrackFilter()
	req := Request{
		Queued: []track.Track{
			{Title: "Some Song", WebpageURL: "https://www.youtube.com/watch?v=abc"},
		},
	}

	result := filter.Check(context.Background(), req, track.Track{
		Title:      "Completely Different Title",
		WebpageURL: "https://www.youtube.com/watch?v=abc",
	})

	assert.False(t, result.Accepted)
	assert.Equal(t, "duplicate_track", result.Code)
}

func TestDuplicateTrackFilter_AlternateUploads(t *testing.T) {
	tests := []struct {
		name         string
		queued       string
		requested    string
		shouldReject bool
	}{
		{
			name:         "Official video vs lyrics",
			queued:       "Rick Astley - Never Gonna Give You Up (Official Music Video)",
			requested:    "Rick Astley - Never Gonna Give You Up [Lyrics]",
			shouldReject: true,
		},
		{
			name:         "Dash suffix",
			queued:       "Rick Astley - Never Gonna Give You Up - Official Video",
			requested:    "Rick Astley - Never Gonna Give You Up",
			shouldReject: true,
		},
		{
			name:         "Case, spacing and quality tag",
			queued:       "rick astley  -  never gonna give you up",
			requested:    "Rick Astley - Never Gonna Give You Up (HD)",
			shouldReject: true,
		},
		{
			name:         "Different song",
			queued:       "Rick Astley - Together Forever (Official Video)",
			requested:    "Rick Astley - Never Gonna Give You Up (Official Video)",
			shouldReject: false,
		},
		{
			name:         "Cover keeps its artist",
			queued:       "Rick Astley - Never Gonna Give You Up",
			requested:    "Someone Else - Never Gonna Give You Up",
			shouldReject: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filter := NewDuplicateTrackFilter()
			req := Request{Queued: []track.Track{{Title: tt.queued, WebpageURL: "https://www.youtube.com/watch?v=queued"}}}

			result := filter.Check(context.Background(), req, track.Track{
				Title:      tt.requested,
				WebpageURL: "https://www.youtube.com/watch?v=requested",
			})

			if tt.shouldReject {
				assert.False(t, result.Accepted)
				assert.Equal(t, "duplicate_track", result.Code)
			} else {
				assert.True(t, result.Accepted)
			}
		})
	}
}

func TestDuplicateTrackFilter_EmptyQueue(t *testing.T) {
	filter := NewDuplicateTrackFilter()
	result := filter.Check(context.Background(), Request{}, track.Track{Title: "Anything"})
	assert.True(t, result.Accepted)
}

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Song (Official Audio)", "song"},
		{"Song [4K Remastered]", "song"},
		{"Song (feat. Someone)", "song (feat. someone)"},
		{"Artist - Song - Lyrics", "artist - song"},
		{"  Song   Title  ", "song title"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, normalizeTitle(tt.input))
		})
	}
}
