package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomhaynes/dragnet/internal/store"
)

func TestDetectDelimiter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		sample string
		want   rune
	}{
		{
			name:   "comma",
			sample: "name,country\nJohn Smith,US\nMaria Garcia,ES\n",
			want:   ',',
		},
		{
			name:   "semicolon",
			sample: "name;country\nJohn Smith;US\n",
			want:   ';',
		},
		{
			name:   "tab",
			sample: "name\tcountry\nJohn Smith\tUS\n",
			want:   '\t',
		},
		{
			name:   "pipe",
			sample: "name|country\nJohn Smith|US\n",
			want:   '|',
		},
		{
			name: "more frequent candidate wins",
			// The semicolon appears once per line, the comma twice.
			sample: "name,alias,country;region\nJohn,Jon,US;West\n",
			want:   ',',
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := DetectDelimiter([]byte(tt.sample))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDetectDelimiter_Ambiguous(t *testing.T) {
	t.Parallel()

	t.Run("no candidate present", func(t *testing.T) {
		t.Parallel()

		_, err := DetectDelimiter([]byte("justonecolumn\nanother\n"))
		assert.ErrorIs(t, err, ErrDelimiterAmbiguous)
	})

	t.Run("inconsistent counts", func(t *testing.T) {
		t.Parallel()

		_, err := DetectDelimiter([]byte("a,b,c\nd,e\n"))
		assert.ErrorIs(t, err, ErrDelimiterAmbiguous)
	})

	t.Run("empty sample", func(t *testing.T) {
		t.Parallel()

		_, err := DetectDelimiter(nil)
		assert.ErrorIs(t, err, ErrDelimiterAmbiguous)
	})
}

func TestDetectDelimiter_TruncatedLastLine(t *testing.T) {
	t.Parallel()

	// The sample window cut the last row in half; its partial field count
	// must not defeat sniffing.
	sample := "name,country\nJohn Smith,US\nMaria Gar"

	got, err := DetectDelimiter([]byte(sample))
	require.NoError(t, err)
	assert.Equal(t, ',', got)
}

func TestFallbackDelimiter(t *testing.T) {
	t.Parallel()

	t.Run("greatest column count wins", func(t *testing.T) {
		t.Parallel()

		// Commas split this header into three columns, semicolons into two.
		got, err := FallbackDelimiter([]byte("a,b,c;d\n"))
		require.NoError(t, err)
		assert.Equal(t, ',', got)
	})

	t.Run("single column parses as comma", func(t *testing.T) {
		t.Parallel()

		got, err := FallbackDelimiter([]byte("name\nJohn Smith\n"))
		require.NoError(t, err)
		assert.Equal(t, ',', got)
	})

	t.Run("nothing parses", func(t *testing.T) {
		t.Parallel()

		_, err := FallbackDelimiter([]byte("\"unterminated\n"))
		assert.ErrorIs(t, err, store.ErrParseFailure)
	})
}
