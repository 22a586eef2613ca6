package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"Text": ModeText, "text": ModeText, " URL ": ModeURL, "url": ModeURL} {
		got, err := ParseMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseMode("")
	assert.ErrorIs(t, err, ErrInvalidMode)
	assert.Equal(t, "URL", ModeURL.Label())
	assert.Equal(t, "Text", ModeText.Label())
}

func TestParseContract(t *testing.T) {
	c, err := ParseContract("Generic")
	require.NoError(t, err)
	assert.Equal(t, ContractGeneric, c)

	c, err = ParseContract("mode-routed")
	require.NoError(t, err)
	assert.Equal(t, ContractModeRouted, c)

	_, err = ParseContract("grpc")
	assert.Error(t, err)
}

func TestResultSignificance(t *testing.T) {
	var nilResult *Result
	assert.False(t, nilResult.Significant())
	assert.False(t, (&Result{}).Significant())
	assert.False(t, (&Result{Rows: []Row{}}).HasProbabilities())

	plain := &Result{Rows: []Row{{Sentence: "Rates will rise.", Agent: "central_banks", Sentiment: "negative"}}}
	assert.True(t, plain.Significant())
	assert.False(t, plain.HasProbabilities())

	withProb := &Result{Rows: []Row{{Sentence: "s", SentimentProbability: Probability(0.5)}}}
	assert.True(t, withProb.HasProbabilities())
}
