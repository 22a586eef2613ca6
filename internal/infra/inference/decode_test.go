package inference

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/bryanwahyu/deciphering-cb/internal/domain/analysis"
)

func TestNormalizeBody(t *testing.T) {
	cases := []struct {
		name   string
		in     []byte
		legacy bool
		want   string
	}{
		{name: "plain", in: []byte(`["a"]`), want: `["a"]`},
		{name: "utf8 bom", in: append([]byte{0xEF, 0xBB, 0xBF}, `["a"]`...), want: `["a"]`},
		{name: "invalid utf8", in: []byte("[\"a\xffb\"]"), want: "[\"a�b\"]"},
		{name: "non latin kept", in: []byte(`["Цены"]`), want: `["Цены"]`},
		{name: "legacy strips non ascii", in: []byte(`["Zinsen für Ölpreise"]`), legacy: true, want: `["Zinsen fr lpreise"]`},
		{name: "legacy strips invalid", in: []byte("[\"a\xffb\"]"), legacy: true, want: `["ab"]`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := normalizeBody(tc.in, tc.legacy)
			require.NoError(t, err)
			assert.Equal(t, tc.want, string(got))
		})
	}
}

func TestLegacyFilterThroughClient(t *testing.T) {
	up := newUpstream(t, http.StatusOK, `{"text_fragments": ["Taux d’intérêt"], "sentiments": ["negative"], "agents": ["central_banks"]}`)

	modern, err := New(Options{Contract: domain.ContractGeneric, Endpoint: up.URL})
	require.NoError(t, err)
	res, err := modern.Analyze(context.Background(), domain.Request{Mode: domain.ModeText, Payload: "x"})
	require.NoError(t, err)
	assert.Equal(t, "Taux d’intérêt", res.Rows[0].Sentence)

	legacy, err := New(Options{Contract: domain.ContractGeneric, Endpoint: up.URL, LegacyASCIIFilter: true})
	require.NoError(t, err)
	res, err = legacy.Analyze(context.Background(), domain.Request{Mode: domain.ModeText, Payload: "x"})
	require.NoError(t, err)
	assert.Equal(t, "Taux dintrt", res.Rows[0].Sentence)
}

func TestProbe(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)

	p, err := NewProbe(srv.URL+"/analyze", time.Second)
	require.NoError(t, err)
	assert.NoError(t, p.Check(context.Background()))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	closed := ln.Addr().String()
	require.NoError(t, ln.Close())

	p, err = NewProbe("http://"+closed, 200*time.Millisecond)
	require.NoError(t, err)
	assert.Error(t, p.Check(context.Background()))

	p, err = NewProbe("https://inference.example.com", 0)
	require.NoError(t, err)
	assert.Equal(t, "inference.example.com:443", p.Address)

	_, err = NewProbe("not a url", 0)
	assert.Error(t, err)
}
