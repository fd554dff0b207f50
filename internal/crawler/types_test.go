package crawler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRecordValidate(t *testing.T) {
	t.Parallel()

	valid := []Record{
		NewLogoRecord("a.com", Candidate{URL: "https://a.com/l.png", Source: SourceJSONLD}),
		NewLogoRecord("a.com", Candidate{URL: "https://a.com/fav.ico", Source: SourceImageLink}),
		NewLogoRecord("a.com", Candidate{URL: "https://a.com/favicon.ico", Source: SourceFaviconFallback}),
		NewNoneRecord("a.com"),
		NewErrorRecord("a.com", errors.New("connection refused")),
		NewErrorRecord("a.com", nil),
	}
	for _, rec := range valid {
		require.NoError(t, rec.Validate(), "%+v", rec)
	}

	invalid := []Record{
		{Label: LabelNone},
		{Domain: "a.com", Label: LabelLogo},
		{Domain: "a.com", Label: LabelFavicon, Logo: "x", Error: "boom"},
		{Domain: "a.com", Label: LabelNone, Logo: "x"},
		{Domain: "a.com", Label: LabelError},
		{Domain: "a.com", Label: LabelError, Error: "boom", Logo: "x"},
		{Domain: "a.com", Label: "other"},
	}
	for _, rec := range invalid {
		require.Error(t, rec.Validate(), "%+v", rec)
	}
}

func TestSourceKindLabel(t *testing.T) {
	t.Parallel()

	require.Equal(t, LabelLogo, SourceJSONLD.Label())
	require.Equal(t, LabelFavicon, SourceImageLink.Label())
	require.Equal(t, LabelFavicon, SourceFaviconFallback.Label())
	require.Equal(t, LabelNone, SourceNone.Label())
	require.True(t, LabelLogo.Success())
	require.False(t, LabelError.Success())
}

func TestRoundTripSumsAttempts(t *testing.T) {
	t.Parallel()

	res := Result{Attempts: []Attempt{{Duration: time.Second}, {Duration: 2 * time.Second}}}
	require.Equal(t, 3*time.Second, res.RoundTrip())
	require.Zero(t, Result{}.RoundTrip())
}

func TestFetchErrorClassification(t *testing.T) {
	t.Parallel()

	require.NoError(t, StatusError("https://a.com/", 200))
	require.NoError(t, StatusError("https://a.com/", 304))

	err := StatusError("https://a.com/", 502)
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	require.Equal(t, KindServer, fe.Kind)
	require.Equal(t, "server error: GET https://a.com/: status 502 Bad Gateway", err.Error())

	netErr := TransportError(context.Background(), "https://a.com/", errors.New("dial tcp: connection refused"))
	require.Contains(t, netErr.Error(), "connection refused")
	require.ErrorAs(t, netErr, &fe)
	require.Equal(t, KindNetwork, fe.Kind)
	require.False(t, IsCanceled(netErr))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	canceled := TransportError(ctx, "https://a.com/", errors.New("request aborted"))
	require.True(t, IsCanceled(canceled))
	require.ErrorIs(t, canceled, context.Canceled)
}
