package insights

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failing struct{}

func (failing) Insights(context.Context) ([]Insight, error) {
	return nil, errors.New("provider down")
}

func TestParseSeverity(t *testing.T) {
	assert.Equal(t, SeverityHigh, ParseSeverity("HIGH"))
	assert.Equal(t, SeverityMedium, ParseSeverity(" medium "))
	assert.Equal(t, SeverityLow, ParseSeverity("low"))
	assert.Equal(t, SeverityLow, ParseSeverity("critical"))
}

func TestStaticReturnsCopy(t *testing.T) {
	list, err := Canned.Insights(context.Background())
	require.NoError(t, err)
	require.Len(t, list, len(Canned))
	list[0].Title = "changed"
	assert.NotEqual(t, "changed", Canned[0].Title)
}

func TestHTTPProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"title":"A","content":"first","severity":"high"},
			{"title":"","content":""},
			{"title":"B","content":"second","severity":"bogus"}
		]`))
	}))
	defer srv.Close()

	list, err := HTTP{URL: srv.URL, Client: srv.Client()}.Insights(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Insight{
		{Title: "A", Content: "first", Severity: SeverityHigh},
		{Title: "B", Content: "second", Severity: SeverityLow},
	}, list)
}

func TestHTTPProviderBadBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"not":"a list"}`))
	}))
	defer srv.Close()

	_, err := HTTP{URL: srv.URL}.Insights(context.Background())
	assert.Error(t, err)
}

func TestFetchTreatsFailureAsEmpty(t *testing.T) {
	var seen []error
	onError := func(err error) { seen = append(seen, err) }

	assert.Empty(t, Fetch(context.Background(), failing{}, onError))
	assert.Len(t, seen, 1)
	assert.Len(t, Fetch(context.Background(), Canned, onError), len(Canned))
	assert.Len(t, seen, 1, "success does not report an error")
	assert.Empty(t, Fetch(context.Background(), failing{}, nil))
}

func TestLoader(t *testing.T) {
	l := NewLoader(Canned)
	_, loading := l.Result()
	assert.True(t, loading)

	l.Start(context.Background())
	select {
	case <-l.Done():
	case <-time.After(time.Second):
		t.Fatal("loader did not finish")
	}
	list, loading := l.Result()
	assert.False(t, loading)
	assert.Len(t, list, len(Canned))
}

func TestLoaderFailure(t *testing.T) {
	var got error
	l := NewLoader(failing{})
	l.OnError(func(err error) { got = err })
	l.Start(context.Background())
	<-l.Done()

	list, loading := l.Result()
	assert.False(t, loading)
	assert.Empty(t, list)
	assert.EqualError(t, got, "provider down")
}

func TestSampleByISO(t *testing.T) {
	c, ok := SampleByISO("nga")
	require.True(t, ok)
	assert.Equal(t, "Nigeria", c.Name)
	assert.True(t, c.HighActivity())

	c, ok = SampleByISO("JPN")
	require.True(t, ok)
	assert.False(t, c.HighActivity())

	_, ok = SampleByISO("XXX")
	assert.False(t, ok)
}
