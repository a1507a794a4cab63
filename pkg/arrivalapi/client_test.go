package arrivalapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, status int, body string) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return New(srv.URL)
}

func TestFetchArrivalsLegacyCodes(t *testing.T) {
	c := serve(t, http.StatusOK,
		`{"isSuccess":true,"code":20100,"message":"ok","result":[{"busNumber":"742"},{"busNumber":"2412"}]}`)

	snap, err := c.FetchArrivals(context.Background(), 7)
	require.NoError(t, err)

	assert.True(t, snap.HasNearbyStop)
	assert.True(t, snap.IsRegisteredBusArriving)
	require.Len(t, snap.ExpectedBuses, 2)
	assert.Equal(t, "742", snap.ExpectedBuses[0].BusNumber)
}

func TestFetchArrivalsNoNearbyStopCode(t *testing.T) {
	c := serve(t, http.StatusOK,
		`{"isSuccess":true,"code":20001,"message":"no stops nearby","result":[{"busNumber":"742"}]}`)

	snap, err := c.FetchArrivals(context.Background(), 7)
	require.NoError(t, err)

	assert.False(t, snap.HasNearbyStop)
	assert.False(t, snap.IsRegisteredBusArriving)
	assert.Empty(t, snap.ExpectedBuses)
}

func TestFetchArrivalsExplicitBooleansWin(t *testing.T) {
	c := serve(t, http.StatusOK,
		`{"isSuccess":true,"code":200,"message":"ok","result":[{"busNumber":"742"}],"hasNearbyStops":true,"isRegisteredBusArriving":true}`)

	snap, err := c.FetchArrivals(context.Background(), 7)
	require.NoError(t, err)

	assert.True(t, snap.HasNearbyStop)
	assert.True(t, snap.IsRegisteredBusArriving)
	assert.Len(t, snap.ExpectedBuses, 1)
}

func TestFetchArrivalsPlainSuccessIsNotArriving(t *testing.T) {
	c := serve(t, http.StatusOK,
		`{"isSuccess":true,"code":200,"message":"ok","result":[{"busNumber":"360"}]}`)

	snap, err := c.FetchArrivals(context.Background(), 7)
	require.NoError(t, err)

	assert.True(t, snap.HasNearbyStop)
	assert.False(t, snap.IsRegisteredBusArriving)
}

func TestFetchArrivalsFailureResponses(t *testing.T) {
	_, err := serve(t, http.StatusBadGateway, `oops`).FetchArrivals(context.Background(), 7)
	assert.ErrorContains(t, err, "unexpected status code")

	_, err = serve(t, http.StatusOK, `{"isSuccess":false,"code":400,"message":"invalid user"}`).
		FetchArrivals(context.Background(), 7)
	assert.ErrorContains(t, err, "code 400")
}

func TestRegisterBusNumber(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/users/bus-number", r.URL.Path)
		w.Write([]byte(`{"result":{"userId":42}}`))
	}))
	defer srv.Close()

	id, err := New(srv.URL).RegisterBusNumber(context.Background(), "742")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
}

func TestRegisterBusNumberMissingID(t *testing.T) {
	c := serve(t, http.StatusOK, `{"result":{}}`)
	_, err := c.RegisterBusNumber(context.Background(), "742")
	assert.ErrorContains(t, err, "missing user id")
}
