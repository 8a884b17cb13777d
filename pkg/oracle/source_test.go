package oracle

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	apperrors "github.com/omniroute/swap-middleware/pkg/app/errors"
	"github.com/omniroute/swap-middleware/pkg/chains"
)

func TestRouter_NativeUSD_Fresh(t *testing.T) {
	router := NewRouter()
	src := NewStatic(decimal.NewFromInt(2500), time.Hour)
	router.SetNative(chains.ID(1), src)

	price, err := router.NativeUSD(context.Background(), chains.ID(1))
	require.NoError(t, err)
	require.True(t, price.Equal(decimal.NewFromInt(2500)))
}

func TestRouter_NativeUSD_StaleBeyondHeartbeat(t *testing.T) {
	router := NewRouter()
	src := NewStatic(decimal.NewFromInt(2500), time.Minute)
	src.Set(decimal.NewFromInt(2500), time.Now().Add(-2*time.Minute))
	router.SetNative(chains.ID(1), src)

	_, err := router.NativeUSD(context.Background(), chains.ID(1))
	require.Error(t, err)
	require.True(t, apperrors.Is(err, apperrors.CategoryStaleness))
}

func TestRouter_TokenUSD_UnknownToken(t *testing.T) {
	router := NewRouter()
	_, err := router.TokenUSD(context.Background(), common.HexToAddress("0x1"))
	require.Error(t, err)
	require.True(t, apperrors.Is(err, apperrors.CategoryResourceNotFound))
}

func TestRouter_RejectsNonPositivePrice(t *testing.T) {
	router := NewRouter()
	src := NewStatic(decimal.Zero, time.Hour)
	router.SetNative(chains.ID(1), src)

	_, err := router.NativeUSD(context.Background(), chains.ID(1))
	require.Error(t, err)
	require.True(t, apperrors.Is(err, apperrors.CategoryDependencyFailure))
}

func TestHTTPSource_Latest(t *testing.T) {
	updated := time.Now().UTC().Truncate(time.Second)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"price":"1845.30","updated_at":"` + updated.Format(time.RFC3339) + `"}`))
	}))
	defer server.Close()

	src, err := NewHTTPSource(HTTPSourceOptions{URL: server.URL, Heartbeat: time.Hour})
	require.NoError(t, err)

	price, at, err := src.Latest(context.Background())
	require.NoError(t, err)
	require.True(t, price.Equal(decimal.RequireFromString("1845.30")))
	require.True(t, at.Equal(updated))
}

func TestHTTPSource_Non200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	src, err := NewHTTPSource(HTTPSourceOptions{URL: server.URL, Heartbeat: time.Hour})
	require.NoError(t, err)

	_, _, err = src.Latest(context.Background())
	require.Error(t, err)
}
