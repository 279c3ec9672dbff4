package location

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"googlemaps.github.io/maps"
)

const (
	ggaFix     = "$GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*47"
	ggaNoFix   = "$GPGGA,123519,,,,,0,00,,,M,,M,,*6B"
	ggaGNSS    = "$GNGGA,101500,3540.572,N,13939.018,E,1,10,1.2,40.0,M,39.0,M,,*6F"
	rmcMoving  = "$GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W*6A"
	lineNoise  = "garbage,without,checksum"
	partialGGA = "$GPGGA,1235"
)

func nmeaInput(lines ...string) io.Reader {
	return strings.NewReader(strings.Join(lines, "\r\n") + "\r\n")
}

func TestReadFix_GGAAndRMC(t *testing.T) {
	location, err := readFix(context.Background(), nmeaInput(partialGGA, lineNoise, ggaFix, rmcMoving))
	require.NoError(t, err)

	assert.InDelta(t, 48.1173, location.Latitude, 1e-9)
	assert.InDelta(t, 11.516666, location.Longitude, 1e-6)
	assert.InDelta(t, 0.9, location.Accuracy, 1e-9)
	assert.InDelta(t, 22.4*1.852, location.SpeedKmh, 1e-9)
}

func TestReadFix_GGAOnly(t *testing.T) {
	location, err := readFix(context.Background(), nmeaInput(ggaGNSS))
	require.NoError(t, err)

	assert.InDelta(t, 35.6762, location.Latitude, 1e-9)
	assert.InDelta(t, 139.6503, location.Longitude, 1e-9)
	assert.Zero(t, location.SpeedKmh)
}

func TestReadFix_NoFix(t *testing.T) {
	_, err := readFix(context.Background(), nmeaInput(ggaNoFix, rmcMoving, lineNoise))
	assert.ErrorIs(t, err, ErrNoFix)
}

func TestReadFix_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := readFix(ctx, nmeaInput(ggaFix))
	assert.ErrorIs(t, err, context.Canceled)
}

type nopReadCloser struct{ io.Reader }

func (nopReadCloser) Close() error { return nil }

func TestDeviceSensorProvider_GetLocation(t *testing.T) {
	provider := NewDeviceSensorProvider("/dev/ttyUSB0", 9600)
	provider.open = func() (io.ReadCloser, error) {
		return nopReadCloser{nmeaInput(ggaFix, rmcMoving)}, nil
	}

	location, err := provider.GetLocation(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 48.1173, location.Latitude, 1e-9)

	provider.open = func() (io.ReadCloser, error) { return nil, errors.New("no such device") }
	_, err = provider.GetLocation(context.Background())
	assert.ErrorContains(t, err, "/dev/ttyUSB0")
}

func TestStaticProvider_GetLocation(t *testing.T) {
	provider := NewStaticProvider(35.6762, 139.6503, 5)

	location, err := provider.GetLocation(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Location{Latitude: 35.6762, Longitude: 139.6503, Accuracy: 5}, location)
	assert.NoError(t, provider.Close())
}

func TestGoogleGeolocationProvider_GetLocation(t *testing.T) {
	var received maps.GeolocationRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/geolocation/v1/geolocate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"location":{"lat":35.6762,"lng":139.6503},"accuracy":30}`)
	}))
	defer server.Close()

	provider, err := NewGoogleGeolocationProvider("AIza-test-key", 0, maps.WithBaseURL(server.URL))
	require.NoError(t, err)
	provider.scanWiFi = func(context.Context) ([]maps.WiFiAccessPoint, error) {
		return []maps.WiFiAccessPoint{{MACAddress: "00:14:22:01:23:45", SignalStrength: 70}}, nil
	}
	provider.scanCells = func(context.Context, int) ([]maps.CellTower, error) {
		return nil, errors.New("no modem")
	}

	location, err := provider.GetLocation(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Location{Latitude: 35.6762, Longitude: 139.6503, Accuracy: 30}, location)
	assert.True(t, received.ConsiderIP)
	assert.Len(t, received.WiFiAccessPoints, 1)
	assert.Empty(t, received.CellTowers)
}

func TestParseWiFiAccessPoints_EscapedColons(t *testing.T) {
	output := "00\\:14\\:22\\:01\\:23\\:45:70\n" +
		"AA\\:BB\\:CC\\:DD\\:EE\\:FF:35\n" +
		"not-a-mac:50\n" +
		"11\\:22\\:33\\:44\\:55\\:66:weak\n"

	aps, err := parseWiFiAccessPoints(output)
	require.NoError(t, err)
	assert.Equal(t, []maps.WiFiAccessPoint{
		{MACAddress: "00:14:22:01:23:45", SignalStrength: 70},
		{MACAddress: "AA:BB:CC:DD:EE:FF", SignalStrength: 35},
	}, aps)
}

func TestParseCellTowers(t *testing.T) {
	output := strings.Join([]string{
		"modem.location.3gpp.mcc : 440",
		"modem.location.3gpp.mnc : 10",
		"modem.location.3gpp.lac : 0000",
		"modem.location.3gpp.tac : 1A2B",
		"modem.location.3gpp.cid : 01C3D4E5",
	}, "\n")

	towers, err := parseCellTowers(output)
	require.NoError(t, err)
	require.Len(t, towers, 1)
	assert.Equal(t, 440, towers[0].MobileCountryCode)
	assert.Equal(t, 10, towers[0].MobileNetworkCode)
	assert.Equal(t, 0x1A2B, towers[0].LocationAreaCode)
	assert.Equal(t, 0x01C3D4E5, towers[0].CellID)

	_, err = parseCellTowers("modem.location.3gpp.mcc : --\n")
	assert.Error(t, err)
}

func TestIsValidMAC(t *testing.T) {
	assert.True(t, isValidMAC("ff:ff:ff:ff:ff:ff"))
	assert.False(t, isValidMAC("ff:ff:ff:ff:ff"))
	assert.False(t, isValidMAC("zz:ff:ff:ff:ff:ff"))
}
