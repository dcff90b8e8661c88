package wirelesstag

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataPointDecodesVendorTimestamp(t *testing.T) {
	raw := `{"d": [{"time": "2023-08-14 09:15:30", "temp_degC": 19.5, "battery_volts": 2.9}]}`

	var out rawDataResponse
	require.NoError(t, json.Unmarshal([]byte(raw), &out))

	require.Len(t, out.D, 1)
	assert.Equal(t, time.Date(2023, 8, 14, 9, 15, 30, 0, time.UTC), out.D[0].Time.Time)
	assert.Equal(t, 19.5, out.D[0].TempDegC)
}

func TestDataPointDecodesRFC3339Fallback(t *testing.T) {
	var vt vendorTime
	require.NoError(t, json.Unmarshal([]byte(`"2023-08-14T09:15:30Z"`), &vt))
	assert.Equal(t, time.Date(2023, 8, 14, 9, 15, 30, 0, time.UTC), vt.Time)
}

func TestDataPointRejectsUnrecognisedTimestamp(t *testing.T) {
	var vt vendorTime
	assert.Error(t, json.Unmarshal([]byte(`"14/08/2023"`), &vt))
}
