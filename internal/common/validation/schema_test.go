package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pingSchema = `{
	"type": "object",
	"properties": {
		"gw_id": {"type": "string", "minLength": 1},
		"sys_uptime": {"type": "string", "pattern": "^[0-9]*$"}
	},
	"required": ["gw_id"]
}`

func TestSchema_ValidateParams(t *testing.T) {
	s, err := Compile("ping", pingSchema)
	require.NoError(t, err)
	assert.Equal(t, "ping", s.Name())

	res := s.ValidateParams(map[string]string{"gw_id": "GW1", "sys_uptime": "1000"})
	assert.True(t, res.Valid)
	assert.Empty(t, res.Errors)

	res = s.ValidateParams(map[string]string{"sys_uptime": "abc"})
	assert.False(t, res.Valid)
	assert.True(t, res.HasErrors("gw_id"))
	assert.True(t, res.HasErrors("sys_uptime"))
	assert.Len(t, res.GetErrorMessages(), 2)
	assert.Contains(t, res.Error(), "gw_id")
}

func TestCompile_InvalidSchema(t *testing.T) {
	_, err := Compile("broken", `{"type": 12}`)
	assert.Error(t, err)
	assert.Panics(t, func() { MustCompile("broken", `{`) })
}

func TestNormalizeMAC(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"AA:BB:CC:DD:EE:FF", "aa:bb:cc:dd:ee:ff"},
		{"aa-bb-cc-dd-ee-ff", "aa:bb:cc:dd:ee:ff"},
		{" 00:11:22:33:44:55 ", "00:11:22:33:44:55"},
		{"not-a-mac", ""},
		{"00:00:00:00:fe:80:00:00:00:00:00:00:02:00:5e:10:00:00:00:01", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeMAC(tt.in))
			assert.Equal(t, tt.want != "", ValidateMAC(tt.in))
		})
	}
}

func TestValidators(t *testing.T) {
	assert.True(t, ValidateIP("192.168.1.10"))
	assert.True(t, ValidateIP("fe80::1"))
	assert.False(t, ValidateIP("999.1.1.1"))

	assert.True(t, ValidateURL("http://example.com/path"))
	assert.False(t, ValidateURL("example.com"))

	assert.True(t, ValidateEmail("user@example.com"))
	assert.False(t, ValidateEmail("user@"))
}
