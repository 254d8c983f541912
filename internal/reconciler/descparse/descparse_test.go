package descparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractOrderID(t *testing.T) {
	tests := []struct {
		name        string
		description string
		want        string
		found       bool
	}{
		{
			name:        "clean memo",
			description: "ODR20260824-3F7A9C1B",
			want:        "ODR20260824-3F7A9C1B",
			found:       true,
		},
		{
			name:        "surrounded by routing noise",
			description: "MBVCB.4821.123456.ODR20260824-3F7A9C1B.CT tu 0011002233",
			want:        "ODR20260824-3F7A9C1B",
			found:       true,
		},
		{
			name:        "bank stripped the dash",
			description: "thanh toan ODR202608243F7A9C1B xin cam on",
			want:        "ODR20260824-3F7A9C1B",
			found:       true,
		},
		{
			name:        "bank lowercased the memo",
			description: "chuyen tien odr20260824-3f7a9c1b",
			want:        "ODR20260824-3F7A9C1B",
			found:       true,
		},
		{
			name:        "memo glued to surrounding words",
			description: "NAPTIENODR20260824A1B2C3D4GAME",
			want:        "ODR20260824-A1B2C3D4",
			found:       true,
		},
		{
			name:        "no order id present",
			description: "chuyen khoan ca nhan",
			found:       false,
		},
		{
			name:        "truncated suffix does not match",
			description: "ODR20260824-3F7A",
			found:       false,
		},
		{
			name:        "empty description",
			description: "",
			found:       false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractOrderID(tt.description)
			assert.Equal(t, tt.found, ok)
			if tt.found {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestExtractAllOrderIDs(t *testing.T) {
	t.Run("multiple distinct ids", func(t *testing.T) {
		ids := ExtractAllOrderIDs("gop ODR20260824-AAAA1111 va ODR20260824-BBBB2222")
		assert.Equal(t, []string{"ODR20260824-AAAA1111", "ODR20260824-BBBB2222"}, ids)
	})

	t.Run("repeated id reported once", func(t *testing.T) {
		ids := ExtractAllOrderIDs("ODR20260824-AAAA1111 ODR20260824-AAAA1111")
		assert.Equal(t, []string{"ODR20260824-AAAA1111"}, ids)
	})

	t.Run("none found", func(t *testing.T) {
		assert.Empty(t, ExtractAllOrderIDs("khong co ma"))
	})
}
