package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserChangesColumns(t *testing.T) {
	otp := "123456"
	verified := true

	tests := []struct {
		name    string
		changes UserChanges
		want    map[string]interface{}
	}{
		{name: "empty", changes: UserChanges{}, want: map[string]interface{}{}},
		{name: "new code", changes: UserChanges{OTP: &otp}, want: map[string]interface{}{"otp": "123456"}},
		{
			name:    "verify clears code",
			changes: UserChanges{OTP: &otp, ClearOTP: true, Verified: &verified},
			want:    map[string]interface{}{"otp": nil, "verified": true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.changes.columns())
		})
	}
}
