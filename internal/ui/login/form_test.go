package login

import "testing"

func TestValidateURL(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
	}{
		{"http://localhost:5000/api", false},
		{"https://desk.example.com/api", false},
		{" https://desk.example.com ", false},
		{"", true},
		{"localhost:5000", true},
		{"ftp://example.com", true},
		{"http://", true},
	}
	for _, tt := range tests {
		err := validateURL(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("validateURL(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
	}
}

func TestValidateRequired(t *testing.T) {
	v := validateRequired("Token")
	if err := v("   "); err == nil || err.Error() != "Token is required" {
		t.Errorf("validateRequired(blank) = %v", err)
	}
	if err := v("abc"); err != nil {
		t.Errorf("validateRequired(abc) = %v", err)
	}
}
