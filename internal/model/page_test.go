package model

import "testing"

func TestPage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		contentType string
		want        bool
	}{
		{"text/html", true},
		{"text/html; charset=utf-8", true},
		{"TEXT/HTML", true},
		{"application/xhtml+xml", true},
		{"application/pdf", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			t.Parallel()
			p := Page{ContentType: tt.contentType}
			if got := p.IsHTML(); got != tt.want {
				t.Errorf("IsHTML(%q) = %v, expected %v", tt.contentType, got, tt.want)
			}
		})
	}

	failed := Page{Status: PageFailed}
	if !failed.Failed() {
		t.Error("expected failed page to report Failed")
	}
}
