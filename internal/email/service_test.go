package email

import (
	"strings"
	"testing"
)

func TestServiceIsConfigured(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		expected bool
	}{
		{
			name:     "empty config",
			config:   Config{},
			expected: false,
		},
		{
			name: "missing host",
			config: Config{
				Port: "587",
				From: "board@example.com",
			},
			expected: false,
		},
		{
			name: "missing port",
			config: Config{
				Host: "smtp.example.com",
				From: "board@example.com",
			},
			expected: false,
		},
		{
			name: "missing from",
			config: Config{
				Host: "smtp.example.com",
				Port: "587",
			},
			expected: false,
		},
		{
			name: "fully configured",
			config: Config{
				Host: "smtp.example.com",
				Port: "587",
				From: "board@example.com",
			},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(tt.config)
			if svc.IsConfigured() != tt.expected {
				t.Errorf("IsConfigured() = %v, want %v", svc.IsConfigured(), tt.expected)
			}
		})
	}
}

func TestRenderRecordApprovedTemplate(t *testing.T) {
	data := RecordReviewedData{
		AppName:   "Demonboard",
		UserName:  "spacebar",
		LevelName: "Crimson Pulse",
		Status:    "APPROVED",
		Approved:  true,
	}

	html, err := renderTemplate(recordReviewedEmailTemplate, data)
	if err != nil {
		t.Fatalf("renderTemplate failed: %v", err)
	}

	if !strings.Contains(html, "Demonboard") {
		t.Error("template should contain app name")
	}
	if !strings.Contains(html, "spacebar") {
		t.Error("template should contain user name")
	}
	if !strings.Contains(html, "Crimson Pulse") {
		t.Error("template should contain level name")
	}
	if !strings.Contains(html, "approved") {
		t.Error("template should mention approval")
	}
}

func TestRenderRecordRejectedTemplate(t *testing.T) {
	data := RecordReviewedData{
		AppName:   "Demonboard",
		UserName:  "spacebar",
		LevelName: "Glass Cavern",
		Status:    "REJECTED",
		Approved:  false,
	}

	html, err := renderTemplate(recordReviewedEmailTemplate, data)
	if err != nil {
		t.Fatalf("renderTemplate failed: %v", err)
	}

	if !strings.Contains(html, "rejected") {
		t.Error("template should mention rejection")
	}
	if !strings.Contains(html, "resubmit") {
		t.Error("template should invite a resubmission")
	}
}
