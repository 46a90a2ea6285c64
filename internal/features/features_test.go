package features

import "testing"

func TestNewDefaultManager(t *testing.T) {
	m := NewDefaultManager(map[string]bool{FeatureMediaUpload: false, "unknown": true})

	if !m.IsEnabled(FeatureEligibilityCache) {
		t.Error("Expected eligibility cache enabled by default")
	}
	if m.IsEnabled(FeatureMediaUpload) {
		t.Error("Expected override to disable media upload")
	}
	if m.IsEnabled("unknown") {
		t.Error("Expected unknown flag to stay disabled")
	}
	if got := len(m.GetAll()); got != 4 {
		t.Errorf("Expected 4 flags, got %d", got)
	}
}

func TestNilManager(t *testing.T) {
	var m *Manager
	if m.IsEnabled(FeatureEventHooks) {
		t.Error("Expected nil manager to report disabled")
	}
}
