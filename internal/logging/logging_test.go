package logging

import "testing"

func TestNew(t *testing.T) {
	tests := []struct {
		cfg     Config
		wantErr bool
	}{
		{Config{Level: "info", Format: "json"}, false},
		{Config{Level: "debug", Format: "console"}, false},
		{Config{Level: "", Format: ""}, false},
		{Config{Level: "loud", Format: "json"}, true},
		{Config{Level: "info", Format: "xml"}, true},
	}

	for _, tt := range tests {
		logger, err := New(tt.cfg)
		if (err != nil) != tt.wantErr {
			t.Errorf("New(%+v) error = %v, wantErr %v", tt.cfg, err, tt.wantErr)
			continue
		}
		if logger != nil {
			logger.Sync()
		}
	}
}
