package cmd

import (
	"testing"

	"github.com/smazurov/bellbridge/internal/skybell"
)

func TestPickDevice(t *testing.T) {
	devices := []skybell.DeviceInfo{
		{ID: "d1", Name: "Front Door"},
		{ID: "d2", Name: "Back Door"},
	}

	tests := []struct {
		selector string
		wantID   string
		wantOK   bool
	}{
		{"", "d1", true},
		{"Back Door", "d2", true},
		{"d2", "d2", true},
		{"Garage", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.selector, func(t *testing.T) {
			got, ok := pickDevice(devices, tt.selector)
			if ok != tt.wantOK || got.ID != tt.wantID {
				t.Errorf("pickDevice(%q) = %+v, %v", tt.selector, got, ok)
			}
		})
	}

	if _, ok := pickDevice(nil, ""); ok {
		t.Error("empty device list matched")
	}
}
