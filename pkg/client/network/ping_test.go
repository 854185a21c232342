package network

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMedianRTT(t *testing.T) {
	tests := []struct {
		name string
		rtts []int64
		want int64
	}{
		{"empty", nil, 0},
		{"odd", []int64{30, 10, 20}, 20},
		{"even", []int64{40, 10, 30, 20}, 25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, medianRTT(tt.rtts))
		})
	}
}

func TestRemoveOutlierRTTs(t *testing.T) {
	tests := []struct {
		name string
		rtts []int64
		want []int64
	}{
		{"no outliers", []int64{10, 12, 11}, []int64{10, 12, 11}},
		{"spike dropped", []int64{10, 12, 11, 300}, []int64{10, 12, 11}},
		{"small values kept", []int64{2, 3, 15}, []int64{2, 3, 15}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, removeOutlierRTTs(tt.rtts))
		})
	}
}

func TestRTTTracker(t *testing.T) {
	tracker := &rttTracker{}
	assert.Equal(t, 10.0, tracker.record(10))
	assert.Equal(t, 15.0, tracker.record(20))
	assert.Equal(t, 15.0, tracker.record(500))

	for i := 0; i < recentRTTWindow; i++ {
		tracker.record(40)
	}
	assert.Len(t, tracker.recentRTTs, recentRTTWindow)
	assert.Equal(t, 40.0, tracker.current())
}
