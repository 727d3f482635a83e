package rtplan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/suyashkumar/dicom/pkg/tag"
)

func TestVROf(t *testing.T) {
	tests := []struct {
		tag  tag.Tag
		want string
	}{
		{tag.BeamMeterset, "DS"},
		{tag.NumberOfBeams, "IS"},
		{tag.ScanSpotMetersetWeights, "FL"},
		{tag.Tag{Group: 0x0009, Element: 0x1001}, "DS"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, vrOf(tt.tag), "tag %v", tt.tag)
	}
}

func TestNumbers_FollowVR(t *testing.T) {
	assert.Equal(t, []float64{0.5, 2}, numbers(tag.ScanSpotMetersetWeights, 0.5, 2).Value.GetValue())
	assert.Equal(t, []string{"3"}, numbers(tag.NumberOfBeams, 3).Value.GetValue())
	assert.Equal(t, []string{"90"}, numbers(tag.GantryAngle, 90).Value.GetValue())
}
