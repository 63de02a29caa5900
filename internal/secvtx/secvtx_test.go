package secvtx

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/chrissnell/jetcalib/internal/jets"
	"github.com/chrissnell/jetcalib/pkg/lorentz"
)

func vertex(mass float64) jets.SecondaryVertex {
	return jets.SecondaryVertex{P4: lorentz.New(0, 0, 3, math.Sqrt(mass*mass+9))}
}

func TestSummarize(t *testing.T) {
	s := NewSummarizer("")
	assert.Equal(t, DefaultTagInfoLabel, s.Label())

	tests := []struct {
		name string
		jet  *jets.Jet
		want Summary
	}{
		{
			name: "no tag info",
			jet:  &jets.Jet{},
			want: Summary{NVertices: 0, Mass0: -999, Mass1: -999},
		},
		{
			name: "other label only",
			jet: &jets.Jet{TagInfos: map[string]*jets.SVTagInfo{
				"secondaryVertexTagInfos": {Vertices: []jets.SecondaryVertex{vertex(1.5)}},
			}},
			want: Summary{NVertices: 0, Mass0: -999, Mass1: -999},
		},
		{
			name: "empty tag info",
			jet: &jets.Jet{TagInfos: map[string]*jets.SVTagInfo{
				DefaultTagInfoLabel: {},
			}},
			want: Summary{NVertices: 0, Mass0: -999, Mass1: -999},
		},
		{
			name: "one vertex",
			jet: &jets.Jet{TagInfos: map[string]*jets.SVTagInfo{
				DefaultTagInfoLabel: {Vertices: []jets.SecondaryVertex{vertex(1.5)}},
			}},
			want: Summary{NVertices: 1, Mass0: 1.5, Mass1: -999},
		},
		{
			name: "three vertices keep finder order",
			jet: &jets.Jet{TagInfos: map[string]*jets.SVTagInfo{
				DefaultTagInfoLabel: {Vertices: []jets.SecondaryVertex{vertex(0.8), vertex(2.2), vertex(4)}},
			}},
			want: Summary{NVertices: 3, Mass0: 0.8, Mass1: 2.2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Summarize(tt.jet)
			assert.Equal(t, tt.want.NVertices, got.NVertices)
			assert.InDelta(t, tt.want.Mass0, got.Mass0, 1e-9)
			assert.InDelta(t, tt.want.Mass1, got.Mass1, 1e-9)
		})
	}
}
