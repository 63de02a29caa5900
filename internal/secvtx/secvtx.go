// Package secvtx summarizes the secondary vertices found inside a jet.
package secvtx

import "github.com/chrissnell/jetcalib/internal/jets"

// DefaultTagInfoLabel is the tag-info label of the inclusive secondary
// vertex finder.
const DefaultTagInfoLabel = "pfInclusiveSecondaryVertexFinder"

// MissingMass marks a vertex mass that does not exist.
const MissingMass = -999.0

// Summary is the vertex count and the masses of the two leading vertices.
type Summary struct {
	NVertices uint
	Mass0     float64
	Mass1     float64
}

// Summarizer reads one tag-info label from jets.
type Summarizer struct {
	label string
}

// NewSummarizer returns a summarizer for label, or for DefaultTagInfoLabel
// when label is empty.
func NewSummarizer(label string) *Summarizer {
	if label == "" {
		label = DefaultTagInfoLabel
	}
	return &Summarizer{label: label}
}

// Label returns the tag-info label the summarizer reads.
func (s *Summarizer) Label() string {
	return s.label
}

// Summarize returns the jet's vertex summary. Vertices are taken in the
// finder's order.
func (s *Summarizer) Summarize(j *jets.Jet) Summary {
	out := Summary{Mass0: MissingMass, Mass1: MissingMass}
	if !j.HasTagInfo(s.label) {
		return out
	}
	info := j.TagInfos[s.label]

	out.NVertices = uint(len(info.Vertices))
	if len(info.Vertices) > 0 {
		out.Mass0 = info.Vertices[0].P4.M()
	}
	if len(info.Vertices) > 1 {
		out.Mass1 = info.Vertices[1].P4.M()
	}
	return out
}
