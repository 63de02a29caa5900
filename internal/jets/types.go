// Package jets defines the event and jet records the calibration pipeline
// consumes and annotates.
package jets

import (
	"sort"

	"github.com/chrissnell/jetcalib/pkg/lorentz"
)

// EventContext holds the per-event quantities shared by every jet of an
// event. It is read-only while the event's jets are processed.
type EventContext struct {
	Rho       float64 `json:"rho"`
	NVertices int     `json:"n_vertices"`
	IsData    bool    `json:"is_data"`
}

// Event is one detector event.
type Event struct {
	Run     uint32       `json:"run"`
	Lumi    uint32       `json:"lumi"`
	Number  uint64       `json:"event"`
	Context EventContext `json:"context"`
	Jets    []Jet        `json:"jets"`
}

// MuonInfo carries the muon identification flags of a constituent that has
// a linked muon.
type MuonInfo struct {
	Global     bool `json:"global,omitempty"`
	Standalone bool `json:"standalone,omitempty"`
	Tracker    bool `json:"tracker,omitempty"`
	PF         bool `json:"pf,omitempty"`
}

// Constituent is a particle-flow candidate clustered into a jet. Key is the
// candidate's index in the event's particle collection.
type Constituent struct {
	Key   uint32         `json:"key"`
	PdgID int            `json:"pdg_id"`
	P4    lorentz.Vector `json:"p4"`
	Muon  *MuonInfo      `json:"muon,omitempty"`
}

// GenJet is a generator-level jet; only its momentum is used.
type GenJet struct {
	P4 lorentz.Vector `json:"p4"`
}

// SecondaryVertex is one reconstructed displaced vertex.
type SecondaryVertex struct {
	P4 lorentz.Vector `json:"p4"`
}

// SVTagInfo is the output of a secondary-vertex finder for one jet.
// Vertices keep the finder's ordering.
type SVTagInfo struct {
	Vertices []SecondaryVertex `json:"vertices"`
}

// Jet is a reconstructed jet. RawP4 is the uncorrected momentum; the
// calibration pipeline only ever adds derived attributes to the jet.
type Jet struct {
	RawP4             lorentz.Vector        `json:"raw_p4"`
	Area              float64               `json:"area"`
	ChargedEMFraction float64               `json:"charged_em_fraction"`
	NeutralEMFraction float64               `json:"neutral_em_fraction"`
	Constituents      []Constituent         `json:"constituents,omitempty"`
	GenJet            *GenJet               `json:"gen_jet,omitempty"`
	TagInfos          map[string]*SVTagInfo `json:"tag_infos,omitempty"`

	UserFloats map[string]float64  `json:"user_floats,omitempty"`
	UserInts   map[string]int64    `json:"user_ints,omitempty"`
	UserData   map[string][]uint32 `json:"user_data,omitempty"`
}

// EMFraction is the charged plus neutral electromagnetic energy fraction.
func (j *Jet) EMFraction() float64 {
	return j.ChargedEMFraction + j.NeutralEMFraction
}

// HasTagInfo reports whether the jet carries tag info under label.
func (j *Jet) HasTagInfo(label string) bool {
	return j.TagInfos[label] != nil
}

// TagInfoLabels returns the jet's tag-info labels in sorted order.
func (j *Jet) TagInfoLabels() []string {
	labels := make([]string, 0, len(j.TagInfos))
	for label := range j.TagInfos {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// ConstituentKeys returns the constituents' collection keys in jet order.
func (j *Jet) ConstituentKeys() []uint32 {
	keys := make([]uint32, len(j.Constituents))
	for i, c := range j.Constituents {
		keys[i] = c.Key
	}
	return keys
}

// AddUserFloat attaches a named float attribute.
func (j *Jet) AddUserFloat(name string, v float64) {
	if j.UserFloats == nil {
		j.UserFloats = make(map[string]float64)
	}
	j.UserFloats[name] = v
}

// AddUserInt attaches a named integer attribute.
func (j *Jet) AddUserInt(name string, v int64) {
	if j.UserInts == nil {
		j.UserInts = make(map[string]int64)
	}
	j.UserInts[name] = v
}

// AddUserData attaches a named index list.
func (j *Jet) AddUserData(name string, v []uint32) {
	if j.UserData == nil {
		j.UserData = make(map[string][]uint32)
	}
	j.UserData[name] = v
}
