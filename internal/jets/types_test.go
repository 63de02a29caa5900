package jets

import (
	"reflect"
	"testing"
)

func TestJetAccessors(t *testing.T) {
	j := &Jet{
		ChargedEMFraction: 0.25,
		NeutralEMFraction: 0.5,
		Constituents: []Constituent{
			{Key: 17}, {Key: 3}, {Key: 42},
		},
		TagInfos: map[string]*SVTagInfo{
			"pfInclusiveSecondaryVertexFinder": {},
			"impactParameter":                  {},
		},
	}

	if got := j.EMFraction(); got != 0.75 {
		t.Errorf("EMFraction = %f, expected 0.75", got)
	}
	if !j.HasTagInfo("pfInclusiveSecondaryVertexFinder") || j.HasTagInfo("softMuon") {
		t.Error("HasTagInfo reported the wrong labels")
	}
	if got := j.TagInfoLabels(); !reflect.DeepEqual(got, []string{"impactParameter", "pfInclusiveSecondaryVertexFinder"}) {
		t.Errorf("TagInfoLabels = %v", got)
	}
	if got := j.ConstituentKeys(); !reflect.DeepEqual(got, []uint32{17, 3, 42}) {
		t.Errorf("ConstituentKeys = %v, expected jet order", got)
	}
}

func TestUserAttributes(t *testing.T) {
	var j Jet
	j.AddUserFloat(AttrJetCorrFactor, 1.07)
	j.AddUserInt(AttrNSV, 2)
	j.AddUserData(AttrPFKeys, []uint32{1, 2})

	if j.UserFloats[AttrJetCorrFactor] != 1.07 {
		t.Errorf("user float not stored: %v", j.UserFloats)
	}
	if j.UserInts[AttrNSV] != 2 {
		t.Errorf("user int not stored: %v", j.UserInts)
	}
	if len(j.UserData[AttrPFKeys]) != 2 {
		t.Errorf("user data not stored: %v", j.UserData)
	}
}
