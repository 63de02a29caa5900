package jets

// Names of the attributes attached to every annotated jet.
const (
	AttrJECUncertaintyUp     = "jecUncertainty_up"
	AttrJECUncertaintyDown   = "jecUncertainty_down"
	AttrJECUncertaintyL1Up   = "jecUncertainty_l1_up"
	AttrJECUncertaintyL1Down = "jecUncertainty_l1_down"
	AttrJetCorrFactor        = "jetCorrFactor"
	AttrJetCorrFactorL1      = "jetCorrFactor_l1"

	AttrPtResolution = "PtResolution"
	AttrJERSF        = "JERSF"
	AttrJERSFUp      = "JERSFUp"
	AttrJERSFDown    = "JERSFDown"

	AttrSmearedPt     = "SmearedPt"
	AttrSmearedE      = "SmearedE"
	AttrSmearedPtUp   = "SmearedPt_up"
	AttrSmearedEUp    = "SmearedE_up"
	AttrSmearedPtDown = "SmearedPt_down"
	AttrSmearedEDown  = "SmearedE_down"

	AttrCorrExMETJEC        = "corrEx_MET_JEC"
	AttrCorrEyMETJEC        = "corrEy_MET_JEC"
	AttrCorrSumEtMETJEC     = "corrSumEt_MET_JEC"
	AttrCorrExMETJECUp      = "corrEx_MET_JEC_up"
	AttrCorrEyMETJECUp      = "corrEy_MET_JEC_up"
	AttrCorrSumEtMETJECUp   = "corrSumEt_MET_JEC_up"
	AttrCorrExMETJECDown    = "corrEx_MET_JEC_down"
	AttrCorrEyMETJECDown    = "corrEy_MET_JEC_down"
	AttrCorrSumEtMETJECDown = "corrSumEt_MET_JEC_down"

	AttrCorrExMETJER        = "corrEx_MET_JER"
	AttrCorrEyMETJER        = "corrEy_MET_JER"
	AttrCorrSumEtMETJER     = "corrSumEt_MET_JER"
	AttrCorrExMETJERUp      = "corrEx_MET_JER_up"
	AttrCorrEyMETJERUp      = "corrEy_MET_JER_up"
	AttrCorrSumEtMETJERUp   = "corrSumEt_MET_JER_up"
	AttrCorrExMETJERDown    = "corrEx_MET_JER_down"
	AttrCorrEyMETJERDown    = "corrEy_MET_JER_down"
	AttrCorrSumEtMETJERDown = "corrSumEt_MET_JER_down"

	AttrIsGenMatched = "isGenMatched"
	AttrNSV          = "nSV"
	AttrSV0Mass      = "SV0mass"
	AttrSV1Mass      = "SV1mass"
	AttrPFKeys       = "pfKeys"
)
