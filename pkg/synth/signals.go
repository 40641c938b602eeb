package synth

import (
	"github.com/zen-systems/drrepo/pkg/readme"
	"github.com/zen-systems/drrepo/pkg/repo"
	"github.com/zen-systems/drrepo/pkg/workflow"
)

// Signals is the flattened view rules and checks are evaluated against.
// Absent state fields become zero values: no README means every README
// signal is false and every essential section is missing.
type Signals struct {
	Subject   string
	HasRepo   bool
	HasReadme bool
	Readme    readme.Analysis
	Files     repo.FileStructure
}

// SignalsOf derives Signals from a state.
func SignalsOf(s *workflow.State) Signals {
	sig := Signals{Subject: s.Input.ID()}
	if s.Repo != nil {
		sig.HasRepo = true
		sig.Files = s.Repo.Files
	}
	if s.Readme != nil {
		sig.HasReadme = true
		sig.Readme = *s.Readme
	}
	return sig
}

// Missing lists the absent essential README sections in checklist order.
func (s Signals) Missing() []string {
	return s.Readme.MissingSections()
}

// LicensePresent reports a license in either the README or the tree.
func (s Signals) LicensePresent() bool {
	return s.Readme.HasLicense || s.Files.HasLicense
}

// ContributingPresent reports a contributing guide in either place.
func (s Signals) ContributingPresent() bool {
	return s.Readme.HasContributing || s.Files.HasContributing
}
