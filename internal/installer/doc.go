// Package installer turns a textual install source into a runnable
// server record: origin classification, source acquisition, project
// analysis, dependency install, build, security gating, command
// derivation, and a metadata cache keyed by source identity.
//
// Every external command runs through the runner seam so tests inject
// deterministic fakes. Pipeline stages emit progress events the host
// renders as install feedback.
package installer
