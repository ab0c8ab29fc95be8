// Package runner abstracts external command execution for the
// installer pipeline. Every subprocess (git, npm, pip, tar, build
// toolchains) goes through the Runner interface so tests can substitute
// deterministic fakes, and so timeouts and output relay are uniform.
package runner
