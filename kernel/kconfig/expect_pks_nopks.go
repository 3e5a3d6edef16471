// +build nopks

package kconfig

// ExpectPKS is false under the `nopks` build tag, selected by `cmd/kcli`'s
// `test-no-pks` target (spec.md §6, §8 scenario 6): PKS absence is then
// the documented fallback, not a fatal misconfiguration.
const ExpectPKS = false
