// +build !nopks

package kconfig

// ExpectPKS records whether this build assumes Protection Keys for
// Supervisor is present on the boot CPU. When true, a negative PKS probe
// at kernel/kmain bring-up is a hard configuration mismatch rather than
// the documented fallback (spec.md §4.5, §8 scenario 6); this is the
// default build, matched against `cmd/kcli`'s `run`/`test` targets which
// boot QEMU with `-cpu max,+pks`.
const ExpectPKS = true
