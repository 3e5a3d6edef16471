// Command kcli is the host-side build/run/test surface for the kernel
// (spec.md §6 "CLI surface"). The teacher has no direct analogue (its
// equivalent lives in a Makefile), so this is grounded on the style of its
// host tools instead: tools/redirects/redirects.go's `flag`-parsed single
// command plus `[toolname] error: ...`-prefixed, os.Exit(1)-on-failure
// error reporting, and tools/makelogo/makelogo.go's plain os/exec-driven
// external-tool invocation.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/exec"
)

const (
	kernelPkg    = "./cmd/kernel"
	kernelOutput = "kernel.elf"
)

func exit(err error) {
	fmt.Fprintf(os.Stderr, "[kcli] error: %s\n", err.Error())
	os.Exit(1)
}

func main() {
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	var err error
	switch flag.Arg(0) {
	case "build":
		err = build()
	case "run":
		err = run("max,+pks")
	case "test":
		err = test("max,+pks", "", false)
	case "test-no-pks":
		err = test("Skylake-Server", "nopks", true)
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		exit(err)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: kcli <build|run|test|test-no-pks>\n")
}

// build cross-compiles cmd/kernel for amd64 with no OS underneath: the
// resulting ELF is the kernel image a boot-image assembly pipeline (out of
// this module's scope, spec.md §1) would embed into a bootable ISO.
func build() error {
	cmd := exec.Command("go", "build", "-o", kernelOutput, kernelPkg)
	cmd.Env = append(os.Environ(), "GOOS=linux", "GOARCH=amd64", "CGO_ENABLED=0")
	cmd.Stdout, cmd.Stderr = os.Stdout, os.Stderr
	return cmd.Run()
}

// run boots the built kernel image under QEMU with the given -cpu string
// (spec.md §8 scenario 1: "QEMU q35 with -cpu max,+pks and 512 MiB RAM").
func run(cpu string) error {
	if err := build(); err != nil {
		return err
	}
	cmd := exec.Command("qemu-system-x86_64",
		"-M", "q35",
		"-cpu", cpu,
		"-m", "512M",
		"-serial", "stdio",
		"-kernel", kernelOutput,
	)
	cmd.Stdout, cmd.Stderr = os.Stdout, os.Stderr
	return cmd.Run()
}

// test builds with buildTag applied (nopks disables kernel/kconfig's
// ExpectPKS) and boots under QEMU with the given -cpu string, adding the
// QEMU isa-debug-exit device so the in-kernel test harness can signal
// completion by writing an exit byte to IO port 0x604 (spec.md §6).
func test(cpu, buildTag string, applyTag bool) error {
	args := []string{"build", "-o", kernelOutput}
	if applyTag {
		args = append(args, "-tags", buildTag)
	}
	args = append(args, kernelPkg)

	cmd := exec.Command("go", args...)
	cmd.Env = append(os.Environ(), "GOOS=linux", "GOARCH=amd64", "CGO_ENABLED=0")
	cmd.Stdout, cmd.Stderr = os.Stdout, os.Stderr
	if err := cmd.Run(); err != nil {
		return err
	}

	run := exec.Command("qemu-system-x86_64",
		"-M", "q35",
		"-cpu", cpu,
		"-m", "512M",
		"-serial", "stdio",
		"-device", "isa-debug-exit,iobase=0x604,iosize=0x02",
		"-kernel", kernelOutput,
	)
	run.Stdout, run.Stderr = os.Stdout, os.Stderr
	return run.Run()
}
