// Binary scarletctl boots and inspects Scarlet kernel instances.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	_ "github.com/scarletkernel/scarlet/kernel/abi/linuxriscv64"
	_ "github.com/scarletkernel/scarlet/kernel/abi/native"
	_ "github.com/scarletkernel/scarlet/kernel/abi/wasi"
)

const version = "0.1.0"

type versionCmd struct{}

func (*versionCmd) Name() string             { return "version" }
func (*versionCmd) Synopsis() string         { return "print scarletctl's version" }
func (*versionCmd) Usage() string            { return "version\n" }
func (*versionCmd) SetFlags(*flag.FlagSet)   {}
func (*versionCmd) Execute(context.Context, *flag.FlagSet, ...interface{}) subcommands.ExitStatus {
	fmt.Println("scarletctl version", version)
	return subcommands.ExitSuccess
}

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")
	subcommands.Register(&bootCmd{}, "")
	subcommands.Register(&versionCmd{}, "")

	flag.Parse()
	os.Exit(int(subcommands.Execute(context.Background())))
}
